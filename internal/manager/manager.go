// Package manager owns the in-memory task list and keeps it in step with storage.
//
// Every mutation validates its input, applies the change to a working copy,
// saves the copy and only then makes it current. When the save fails the
// list stays as it was and an error:save event is published. A Manager is
// meant to be driven from one goroutine, the way a UI event loop drives it.
package manager

import (
	"context"
	"fmt"
	"html"
	"math"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/tasklist/internal/events"
	"github.com/idilsaglam/tasklist/internal/model"
	"github.com/idilsaglam/tasklist/internal/store"
	"github.com/idilsaglam/tasklist/internal/validate"
)

// Store is the persistence the manager needs. *store.RecordStore satisfies it.
type Store interface {
	SaveRecords(ctx context.Context, records []model.Record) error
	LoadEnvelope(ctx context.Context) (model.RawEnvelope, error)
	EncodeSnapshot(records []model.Record) ([]byte, error)
	DecodeSnapshot(data []byte) (map[string]any, error)
	Usage(ctx context.Context) store.Usage
}

// State is the manager lifecycle.
type State int

const (
	Uninitialized State = iota
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configure a Manager. Zero values get defaults.
type Options struct {
	Validator *validate.Validator
	Bus       *events.Bus
	Logger    log.FieldLogger
}

type Manager struct {
	store   Store
	v       *validate.Validator
	bus     *events.Bus
	logger  log.FieldLogger
	state   State
	records []model.Record
}

func New(s Store, opts Options) *Manager {
	m := &Manager{
		store:  s,
		v:      opts.Validator,
		bus:    opts.Bus,
		logger: opts.Logger,
	}
	if m.v == nil {
		m.v = validate.New()
	}
	if m.bus == nil {
		m.bus = events.NewBus(m.logger)
	}
	if m.logger == nil {
		m.logger = log.StandardLogger()
	}
	m.logger = m.logger.WithField("component", "manager")
	return m
}

// Bus is where the manager publishes.
func (m *Manager) Bus() *events.Bus { return m.bus }

// State reports the lifecycle state.
func (m *Manager) State() State { return m.state }

// Initialize loads the stored list, keeping the records that validate,
// newest first. On a read failure the manager stays Uninitialized.
func (m *Manager) Initialize(ctx context.Context) error {
	switch m.state {
	case Ready:
		return nil
	case Closed:
		return m.notReady("initialize")
	}
	records, rejected, err := m.load(ctx)
	if err != nil {
		m.logger.WithError(err).Error("initialization failed")
		m.bus.Publish(events.Failed{Op: events.OpInitialization, Err: err})
		return fmt.Errorf("initialize: %w", err)
	}
	m.records = records
	m.state = Ready
	m.logger.WithFields(log.Fields{"count": len(records), "rejected": rejected}).Debug("initialized")
	m.bus.Publish(events.Initialized{Count: len(records), Rejected: rejected})
	return nil
}

func (m *Manager) load(ctx context.Context) ([]model.Record, int, error) {
	env, err := m.store.LoadEnvelope(ctx)
	if err != nil {
		return nil, 0, err
	}
	records, rejected := m.accept(env.Records)
	return records, rejected, nil
}

// accept keeps the candidates that validate, newest first, and reports how
// many were dropped.
func (m *Manager) accept(candidates []map[string]any) ([]model.Record, int) {
	res := m.v.RecordList(candidates)
	for _, fe := range res.Errors {
		m.logger.WithFields(log.Fields{"field": fe.Field, "code": string(fe.Code)}).Warn("dropping record: " + fe.Message)
	}
	sortNewestFirst(res.Records)
	return res.Records, len(candidates) - len(res.Records)
}

func sortNewestFirst(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt.Time)
	})
}

// Close tears the manager down. It cannot be used afterwards.
func (m *Manager) Close() {
	m.state = Closed
	m.records = nil
}

func (m *Manager) ready(op string) error {
	if m.state == Ready {
		return nil
	}
	return m.notReady(op)
}

func (m *Manager) notReady(op string) error {
	m.logger.WithFields(log.Fields{"op": op, "state": m.state.String()}).Warn("operation rejected")
	m.bus.Publish(events.Failed{Op: events.OpNotReady, Err: ErrNotReady})
	return fmt.Errorf("%s: %w", op, ErrNotReady)
}

func (m *Manager) persist(ctx context.Context) func([]model.Record) error {
	return func(work []model.Record) error {
		return m.store.SaveRecords(ctx, work)
	}
}

func (m *Manager) saveFailed(op string, err error) error {
	m.logger.WithField("op", op).WithError(err).Warn("save failed, change reverted")
	m.bus.Publish(events.Failed{Op: events.OpSave, Err: err})
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func (m *Manager) invalid(op string, errs []validate.FieldError) error {
	m.bus.Publish(events.ValidationFailed{Op: op, Errors: errs})
	return &validate.Error{Op: op, Fields: errs}
}

func (m *Manager) notFound(op, id string) error {
	m.bus.Publish(events.NotFound{Op: op, ID: id})
	return fmt.Errorf("%s %q: %w", op, id, ErrNotFound)
}

func (m *Manager) indexOf(id string) int {
	return indexOf(m.records, id)
}

func indexOf(records []model.Record, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

// stamp moves UpdatedAt to now, never backwards.
func (m *Manager) stamp(r *model.Record) {
	r.UpdatedAt = model.Later(r.UpdatedAt, m.v.Now())
}

// Add creates a record from text and puts it at the head of the list.
func (m *Manager) Add(ctx context.Context, text string) (model.Record, error) {
	if err := m.ready("add"); err != nil {
		return model.Record{}, err
	}
	res := m.v.NewRecord(text)
	if !res.Valid {
		return model.Record{}, m.invalid(events.OpAdd, res.Errors)
	}
	rec := *res.Record
	err := commit(&m.records, func(work []model.Record) ([]model.Record, error) {
		return append([]model.Record{rec}, work...), nil
	}, m.persist(ctx))
	if err != nil {
		return model.Record{}, m.saveFailed("add", err)
	}
	m.bus.Publish(events.Added{Record: rec})
	return rec, nil
}

// Toggle flips the completion flag of id.
func (m *Manager) Toggle(ctx context.Context, id string) (model.Record, error) {
	if err := m.ready("toggle"); err != nil {
		return model.Record{}, err
	}
	idx := m.indexOf(id)
	if idx < 0 {
		return model.Record{}, m.notFound("toggle", id)
	}
	var rec model.Record
	err := commit(&m.records, func(work []model.Record) ([]model.Record, error) {
		work[idx].Completed = !work[idx].Completed
		m.stamp(&work[idx])
		rec = work[idx]
		return work, nil
	}, m.persist(ctx))
	if err != nil {
		return model.Record{}, m.saveFailed("toggle", err)
	}
	m.bus.Publish(events.Toggled{Record: rec})
	return rec, nil
}

// Delete removes id from the list.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.ready("delete"); err != nil {
		return err
	}
	idx := m.indexOf(id)
	if idx < 0 {
		return m.notFound("delete", id)
	}
	removed := m.records[idx]
	err := commit(&m.records, func(work []model.Record) ([]model.Record, error) {
		return append(work[:idx], work[idx+1:]...), nil
	}, m.persist(ctx))
	if err != nil {
		return m.saveFailed("delete", err)
	}
	m.bus.Publish(events.Deleted{Record: removed, Index: idx})
	return nil
}

// Update applies patch, which may only carry text and completed.
func (m *Manager) Update(ctx context.Context, id string, patch map[string]any) (model.Record, error) {
	if err := m.ready("update"); err != nil {
		return model.Record{}, err
	}
	pr := m.v.UpdatePatch(patch)
	if !pr.Valid {
		return model.Record{}, m.invalid(events.OpUpdate, pr.Errors)
	}
	idx := m.indexOf(id)
	if idx < 0 {
		return model.Record{}, m.notFound("update", id)
	}
	before := m.records[idx]
	var after model.Record
	err := commit(&m.records, func(work []model.Record) ([]model.Record, error) {
		work[idx] = pr.Patch.Apply(work[idx])
		after = work[idx]
		return work, nil
	}, m.persist(ctx))
	if err != nil {
		return model.Record{}, m.saveFailed("update", err)
	}
	m.bus.Publish(events.Updated{Before: before, After: after})
	return after, nil
}

// Batch applies action to every listed ID and saves once. IDs that are
// missing or already in the target state are skipped. It returns how many
// records changed.
func (m *Manager) Batch(ctx context.Context, ids []string, action model.BatchAction) (int, error) {
	if err := m.ready("batch"); err != nil {
		return 0, err
	}
	if _, ok := model.ParseBatchAction(string(action)); !ok {
		return 0, m.invalid("batch", []validate.FieldError{{
			Field:   "action",
			Code:    validate.CodeInvalidAction,
			Message: fmt.Sprintf("unknown batch action %q", action),
		}})
	}
	changed := 0
	err := commit(&m.records, func(work []model.Record) ([]model.Record, error) {
		for _, id := range ids {
			idx := indexOf(work, id)
			if idx < 0 {
				continue
			}
			switch action {
			case model.ActionComplete, model.ActionIncomplete:
				want := action == model.ActionComplete
				if work[idx].Completed == want {
					continue
				}
				work[idx].Completed = want
				m.stamp(&work[idx])
			case model.ActionDelete:
				work = append(work[:idx], work[idx+1:]...)
			}
			changed++
		}
		if changed == 0 {
			return work, errUnchanged
		}
		return work, nil
	}, m.persist(ctx))
	switch {
	case err == errUnchanged:
	case err != nil:
		return 0, m.saveFailed("batch", err)
	}
	m.bus.Publish(events.BatchDone{Action: action, Changed: changed})
	return changed, nil
}

// ClearAll removes every record.
func (m *Manager) ClearAll(ctx context.Context) error {
	if err := m.ready("clear"); err != nil {
		return err
	}
	removed := len(m.records)
	err := commit(&m.records, func([]model.Record) ([]model.Record, error) {
		return []model.Record{}, nil
	}, m.persist(ctx))
	if err != nil {
		return m.saveFailed("clear", err)
	}
	m.bus.Publish(events.AllCleared{Removed: removed})
	return nil
}

// GetAll returns a copy of the list, newest first.
func (m *Manager) GetAll() []model.Record {
	return model.Clone(m.records)
}

func (m *Manager) GetCompleted() []model.Record {
	return m.filter(func(r model.Record) bool { return r.Completed })
}

func (m *Manager) GetPending() []model.Record {
	return m.filter(func(r model.Record) bool { return !r.Completed })
}

func (m *Manager) filter(keep func(model.Record) bool) []model.Record {
	out := []model.Record{}
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Manager) GetByID(id string) (model.Record, bool) {
	if idx := m.indexOf(id); idx >= 0 {
		return m.records[idx], true
	}
	return model.Record{}, false
}

// Search matches query case-insensitively against record text. A blank
// query matches nothing.
func (m *Manager) Search(query string) []model.Record {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []model.Record{}
	}
	return m.filter(func(r model.Record) bool {
		return strings.Contains(strings.ToLower(html.UnescapeString(r.Text)), q)
	})
}

// Stats counts the list. CompletionRate is rounded to two decimals and is
// zero for an empty list.
func (m *Manager) Stats() model.Stats {
	s := model.Stats{Total: len(m.records)}
	for _, r := range m.records {
		if r.Completed {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	if s.Total > 0 {
		s.CompletionRate = math.Round(float64(s.Completed)/float64(s.Total)*100) / 100
	}
	return s
}

// Usage reports storage consumption.
func (m *Manager) Usage(ctx context.Context) store.Usage {
	return m.store.Usage(ctx)
}
