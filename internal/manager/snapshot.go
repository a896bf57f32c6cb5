package manager

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/tasklist/internal/events"
)

// ExportSnapshot serialises the current list as a full envelope.
func (m *Manager) ExportSnapshot() ([]byte, error) {
	if err := m.ready("export"); err != nil {
		return nil, err
	}
	b, err := m.store.EncodeSnapshot(m.records)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return b, nil
}

// ImportSnapshot replaces the list with the records in data. The payload is
// checked as a whole first; a malformed one changes nothing. The records of
// a valid one go through the same validation as Initialize, and only the
// accepted, sanitized list is saved.
func (m *Manager) ImportSnapshot(ctx context.Context, data []byte) error {
	if err := m.ready("import"); err != nil {
		return err
	}
	doc, err := m.store.DecodeSnapshot(data)
	if err != nil {
		return m.importFailed(fmt.Errorf("%w: %w", ErrImportFormat, err))
	}
	candidates, err := importCandidates(doc)
	if err != nil {
		return m.importFailed(err)
	}
	records, rejected := m.accept(candidates)
	if err := m.store.SaveRecords(ctx, records); err != nil {
		return m.importFailed(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	m.records = records
	m.logger.WithFields(log.Fields{"count": len(records), "rejected": rejected}).Info("imported")
	m.bus.Publish(events.Imported{Count: len(records)})
	return nil
}

func (m *Manager) importFailed(err error) error {
	m.logger.WithError(err).Warn("import rejected")
	m.bus.Publish(events.Failed{Op: events.OpImport, Err: err})
	return fmt.Errorf("import: %w", err)
}

// importCandidates requires a records list of objects that each carry
// non-empty text.
func importCandidates(doc map[string]any) ([]map[string]any, error) {
	raw, ok := doc["records"]
	if !ok {
		return nil, fmt.Errorf("%w: records field is missing", ErrImportFormat)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: records is not a list", ErrImportFormat)
	}
	out := make([]map[string]any, 0, len(list))
	for i, entry := range list {
		rec, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: records[%d] is not an object", ErrImportFormat, i)
		}
		text, ok := rec["text"].(string)
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: records[%d] has no text", ErrImportFormat, i)
		}
		out = append(out, rec)
	}
	return out, nil
}
