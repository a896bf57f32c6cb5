// Package validate checks and sanitizes task records and partial updates.
//
// Nothing here touches storage or shared state. Every check returns its
// verdict together with a best-effort sanitized value, so callers can see
// what the input would have become even when it is rejected.
package validate

import (
	"html"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/idilsaglam/tasklist/internal/model"
)

// Validator applies Rules. The zero value is not usable; call New.
type Validator struct {
	rules Rules
	now   func() time.Time
	newID func(time.Time) string
}

// Option customises a Validator.
type Option func(*Validator)

// WithRules replaces the text bounds. Non-positive values keep the defaults.
func WithRules(r Rules) Option {
	return func(v *Validator) {
		if r.MinLength > 0 {
			v.rules.MinLength = r.MinLength
		}
		if r.MaxLength > 0 {
			v.rules.MaxLength = r.MaxLength
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithIDSource replaces NewID.
func WithIDSource(fn func(time.Time) string) Option {
	return func(v *Validator) { v.newID = fn }
}

func New(opts ...Option) *Validator {
	v := &Validator{rules: DefaultRules, now: time.Now, newID: NewID}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Now is the validator's clock, truncated to storage precision.
func (v *Validator) Now() model.Timestamp { return model.NewTimestamp(v.now()) }

// Result is the verdict of a single-field check.
type Result struct {
	Valid  bool
	Errors []FieldError
}

func result(errs []FieldError) Result { return Result{Valid: len(errs) == 0, Errors: errs} }

// TextResult adds the sanitized text.
type TextResult struct {
	Valid     bool
	Errors    []FieldError
	Sanitized string
}

// Text checks free text as a user typed it. Sanitized is filled whether or
// not the text is valid. Entities in the input are kept literally, so
// "&lt;" is stored escaped and shown back as "&lt;".
func (v *Validator) Text(text string) TextResult {
	return v.checkText(strings.TrimSpace(stripControl(text)))
}

// storedText checks text read back from storage or an export. It is already
// escaped, so it is unescaped once before the checks; escaping again then
// reproduces the stored form.
func (v *Validator) storedText(text string) TextResult {
	s := strings.TrimSpace(stripControl(text))
	return v.checkText(strings.TrimSpace(stripControl(html.UnescapeString(s))))
}

// checkText validates plain, unescaped text and escapes it for storage.
func (v *Validator) checkText(plain string) TextResult {
	var errs []FieldError
	if strings.ContainsAny(plain, "<>") {
		errs = append(errs, fieldErr("text", CodeIllegalCharacters, "text must not contain < or >"))
	}
	n := utf8.RuneCountInString(plain)
	switch {
	case n == 0:
		errs = append(errs, fieldErr("text", CodeEmptyText, "text is empty"))
	case n < v.rules.MinLength:
		errs = append(errs, fieldErr("text", CodeTooShort, "text has %d characters, minimum is %d", n, v.rules.MinLength))
	case n > v.rules.MaxLength:
		errs = append(errs, fieldErr("text", CodeTooLong, "text has %d characters, maximum is %d", n, v.rules.MaxLength))
	}
	return TextResult{
		Valid:     len(errs) == 0,
		Errors:    errs,
		Sanitized: html.EscapeString(truncate(plain, v.rules.MaxLength)),
	}
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

// ID checks an identifier.
func (v *Validator) ID(value any) Result {
	s, ok := value.(string)
	if !ok {
		return result([]FieldError{fieldErr("id", CodeInvalidType, "id must be a string")})
	}
	switch {
	case s == "":
		return result([]FieldError{fieldErr("id", CodeInvalidID, "id is empty")})
	case len(s) > maxIDLength:
		return result([]FieldError{fieldErr("id", CodeInvalidID, "id is longer than %d characters", maxIDLength)})
	case !idPattern.MatchString(s):
		return result([]FieldError{fieldErr("id", CodeInvalidID, "id may only contain letters, digits, - and _")})
	}
	return result(nil)
}

// Completed checks the completion flag.
func (v *Validator) Completed(value any) Result {
	if _, ok := value.(bool); !ok {
		return result([]FieldError{fieldErr("completed", CodeInvalidType, "completed must be a boolean")})
	}
	return result(nil)
}

// Timestamp checks that value is a millisecond UTC timestamp naming a real instant.
func (v *Validator) Timestamp(value any, field string) Result {
	s, ok := value.(string)
	if !ok {
		return result([]FieldError{fieldErr(field, CodeInvalidType, "%s must be a string", field)})
	}
	if !timestampPattern.MatchString(s) {
		return result([]FieldError{fieldErr(field, CodeInvalidTimestamp, "%s %q is not YYYY-MM-DDTHH:MM:SS.mmmZ", field, s)})
	}
	if _, err := model.ParseTimestamp(s); err != nil {
		return result([]FieldError{fieldErr(field, CodeInvalidTimestamp, "%s %q is not a valid date", field, s)})
	}
	return result(nil)
}

// RecordResult carries a repaired record.
type RecordResult struct {
	Valid     bool
	Errors    []FieldError
	Sanitized model.Record
}

// Record checks a candidate decoded from JSON, whose text is in stored
// (escaped) form. Missing or null completed defaults to false and missing
// timestamps to now; those repairs are not errors.
func (v *Validator) Record(c map[string]any) RecordResult {
	var (
		errs []FieldError
		rec  model.Record
	)

	if raw, ok := c["id"]; !ok {
		errs = append(errs, fieldErr("id", CodeMissingField, "id is missing"))
	} else {
		errs = append(errs, v.ID(raw).Errors...)
		rec.ID, _ = raw.(string)
	}

	if raw, ok := c["text"]; !ok {
		errs = append(errs, fieldErr("text", CodeMissingField, "text is missing"))
	} else if s, ok := raw.(string); !ok {
		errs = append(errs, fieldErr("text", CodeInvalidType, "text must be a string"))
	} else {
		tr := v.storedText(s)
		errs = append(errs, tr.Errors...)
		rec.Text = tr.Sanitized
	}

	if raw, ok := c["completed"]; ok && raw != nil {
		errs = append(errs, v.Completed(raw).Errors...)
		rec.Completed, _ = raw.(bool)
	}

	now := v.Now()
	created, hasCreated, cerrs := v.timestampField(c, "createdAt")
	updated, hasUpdated, uerrs := v.timestampField(c, "updatedAt")
	errs = append(errs, cerrs...)
	errs = append(errs, uerrs...)
	switch {
	case !hasCreated && hasUpdated:
		created = updated
	case !hasCreated:
		created = now
	}
	if !hasUpdated {
		updated = model.Later(now, created)
	}
	if hasCreated && hasUpdated && updated.Before(created.Time) {
		errs = append(errs, fieldErr("updatedAt", CodeTimestampOrder, "updatedAt %s is before createdAt %s", updated, created))
		updated = created
	}
	rec.CreatedAt, rec.UpdatedAt = created, updated

	return RecordResult{Valid: len(errs) == 0, Errors: errs, Sanitized: rec}
}

func (v *Validator) timestampField(c map[string]any, field string) (model.Timestamp, bool, []FieldError) {
	raw, ok := c[field]
	if !ok || raw == nil {
		return model.Timestamp{}, false, nil
	}
	if r := v.Timestamp(raw, field); !r.Valid {
		return model.Timestamp{}, false, r.Errors
	}
	ts, _ := model.ParseTimestamp(raw.(string))
	return ts, true, nil
}

// ListResult carries the subset of candidates that passed.
type ListResult struct {
	Valid   bool
	Errors  []FieldError
	Records []model.Record
}

// RecordList checks candidates independently and keeps the ones that pass,
// in order. A repeated ID is reported; the first valid occurrence wins.
func (v *Validator) RecordList(candidates []map[string]any) ListResult {
	var errs []FieldError
	seen := make(map[string]bool, len(candidates))
	accepted := make(map[string]bool, len(candidates))
	out := make([]model.Record, 0, len(candidates))
	for i, c := range candidates {
		prefix := "records[" + strconv.Itoa(i) + "]"
		if id, ok := c["id"].(string); ok && id != "" {
			if seen[id] {
				errs = append(errs, fieldErr(prefix+".id", CodeDuplicateID, "duplicate id %q", id))
			}
			seen[id] = true
		}
		r := v.Record(c)
		if !r.Valid {
			errs = append(errs, prefixed(prefix, r.Errors)...)
			continue
		}
		if accepted[r.Sanitized.ID] {
			continue
		}
		accepted[r.Sanitized.ID] = true
		out = append(out, r.Sanitized)
	}
	return ListResult{Valid: len(errs) == 0, Errors: errs, Records: out}
}

// Patch is a sanitized partial update.
type Patch struct {
	Text      *string
	Completed *bool
	UpdatedAt model.Timestamp
}

// Apply returns r with the patch fields set. UpdatedAt never moves backwards.
func (p Patch) Apply(r model.Record) model.Record {
	if p.Text != nil {
		r.Text = *p.Text
	}
	if p.Completed != nil {
		r.Completed = *p.Completed
	}
	r.UpdatedAt = model.Later(r.UpdatedAt, p.UpdatedAt)
	return r
}

// PatchResult carries the sanitized patch.
type PatchResult struct {
	Valid  bool
	Errors []FieldError
	Patch  Patch
}

// UpdatePatch accepts only text and completed.
func (v *Validator) UpdatePatch(patch map[string]any) PatchResult {
	if len(patch) == 0 {
		return PatchResult{Errors: []FieldError{fieldErr("", CodeEmptyPatch, "patch has no fields")}}
	}
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		errs []FieldError
		p    Patch
	)
	for _, k := range keys {
		raw := patch[k]
		switch k {
		case "text":
			s, ok := raw.(string)
			if !ok {
				errs = append(errs, fieldErr("text", CodeInvalidType, "text must be a string"))
				continue
			}
			tr := v.Text(s)
			errs = append(errs, tr.Errors...)
			p.Text = &tr.Sanitized
		case "completed":
			r := v.Completed(raw)
			errs = append(errs, r.Errors...)
			if b, ok := raw.(bool); ok {
				p.Completed = &b
			}
		default:
			errs = append(errs, fieldErr(k, CodeUnknownField, "field %q cannot be updated", k))
		}
	}
	if len(errs) > 0 {
		return PatchResult{Errors: errs, Patch: p}
	}
	p.UpdatedAt = v.Now()
	return PatchResult{Valid: true, Patch: p}
}

// NewRecordResult carries a freshly built record, nil when rejected.
type NewRecordResult struct {
	Valid  bool
	Errors []FieldError
	Record *model.Record
}

// NewRecord is the only constructor of fresh records.
func (v *Validator) NewRecord(text string) NewRecordResult {
	tr := v.Text(text)
	if !tr.Valid {
		return NewRecordResult{Errors: tr.Errors}
	}
	now := v.now()
	ts := model.NewTimestamp(now)
	return NewRecordResult{
		Valid: true,
		Record: &model.Record{
			ID:        v.newID(now),
			Text:      tr.Sanitized,
			CreatedAt: ts,
			UpdatedAt: ts,
		},
	}
}
