package model

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the on-disk form of every timestamp: UTC, millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is a UTC instant truncated to milliseconds.
type Timestamp struct {
	time.Time
}

// NewTimestamp normalises t to UTC milliseconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Millisecond)}
}

// ParseTimestamp accepts only TimestampLayout.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return Timestamp{}, err
	}
	return NewTimestamp(t), nil
}

func (t Timestamp) String() string { return t.UTC().Format(TimestampLayout) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	ts, err := ParseTimestamp(s)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	*t = ts
	return nil
}

// Later returns whichever of a and b is later.
func Later(a, b Timestamp) Timestamp {
	if b.After(a.Time) {
		return b
	}
	return a
}

// Record is one task entry.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// Clone copies a record list. Records hold no pointers, so a shallow copy is a deep one.
func Clone(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	return out
}
