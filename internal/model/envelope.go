package model

// SchemaVersion is written into every envelope. Informational only.
const SchemaVersion = "1.0"

// Envelope is the persisted document wrapping the record list.
type Envelope struct {
	Records  []Record   `json:"records"`
	Version  string     `json:"version"`
	LastSync *Timestamp `json:"lastSync"`
}

// RawEnvelope is an envelope as read back from storage, before validation.
// Everything stays untyped so the validator can repair or reject records
// field by field, and odd metadata never makes the whole document unreadable.
type RawEnvelope struct {
	Records  []map[string]any `json:"records"`
	Version  any              `json:"version"`
	LastSync any              `json:"lastSync"`
}

// Stats summarises a record list.
type Stats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Pending        int     `json:"pending"`
	CompletionRate float64 `json:"completionRate"`
}

// BatchAction is what Batch applies to each selected record.
type BatchAction string

const (
	ActionComplete   BatchAction = "complete"
	ActionIncomplete BatchAction = "incomplete"
	ActionDelete     BatchAction = "delete"
)

// ParseBatchAction maps user input onto a BatchAction.
func ParseBatchAction(s string) (BatchAction, bool) {
	switch a := BatchAction(s); a {
	case ActionComplete, ActionIncomplete, ActionDelete:
		return a, true
	}
	return "", false
}
