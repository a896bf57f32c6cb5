package events

import (
	"github.com/idilsaglam/tasklist/internal/model"
	"github.com/idilsaglam/tasklist/internal/validate"
)

// Kind names an event. Kinds ending in "*" are subscription patterns.
type Kind string

const (
	KindInitialized        Kind = "initialized"
	KindAdded              Kind = "added"
	KindToggled            Kind = "toggled"
	KindDeleted            Kind = "deleted"
	KindUpdated            Kind = "updated"
	KindAllCleared         Kind = "all-cleared"
	KindBatchDone          Kind = "batch-done"
	KindImported           Kind = "imported"
	KindNotFound           Kind = "not-found"
	KindStorageError       Kind = "storage-error"
	KindStorageUnavailable Kind = "storage-unavailable"

	// Patterns.
	AnyError           Kind = "error:*"
	AnyValidationError Kind = "validation-error:*"
	Any                Kind = "*"
)

// Operation names used in error and validation-error kinds.
const (
	OpInitialization = "initialization"
	OpSave           = "save"
	OpImport         = "import"
	OpNotReady       = "not-ready"
	OpAdd            = "add"
	OpUpdate         = "update"
)

// ErrorKind is "error:<op>".
func ErrorKind(op string) Kind { return Kind("error:" + op) }

// ValidationKind is "validation-error:<op>".
func ValidationKind(op string) Kind { return Kind("validation-error:" + op) }

// Event is implemented by every payload type below.
type Event interface {
	Kind() Kind
}

type Initialized struct {
	Count    int
	Rejected int
}

type Added struct{ Record model.Record }

type Toggled struct{ Record model.Record }

type Deleted struct {
	Record model.Record
	Index  int
}

type Updated struct {
	Before model.Record
	After  model.Record
}

type AllCleared struct{ Removed int }

type BatchDone struct {
	Action  model.BatchAction
	Changed int
}

type Imported struct{ Count int }

type NotFound struct {
	Op string
	ID string
}

// ValidationFailed is published as validation-error:<Op>.
type ValidationFailed struct {
	Op     string
	Errors []validate.FieldError
}

// Failed is published as error:<Op>.
type Failed struct {
	Op  string
	Err error
}

// StorageFailed reports a classified backend failure. Class is one of
// QuotaExceeded, AccessDenied or Unknown.
type StorageFailed struct {
	Key   string
	Class string
	Err   error
}

// StorageUnavailable is published once when the backend fails its probe and
// the session falls back to non-durable storage.
type StorageUnavailable struct {
	Reason error
}

func (Initialized) Kind() Kind        { return KindInitialized }
func (Added) Kind() Kind              { return KindAdded }
func (Toggled) Kind() Kind            { return KindToggled }
func (Deleted) Kind() Kind            { return KindDeleted }
func (Updated) Kind() Kind            { return KindUpdated }
func (AllCleared) Kind() Kind         { return KindAllCleared }
func (BatchDone) Kind() Kind          { return KindBatchDone }
func (Imported) Kind() Kind           { return KindImported }
func (NotFound) Kind() Kind           { return KindNotFound }
func (e ValidationFailed) Kind() Kind { return ValidationKind(e.Op) }
func (e Failed) Kind() Kind           { return ErrorKind(e.Op) }
func (StorageFailed) Kind() Kind      { return KindStorageError }
func (StorageUnavailable) Kind() Kind { return KindStorageUnavailable }
