package store

import (
	"context"
	"time"

	"github.com/idilsaglam/tasklist/internal/model"
)

// DefaultKey is where the envelope lives unless configured otherwise.
const DefaultKey = "tasklist:records"

// RecordStore keeps the record envelope under one key of a Gateway.
type RecordStore struct {
	gw  *Gateway
	key string
	now func() time.Time
}

func NewRecordStore(gw *Gateway, key string) *RecordStore {
	if key == "" {
		key = DefaultKey
	}
	return &RecordStore{gw: gw, key: key, now: time.Now}
}

func (s *RecordStore) envelope(records []model.Record) model.Envelope {
	if records == nil {
		records = []model.Record{}
	}
	ts := model.NewTimestamp(s.now())
	return model.Envelope{Records: records, Version: model.SchemaVersion, LastSync: &ts}
}

// SaveRecords writes the full list.
func (s *RecordStore) SaveRecords(ctx context.Context, records []model.Record) error {
	return s.gw.Save(ctx, s.key, s.envelope(records))
}

// LoadEnvelope returns the stored envelope, or an empty one when nothing
// usable is stored.
func (s *RecordStore) LoadEnvelope(ctx context.Context) (model.RawEnvelope, error) {
	var env model.RawEnvelope
	found, err := s.gw.Load(ctx, s.key, &env)
	if err != nil {
		return model.RawEnvelope{}, err
	}
	if !found {
		return model.RawEnvelope{Version: model.SchemaVersion}, nil
	}
	return env, nil
}

// EncodeSnapshot serialises records as a complete envelope.
func (s *RecordStore) EncodeSnapshot(records []model.Record) ([]byte, error) {
	return s.gw.Encode(s.envelope(records))
}

// DecodeSnapshot parses an exported envelope into a generic document.
func (s *RecordStore) DecodeSnapshot(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := s.gw.Decode(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Usage reports the gateway's usage.
func (s *RecordStore) Usage(ctx context.Context) Usage { return s.gw.Usage(ctx) }
