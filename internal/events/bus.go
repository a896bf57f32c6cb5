// Package events is a synchronous, typed publish/subscribe registry.
package events

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handler receives one event.
type Handler func(Event)

// Bus delivers events to subscribers in registration order, on the
// publisher's goroutine. A panicking handler is logged and skipped.
type Bus struct {
	mu     sync.Mutex
	subs   []*Subscription
	nextID uint64
	logger log.FieldLogger
}

// Subscription is returned by Subscribe.
type Subscription struct {
	id      uint64
	pattern Kind
	handler Handler
	bus     *Bus
}

func NewBus(logger log.FieldLogger) *Bus {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Bus{logger: logger}
}

// Subscribe registers handler for kind. A kind ending in "*" matches every
// kind with that prefix.
func (b *Bus) Subscribe(kind Kind, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{id: b.nextID, pattern: kind, handler: handler, bus: b}
	b.subs = append(b.subs, s)
	return s
}

// Unsubscribe removes the subscription. Calling it twice is harmless.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.subs {
		if cur.id == s.id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			break
		}
	}
	s.bus = nil
}

// Publish delivers e to every matching subscriber. A nil Bus drops events.
func (b *Bus) Publish(e Event) {
	if b == nil || e == nil {
		return
	}
	b.mu.Lock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	kind := e.Kind()
	for _, s := range subs {
		if !Matches(s.pattern, kind) {
			continue
		}
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s *Subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(log.Fields{
				"event":        string(e.Kind()),
				"subscription": s.id,
			}).Errorf("event handler panicked: %v", r)
		}
	}()
	s.handler(e)
}

// Matches reports whether kind satisfies pattern.
func Matches(pattern, kind Kind) bool {
	p := string(pattern)
	if prefix, ok := strings.CutSuffix(p, "*"); ok {
		return strings.HasPrefix(string(kind), prefix)
	}
	return p == string(kind)
}

// Describe renders an event for status lines and logs.
func Describe(e Event) string {
	switch ev := e.(type) {
	case Initialized:
		return fmt.Sprintf("loaded %d tasks", ev.Count)
	case Added:
		return "added"
	case Toggled:
		if ev.Record.Completed {
			return "marked done"
		}
		return "marked pending"
	case Deleted:
		return "removed"
	case Updated:
		return "updated"
	case AllCleared:
		return fmt.Sprintf("cleared %d tasks", ev.Removed)
	case BatchDone:
		return fmt.Sprintf("%s: %d changed", ev.Action, ev.Changed)
	case Imported:
		return fmt.Sprintf("imported %d tasks", ev.Count)
	case NotFound:
		return fmt.Sprintf("%s: no task %q", ev.Op, ev.ID)
	case ValidationFailed:
		msgs := make([]string, 0, len(ev.Errors))
		for _, fe := range ev.Errors {
			msgs = append(msgs, fe.Message)
		}
		return strings.Join(msgs, "; ")
	case Failed:
		if ev.Op == OpSave {
			return fmt.Sprintf("save failed, change reverted: %v", ev.Err)
		}
		return fmt.Sprintf("%s failed: %v", ev.Op, ev.Err)
	case StorageFailed:
		return fmt.Sprintf("storage error (%s): %v", ev.Class, ev.Err)
	case StorageUnavailable:
		return fmt.Sprintf("storage unavailable, changes will not persist: %v", ev.Reason)
	}
	return string(e.Kind())
}
