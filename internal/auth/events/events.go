// Package events publishes token lifecycle events so other services can
// react to revocations without polling introspection.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/authcore/pkg/idx"
)

// Event types. They double as AMQP routing keys.
const (
	TypeTokenIssued       = "token.issued"
	TypeTokenRevoked      = "token.revoked"
	TypeTokenChainRevoked = "token.chain_revoked"
)

// Reasons attached to chain revocations.
const (
	ReasonRevoked      = "revoked"
	ReasonRefreshReuse = "refresh_replay"
	ReasonCodeReuse    = "code_replay"
)

// Event never carries token values, only fingerprints.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Time      time.Time `json:"time"`
	ClientID  string    `json:"client_id"`
	Subject   string    `json:"subject,omitempty"`
	TokenType string    `json:"token_type,omitempty"`
	TokenHash string    `json:"token_hash,omitempty"`
	Anchor    string    `json:"anchor,omitempty"`
	GrantType string    `json:"grant_type,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	// Removed is the number of records deleted by a chain revocation.
	Removed int64 `json:"removed,omitempty"`
}

// New stamps an event with an id and time.
func New(typ string, now time.Time) Event {
	return Event{
		ID:   idx.NewAt(now).String(),
		Type: typ,
		Time: now.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of what was published, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters Events by type.
func (r *Recorder) OfType(typ string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
