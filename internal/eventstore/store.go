// Package eventstore keeps an append-only journal of build state
// transitions, queryable per build. The journal supplements the bounded
// ledger: ledger records are overwritten in place and eventually evicted,
// the journal keeps the full transition history.
package eventstore

import (
	"context"
	"time"
)

// Transition is one recorded state change of a build.
type Transition struct {
	ID        int64     `json:"id"`
	BuildID   string    `json:"build_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the transition journal interface.
type Store interface {
	Append(ctx context.Context, buildID, status, message string) error
	ByBuild(ctx context.Context, buildID string) ([]Transition, error)
	Close() error
}

// NoopStore discards transitions (journal disabled).
type NoopStore struct{}

func (NoopStore) Append(context.Context, string, string, string) error { return nil }
func (NoopStore) ByBuild(context.Context, string) ([]Transition, error) {
	return nil, nil
}
func (NoopStore) Close() error { return nil }
