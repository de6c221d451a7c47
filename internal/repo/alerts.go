package repo

import (
	"context"
	"time"
)

// AlertRecord holds the last-known state of a probed URL and the last time a
// notification went out for it.
type AlertRecord struct {
	Key        string
	LastOK     bool
	LastSentAt *time.Time
}

// AlertStore persists alert state between results.
type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, key string) (*AlertRecord, error)
	// Set upserts the record. A zero sentAt keeps the previous send time.
	Set(ctx context.Context, key string, ok bool, sentAt time.Time) error
}
