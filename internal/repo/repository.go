package repo

import (
	"context"

	"github.com/hamed0406/reachability/internal/domain"
)

// DefaultCapacity is the number of results retained by the cache.
const DefaultCapacity = 100

// ResultStore keeps the most recent probe results. Implementations are safe
// for concurrent use.
type ResultStore interface {
	// Append adds r, evicting the oldest entry once the store is full.
	Append(ctx context.Context, r domain.ProbeResult) error
	// Recent returns up to n results, newest first.
	Recent(ctx context.Context, n int) ([]domain.ProbeResult, error)
	Len() int
}
