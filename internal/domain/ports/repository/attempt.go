package repository

import "context"

// AttemptRepository is the durable throttle counter per (submitter, target).
// Increment is atomic (single UPSERT) and returns the post-increment count.
type AttemptRepository interface {
	Increment(ctx context.Context, tx Tx, scopeKey string) (int, error)
	Get(ctx context.Context, tx Tx, scopeKey string) (int, error)
	Reset(ctx context.Context, tx Tx, scopeKey string) error
}
