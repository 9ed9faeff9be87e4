// Package kvstore is the persistence adapter: a namespace-prefixed,
// JSON-serializing key-value layer. It is the sole point of contact with
// persistent storage; no other package touches the backing store directly.
package kvstore

import "context"

// Adapter is the storage contract. Save reports success instead of
// returning an error: failures are logged and surfaced as user-facing
// notices, and in-memory state remains the source of truth. Load reports
// presence; missing or corrupt records read as absent, never as errors.
type Adapter interface {
	Save(ctx context.Context, key string, value any) bool
	Load(ctx context.Context, key string, dest any) bool
	Remove(ctx context.Context, key string)
	ListKeys(ctx context.Context) []string
	ClearAll(ctx context.Context)
	Ping(ctx context.Context) error
	Close() error
}

const (
	msgStorageFull = "Storage is full. Delete some documents or create a backup and free space."
	msgSaveFailed  = "Saving failed. Recent changes are kept in memory; create a backup."
)
