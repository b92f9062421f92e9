// Package kvstore provides the hosted key-value store the portal persists
// everything into: submissions, user records, the notification channel
// configuration, and the delivery audit log.
package kvstore

import "context"

// Entry is a single key-value record.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Store is the key-value store interface. Get reports found=false for a
// missing key instead of an error; Del on a missing key is a no-op.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
	// List returns all entries whose key starts with prefix, ordered by key
	// ascending.
	List(ctx context.Context, prefix string) ([]Entry, error)
}
