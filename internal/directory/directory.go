// Package directory exposes the portal's identity directory: the account
// records written by the (excluded) authentication layer, read here only to
// resolve notification recipients.
package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/projekportal/notifier/internal/kvstore"
)

// userKeyPrefix is where the portal's account layer stores user records.
const userKeyPrefix = "user:"

// User is a directory account record.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// Directory lists portal accounts a page at a time.
type Directory interface {
	ListUsers(ctx context.Context, page, pageSize int) ([]User, error)
}

// KVDirectory implements Directory over the shared key-value store.
type KVDirectory struct {
	kv kvstore.Store
}

// NewKVDirectory returns a Directory reading user records from kv.
func NewKVDirectory(kv kvstore.Store) *KVDirectory {
	return &KVDirectory{kv: kv}
}

// ListUsers returns the requested page of user records, ordered by key.
// Pages are 1-based; an out-of-range page returns an empty slice.
func (d *KVDirectory) ListUsers(ctx context.Context, page, pageSize int) ([]User, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	entries, err := d.kv.List(ctx, userKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing user records: %w", err)
	}

	start := (page - 1) * pageSize
	if start >= len(entries) {
		return []User{}, nil
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}

	users := make([]User, 0, end-start)
	for _, e := range entries[start:end] {
		var u User
		if err := json.Unmarshal([]byte(e.Value), &u); err != nil {
			// A malformed record is skipped rather than failing the page.
			continue
		}
		users = append(users, u)
	}
	return users, nil
}
