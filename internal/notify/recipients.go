package notify

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/projekportal/notifier/internal/clock"
	"github.com/projekportal/notifier/internal/directory"
)

// recipientTTL is how long a non-empty recipient list is served from cache.
const recipientTTL = 60 * time.Second

// directoryPageSize caps how many directory entries are examined per
// resolution. Pagination beyond the first page is not attempted.
const directoryPageSize = 100

// RecipientResolver resolves the current set of notification recipients from
// the identity directory. Directory failures degrade to an empty list rather
// than an error; only non-empty results are cached.
type RecipientResolver struct {
	dir    directory.Directory
	cache  *Cache[[]string]
	logger *slog.Logger
}

// NewRecipientResolver returns a resolver over dir with a 60-second cache.
func NewRecipientResolver(dir directory.Directory, clk clock.Clock, logger *slog.Logger) *RecipientResolver {
	return &RecipientResolver{
		dir:    dir,
		cache:  NewCache[[]string](recipientTTL, clk),
		logger: logger,
	}
}

// Resolve returns the verified directory addresses, deduplicated and sorted.
// An empty result is valid and is never cached, so the next call queries the
// directory again.
func (r *RecipientResolver) Resolve(ctx context.Context) []string {
	if cached, ok := r.cache.Get(); ok && len(cached) > 0 {
		return cached
	}

	users, err := r.dir.ListUsers(ctx, 1, directoryPageSize)
	if err != nil {
		r.logger.Warn("directory query failed, treating as zero recipients", "error", err)
		return []string{}
	}

	seen := make(map[string]struct{}, len(users))
	emails := make([]string, 0, len(users))
	for _, u := range users {
		if !u.Verified || u.Email == "" {
			continue
		}
		if _, dup := seen[u.Email]; dup {
			continue
		}
		seen[u.Email] = struct{}{}
		emails = append(emails, u.Email)
	}
	sort.Strings(emails)

	if len(emails) > 0 {
		r.cache.Put(emails)
	}
	return emails
}
