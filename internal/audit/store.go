// Package audit persists delivery attempts in the key-value store under
// log:<submissionID>:<epochMillis> keys, with bounded per-submission and
// age-based retention, and aggregates them for reporting.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/projekportal/notifier/internal/clock"
	"github.com/projekportal/notifier/internal/kvstore"
	"github.com/projekportal/notifier/internal/notify"
)

// keyPrefix scopes all audit entries in the shared store.
const keyPrefix = "log:"

// maxEntriesPerSubmission is the rotation cap. Concurrent appends can
// briefly overshoot it; the surplus is caught on a later append, so the cap
// is a soft bound.
const maxEntriesPerSubmission = 100

// PurgeResult reports the outcome of an age-based bulk purge.
type PurgeResult struct {
	Deleted    int       `json:"deleted"`
	Remaining  int       `json:"remaining"`
	CutoffDate time.Time `json:"cutoffDate"`
}

// Store is the append-only audit log over the key-value store. It implements
// notify.AuditSink.
type Store struct {
	kv     kvstore.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewStore returns an audit store over kv.
func NewStore(kv kvstore.Store, clk clock.Clock, logger *slog.Logger) *Store {
	return &Store{kv: kv, clock: clk, logger: logger}
}

func entryKey(submissionID string, ts time.Time) string {
	return fmt.Sprintf("%s%s:%d", keyPrefix, submissionID, ts.UnixMilli())
}

// Append persists attempt and then rotates the submission's entries down to
// the cap, oldest first. Rotation failures are logged, not returned: the
// append itself already succeeded.
func (s *Store) Append(ctx context.Context, attempt notify.DeliveryAttempt) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("encoding delivery attempt: %w", err)
	}
	if err := s.kv.Set(ctx, entryKey(attempt.SubmissionID, attempt.Timestamp), string(raw)); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}

	if err := s.rotate(ctx, attempt.SubmissionID); err != nil {
		s.logger.Warn("audit rotation failed",
			"submission_id", attempt.SubmissionID, "error", err)
	}
	return nil
}

// rotate deletes the oldest surplus entries for submissionID beyond the cap.
func (s *Store) rotate(ctx context.Context, submissionID string) error {
	attempts, err := s.ListBySubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if len(attempts) <= maxEntriesPerSubmission {
		return nil
	}

	surplus := attempts[:len(attempts)-maxEntriesPerSubmission]
	for _, a := range surplus {
		// Del tolerates already-deleted keys, so racing rotations are safe.
		if err := s.kv.Del(ctx, entryKey(a.SubmissionID, a.Timestamp)); err != nil {
			return fmt.Errorf("deleting rotated entry: %w", err)
		}
	}
	return nil
}

// ListBySubmission returns all entries for submissionID, oldest first.
func (s *Store) ListBySubmission(ctx context.Context, submissionID string) ([]notify.DeliveryAttempt, error) {
	return s.list(ctx, keyPrefix+submissionID+":")
}

// ListAll returns every audit entry in the store, oldest first.
func (s *Store) ListAll(ctx context.Context) ([]notify.DeliveryAttempt, error) {
	return s.list(ctx, keyPrefix)
}

func (s *Store) list(ctx context.Context, prefix string) ([]notify.DeliveryAttempt, error) {
	entries, err := s.kv.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}

	attempts := make([]notify.DeliveryAttempt, 0, len(entries))
	for _, e := range entries {
		var a notify.DeliveryAttempt
		if err := json.Unmarshal([]byte(e.Value), &a); err != nil {
			s.logger.Warn("skipping malformed audit entry", "key", e.Key, "error", err)
			continue
		}
		attempts = append(attempts, a)
	}
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].Timestamp.Before(attempts[j].Timestamp)
	})
	return attempts, nil
}

// Purge deletes every entry strictly older than olderThanDays and reports
// the counts. Already-deleted keys are tolerated.
func (s *Store) Purge(ctx context.Context, olderThanDays int) (PurgeResult, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -olderThanDays)

	attempts, err := s.ListAll(ctx)
	if err != nil {
		return PurgeResult{}, err
	}

	result := PurgeResult{CutoffDate: cutoff}
	for _, a := range attempts {
		if !a.Timestamp.Before(cutoff) {
			result.Remaining++
			continue
		}
		if err := s.kv.Del(ctx, entryKey(a.SubmissionID, a.Timestamp)); err != nil {
			return result, fmt.Errorf("purging entry: %w", err)
		}
		result.Deleted++
	}
	return result, nil
}
