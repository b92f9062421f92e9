package audit

import (
	"context"
	"sort"

	"github.com/projekportal/notifier/internal/notify"
)

// recentLimit caps how many attempts a stats report carries.
const recentLimit = 10

// StatsReport is a read-only aggregate over the audit log at call time.
type StatsReport struct {
	TotalAttempts       int                      `json:"total_attempts"`
	SuccessfulAttempts  int                      `json:"successful_attempts"`
	FailedAttempts      int                      `json:"failed_attempts"`
	MethodBreakdown     map[string]int           `json:"method_breakdown"`
	RecentAttempts      []notify.DeliveryAttempt `json:"recent_attempts"`
	DistinctSubmissions int                      `json:"distinct_submission_ids"`
}

// Aggregator computes statistics over an audit Store. It never mutates the
// log; two calls with no intervening append return identical reports.
type Aggregator struct {
	store *Store
}

// NewAggregator returns an Aggregator over store.
func NewAggregator(store *Store) *Aggregator {
	return &Aggregator{store: store}
}

// Compute aggregates the stored attempts. A non-empty submissionID restricts
// the report to that submission.
func (a *Aggregator) Compute(ctx context.Context, submissionID string) (StatsReport, error) {
	var (
		attempts []notify.DeliveryAttempt
		err      error
	)
	if submissionID != "" {
		attempts, err = a.store.ListBySubmission(ctx, submissionID)
	} else {
		attempts, err = a.store.ListAll(ctx)
	}
	if err != nil {
		return StatsReport{}, err
	}

	report := StatsReport{
		MethodBreakdown: make(map[string]int),
		RecentAttempts:  []notify.DeliveryAttempt{},
	}
	submissions := make(map[string]struct{})
	for _, at := range attempts {
		report.TotalAttempts++
		if at.Success {
			report.SuccessfulAttempts++
		} else {
			report.FailedAttempts++
		}
		report.MethodBreakdown[string(at.Method)]++
		submissions[at.SubmissionID] = struct{}{}
	}
	report.DistinctSubmissions = len(submissions)

	recent := make([]notify.DeliveryAttempt, len(attempts))
	copy(recent, attempts)
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	report.RecentAttempts = recent

	return report, nil
}
