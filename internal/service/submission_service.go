// Package service exposes the application facade composed by the HTTP API
// and the CLI: submission CRUD over the key-value store and the notification
// subsystem's operator surface.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/projekportal/notifier/internal/clock"
	"github.com/projekportal/notifier/internal/eventbus"
	"github.com/projekportal/notifier/internal/kvstore"
	"github.com/projekportal/notifier/internal/notify"
)

// submissionKeyPrefix scopes submission records in the shared store.
const submissionKeyPrefix = "submission:"

// EventPublisher lets the service emit events without depending on a
// concrete bus implementation.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string)
}

// SubmissionService is thin CRUD over the key-value store. Its only
// responsibility beyond storage is publishing lifecycle events; delivery of
// notifications for those events happens elsewhere, asynchronously, and can
// never fail a write here.
type SubmissionService struct {
	kv    kvstore.Store
	bus   EventPublisher
	clock clock.Clock
}

// NewSubmissionService creates a SubmissionService.
func NewSubmissionService(kv kvstore.Store, bus EventPublisher, clk clock.Clock) *SubmissionService {
	return &SubmissionService{kv: kv, bus: bus, clock: clk}
}

// Create stores a new submission, minting an ID when absent, and publishes
// submission.created.
func (s *SubmissionService) Create(ctx context.Context, sub notify.Submission) (notify.Submission, error) {
	if sub.ProjectName == "" {
		return notify.Submission{}, &ValidationError{Field: "project_name", Message: "must not be empty"}
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := s.clock.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	if err := s.write(ctx, sub); err != nil {
		return notify.Submission{}, err
	}
	s.bus.Publish(eventbus.EventSubmissionCreated, submissionPayload(sub))
	return sub, nil
}

// Update replaces an existing submission and publishes submission.updated.
func (s *SubmissionService) Update(ctx context.Context, sub notify.Submission) (notify.Submission, error) {
	existing, err := s.Get(ctx, sub.ID)
	if err != nil {
		return notify.Submission{}, err
	}
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = s.clock.Now()

	if err := s.write(ctx, sub); err != nil {
		return notify.Submission{}, err
	}
	s.bus.Publish(eventbus.EventSubmissionUpdated, submissionPayload(sub))
	return sub, nil
}

// Get returns the submission with the given id.
func (s *SubmissionService) Get(ctx context.Context, id string) (notify.Submission, error) {
	raw, found, err := s.kv.Get(ctx, submissionKeyPrefix+id)
	if err != nil {
		return notify.Submission{}, fmt.Errorf("reading submission: %w", err)
	}
	if !found {
		return notify.Submission{}, &NotFoundError{Resource: "submission", ID: id}
	}
	var sub notify.Submission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return notify.Submission{}, fmt.Errorf("parsing submission %q: %w", id, err)
	}
	return sub, nil
}

// List returns all submissions ordered by id.
func (s *SubmissionService) List(ctx context.Context) ([]notify.Submission, error) {
	entries, err := s.kv.List(ctx, submissionKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	subs := make([]notify.Submission, 0, len(entries))
	for _, e := range entries {
		var sub notify.Submission
		if err := json.Unmarshal([]byte(e.Value), &sub); err != nil {
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *SubmissionService) write(ctx context.Context, sub notify.Submission) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encoding submission: %w", err)
	}
	if err := s.kv.Set(ctx, submissionKeyPrefix+sub.ID, string(raw)); err != nil {
		return fmt.Errorf("writing submission: %w", err)
	}
	return nil
}

// submissionPayload flattens a submission into the string map carried by
// bus events, so listeners never need a read back from the store.
func submissionPayload(sub notify.Submission) map[string]string {
	return map[string]string{
		"id":              sub.ID,
		"project_name":    sub.ProjectName,
		"applicant_name":  sub.ApplicantName,
		"applicant_email": sub.ApplicantEmail,
		"agency":          sub.Agency,
		"status":          sub.Status,
		"description":     sub.Description,
		"updated_at":      sub.UpdatedAt.Format(time.RFC3339),
	}
}

// SubmissionFromPayload rebuilds the submission carried by a bus event.
func SubmissionFromPayload(payload map[string]string) notify.Submission {
	sub := notify.Submission{
		ID:             payload["id"],
		ProjectName:    payload["project_name"],
		ApplicantName:  payload["applicant_name"],
		ApplicantEmail: payload["applicant_email"],
		Agency:         payload["agency"],
		Status:         payload["status"],
		Description:    payload["description"],
	}
	if ts, err := time.Parse(time.RFC3339, payload["updated_at"]); err == nil {
		sub.UpdatedAt = ts
	}
	return sub
}
