package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/projekportal/notifier/internal/audit"
	"github.com/projekportal/notifier/internal/eventbus"
	"github.com/projekportal/notifier/internal/kvstore"
	"github.com/projekportal/notifier/internal/notify"
)

const maskedKey = "***"

// Status reports whether the subsystem is currently able to deliver, for
// operator dashboards.
type Status struct {
	ConfigResolvable bool   `json:"config_resolvable"`
	ConfigSource     string `json:"config_source,omitempty"`
	RecipientCount   int    `json:"recipient_count"`
	PrimaryChannel   string `json:"primary_channel,omitempty"`
}

// NotifierService is the explicit service object exposing the notification
// subsystem to the HTTP API and the CLI: notify, stats, purge, status, and
// channel settings management.
type NotifierService struct {
	orch       *notify.Orchestrator
	store      *audit.Store
	aggregator *audit.Aggregator
	config     notify.ConfigResolving
	recipients notify.RecipientResolving
	primary    notify.PrimaryChannelSink
	kv         kvstore.Store
	logger     *slog.Logger
}

// NewNotifierService creates a NotifierService.
func NewNotifierService(
	orch *notify.Orchestrator,
	store *audit.Store,
	aggregator *audit.Aggregator,
	config notify.ConfigResolving,
	recipients notify.RecipientResolving,
	primary notify.PrimaryChannelSink,
	kv kvstore.Store,
	logger *slog.Logger,
) *NotifierService {
	return &NotifierService{
		orch:       orch,
		store:      store,
		aggregator: aggregator,
		config:     config,
		recipients: recipients,
		primary:    primary,
		kv:         kv,
		logger:     logger,
	}
}

// Notify executes one delivery attempt for sub. It never returns an error.
func (s *NotifierService) Notify(ctx context.Context, sub notify.Submission, recipients ...string) notify.NotificationResult {
	return s.orch.Notify(ctx, sub, recipients...)
}

// Stats aggregates the audit log, optionally scoped to one submission.
func (s *NotifierService) Stats(ctx context.Context, submissionID string) (audit.StatsReport, error) {
	return s.aggregator.Compute(ctx, submissionID)
}

// Logs returns stored attempts, optionally scoped to one submission.
func (s *NotifierService) Logs(ctx context.Context, submissionID string) ([]notify.DeliveryAttempt, error) {
	if submissionID != "" {
		return s.store.ListBySubmission(ctx, submissionID)
	}
	return s.store.ListAll(ctx)
}

// PurgeLogs deletes audit entries older than the given number of days.
func (s *NotifierService) PurgeLogs(ctx context.Context, olderThanDays int) (audit.PurgeResult, error) {
	if olderThanDays <= 0 {
		return audit.PurgeResult{}, &ValidationError{Field: "older_than_days", Message: "must be positive"}
	}
	return s.store.Purge(ctx, olderThanDays)
}

// Status reports current resolvability of configuration and recipients.
func (s *NotifierService) Status(ctx context.Context) Status {
	st := Status{}
	if cfg := s.config.Resolve(ctx); cfg != nil {
		st.ConfigResolvable = true
		st.ConfigSource = string(cfg.Source)
	}
	st.RecipientCount = len(s.recipients.Resolve(ctx))
	if s.primary != nil {
		st.PrimaryChannel = s.primary.Name()
	}
	return st
}

// ChannelSettings returns the persisted channel configuration with the
// access and secret keys masked.
func (s *NotifierService) ChannelSettings(ctx context.Context) (notify.ChannelSettings, error) {
	settings, err := s.loadChannelSettings(ctx)
	if err != nil {
		return notify.ChannelSettings{}, err
	}
	if settings.AccessKey != "" {
		settings.AccessKey = maskedKey
	}
	if settings.SecretKey != "" {
		settings.SecretKey = maskedKey
	}
	return settings, nil
}

// UpdateChannelSettings persists new channel configuration. Incoming masked
// key fields preserve the previously stored values, so the admin screen can
// round-trip settings without ever holding real keys.
func (s *NotifierService) UpdateChannelSettings(ctx context.Context, incoming notify.ChannelSettings) error {
	if incoming.AccessKey == maskedKey || incoming.SecretKey == maskedKey {
		existing, err := s.loadChannelSettings(ctx)
		if err != nil {
			return fmt.Errorf("loading existing settings: %w", err)
		}
		if incoming.AccessKey == maskedKey {
			incoming.AccessKey = existing.AccessKey
		}
		if incoming.SecretKey == maskedKey {
			incoming.SecretKey = existing.SecretKey
		}
	}

	raw, err := json.Marshal(incoming)
	if err != nil {
		return fmt.Errorf("encoding channel settings: %w", err)
	}
	if err := s.kv.Set(ctx, notify.ConfigKey, string(raw)); err != nil {
		return fmt.Errorf("saving channel settings: %w", err)
	}
	return nil
}

// TestChannel sends a test message through the primary channel sink so
// operators can verify credentials. It fails when no primary channel is
// composed, which is the standard deployment shape.
func (s *NotifierService) TestChannel(ctx context.Context) error {
	if s.primary == nil {
		return errors.New("no primary channel is configured in this deployment")
	}
	to := s.recipients.Resolve(ctx)
	if len(to) == 0 {
		return errors.New("no recipients resolvable for test send")
	}
	return s.primary.Send(ctx, notify.Message{
		Subject: "Projek Portal: test notification",
		Body:    "This is a test notification.\n\nYour channel configuration is working correctly.",
		To:      to,
	})
}

func (s *NotifierService) loadChannelSettings(ctx context.Context) (notify.ChannelSettings, error) {
	raw, found, err := s.kv.Get(ctx, notify.ConfigKey)
	if err != nil {
		return notify.ChannelSettings{}, fmt.Errorf("reading channel settings: %w", err)
	}
	if !found || raw == "" || raw == "{}" {
		return notify.ChannelSettings{}, nil
	}
	var settings notify.ChannelSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return notify.ChannelSettings{}, fmt.Errorf("parsing channel settings: %w", err)
	}
	return settings, nil
}

// SubmissionListener returns the bus listener that triggers a delivery
// attempt for every submission lifecycle event. The listener is
// fire-and-forget: the orchestrator never errors and the bus recovers from
// panics, so nothing here can reach the write path.
func (s *NotifierService) SubmissionListener() eventbus.Listener {
	return func(e eventbus.Event) {
		switch e.Type {
		case eventbus.EventSubmissionCreated, eventbus.EventSubmissionUpdated:
		default:
			return
		}
		sub := SubmissionFromPayload(e.Payload)
		result := s.Notify(context.Background(), sub)
		s.logger.Info("submission notification processed",
			"submission_id", sub.ID,
			"event_type", e.Type,
			"method", string(result.Method),
			"final_status", string(result.FinalStatus),
			"sent", result.Sent,
			"failed", result.Failed)
	}
}
