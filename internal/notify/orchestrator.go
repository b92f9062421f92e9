package notify

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/projekportal/notifier/internal/clock"
)

// emailRe is the standard address-shape check applied to every candidate
// recipient before dispatch.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// fieldFallback substitutes for any missing optional submission field so
// payload construction never fails.
const fieldFallback = "not specified"

// defaultCallTimeout bounds each store and directory call made during one
// Notify invocation, matching the health-check timeout used elsewhere in
// the portal.
const defaultCallTimeout = 5 * time.Second

// ConfigResolving resolves the current channel configuration, nil when none.
type ConfigResolving interface {
	Resolve(ctx context.Context) *NotificationConfig
}

// RecipientResolving resolves the current recipient list, empty when none.
type RecipientResolving interface {
	Resolve(ctx context.Context) []string
}

// OrchestratorConfig holds the orchestrator's collaborators.
type OrchestratorConfig struct {
	Recipients RecipientResolving
	Config     ConfigResolving
	Audit      AuditSink
	// Primary is optional. When nil (the standard deployment shape, where
	// the channel SDK cannot run in this process) every attempt resolves
	// deterministically to the fallback path.
	Primary PrimaryChannelSink
	Retry   RetryPolicy
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *Metrics
	// CallTimeout bounds individual store/directory calls. Zero means the
	// 5-second default.
	CallTimeout time.Duration
}

// Orchestrator executes one notification attempt per submission event and
// records every outcome. Notify never returns an error and never panics out;
// the submission write path must not be affected by notification failures.
type Orchestrator struct {
	cfg OrchestratorConfig
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Orchestrator{cfg: cfg}
}

// Notify resolves recipients and configuration, executes the delivery
// attempt for sub, and appends exactly one audit entry for the terminal
// branch taken. When recipients are supplied they bypass the resolver.
func (o *Orchestrator) Notify(ctx context.Context, sub Submission, recipients ...string) (result NotificationResult) {
	defer func() {
		if r := recover(); r != nil {
			o.cfg.Logger.Error("notification pipeline panic",
				"submission_id", sub.ID, "panic", fmt.Sprint(r))
			attempt := o.newAttempt(sub.ID, MethodError, []string{}, false,
				fmt.Sprintf("unexpected failure: %v", r), 0)
			o.record(attempt)
			result = NotificationResult{
				Success:     false,
				Method:      MethodError,
				Attempts:    []DeliveryAttempt{attempt},
				FinalStatus: StatusFallbackLogged,
			}
		}
	}()

	candidates := recipients
	if len(candidates) == 0 {
		rctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		candidates = o.cfg.Recipients.Resolve(rctx)
		cancel()
	}
	if len(candidates) == 0 {
		attempt := o.newAttempt(sub.ID, MethodNone, []string{}, false, "no admin emails", 0)
		o.record(attempt)
		return NotificationResult{
			Success:     false,
			Method:      MethodNone,
			Attempts:    []DeliveryAttempt{attempt},
			FinalStatus: StatusFailed,
		}
	}

	valid, invalid := partitionAddresses(candidates)
	if len(valid) == 0 {
		attempt := o.newAttempt(sub.ID, MethodValidation, candidates, false,
			"no valid recipient addresses", 0)
		o.record(attempt)
		return NotificationResult{
			Success:     false,
			Method:      MethodValidation,
			Total:       len(candidates),
			Failed:      len(candidates),
			Attempts:    []DeliveryAttempt{attempt},
			FinalStatus: StatusFailed,
		}
	}

	cctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	channelCfg := o.cfg.Config.Resolve(cctx)
	cancel()

	msg := buildMessage(sub, valid)

	var primaryErr error
	tries := 0
	if o.cfg.Primary != nil {
		tries, primaryErr = o.cfg.Retry.Run(ctx, func(rctx context.Context) error {
			sctx, scancel := context.WithTimeout(rctx, o.cfg.CallTimeout)
			defer scancel()
			return o.cfg.Primary.Send(sctx, msg)
		})
		if primaryErr == nil {
			attempt := o.newAttempt(sub.ID, MethodPrimary, valid, true, "", tries-1)
			o.record(attempt)
			status := StatusDelivered
			if len(invalid) > 0 {
				status = StatusPartial
			}
			return NotificationResult{
				Success:     true,
				Method:      MethodPrimary,
				Sent:        len(valid),
				Total:       len(valid) + len(invalid),
				Failed:      len(invalid),
				Attempts:    []DeliveryAttempt{attempt},
				FinalStatus: status,
			}
		}
		o.cfg.Logger.Warn("primary channel exhausted, falling back",
			"submission_id", sub.ID, "tries", tries, "error", primaryErr)
	}

	// Fallback path: the attempt is recorded as successfully logged even
	// though no transport ran. See FinalStatus for the rationale.
	errMsg := ""
	switch {
	case primaryErr != nil:
		errMsg = primaryErr.Error()
	case channelCfg == nil:
		errMsg = "channel not configured"
	}
	attempt := o.newAttempt(sub.ID, MethodFallback, valid, true, errMsg, tries)
	o.record(attempt)
	return NotificationResult{
		Success:     true,
		Method:      MethodFallback,
		Sent:        len(valid),
		Total:       len(valid) + len(invalid),
		Failed:      len(invalid),
		Attempts:    []DeliveryAttempt{attempt},
		FinalStatus: StatusFallbackLogged,
	}
}

func (o *Orchestrator) newAttempt(submissionID string, method Method, recipients []string, success bool, errMsg string, retryCount int) DeliveryAttempt {
	return DeliveryAttempt{
		Timestamp:    o.cfg.Clock.Now(),
		SubmissionID: submissionID,
		Method:       method,
		Recipients:   recipients,
		Success:      success,
		Error:        errMsg,
		RetryCount:   retryCount,
	}
}

// record persists the attempt best-effort. A store failure is logged and
// swallowed; it never changes the returned result. The write runs under its
// own context so caller cancellation cannot drop the audit trail.
func (o *Orchestrator) record(attempt DeliveryAttempt) {
	o.cfg.Metrics.observe(attempt)

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.CallTimeout)
	defer cancel()
	if err := o.cfg.Audit.Append(ctx, attempt); err != nil {
		o.cfg.Logger.Error("failed to persist delivery attempt",
			"submission_id", attempt.SubmissionID,
			"method", string(attempt.Method), "error", err)
	}
}

// partitionAddresses splits candidates into addresses that pass the shape
// check and those that do not.
func partitionAddresses(candidates []string) (valid, invalid []string) {
	for _, c := range candidates {
		if emailRe.MatchString(strings.TrimSpace(c)) {
			valid = append(valid, strings.TrimSpace(c))
		} else {
			invalid = append(invalid, c)
		}
	}
	return valid, invalid
}

// buildMessage flattens the submission into a channel-agnostic payload.
// Every optional field falls back to a placeholder so construction never
// fails.
func buildMessage(sub Submission, to []string) Message {
	params := map[string]string{
		"submission_id":   orFallback(sub.ID),
		"project_name":    orFallback(sub.ProjectName),
		"applicant_name":  orFallback(sub.ApplicantName),
		"applicant_email": orFallback(sub.ApplicantEmail),
		"agency":          orFallback(sub.Agency),
		"status":          orFallback(sub.Status),
		"description":     orFallback(sub.Description),
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, params[k]))
	}

	return Message{
		Subject: fmt.Sprintf("Project submission %s: %s",
			orFallback(sub.Status), orFallback(sub.ProjectName)),
		Body:   strings.Join(parts, "\n"),
		To:     to,
		Params: params,
	}
}

func orFallback(s string) string {
	if strings.TrimSpace(s) == "" {
		return fieldFallback
	}
	return s
}
