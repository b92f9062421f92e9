// Package notify implements the notification delivery pipeline: resolving
// who to notify and over which channel, executing one delivery attempt per
// submission event, and recording every outcome for audit.
package notify

import "time"

// Method identifies the terminal branch a delivery attempt resolved to.
type Method string

const (
	// MethodNone means no recipients could be resolved.
	MethodNone Method = "none"
	// MethodValidation means every candidate address failed validation.
	MethodValidation Method = "validation"
	// MethodFallback means the attempt was recorded via the always-available
	// audit path because no primary channel can run in this deployment.
	MethodFallback Method = "fallback"
	// MethodPrimary means the primary channel accepted the message.
	MethodPrimary Method = "primary"
	// MethodError means an unexpected failure was caught inside the pipeline.
	MethodError Method = "error"
)

// FinalStatus is the overall outcome of one Notify invocation.
//
// FallbackLogged deliberately reports Success=true even though no human
// received an email: the source system conflates "audit entry written" with
// "delivered", and that contract is preserved. Consumers that care about the
// difference must branch on FinalStatus, not Success.
type FinalStatus string

const (
	StatusDelivered      FinalStatus = "delivered"
	StatusPartial        FinalStatus = "partial"
	StatusFailed         FinalStatus = "failed"
	StatusFallbackLogged FinalStatus = "fallback_logged"
)

// ConfigSource tags where a NotificationConfig was resolved from.
type ConfigSource string

const (
	SourcePersisted   ConfigSource = "persisted"
	SourceEnvironment ConfigSource = "environment"
)

// NotificationConfig is an immutable snapshot of the channel configuration.
// It is replaced wholesale on refresh, never mutated in place.
type NotificationConfig struct {
	ChannelID  string       `json:"channel_id"`
	TemplateID string       `json:"template_id"`
	AccessKey  string       `json:"access_key"`
	SecretKey  string       `json:"secret_key,omitempty"`
	FromName   string       `json:"from_name,omitempty"`
	FromEmail  string       `json:"from_email,omitempty"`
	Source     ConfigSource `json:"source"`
	FetchedAt  time.Time    `json:"fetched_at"`
}

// Complete reports whether the three required channel fields are present.
func (c NotificationConfig) Complete() bool {
	return c.ChannelID != "" && c.TemplateID != "" && c.AccessKey != ""
}

// Submission is the portal record a notification is about. Every field other
// than ID is optional; payload construction substitutes a fallback string.
type Submission struct {
	ID             string    `json:"id"`
	ProjectName    string    `json:"project_name"`
	ApplicantName  string    `json:"applicant_name"`
	ApplicantEmail string    `json:"applicant_email"`
	Agency         string    `json:"agency"`
	Status         string    `json:"status"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Message is the channel-agnostic payload handed to a sink.
type Message struct {
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	To      []string          `json:"to"`
	Params  map[string]string `json:"params"`
}

// DeliveryAttempt records the outcome of one orchestrator invocation. It is
// immutable once created; the audit store owns its persistence.
type DeliveryAttempt struct {
	Timestamp    time.Time `json:"timestamp"`
	SubmissionID string    `json:"submission_id"`
	Method       Method    `json:"method"`
	Recipients   []string  `json:"recipients"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	RetryCount   int       `json:"retry_count"`
}

// NotificationResult is what Notify returns to the caller. Sent+Failed
// always equals Total when Total > 0, and Attempts is never empty.
type NotificationResult struct {
	Success     bool              `json:"success"`
	Method      Method            `json:"method"`
	Sent        int               `json:"sent"`
	Total       int               `json:"total"`
	Failed      int               `json:"failed"`
	Attempts    []DeliveryAttempt `json:"attempts"`
	FinalStatus FinalStatus       `json:"finalStatus"`
}
