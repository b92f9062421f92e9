package notify

import "context"

// AuditSink is the always-available fallback path: it records a delivery
// attempt regardless of whether any transport ran. The audit log store is
// the production implementation.
type AuditSink interface {
	Append(ctx context.Context, attempt DeliveryAttempt) error
}

// PrimaryChannelSink is a real delivery transport. None is available in the
// standard deployment shape (the channel SDK cannot run in this process), so
// the orchestrator treats a nil sink as the normal case and resolves every
// attempt to the fallback path. Providing an implementation enables the
// primary path without touching the orchestrator's control flow.
type PrimaryChannelSink interface {
	// Name identifies the transport (e.g. "smtp").
	Name() string
	// Send delivers the message to its recipients.
	Send(ctx context.Context, msg Message) error
}
