package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projekportal/notifier/internal/clock"
	"github.com/projekportal/notifier/internal/eventbus"
	"github.com/projekportal/notifier/internal/kvstore"
	"github.com/projekportal/notifier/internal/notify"
	"github.com/projekportal/notifier/internal/service"
)

// recordingBus captures published events synchronously.
type recordingBus struct {
	events []eventbus.Event
}

func (b *recordingBus) Publish(eventType string, payload map[string]string) {
	b.events = append(b.events, eventbus.Event{Type: eventType, Payload: payload})
}

func newKV(t *testing.T) kvstore.Store {
	t.Helper()
	db, err := kvstore.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return kvstore.NewSQLiteStore(db)
}

func fixedClock() *clock.Fixed {
	return &clock.Fixed{T: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func TestCreateSubmission(t *testing.T) {
	bus := &recordingBus{}
	svc := service.NewSubmissionService(newKV(t), bus, fixedClock())
	ctx := context.Background()

	created, err := svc.Create(ctx, notify.Submission{
		ProjectName:   "Naik Taraf Jalan Kampung",
		ApplicantName: "Ahmad",
		Agency:        "JKR",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	require.Len(t, bus.events, 1)
	assert.Equal(t, eventbus.EventSubmissionCreated, bus.events[0].Type)
	assert.Equal(t, created.ID, bus.events[0].Payload["id"])
	assert.Equal(t, "Naik Taraf Jalan Kampung", bus.events[0].Payload["project_name"])

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateSubmissionValidation(t *testing.T) {
	svc := service.NewSubmissionService(newKV(t), &recordingBus{}, fixedClock())

	_, err := svc.Create(context.Background(), notify.Submission{})
	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "project_name", verr.Field)
}

func TestUpdateSubmission(t *testing.T) {
	bus := &recordingBus{}
	clk := fixedClock()
	svc := service.NewSubmissionService(newKV(t), bus, clk)
	ctx := context.Background()

	created, err := svc.Create(ctx, notify.Submission{ProjectName: "Jambatan Baru"})
	require.NoError(t, err)

	clk.Advance(time.Hour)
	created.Status = "approved"
	updated, err := svc.Update(ctx, created)
	require.NoError(t, err)

	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	require.Len(t, bus.events, 2)
	assert.Equal(t, eventbus.EventSubmissionUpdated, bus.events[1].Type)
	assert.Equal(t, "approved", bus.events[1].Payload["status"])
}

func TestUpdateMissingSubmission(t *testing.T) {
	svc := service.NewSubmissionService(newKV(t), &recordingBus{}, fixedClock())

	_, err := svc.Update(context.Background(), notify.Submission{ID: "ghost", ProjectName: "x"})
	var nf *service.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestListSubmissions(t *testing.T) {
	svc := service.NewSubmissionService(newKV(t), &recordingBus{}, fixedClock())
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := svc.Create(ctx, notify.Submission{ProjectName: name})
		require.NoError(t, err)
	}

	subs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 3)
}

func TestSubmissionPayloadRoundTrip(t *testing.T) {
	sub := notify.Submission{
		ID:             "s1",
		ProjectName:    "Test",
		ApplicantName:  "Ahmad",
		ApplicantEmail: "ahmad@example.com",
		Agency:         "JKR",
		Status:         "new",
		Description:    "d",
		UpdatedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	bus := &recordingBus{}
	svc := service.NewSubmissionService(newKV(t), bus, fixedClock())
	_, err := svc.Create(context.Background(), sub)
	require.NoError(t, err)

	got := service.SubmissionFromPayload(bus.events[0].Payload)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, sub.ProjectName, got.ProjectName)
	assert.Equal(t, sub.ApplicantEmail, got.ApplicantEmail)
	assert.Equal(t, sub.Status, got.Status)
}
