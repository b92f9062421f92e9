package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projekportal/notifier/internal/api"
	"github.com/projekportal/notifier/internal/audit"
	"github.com/projekportal/notifier/internal/clock"
	"github.com/projekportal/notifier/internal/directory"
	"github.com/projekportal/notifier/internal/eventbus"
	"github.com/projekportal/notifier/internal/kvstore"
	"github.com/projekportal/notifier/internal/notify"
	"github.com/projekportal/notifier/internal/service"
)

// testHarness composes the full service stack over an in-memory store, with
// a synchronous bus so handlers' side effects are visible immediately.
type testHarness struct {
	kv     kvstore.Store
	clk    *clock.Fixed
	audit  *audit.Store
	router chi.Router
}

// syncBus dispatches events inline, removing timing from these tests.
type syncBus struct {
	listeners []eventbus.Listener
}

func (b *syncBus) Publish(eventType string, payload map[string]string) {
	e := eventbus.Event{Type: eventType, Timestamp: time.Now(), Payload: payload}
	for _, l := range b.listeners {
		l(e)
	}
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	db, err := kvstore.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	kv := kvstore.NewSQLiteStore(db)
	clk := &clock.Fixed{T: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.Default()

	auditStore := audit.NewStore(kv, clk, logger)
	aggregator := audit.NewAggregator(auditStore)
	configResolver := notify.NewConfigResolver(kv, clk, logger)
	recipientResolver := notify.NewRecipientResolver(directory.NewKVDirectory(kv), clk, logger)

	orch := notify.NewOrchestrator(notify.OrchestratorConfig{
		Recipients: recipientResolver,
		Config:     configResolver,
		Audit:      auditStore,
		Clock:      clk,
		Logger:     logger,
	})

	notifierSvc := service.NewNotifierService(orch, auditStore, aggregator,
		configResolver, recipientResolver, nil, kv, logger)

	bus := &syncBus{}
	bus.listeners = append(bus.listeners, notifierSvc.SubmissionListener())
	submissionSvc := service.NewSubmissionService(kv, bus, clk)

	r := chi.NewRouter()
	api.New(submissionSvc, notifierSvc, logger).Mount(r)

	return &testHarness{kv: kv, clk: clk, audit: auditStore, router: r}
}

func (h *testHarness) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestCreateSubmissionTriggersAudit(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/submissions", map[string]string{
		"project_name": "Naik Taraf Sekolah",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created notify.Submission
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.NotEmpty(t, created.ID)

	// No recipients are resolvable, so the attempt must be a recorded
	// failure with method "none".
	entries, err := h.audit.ListBySubmission(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, notify.MethodNone, entries[0].Method)
}

func TestCreateSubmissionValidation(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/submissions", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSubmissionNotFound(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/submissions/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateSubmission(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/submissions", map[string]string{"project_name": "P"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created notify.Submission
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	h.clk.Advance(time.Minute)

	w = h.do(http.MethodPut, "/submissions/"+created.ID, map[string]string{
		"project_name": "P", "status": "approved",
	})
	require.Equal(t, http.StatusOK, w.Code)

	entries, err := h.audit.ListBySubmission(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStatsEndpoint(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/submissions", map[string]string{"project_name": "P"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.do(http.MethodGet, "/notifications/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report audit.StatsReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, 1, report.TotalAttempts)
	assert.Equal(t, 1, report.MethodBreakdown["none"])
	assert.Equal(t, 1, report.DistinctSubmissions)
}

func TestPurgeEndpoint(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/submissions", map[string]string{"project_name": "P"})
	require.Equal(t, http.StatusCreated, w.Code)

	h.clk.Advance(45 * 24 * time.Hour)

	w = h.do(http.MethodPost, "/notifications/purge", map[string]int{"older_than_days": 30})
	require.Equal(t, http.StatusOK, w.Code)

	var result audit.PurgeResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 0, result.Remaining)
}

func TestPurgeEndpointValidation(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/notifications/purge", map[string]int{"older_than_days": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	for _, key := range []string{"NOTIFY_CHANNEL_ID", "NOTIFY_TEMPLATE_ID", "NOTIFY_ACCESS_KEY"} {
		t.Setenv(key, "")
	}
	h := newHarness(t)

	w := h.do(http.MethodGet, "/notifications/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var st service.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.False(t, st.ConfigResolvable)
}

func TestChannelSettingsEndpoints(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPut, "/notifications/config", notify.ChannelSettings{
		ChannelID: "ch-1", TemplateID: "tpl-1", AccessKey: "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var settings notify.ChannelSettings
	require.NoError(t, json.NewDecoder(w.Body).Decode(&settings))
	assert.Equal(t, "***", settings.AccessKey)

	w = h.do(http.MethodGet, "/notifications/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTestChannelEndpointWithoutPrimary(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/notifications/test", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
