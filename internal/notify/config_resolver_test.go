package notify_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projekportal/notifier/internal/clock"
	"github.com/projekportal/notifier/internal/kvstore"
	"github.com/projekportal/notifier/internal/notify"
)

// stubKV is an in-memory kvstore.Store with injectable failures.
type stubKV struct {
	data map[string]string
	err  error
}

func newStubKV() *stubKV {
	return &stubKV{data: map[string]string{}}
}

func (s *stubKV) Get(_ context.Context, key string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *stubKV) Set(_ context.Context, key, value string) error {
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	return nil
}

func (s *stubKV) Del(_ context.Context, key string) error {
	if s.err != nil {
		return s.err
	}
	delete(s.data, key)
	return nil
}

func (s *stubKV) List(_ context.Context, prefix string) ([]kvstore.Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var entries []kvstore.Entry
	for k, v := range s.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			entries = append(entries, kvstore.Entry{Key: k, Value: v})
		}
	}
	return entries, nil
}

func testClock() *clock.Fixed {
	return &clock.Fixed{T: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func TestResolvePersisted(t *testing.T) {
	kv := newStubKV()
	kv.data[notify.ConfigKey] = `{"channel_id":"ch-1","template_id":"tpl-1","access_key":"ak-1","from_name":"Portal"}`
	r := notify.NewConfigResolver(kv, testClock(), slog.Default())

	cfg := r.Resolve(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, "ch-1", cfg.ChannelID)
	assert.Equal(t, "tpl-1", cfg.TemplateID)
	assert.Equal(t, "ak-1", cfg.AccessKey)
	assert.Equal(t, "Portal", cfg.FromName)
	assert.Equal(t, notify.SourcePersisted, cfg.Source)
}

func TestResolveEnvironmentFallback(t *testing.T) {
	t.Setenv("NOTIFY_CHANNEL_ID", "ch-env")
	t.Setenv("NOTIFY_TEMPLATE_ID", "tpl-env")
	t.Setenv("NOTIFY_ACCESS_KEY", "ak-env")

	r := notify.NewConfigResolver(newStubKV(), testClock(), slog.Default())

	cfg := r.Resolve(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, "ch-env", cfg.ChannelID)
	assert.Equal(t, notify.SourceEnvironment, cfg.Source)
}

func TestResolveIncompletePersistedFallsToEnvironment(t *testing.T) {
	t.Setenv("NOTIFY_CHANNEL_ID", "ch-env")
	t.Setenv("NOTIFY_TEMPLATE_ID", "tpl-env")
	t.Setenv("NOTIFY_ACCESS_KEY", "ak-env")

	kv := newStubKV()
	// Missing access_key, so the persisted record is incomplete.
	kv.data[notify.ConfigKey] = `{"channel_id":"ch-1","template_id":"tpl-1"}`
	r := notify.NewConfigResolver(kv, testClock(), slog.Default())

	cfg := r.Resolve(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, notify.SourceEnvironment, cfg.Source)
}

func TestResolveAbsent(t *testing.T) {
	clearChannelEnv(t)
	r := notify.NewConfigResolver(newStubKV(), testClock(), slog.Default())
	assert.Nil(t, r.Resolve(context.Background()))
}

// clearChannelEnv shields a test from NOTIFY_* vars in the host environment.
func clearChannelEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"NOTIFY_CHANNEL_ID", "NOTIFY_TEMPLATE_ID", "NOTIFY_ACCESS_KEY"} {
		t.Setenv(name, "")
	}
}

func TestResolveCacheFreshness(t *testing.T) {
	kv := newStubKV()
	kv.data[notify.ConfigKey] = `{"channel_id":"ch-1","template_id":"tpl-1","access_key":"ak-1"}`
	clk := testClock()
	r := notify.NewConfigResolver(kv, clk, slog.Default())

	first := r.Resolve(context.Background())
	require.NotNil(t, first)

	clk.Advance(4 * time.Minute)
	second := r.Resolve(context.Background())
	require.NotNil(t, second)
	assert.Equal(t, first.FetchedAt, second.FetchedAt)

	clk.Advance(2 * time.Minute)
	third := r.Resolve(context.Background())
	require.NotNil(t, third)
	assert.True(t, third.FetchedAt.After(first.FetchedAt))
}

func TestResolveNegativeNotCached(t *testing.T) {
	clearChannelEnv(t)
	kv := newStubKV()
	clk := testClock()
	r := notify.NewConfigResolver(kv, clk, slog.Default())

	assert.Nil(t, r.Resolve(context.Background()))

	// The record appears; the very next call must pick it up without any
	// TTL wait, because absence is never cached.
	kv.data[notify.ConfigKey] = `{"channel_id":"ch-1","template_id":"tpl-1","access_key":"ak-1"}`
	assert.NotNil(t, r.Resolve(context.Background()))
}

func TestResolveStoreErrorFallsToEnvironment(t *testing.T) {
	t.Setenv("NOTIFY_CHANNEL_ID", "ch-env")
	t.Setenv("NOTIFY_TEMPLATE_ID", "tpl-env")
	t.Setenv("NOTIFY_ACCESS_KEY", "ak-env")

	kv := newStubKV()
	kv.err = errors.New("store unavailable")
	r := notify.NewConfigResolver(kv, testClock(), slog.Default())

	cfg := r.Resolve(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, notify.SourceEnvironment, cfg.Source)
}
