package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/projekportal/notifier/internal/clock"
	"github.com/projekportal/notifier/internal/kvstore"
)

// ConfigKey is the well-known key the portal admin screen persists the
// channel configuration under.
const ConfigKey = "config:notification"

// configTTL is how long a resolved configuration is served from cache.
const configTTL = 5 * time.Minute

// ChannelSettings is the stored shape of the channel configuration, shared
// by the persisted record and the admin settings API.
type ChannelSettings struct {
	ChannelID  string `json:"channel_id"`
	TemplateID string `json:"template_id"`
	AccessKey  string `json:"access_key"`
	SecretKey  string `json:"secret_key,omitempty"`
	FromName   string `json:"from_name,omitempty"`
	FromEmail  string `json:"from_email,omitempty"`
}

// configLoader is one strategy in the ordered resolution chain.
type configLoader interface {
	kind() ConfigSource
	load(ctx context.Context) (ChannelSettings, bool, error)
}

// persistedLoader reads the single configuration record from the store.
type persistedLoader struct {
	kv kvstore.Store
}

func (l *persistedLoader) kind() ConfigSource { return SourcePersisted }

func (l *persistedLoader) load(ctx context.Context) (ChannelSettings, bool, error) {
	raw, found, err := l.kv.Get(ctx, ConfigKey)
	if err != nil {
		return ChannelSettings{}, false, fmt.Errorf("reading %s: %w", ConfigKey, err)
	}
	if !found || raw == "" {
		return ChannelSettings{}, false, nil
	}
	var s ChannelSettings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return ChannelSettings{}, false, fmt.Errorf("parsing %s: %w", ConfigKey, err)
	}
	return s, true, nil
}

// envChannelSettings maps the fixed environment variable names used when no
// persisted record exists.
type envChannelSettings struct {
	ChannelID  string `envconfig:"NOTIFY_CHANNEL_ID"`
	TemplateID string `envconfig:"NOTIFY_TEMPLATE_ID"`
	AccessKey  string `envconfig:"NOTIFY_ACCESS_KEY"`
	SecretKey  string `envconfig:"NOTIFY_SECRET_KEY"`
	FromName   string `envconfig:"NOTIFY_FROM_NAME"`
	FromEmail  string `envconfig:"NOTIFY_FROM_EMAIL"`
}

// environmentLoader reads the channel configuration from process environment
// variables on every call, so operators can rotate keys without a restart.
type environmentLoader struct{}

func (l *environmentLoader) kind() ConfigSource { return SourceEnvironment }

func (l *environmentLoader) load(_ context.Context) (ChannelSettings, bool, error) {
	var e envChannelSettings
	if err := envconfig.Process("", &e); err != nil {
		return ChannelSettings{}, false, fmt.Errorf("reading channel env vars: %w", err)
	}
	if e.ChannelID == "" && e.TemplateID == "" && e.AccessKey == "" {
		return ChannelSettings{}, false, nil
	}
	return ChannelSettings{
		ChannelID:  e.ChannelID,
		TemplateID: e.TemplateID,
		AccessKey:  e.AccessKey,
		SecretKey:  e.SecretKey,
		FromName:   e.FromName,
		FromEmail:  e.FromEmail,
	}, true, nil
}

// ConfigResolver resolves the channel configuration through an ordered chain
// of sources (persisted record, then environment), caching hits for five
// minutes. Absence is a valid state: Resolve returns nil and the next call
// retries immediately, because negative results are never cached.
type ConfigResolver struct {
	loaders []configLoader
	cache   *Cache[NotificationConfig]
	clock   clock.Clock
	logger  *slog.Logger
}

// NewConfigResolver builds the standard persisted-then-environment chain.
func NewConfigResolver(kv kvstore.Store, clk clock.Clock, logger *slog.Logger) *ConfigResolver {
	return &ConfigResolver{
		loaders: []configLoader{&persistedLoader{kv: kv}, &environmentLoader{}},
		cache:   NewCache[NotificationConfig](configTTL, clk),
		clock:   clk,
		logger:  logger,
	}
}

// Resolve returns the current channel configuration, or nil when no source
// yields a complete one. A fresh snapshot overwrites the cache
// unconditionally; under concurrent misses the last writer wins.
func (r *ConfigResolver) Resolve(ctx context.Context) *NotificationConfig {
	if cfg, ok := r.cache.Get(); ok {
		return &cfg
	}

	for _, l := range r.loaders {
		settings, found, err := l.load(ctx)
		if err != nil {
			r.logger.Warn("config source failed",
				"source", string(l.kind()), "error", err)
			continue
		}
		if !found {
			continue
		}

		cfg := NotificationConfig{
			ChannelID:  settings.ChannelID,
			TemplateID: settings.TemplateID,
			AccessKey:  settings.AccessKey,
			SecretKey:  settings.SecretKey,
			FromName:   settings.FromName,
			FromEmail:  settings.FromEmail,
			Source:     l.kind(),
			FetchedAt:  r.clock.Now(),
		}
		if !cfg.Complete() {
			r.logger.Warn("config source incomplete, trying next",
				"source", string(l.kind()))
			continue
		}

		r.cache.Put(cfg)
		return &cfg
	}

	return nil
}
