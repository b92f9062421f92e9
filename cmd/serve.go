package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/projekportal/notifier/internal/api"
	"github.com/projekportal/notifier/internal/audit"
	"github.com/projekportal/notifier/internal/clock"
	"github.com/projekportal/notifier/internal/config"
	"github.com/projekportal/notifier/internal/directory"
	"github.com/projekportal/notifier/internal/eventbus"
	"github.com/projekportal/notifier/internal/kvstore"
	"github.com/projekportal/notifier/internal/logger"
	"github.com/projekportal/notifier/internal/notify"
	"github.com/projekportal/notifier/internal/retention"
	"github.com/projekportal/notifier/internal/server"
	"github.com/projekportal/notifier/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the portal API server with asynchronous submission notifications and scheduled audit retention.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (overrides PORT env var)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}

	log, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := kvstore.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	kv := kvstore.NewSQLiteStore(db)
	clk := clock.System{}

	auditStore := audit.NewStore(kv, clk, log)
	aggregator := audit.NewAggregator(auditStore)
	configResolver := notify.NewConfigResolver(kv, clk, log)
	recipientResolver := notify.NewRecipientResolver(directory.NewKVDirectory(kv), clk, log)

	// The SMTP sink is composed only when explicitly enabled; the standard
	// deployment runs without a primary channel and every attempt resolves
	// to the fallback path.
	var primary notify.PrimaryChannelSink
	if cfg.SMTPEnabled() {
		primary = notify.NewSMTPChannelSink(notify.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			FromAddr:   cfg.SMTPFromAddr,
			Encryption: cfg.SMTPEncryption,
		})
	}

	orch := notify.NewOrchestrator(notify.OrchestratorConfig{
		Recipients: recipientResolver,
		Config:     configResolver,
		Audit:      auditStore,
		Primary:    primary,
		Retry:      notify.DefaultRetryPolicy(),
		Clock:      clk,
		Logger:     log,
		Metrics:    notify.NewMetrics(prometheus.DefaultRegisterer),
	})

	notifierSvc := service.NewNotifierService(orch, auditStore, aggregator,
		configResolver, recipientResolver, primary, kv, log)

	bus := eventbus.New(0, log)
	defer bus.Close()
	bus.Subscribe(notifierSvc.SubmissionListener())

	submissionSvc := service.NewSubmissionService(kv, bus, clk)

	retentionJob, err := retention.New(notifierSvc, cfg.RetentionDays, cfg.PurgeInterval, log)
	if err != nil {
		return err
	}
	if err := retentionJob.Start(); err != nil {
		return err
	}
	defer func() { _ = retentionJob.Stop() }()

	apiSrv := api.New(submissionSvc, notifierSvc, log)
	srv := server.New(apiSrv, cfg.Port, log)

	fmt.Fprintf(os.Stderr, "Portal notifier running on http://localhost:%d\n", cfg.Port)
	log.Info("server starting", "port", cfg.Port, "data_dir", cfg.DataDir)

	return srv.Run(ctx)
}
