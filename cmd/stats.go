package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/projekportal/notifier/internal/audit"
	"github.com/projekportal/notifier/internal/clock"
	"github.com/projekportal/notifier/internal/config"
	"github.com/projekportal/notifier/internal/kvstore"
	"github.com/projekportal/notifier/internal/logger"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print delivery statistics from the audit log",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().String("submission", "", "Restrict the report to one submission id")
}

func runStats(cmd *cobra.Command, _ []string) error {
	store, cleanup, err := openAuditStore()
	if err != nil {
		return err
	}
	defer cleanup()

	submissionID, _ := cmd.Flags().GetString("submission")
	report, err := audit.NewAggregator(store).Compute(cmd.Context(), submissionID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// openAuditStore builds the audit store over the configured database for
// console commands that run outside the server process.
func openAuditStore() (*audit.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return nil, nil, err
	}
	db, err := kvstore.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		return nil, nil, err
	}
	store := audit.NewStore(kvstore.NewSQLiteStore(db), clock.System{}, log)
	return store, func() { _ = db.Close() }, nil
}
