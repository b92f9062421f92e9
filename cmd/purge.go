package cmd

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete audit entries older than the given number of days",
	RunE:  runPurge,
}

func init() {
	purgeCmd.Flags().Int("older-than-days", 0, "Delete entries strictly older than this many days")
	_ = purgeCmd.MarkFlagRequired("older-than-days")
}

func runPurge(cmd *cobra.Command, _ []string) error {
	days, _ := cmd.Flags().GetInt("older-than-days")
	if days <= 0 {
		return errors.New("--older-than-days must be positive")
	}

	store, cleanup, err := openAuditStore()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := store.Purge(cmd.Context(), days)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
