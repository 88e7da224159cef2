package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-cat/internal/session"
	"github.com/mind-engage/mindengage-cat/internal/store"
)

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Rebuild a session from its event log and print it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		dbh, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()

		events, err := store.NewSQLStore(dbh).Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		st, err := session.Replay(events)
		if err != nil {
			return err
		}
		if verbose, _ := cmd.Flags().GetBool("events"); verbose {
			for _, ev := range events {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d %s %s %s\n", ev.Seq, ev.At.Format("2006-01-02T15:04:05.000Z07:00"), ev.Type, ev.Data)
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

func init() {
	replayCmd.Flags().Bool("events", false, "Also print the raw events")
}
