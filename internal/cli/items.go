package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-cat/internal/pool"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage the item bank",
}

var itemsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Load calibrated items from a YAML pool file into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := pool.LoadFile(args[0])
		if err != nil {
			return err
		}
		cfg := loadConfig(cmd)
		dbh, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()

		if err := pool.NewSQLProvider(dbh).Upsert(cmd.Context(), items); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d items\n", len(items))
		return nil
	},
}

func init() {
	itemsCmd.AddCommand(itemsImportCmd)
}
