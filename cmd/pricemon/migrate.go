package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply, roll back or inspect database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) == 1 {
			action = args[0]
		}

		database, err := openDatabase(cfg, logger)
		if err != nil {
			return err
		}
		defer database.Close()

		switch action {
		case "down":
			err = database.RollbackMigration()
		case "up":
			err = database.RunMigrations()
		}
		if err != nil {
			return err
		}

		v, err := database.MigrationVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
		return nil
	},
}
