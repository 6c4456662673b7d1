package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd, func(c *Config) {
			// Migrate explicitly below so the outcome is reported.
			c.Store.AutoMigrate = false
		})
		defer e.Close()

		if e.pg == nil {
			e.logger.Fatal("migrate requires the postgres store", zap.String("hint", "set store.driver to postgres"))
		}

		if err := e.pg.Migrate(ctx); err != nil {
			e.logger.Fatal("applying schema", zap.Error(err))
		}

		e.logger.Info("schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
