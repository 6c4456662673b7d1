package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var syncRepliesCmd = &cobra.Command{
	Use:   "sync-replies",
	Short: "Scan the inbox and mark leads that replied",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		result, err := e.svc.SyncReplies(ctx, e.cred, e.config.OwnerID)
		if err != nil {
			e.logger.Fatal("syncing replies", zap.Error(err))
		}

		e.logger.Info("reply sync finished",
			zap.Int("checked", result.Checked),
			zap.Int("matched", result.Matched),
		)
		e.output(cmd, result)
	},
}

func init() {
	rootCmd.AddCommand(syncRepliesCmd)

	syncRepliesCmd.Flags().StringP("query", "q", "", "inbox search query (default \"is:inbox newer_than:7d\")")
	viper.BindPFlag("replies.query", syncRepliesCmd.Flags().Lookup("query"))
}
