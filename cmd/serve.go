package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/scheduler"
)

// daemonReplyQuery keeps periodic scans to the last day of mail.
const daemonReplyQuery = "is:inbox newer_than:1d"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run follow-up processing and reply detection on a schedule",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd, func(c *Config) {
			if c.Replies.Query == "" {
				c.Replies.Query = daemonReplyQuery
			}
		})
		defer e.Close()

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		e.logger.Info("starting the outreach daemon",
			zap.String("version", version),
			zap.String("owner", e.config.OwnerID),
			zap.Duration("followup_interval", e.config.FollowUp.Interval),
			zap.Duration("replies_interval", e.config.Replies.Interval),
		)

		s := scheduler.New(e.logger, jobs(e)...)
		if err := s.Run(ctx); err != nil {
			e.logger.Fatal("scheduler stopped", zap.Error(err))
		}

		e.logger.Info("exiting", zap.String("reason", "shutdown requested"))
	},
}

func jobs(e *engine) []scheduler.Job {
	list := []scheduler.Job{
		{
			Name:     "followups",
			Interval: e.config.FollowUp.Interval,
			Run: func(ctx context.Context) error {
				res, err := e.followUps.ProcessDue(ctx)
				if err != nil {
					return err
				}
				if res.Due > 0 {
					e.logger.Info("follow-ups processed",
						zap.Int("due", res.Due),
						zap.Int("sent", res.Sent),
						zap.Int("requeued", res.Requeued),
						zap.Int("exhausted", res.Exhausted),
					)
				}
				return nil
			},
		},
	}

	// SMTP can only send, so there is no inbox to scan.
	if strings.EqualFold(strings.TrimSpace(e.config.Mail.Transport), "smtp") {
		e.logger.Warn("reply detection disabled", zap.String("reason", "smtp transport cannot read the inbox"))
		return list
	}

	return append(list, scheduler.Job{
		Name:     "replies",
		Interval: e.config.Replies.Interval,
		Run: func(ctx context.Context) error {
			res, err := e.svc.SyncReplies(ctx, e.cred, e.config.OwnerID)
			if err != nil {
				return err
			}
			e.logger.Info("reply sync finished",
				zap.Int("checked", res.Checked),
				zap.Int("matched", res.Matched),
			)
			return nil
		},
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
