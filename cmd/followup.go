package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/logger"
)

var followupCmd = &cobra.Command{
	Use:   "followup",
	Short: "Schedule and process campaign follow-ups",
}

var followupScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule a follow-up step for a lead",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		sendAt, err := followUpTime(cmd, time.Now())
		if err != nil {
			e.logger.Fatal("parsing send time", zap.Error(err))
		}

		leadID, _ := cmd.Flags().GetString("lead-id")
		campaignID, _ := cmd.Flags().GetString("campaign-id")
		stepID, _ := cmd.Flags().GetString("step-id")

		event, err := e.followUps.Schedule(ctx, e.config.OwnerID, leadID, campaignID, stepID, sendAt)
		if err != nil {
			e.logger.Fatal("scheduling follow-up", zap.Error(err))
		}

		e.logger.Info("follow-up scheduled",
			append(logger.OutreachFields(leadID, campaignID, ""), zap.Time("send_at", event.OccurredAt))...,
		)
		e.output(cmd, event)
	},
}

var followupProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Send follow-ups that are due now (one scheduler tick)",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		res, err := e.followUps.ProcessDue(ctx)
		if err != nil {
			e.logger.Fatal("processing follow-ups", zap.Error(err))
		}

		e.output(cmd, res)
	},
}

// followUpTime resolves --at (RFC 3339) or --in (duration from now).
func followUpTime(cmd *cobra.Command, now time.Time) (time.Time, error) {
	at, _ := cmd.Flags().GetString("at")
	in, _ := cmd.Flags().GetDuration("in")

	switch {
	case at != "" && in != 0:
		return time.Time{}, errors.New("use either --at or --in")
	case at != "":
		return time.Parse(time.RFC3339, at)
	case in > 0:
		return now.Add(in), nil
	default:
		return time.Time{}, errors.New("one of --at or --in is required")
	}
}

func init() {
	rootCmd.AddCommand(followupCmd)
	followupCmd.AddCommand(followupScheduleCmd, followupProcessCmd)

	followupScheduleCmd.Flags().String("lead-id", "", "lead to follow up with")
	followupScheduleCmd.Flags().String("campaign-id", "", "campaign the step belongs to")
	followupScheduleCmd.Flags().String("step-id", "", "sequence step to send (default: campaign tone)")
	followupScheduleCmd.Flags().String("at", "", "send time, RFC 3339")
	followupScheduleCmd.Flags().Duration("in", 0, "send after this duration, e.g. 72h")
	followupScheduleCmd.MarkFlagRequired("lead-id")
	followupScheduleCmd.MarkFlagRequired("campaign-id")
}
