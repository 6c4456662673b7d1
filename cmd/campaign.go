package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/logger"
	"github.com/pitchpilot/outreach/internal/outreach"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage outreach campaigns and their follow-up steps",
}

var campaignCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a campaign",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		jd, err := textFlag(cmd, "jd")
		if err != nil {
			e.logger.Fatal("reading job description", zap.Error(err))
		}
		pitch, err := textFlag(cmd, "pitch")
		if err != nil {
			e.logger.Fatal("reading pitch", zap.Error(err))
		}

		in := outreach.CampaignInput{
			JobDescription: jd,
			Pitch:          pitch,
			OwnerEmail:     e.cred.Sender,
		}
		in.Title, _ = cmd.Flags().GetString("title")
		in.Tone, _ = cmd.Flags().GetString("tone")
		in.TargetRole, _ = cmd.Flags().GetString("target-role")
		status, _ := cmd.Flags().GetString("status")
		in.Status = outreach.CampaignStatus(status)

		c, err := e.svc.CreateCampaign(ctx, e.config.OwnerID, in)
		if err != nil {
			e.logger.Fatal("creating campaign", zap.Error(err))
		}

		e.logger.Info("campaign created", zap.String(logger.FieldCampaignID, c.ID))
		e.output(cmd, c)
	},
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns, most recently updated first",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		campaigns, err := e.svc.ListCampaigns(ctx, e.config.OwnerID, limit)
		if err != nil {
			e.logger.Fatal("listing campaigns", zap.Error(err))
		}

		e.output(cmd, campaigns)
	},
}

type campaignReport struct {
	Campaign *outreach.Campaign       `json:"campaign"`
	Steps    []*outreach.SequenceStep `json:"steps"`
}

var campaignGetCmd = &cobra.Command{
	Use:   "get <campaign-id>",
	Short: "Show a campaign with its steps",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		c, steps, err := e.svc.GetCampaign(ctx, args[0], e.config.OwnerID)
		if err != nil {
			e.logger.Fatal("getting campaign", zap.Error(err))
		}

		e.output(cmd, campaignReport{Campaign: c, Steps: steps})
	},
}

var campaignUpdateCmd = &cobra.Command{
	Use:   "update <campaign-id>",
	Short: "Update campaign fields; only flags that are set are changed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		fields := outreach.CampaignFields{
			Title:      optionalString(cmd, "title"),
			Tone:       optionalString(cmd, "tone"),
			TargetRole: optionalString(cmd, "target-role"),
		}
		if cmd.Flags().Changed("jd") || cmd.Flags().Changed("jd-file") {
			jd, err := textFlag(cmd, "jd")
			if err != nil {
				e.logger.Fatal("reading job description", zap.Error(err))
			}
			fields.JobDescription = &jd
		}
		if cmd.Flags().Changed("pitch") || cmd.Flags().Changed("pitch-file") {
			pitch, err := textFlag(cmd, "pitch")
			if err != nil {
				e.logger.Fatal("reading pitch", zap.Error(err))
			}
			fields.Pitch = &pitch
		}
		if status := optionalString(cmd, "status"); status != nil {
			s := outreach.CampaignStatus(*status)
			fields.Status = &s
		}

		c, err := e.svc.UpdateCampaign(ctx, args[0], e.config.OwnerID, fields)
		if err != nil {
			e.logger.Fatal("updating campaign", zap.Error(err))
		}

		e.logger.Info("campaign updated", zap.String(logger.FieldCampaignID, c.ID))
		e.output(cmd, c)
	},
}

var campaignStepCmd = &cobra.Command{
	Use:   "step",
	Short: "Manage the follow-up steps of a campaign",
}

var campaignStepAddCmd = &cobra.Command{
	Use:   "add <campaign-id>",
	Short: "Add a follow-up step",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		body, err := textFlag(cmd, "body")
		if err != nil {
			e.logger.Fatal("reading body template", zap.Error(err))
		}

		in := outreach.StepInput{BodyTemplate: body}
		in.DayOffset, _ = cmd.Flags().GetInt("day")
		in.SubjectTemplate, _ = cmd.Flags().GetString("subject")
		in.Tone, _ = cmd.Flags().GetString("tone")
		kind, _ := cmd.Flags().GetString("type")
		in.FollowUpType = outreach.FollowUpType(kind)

		step, err := e.svc.CreateStep(ctx, args[0], e.config.OwnerID, in)
		if err != nil {
			e.logger.Fatal("adding step", zap.Error(err))
		}

		e.logger.Info("step added", zap.String(logger.FieldCampaignID, step.CampaignID), zap.String("step_id", step.ID))
		e.output(cmd, step)
	},
}

var campaignStepListCmd = &cobra.Command{
	Use:   "list <campaign-id>",
	Short: "List steps ordered by day offset",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		steps, err := e.svc.ListSteps(ctx, args[0], e.config.OwnerID)
		if err != nil {
			e.logger.Fatal("listing steps", zap.Error(err))
		}

		e.output(cmd, steps)
	},
}

func addCampaignFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "campaign title")
	cmd.Flags().String("jd", "", "job description")
	cmd.Flags().String("jd-file", "", "file with the job description")
	cmd.Flags().String("pitch", "", "candidate pitch")
	cmd.Flags().String("pitch-file", "", "file with the candidate pitch")
	cmd.Flags().String("tone", "", "tone of the emails")
	cmd.Flags().String("target-role", "", "role of the people contacted")
	cmd.Flags().String("status", "", "draft, active, paused or completed")
}

func init() {
	rootCmd.AddCommand(campaignCmd)
	campaignCmd.AddCommand(campaignCreateCmd, campaignListCmd, campaignGetCmd, campaignUpdateCmd, campaignStepCmd)
	campaignStepCmd.AddCommand(campaignStepAddCmd, campaignStepListCmd)

	addCampaignFlags(campaignCreateCmd)
	addCampaignFlags(campaignUpdateCmd)

	campaignListCmd.Flags().Int("limit", 0, "maximum number of campaigns (default 50)")

	campaignStepAddCmd.Flags().Int("day", 0, "days after the first email")
	campaignStepAddCmd.Flags().String("type", string(outreach.FollowUpNudge), "nudge, value or case-study")
	campaignStepAddCmd.Flags().String("tone", "", "tone of this step (default friendly)")
	campaignStepAddCmd.Flags().String("subject", "", "subject template")
	campaignStepAddCmd.Flags().String("body", "", "body template")
	campaignStepAddCmd.Flags().String("body-file", "", "file with the body template")
}
