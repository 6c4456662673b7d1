package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/logger"
	"github.com/pitchpilot/outreach/internal/outreach"
)

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Manage recruiter leads",
}

var leadUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Create a lead or merge fields into the existing one with the same email",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		email, _ := cmd.Flags().GetString("email")
		fields := outreach.LeadFields{
			Name:                 optionalString(cmd, "name"),
			Role:                 optionalString(cmd, "role"),
			Company:              optionalString(cmd, "company"),
			LinkedInURL:          optionalString(cmd, "linkedin"),
			PersonalizationNotes: optionalString(cmd, "notes"),
		}
		if cmd.Flags().Changed("jd") || cmd.Flags().Changed("jd-file") {
			jd, err := textFlag(cmd, "jd")
			if err != nil {
				e.logger.Fatal("reading job description", zap.Error(err))
			}
			fields.JDSnapshot = &jd
		}

		lead, err := e.svc.UpsertLead(ctx, email, e.config.OwnerID, fields)
		if err != nil {
			e.logger.Fatal("upserting lead", zap.Error(err))
		}

		e.logger.Info("lead saved", zap.String(logger.FieldLeadID, lead.ID), zap.String("status", string(lead.Status)))
		e.output(cmd, lead)
	},
}

var leadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, most recently updated first",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		leads, err := e.svc.Registry().List(ctx, e.config.OwnerID, limit)
		if err != nil {
			e.logger.Fatal("listing leads", zap.Error(err))
		}

		e.output(cmd, leads)
	},
}

type leadReport struct {
	Lead   *outreach.Lead         `json:"lead"`
	Events []*outreach.EmailEvent `json:"events"`
}

var leadGetCmd = &cobra.Command{
	Use:   "get <lead-id>",
	Short: "Show a lead with its email history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		lead, err := e.svc.Registry().Get(ctx, args[0], e.config.OwnerID)
		if err != nil {
			e.logger.Fatal("getting lead", zap.Error(err))
		}

		events, err := e.store.ListEvents(ctx, lead.ID)
		if err != nil {
			e.logger.Fatal("listing lead events", zap.Error(err))
		}

		e.output(cmd, leadReport{Lead: lead, Events: events})
	},
}

var leadStatusCmd = &cobra.Command{
	Use:   "status <lead-id> <new|contacted|replied|qualified|closed>",
	Short: "Set a lead status manually",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		lead, err := e.svc.Registry().SetStatus(ctx, args[0], e.config.OwnerID, outreach.LeadStatus(args[1]))
		if err != nil {
			e.logger.Fatal("setting lead status", zap.Error(err))
		}

		e.logger.Info("lead status updated", zap.String(logger.FieldLeadID, lead.ID), zap.String("status", string(lead.Status)))
	},
}

var leadDeleteCmd = &cobra.Command{
	Use:   "delete <lead-id>",
	Short: "Delete a lead and its email history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		if err := e.svc.Registry().Delete(ctx, args[0], e.config.OwnerID); err != nil {
			e.logger.Fatal("deleting lead", zap.Error(err))
		}

		e.logger.Info("lead deleted", zap.String(logger.FieldLeadID, args[0]))
	},
}

func init() {
	rootCmd.AddCommand(leadCmd)
	leadCmd.AddCommand(leadUpsertCmd, leadListCmd, leadGetCmd, leadStatusCmd, leadDeleteCmd)

	leadUpsertCmd.Flags().StringP("email", "e", "", "recruiter email address")
	leadUpsertCmd.Flags().String("name", "", "recruiter name")
	leadUpsertCmd.Flags().String("role", "", "recruiter role")
	leadUpsertCmd.Flags().String("company", "", "company name")
	leadUpsertCmd.Flags().String("linkedin", "", "linkedin profile url")
	leadUpsertCmd.Flags().String("notes", "", "personalization notes")
	leadUpsertCmd.Flags().String("jd", "", "job description snapshot")
	leadUpsertCmd.Flags().String("jd-file", "", "file with the job description snapshot")
	leadUpsertCmd.MarkFlagRequired("email")

	leadListCmd.Flags().Int("limit", 0, "maximum number of leads (default 100)")
}
