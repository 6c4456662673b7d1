package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/ai"
	"github.com/pitchpilot/outreach/internal/outreach"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Draft an outreach email for a lead",
	Long: "Draft an outreach email for a stored lead (--lead-id) or an ad-hoc recipient (--email). " +
		"Without a usable AI key the built-in template is used.",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		in, err := draftInput(ctx, cmd, e)
		if err != nil {
			e.logger.Fatal("preparing draft", zap.Error(err))
		}

		draft, err := e.svc.GenerateDraft(ctx, *in)
		if err != nil {
			e.logger.Fatal("drafting email", zap.Error(err))
		}

		e.logger.Info("draft ready", zap.String("provider", draft.Provider), zap.String("model", draft.Model))
		e.output(cmd, draft)
	},
}

// draftInput collects the draft request shared by draft and send.
func draftInput(ctx context.Context, cmd *cobra.Command, e *engine) (*outreach.DraftInput, error) {
	var lead outreach.Lead

	if id, _ := cmd.Flags().GetString("lead-id"); id != "" {
		stored, err := e.svc.Registry().Get(ctx, id, e.config.OwnerID)
		if err != nil {
			return nil, err
		}
		lead = *stored
	} else {
		lead.Email, _ = cmd.Flags().GetString("email")
		lead.Name, _ = cmd.Flags().GetString("name")
		lead.Role, _ = cmd.Flags().GetString("role")
		lead.Company, _ = cmd.Flags().GetString("company")
	}

	jd, err := textFlag(cmd, "jd")
	if err != nil {
		return nil, err
	}
	pitch, err := textFlag(cmd, "pitch")
	if err != nil {
		return nil, err
	}

	in := &outreach.DraftInput{
		Lead:           lead,
		JobDescription: jd,
		Pitch:          pitch,
	}
	in.Tone, _ = cmd.Flags().GetString("tone")
	in.APIKey, _ = cmd.Flags().GetString("api-key")
	if cmd.Flags().Changed("temperature") {
		t, _ := cmd.Flags().GetFloat64("temperature")
		in.Temperature = &t
	}

	return in, nil
}

func addDraftFlags(cmd *cobra.Command, adHoc bool) {
	cmd.Flags().String("lead-id", "", "stored lead to write to")
	if adHoc {
		cmd.Flags().String("email", "", "recipient email when no lead id is given")
		cmd.Flags().String("name", "", "recipient name")
		cmd.Flags().String("role", "", "recipient role")
		cmd.Flags().String("company", "", "recipient company")
	}
	cmd.Flags().String("jd", "", "job description (defaults to the lead snapshot)")
	cmd.Flags().String("jd-file", "", "file with the job description")
	cmd.Flags().String("pitch", "", "candidate pitch")
	cmd.Flags().String("pitch-file", "", "file with the candidate pitch")
	cmd.Flags().String("tone", "", "tone of the email (default \""+ai.DefaultTone+"\")")
	cmd.Flags().Float64("temperature", outreach.InteractiveTemperature, "sampling temperature")
	cmd.Flags().String("api-key", "", "AI key for this call only")
}

func init() {
	rootCmd.AddCommand(draftCmd)
	addDraftFlags(draftCmd, true)
}
