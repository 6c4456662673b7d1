package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/logger"
	"github.com/pitchpilot/outreach/internal/mailer"
	"github.com/pitchpilot/outreach/internal/outreach"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errAborted = errors.New("send aborted")

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send an outreach email to a lead",
	Long: "Send an outreach email to a stored lead. Subject and body are drafted when not given. " +
		"Without --campaign-id a campaign is created for the lead's company.",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, e := setup(cmd)
		defer e.Close()

		in, err := sendInput(ctx, cmd, e)
		if err != nil {
			e.logger.Fatal("preparing email", zap.Error(err))
		}

		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			if err := preview(ctx, cmd, e, in); err != nil {
				e.logger.Fatal("previewing email", zap.Error(err))
			}
			return
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			if err := confirm(in); err != nil {
				e.logger.Info("exiting", zap.Error(err))
				return
			}
		}

		out, err := e.svc.SendOutreach(ctx, e.cred, e.config.OwnerID, *in)
		if out == nil {
			e.logger.Fatal("sending email", zap.Error(err))
		}

		if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
			e.logger.Error("printing send result", zap.Error(perr))
		}
		if err != nil {
			// Delivered, so retrying would send a duplicate.
			e.logger.Fatal("email sent but bookkeeping failed, do not resend",
				append(logger.OutreachFields(out.Lead.ID, out.CampaignID, out.MessageID), zap.Error(err))...,
			)
		}

		e.logger.Info("successfully sent email", logger.OutreachFields(out.Lead.ID, out.CampaignID, out.MessageID)...)
	},
}

func sendInput(ctx context.Context, cmd *cobra.Command, e *engine) (*outreach.SendInput, error) {
	leadID, _ := cmd.Flags().GetString("lead-id")
	if strings.TrimSpace(leadID) == "" {
		return nil, errors.New("--lead-id is required")
	}

	subject, _ := cmd.Flags().GetString("subject")
	body, err := textFlag(cmd, "body")
	if err != nil {
		return nil, err
	}

	draftIn, err := draftInput(ctx, cmd, e)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		draft, err := e.svc.GenerateDraft(ctx, *draftIn)
		if err != nil {
			return nil, err
		}
		e.logger.Info("drafted missing subject or body", zap.String("provider", draft.Provider))
		if strings.TrimSpace(subject) == "" {
			subject = draft.Subject
		}
		if strings.TrimSpace(body) == "" {
			body = draft.Body
		}
	}

	in := &outreach.SendInput{
		LeadID:  leadID,
		Subject: subject,
		Body:    body,
		Pitch:   draftIn.Pitch,
	}
	in.CampaignID, _ = cmd.Flags().GetString("campaign-id")

	resume, _ := cmd.Flags().GetString("attach")
	if resume == "" && !cmd.Flags().Changed("attach") {
		resume = e.config.Mail.Resume
	}
	if strings.TrimSpace(resume) != "" {
		name, _ := cmd.Flags().GetString("attach-name")
		att, err := mailer.AttachmentFromFile(resume, name)
		if err != nil {
			return nil, err
		}
		in.Attachments = append(in.Attachments, att)
	}

	return in, nil
}

// preview renders the exact MIME message and prints its decoded form.
func preview(ctx context.Context, cmd *cobra.Command, e *engine, in *outreach.SendInput) error {
	lead, err := e.svc.Registry().Get(ctx, in.LeadID, e.config.OwnerID)
	if err != nil {
		return err
	}

	raw, err := mailer.Encode(e.cred.Sender, mailer.Message{
		To:          lead.Email,
		Subject:     in.Subject,
		Body:        in.Body,
		Attachments: in.Attachments,
	})
	if err != nil {
		return err
	}

	decoded, err := mailer.Decode(raw)
	if err != nil {
		return err
	}

	attachments := make([]string, 0, len(decoded.Attachments))
	for _, a := range decoded.Attachments {
		attachments = append(attachments, fmt.Sprintf("%s (%s, %d bytes)", a.Filename, a.MIMEType, len(a.Content)))
	}

	return printJSON(cmd.OutOrStdout(), map[string]any{
		"from":        decoded.From,
		"to":          decoded.To,
		"subject":     decoded.Subject,
		"body":        decoded.Body,
		"attachments": attachments,
		"size":        len(raw),
	})
}

func confirm(in *outreach.SendInput) error {
	fmt.Printf("Subject: %s\n\n%s\n\n", in.Subject, in.Body)
	for _, a := range in.Attachments {
		fmt.Printf("Attachment: %s\n", a.Filename)
	}

	prompt := promptui.Select{
		Label: "Send this email?",
		Items: []string{PromptYes, PromptNo},
	}
	_, action, err := prompt.Run()
	if err != nil {
		return err
	}
	if action != PromptYes {
		return errAborted
	}
	return nil
}

func init() {
	rootCmd.AddCommand(sendCmd)
	addDraftFlags(sendCmd, false)

	sendCmd.Flags().String("campaign-id", "", "campaign to record the email under")
	sendCmd.Flags().StringP("subject", "s", "", "email subject (drafted when empty)")
	sendCmd.Flags().String("body", "", "email body (drafted when empty)")
	sendCmd.Flags().String("body-file", "", "file with the email body")
	sendCmd.Flags().StringP("attach", "a", "", "résumé to attach (default mail.resume)")
	sendCmd.Flags().String("attach-name", "", "file name shown to the recipient")
	sendCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	sendCmd.Flags().Bool("dry-run", false, "print the encoded email instead of sending it")
}
