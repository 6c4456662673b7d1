package gemini

import (
	"strconv"
	"strings"

	_ "embed"

	"github.com/pitchpilot/outreach/internal/ai"
)

//go:embed prompt.md
var promptTemplate string

const (
	wordLimit = 150
	na        = "N/A"
)

func buildPrompt(req ai.Request) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job description:\n{{JOB_DESCRIPTION}}\n\nBackground:\n{{PITCH}}\n\nWrite a {{TONE}} email to {{RECRUITER_NAME}}. JSON Response:"
	}

	pitch := strings.TrimSpace(req.Pitch)
	if pitch == "" {
		pitch = "Not provided"
	}

	rcpt := req.Recipient
	replacer := strings.NewReplacer(
		"{{JOB_DESCRIPTION}}", req.ResolvedJobDescription(),
		"{{PITCH}}", pitch,
		"{{RECRUITER_NAME}}", orNA(rcpt.Name),
		"{{RECRUITER_ROLE}}", orNA(rcpt.Role),
		"{{RECRUITER_COMPANY}}", orNA(rcpt.Company),
		"{{RECRUITER_NOTES}}", orNA(rcpt.Notes),
		"{{TONE}}", req.ResolvedTone(),
		"{{WORD_LIMIT}}", strconv.Itoa(wordLimit),
	)
	return replacer.Replace(template)
}

func orNA(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return na
}
