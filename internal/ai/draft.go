// Package ai turns a job description and a candidate pitch into an email draft.
package ai

import (
	"fmt"
	"strings"

	"github.com/pitchpilot/outreach/internal/utils"
)

// ProviderFallback tags drafts produced by the local template.
const ProviderFallback = "fallback"

const (
	// DefaultTone is used when a request carries no tone.
	DefaultTone = "professional"
	// DefaultTemperature is applied when a request leaves temperature unset.
	DefaultTemperature = 0.7

	fallbackPitchRunes = 200
	notProvided        = "Not provided"
)

// Recipient is the recruiter the draft is addressed to.
type Recipient struct {
	Name       string
	Email      string
	Role       string
	Company    string
	JDSnapshot string
	Notes      string
}

// Request describes one draft.
type Request struct {
	Recipient      Recipient
	JobDescription string
	Pitch          string
	Tone           string
	// Temperature below zero selects DefaultTemperature.
	Temperature float64
	// APIKey overrides the configured provider key for this call only.
	APIKey string
}

// ResolvedJobDescription picks the override, then the lead snapshot.
func (r Request) ResolvedJobDescription() string {
	if jd := strings.TrimSpace(r.JobDescription); jd != "" {
		return jd
	}
	if jd := strings.TrimSpace(r.Recipient.JDSnapshot); jd != "" {
		return jd
	}
	return notProvided
}

func (r Request) ResolvedTone() string {
	if tone := strings.TrimSpace(r.Tone); tone != "" {
		return tone
	}
	return DefaultTone
}

func (r Request) ResolvedTemperature() float64 {
	if r.Temperature < 0 {
		return DefaultTemperature
	}
	return r.Temperature
}

// Draft is a generated subject/body pair.
type Draft struct {
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	Bullets  []string `json:"bullets"`
	Provider string   `json:"provider"`
	Model    string   `json:"model,omitempty"`
}

// Fallback renders the deterministic template. It never touches the network.
func Fallback(req Request) *Draft {
	rcpt := req.Recipient

	closing := "I believe my background aligns well with the requirements and I would love the opportunity to discuss how I can contribute to your team."
	if pitch := req.Pitch; strings.TrimSpace(pitch) != "" {
		closing = utils.Snippet(pitch, fallbackPitchRunes) + "..."
	}

	body := fmt.Sprintf(`Hi %s,

I came across the %s role at %s and I'm very interested in learning more.

%s

Would you be available for a brief conversation to discuss the role further?

Best regards,
[Your Name]`,
		or(rcpt.Name, "there"),
		or(rcpt.Role, "position"),
		or(rcpt.Company, "your company"),
		closing,
	)

	return &Draft{
		Subject:  FallbackSubject(rcpt),
		Body:     body,
		Bullets:  []string{},
		Provider: ProviderFallback,
	}
}

// FallbackSubject is the template subject line.
func FallbackSubject(rcpt Recipient) string {
	return fmt.Sprintf("Application for %s - Interested Candidate", or(rcpt.Role, "the position"))
}

func or(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
