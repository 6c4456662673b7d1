package gemini

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/pitchpilot/outreach/internal/ai"
)

var (
	fencedBlock   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	subjectPrefix = regexp.MustCompile(`(?i)^\W*subject\s*:?\s*`)
)

type payload struct {
	Subject string   `mapstructure:"subject"`
	Body    string   `mapstructure:"body"`
	Text    string   `mapstructure:"text"`
	Bullets []string `mapstructure:"bullets"`
}

// parseDraft turns a model response into a draft. It does not fail: text that
// is not a JSON object is treated as prose.
func parseDraft(raw string, req ai.Request) *ai.Draft {
	raw = strings.TrimSpace(raw)

	if p, err := decodePayload(extractJSON(raw)); err == nil {
		body := p.Body
		if strings.TrimSpace(body) == "" {
			body = p.Text
		}
		if strings.TrimSpace(body) == "" {
			body = raw
		}
		return &ai.Draft{
			Subject: strings.TrimSpace(p.Subject),
			Body:    strings.TrimSpace(body),
			Bullets: cleanBullets(p.Bullets),
		}
	}

	return &ai.Draft{
		Subject: subjectFromProse(raw, req),
		Body:    raw,
		Bullets: []string{},
	}
}

func extractJSON(raw string) string {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strings.Trim(raw, "`"))
}

func decodePayload(text string) (*payload, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	var p payload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	return &p, nil
}

func subjectFromProse(raw string, req ai.Request) string {
	for _, line := range strings.Split(raw, "\n") {
		if !strings.Contains(strings.ToLower(line), "subject") {
			continue
		}
		if s := strings.Trim(subjectPrefix.ReplaceAllString(strings.TrimSpace(line), ""), "* \t"); s != "" {
			return s
		}
	}

	role := strings.TrimSpace(req.Recipient.Role)
	if role == "" {
		role = "position"
	}
	return "Application for " + role
}

func cleanBullets(in []string) []string {
	out := make([]string, 0, len(in))
	for _, b := range in {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
