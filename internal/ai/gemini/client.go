package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/pitchpilot/outreach/internal/ai"
	"github.com/pitchpilot/outreach/internal/logger"
	"github.com/pitchpilot/outreach/internal/utils"
)

const (
	providerName        = "gemini"
	defaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200
)

// fallbackModels are tried after the configured model, in order.
var fallbackModels = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures the Gemini provider.
type Config struct {
	Model        string
	MaxLogLength int
}

// Provider drafts emails with the Gemini API.
type Provider struct {
	models    contentGenerator
	order     []string
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Provider = (*Provider)(nil)

// New creates a provider bound to apiKey.
func New(ctx context.Context, apiKey string, cfg Config, log *zap.Logger) (*Provider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newProvider(client.Models, cfg, log), nil
}

// NewFactory returns an ai.Factory building per-call providers with cfg.
func NewFactory(cfg Config, log *zap.Logger) ai.Factory {
	return func(ctx context.Context, apiKey string) (ai.Provider, error) {
		return New(ctx, apiKey, cfg, log)
	}
}

func newProvider(models contentGenerator, cfg Config, log *zap.Logger) *Provider {
	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Provider{
		models:    models,
		order:     modelOrder(cfg.Model),
		logger:    logger.WithCommonFields(logger.Component(log, "gemini"), providerName, ""),
		maxLogLen: maxLogLen,
	}
}

// modelOrder puts the configured model first and removes duplicates.
func modelOrder(configured string) []string {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		configured = defaultModel
	}

	seen := make(map[string]struct{})
	order := make([]string, 0, len(fallbackModels)+1)
	for _, m := range append([]string{configured}, fallbackModels...) {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		order = append(order, m)
	}
	return order
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Models() []string {
	return append([]string(nil), p.order...)
}

// Compose sends the drafting prompt to model and parses the answer.
func (p *Provider) Compose(ctx context.Context, model string, req ai.Request) (*ai.Draft, error) {
	prompt := buildPrompt(req)

	p.logger.Debug("gemini generate content request",
		zap.String(logger.FieldModel, model),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, p.maxLogLen)),
	)

	raw, err := p.generate(ctx, model, prompt, req.ResolvedTemperature())
	if err != nil {
		return nil, err
	}

	p.logger.Debug("gemini generate content response",
		zap.String(logger.FieldModel, model),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, p.maxLogLen)),
	)

	draft := parseDraft(raw, req)
	draft.Provider = providerName
	draft.Model = model
	return draft, nil
}

func (p *Provider) generate(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	if p == nil || p.models == nil {
		return "", errors.New("gemini provider is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(temperature)),
		ResponseMIMEType: "application/json",
	}

	resp, err := p.models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		// First candidate with text wins.
		if builder.Len() > 0 {
			break
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}
