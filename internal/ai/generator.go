package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/logger"
	"github.com/pitchpilot/outreach/internal/utils"
)

const defaultTimeout = 30 * time.Second

// Provider is a text-generation backend.
type Provider interface {
	Name() string
	// Models lists model identifiers in the order they should be tried.
	Models() []string
	// Compose asks one model for a draft. The returned draft always has a
	// non-empty subject and body; an error means the call itself failed.
	Compose(ctx context.Context, model string, req Request) (*Draft, error)
}

// Factory builds a provider for a caller-supplied API key.
type Factory func(ctx context.Context, apiKey string) (Provider, error)

// Options configure a Generator.
type Options struct {
	// APIKey is the process-wide provider key. Empty disables the provider
	// unless a request carries its own key.
	APIKey string
	// Shared is the provider built for APIKey at startup. Optional.
	Shared  Provider
	Factory Factory
	// Timeout bounds every provider call.
	Timeout time.Duration
	// AttemptDelay is waited between model attempts.
	AttemptDelay time.Duration
}

// Generator produces drafts and never fails: provider trouble degrades to
// the deterministic template.
type Generator struct {
	apiKey       string
	shared       Provider
	factory      Factory
	timeout      time.Duration
	attemptDelay time.Duration
	logger       *zap.Logger
}

func NewGenerator(opts Options, log *zap.Logger) *Generator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Generator{
		apiKey:       strings.TrimSpace(opts.APIKey),
		shared:       opts.Shared,
		factory:      opts.Factory,
		timeout:      timeout,
		attemptDelay: opts.AttemptDelay,
		logger:       logger.Component(log, "draft_generator"),
	}
}

// attempt is one fallible step of the ordered chain.
type attempt struct {
	model string
	run   func(ctx context.Context) (*Draft, error)
}

// Generate returns a draft for req.
func (g *Generator) Generate(ctx context.Context, req Request) *Draft {
	provider, err := g.provider(ctx, req.APIKey)
	if err != nil {
		g.logger.Warn("draft provider unavailable, using fallback template", zap.Error(err))
		return Fallback(req)
	}
	if provider == nil {
		g.logger.Info("draft provider not configured, using fallback template")
		return Fallback(req)
	}

	draft, err := g.firstSuccess(ctx, g.attempts(provider, req))
	if err != nil {
		g.logger.Error("all draft models failed, using fallback template",
			zap.String(logger.FieldProvider, provider.Name()),
			zap.Strings("models", provider.Models()),
			zap.Error(err),
		)
		return Fallback(req)
	}

	fillGaps(draft, req)
	if draft.Provider == "" {
		draft.Provider = provider.Name()
	}

	g.logger.Debug("draft generated",
		append(logger.CommonFields(draft.Provider, draft.Model),
			zap.String("subject", utils.TruncateForLog(draft.Subject, 120)),
		)...,
	)

	return draft
}

// provider resolves the backend for this call. A caller key different from
// the configured one gets a transient provider scoped to the call.
func (g *Generator) provider(ctx context.Context, callerKey string) (Provider, error) {
	key := strings.TrimSpace(callerKey)
	if key == "" {
		key = g.apiKey
	}
	if key == "" {
		return nil, nil
	}

	if key == g.apiKey && g.shared != nil {
		return g.shared, nil
	}

	if g.factory == nil {
		return nil, errors.New("no provider factory configured")
	}

	p, err := g.factory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}
	return p, nil
}

func (g *Generator) attempts(p Provider, req Request) []attempt {
	models := p.Models()
	out := make([]attempt, 0, len(models))
	for _, model := range models {
		model := model
		out = append(out, attempt{
			model: model,
			run: func(ctx context.Context) (*Draft, error) {
				return p.Compose(ctx, model, req)
			},
		})
	}
	return out
}

// firstSuccess evaluates attempts left to right and returns the first draft.
func (g *Generator) firstSuccess(ctx context.Context, attempts []attempt) (*Draft, error) {
	if len(attempts) == 0 {
		return nil, errors.New("provider offers no models")
	}

	var errs []error
	for i, a := range attempts {
		if i > 0 {
			if err := utils.WaitFor(ctx, g.attemptDelay); err != nil {
				return nil, errors.Join(append(errs, err)...)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		draft, err := a.run(callCtx)
		cancel()

		if err == nil && draft != nil {
			if draft.Model == "" {
				draft.Model = a.model
			}
			return draft, nil
		}
		if err == nil {
			err = errors.New("empty draft")
		}

		g.logger.Warn("draft model failed, trying next", zap.String(logger.FieldModel, a.model), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", a.model, err))
	}

	return nil, errors.Join(errs...)
}

// fillGaps guarantees a usable subject and body whatever the provider returned.
func fillGaps(d *Draft, req Request) {
	if strings.TrimSpace(d.Subject) == "" || strings.TrimSpace(d.Body) == "" {
		fb := Fallback(req)
		if strings.TrimSpace(d.Subject) == "" {
			d.Subject = fb.Subject
		}
		if strings.TrimSpace(d.Body) == "" {
			d.Body = fb.Body
		}
	}
	if d.Bullets == nil {
		d.Bullets = []string{}
	}
}
