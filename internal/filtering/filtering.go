// Package filtering classifies inbox messages as lead replies through an
// ordered list of steps. Each step narrows the candidate list.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/mailer"
	"github.com/pitchpilot/outreach/internal/outreach"
)

// Filter represents a single classification step applied to candidates.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, deps Deps, c []*Candidate) ([]*Candidate, Step, error)
}

// LeadFinder resolves a sender address to a tracked lead.
type LeadFinder interface {
	FindByEmail(ctx context.Context, email, ownerID string) (*outreach.Lead, error)
}

// Deps aggregates dependencies shared across all steps.
type Deps struct {
	Leads   LeadFinder
	OwnerID string
	Logger  *zap.Logger
}

// Candidate is an inbox message on its way through the pipeline. Steps fill
// Address and Lead as they go.
type Candidate struct {
	Message *mailer.InboxMessage
	Address string
	Lead    *outreach.Lead
}

// Step describes the result of executing a step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

func stepOf(initial int, left []*Candidate) Step {
	return Step{Initial: initial, Dropped: initial - len(left), Left: len(left)}
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns the candidates
// that survived every enabled step.
func Run(ctx context.Context, deps Deps, steps []Filter, candidates []*Candidate) ([]*Candidate, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, candidates)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		candidates = next
		if len(candidates) == 0 {
			break
		}
	}

	return candidates, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// Default returns the reply-detection pipeline in its canonical order.
func Default(cfg HeuristicConfig) []Filter {
	return []Filter{
		NewSender(),
		NewTrackedLead(),
		NewAlreadyReplied(),
		NewReplyHeuristic(cfg),
	}
}
