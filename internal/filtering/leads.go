package filtering

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/logger"
	"github.com/pitchpilot/outreach/internal/outreach"
)

type trackedLeadFilter struct{}

// NewTrackedLead creates the step that keeps only messages from known leads
// of the owner. A failed lookup drops that message alone.
func NewTrackedLead() Filter {
	return &trackedLeadFilter{}
}

func (f *trackedLeadFilter) Name() string { return "tracked_lead" }

func (f *trackedLeadFilter) Disable(string) {}

func (f *trackedLeadFilter) IsEnabled() bool { return true }

func (f *trackedLeadFilter) Validate() error { return nil }

func (f *trackedLeadFilter) Apply(ctx context.Context, deps Deps, c []*Candidate) ([]*Candidate, Step, error) {
	if deps.Leads == nil {
		return nil, Step{}, fmt.Errorf("lead finder is required")
	}

	left := c[:0:0]
	for _, candidate := range c {
		lead, err := deps.Leads.FindByEmail(ctx, candidate.Address, deps.OwnerID)
		if errors.Is(err, outreach.ErrNotFound) {
			continue
		}
		if err != nil {
			deps.Logger.Warn("lead lookup failed",
				zap.String(logger.FieldMessageID, candidate.Message.ID),
				zap.String("email", candidate.Address),
				zap.Error(err),
			)
			continue
		}
		candidate.Lead = lead
		left = append(left, candidate)
	}
	return left, stepOf(len(c), left), nil
}

type alreadyRepliedFilter struct {
	disabled bool
	reason   string
}

// NewAlreadyReplied creates the step that skips leads whose status already
// records a reply or a manual decision.
func NewAlreadyReplied() Filter {
	return &alreadyRepliedFilter{}
}

func (f *alreadyRepliedFilter) Name() string { return "already_replied" }

func (f *alreadyRepliedFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *alreadyRepliedFilter) IsEnabled() bool { return !f.disabled }

func (f *alreadyRepliedFilter) Validate() error { return nil }

func (f *alreadyRepliedFilter) Apply(_ context.Context, deps Deps, c []*Candidate) ([]*Candidate, Step, error) {
	left := c[:0:0]
	var skipped []string
	for _, candidate := range c {
		status := candidate.Lead.Status
		if status == outreach.LeadReplied || status.Terminal() {
			skipped = append(skipped, candidate.Lead.ID)
			continue
		}
		left = append(left, candidate)
	}

	if len(skipped) > 0 {
		deps.Logger.Debug("skipping leads that already replied", zap.Strings("lead_ids", skipped))
	}
	return left, stepOf(len(c), left), nil
}

func (f *alreadyRepliedFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
