package filtering

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// HeuristicConfig selects the signals that mark a message as a reply.
// A message qualifies when any enabled signal is present.
type HeuristicConfig struct {
	SubjectPrefix bool `mapstructure:"subject-prefix"`
	ThreadID      bool `mapstructure:"thread-id"`
}

// DefaultHeuristic enables both signals.
func DefaultHeuristic() HeuristicConfig {
	return HeuristicConfig{SubjectPrefix: true, ThreadID: true}
}

type replyHeuristicFilter struct {
	cfg      HeuristicConfig
	disabled bool
	reason   string
}

// NewReplyHeuristic creates the step that decides whether a message is a reply.
func NewReplyHeuristic(cfg HeuristicConfig) Filter {
	return &replyHeuristicFilter{cfg: cfg}
}

func (f *replyHeuristicFilter) Name() string { return "reply_heuristic" }

func (f *replyHeuristicFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *replyHeuristicFilter) IsEnabled() bool { return !f.disabled }

func (f *replyHeuristicFilter) Validate() error {
	if !f.cfg.SubjectPrefix && !f.cfg.ThreadID {
		return errors.New("at least one of subject prefix or thread id must be enabled")
	}
	return nil
}

func (f *replyHeuristicFilter) Apply(_ context.Context, _ Deps, c []*Candidate) ([]*Candidate, Step, error) {
	left := c[:0:0]
	for _, candidate := range c {
		if f.isReply(candidate) {
			left = append(left, candidate)
		}
	}
	return left, stepOf(len(c), left), nil
}

func (f *replyHeuristicFilter) isReply(c *Candidate) bool {
	if f.cfg.SubjectPrefix && hasReplyPrefix(c.Message.Subject) {
		return true
	}
	return f.cfg.ThreadID && strings.TrimSpace(c.Message.ThreadID) != ""
}

func hasReplyPrefix(subject string) bool {
	s := strings.TrimSpace(subject)
	return len(s) >= 3 && strings.EqualFold(s[:3], "re:")
}

func (f *replyHeuristicFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{
			"subject_prefix": strconv.FormatBool(f.cfg.SubjectPrefix),
			"thread_id":      strconv.FormatBool(f.cfg.ThreadID),
		},
	}
}
