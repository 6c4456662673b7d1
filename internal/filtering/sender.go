package filtering

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	bracketedAddress = regexp.MustCompile(`<([^<>\s]+@[^<>\s]+)>`)
	bareAddress      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z0-9_-]+`)
)

// ExtractAddress returns the lowercased address of a From header, preferring
// the bracketed form of "Name <addr>". It returns "" when none is found.
func ExtractAddress(from string) string {
	if m := bracketedAddress.FindStringSubmatch(from); len(m) == 2 {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	return strings.ToLower(bareAddress.FindString(from))
}

type senderFilter struct{}

// NewSender creates the step that drops messages without a usable From address.
func NewSender() Filter {
	return &senderFilter{}
}

func (f *senderFilter) Name() string { return "sender" }

func (f *senderFilter) Disable(string) {}

func (f *senderFilter) IsEnabled() bool { return true }

func (f *senderFilter) Validate() error { return nil }

func (f *senderFilter) Apply(_ context.Context, deps Deps, c []*Candidate) ([]*Candidate, Step, error) {
	left := c[:0:0]
	for _, candidate := range c {
		if candidate.Message == nil {
			continue
		}
		addr := ExtractAddress(candidate.Message.From)
		if addr == "" {
			deps.Logger.Debug("message has no sender address",
				zap.String("message_id", candidate.Message.ID),
				zap.String("from", candidate.Message.From),
			)
			continue
		}
		candidate.Address = addr
		left = append(left, candidate)
	}
	return left, stepOf(len(c), left), nil
}
