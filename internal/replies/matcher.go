// Package replies detects recruiter replies in the mailbox and records them
// against tracked leads.
package replies

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/filtering"
	"github.com/pitchpilot/outreach/internal/logger"
	"github.com/pitchpilot/outreach/internal/mailer"
	"github.com/pitchpilot/outreach/internal/outreach"
	"github.com/pitchpilot/outreach/internal/utils"
)

const (
	noSubject     = "No subject"
	snippetLength = 200
)

// InboxReader is the read side of the delivery service.
type InboxReader interface {
	ListInbox(ctx context.Context, query string, cred mailer.Credential) (mailer.Inbox, error)
}

// Registry is the part of the lead registry reply detection needs.
type Registry interface {
	filtering.LeadFinder
	MarkReplied(ctx context.Context, lead *outreach.Lead, at time.Time) (bool, error)
}

// Options tune a Matcher.
type Options struct {
	// Query is the inbox search; empty uses the mailer default.
	Query     string
	Heuristic filtering.HeuristicConfig
}

// Matcher correlates inbox messages with leads.
type Matcher struct {
	inbox    InboxReader
	registry Registry
	events   outreach.EventLog
	steps    []filtering.Filter
	query    string
	logger   *zap.Logger
	now      func() time.Time
}

func NewMatcher(inbox InboxReader, registry Registry, events outreach.EventLog, opts Options, log *zap.Logger) *Matcher {
	return &Matcher{
		inbox:    inbox,
		registry: registry,
		events:   events,
		steps:    filtering.Default(opts.Heuristic),
		query:    opts.Query,
		logger:   logger.Component(log, "reply_matcher"),
		now:      time.Now,
	}
}

// Filters exposes the classification steps, e.g. to disable one by name.
func (m *Matcher) Filters() []filtering.Filter {
	return m.steps
}

// Sync reads one inbox snapshot and marks every lead that replied.
// Listing failures are returned; a failure on a single message is logged
// and the batch continues.
func (m *Matcher) Sync(ctx context.Context, cred mailer.Credential, ownerID string) (*outreach.SyncResult, error) {
	result := &outreach.SyncResult{UpdatedLeads: []outreach.UpdatedLead{}}

	inbox, err := m.inbox.ListInbox(ctx, m.query, cred)
	if err != nil {
		return nil, err
	}

	candidates := make([]*filtering.Candidate, 0, inbox.Len())
	for {
		msg, err := inbox.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		var msgErr *mailer.MessageError
		if errors.As(err, &msgErr) {
			result.Checked++
			m.logger.Warn("failed to fetch message", zap.String(logger.FieldMessageID, msgErr.ID), zap.Error(msgErr.Err))
			continue
		}
		if err != nil {
			return result, fmt.Errorf("read inbox: %w", err)
		}

		result.Checked++
		candidates = append(candidates, &filtering.Candidate{Message: msg})
	}

	deps := filtering.Deps{Leads: m.registry, OwnerID: ownerID, Logger: m.logger}
	replies, err := filtering.Run(ctx, deps, m.steps, candidates)
	if err != nil {
		return result, fmt.Errorf("classify messages: %w", err)
	}

	seen := make(map[string]bool, len(replies))
	for _, c := range replies {
		if seen[c.Lead.ID] {
			continue
		}

		changed, err := m.record(ctx, c)
		if err != nil {
			m.logger.Error("failed to record reply",
				append(logger.OutreachFields(c.Lead.ID, "", c.Message.ID), zap.Error(err))...,
			)
			continue
		}
		seen[c.Lead.ID] = true

		if changed {
			result.Matched++
			result.UpdatedLeads = append(result.UpdatedLeads, outreach.UpdatedLead{
				LeadID: c.Lead.ID,
				Email:  c.Lead.Email,
				Name:   c.Lead.Name,
			})
		}
	}

	m.logger.Info("reply sync finished",
		zap.String("owner_id", ownerID),
		zap.Int("checked", result.Checked),
		zap.Int("matched", result.Matched),
	)

	return result, nil
}

// record appends the replied event before touching lead status, so a crash
// in between leaves the lead to be picked up again on the next sync.
func (m *Matcher) record(ctx context.Context, c *filtering.Candidate) (bool, error) {
	lead, msg := c.Lead, c.Message

	occurred, ok := msg.ReceivedAt()
	if !ok {
		occurred = m.now()
	}

	exists, err := m.events.HasProviderEvent(ctx, lead.ID, outreach.EventReplied, msg.ID)
	if err != nil {
		return false, fmt.Errorf("check existing reply: %w", err)
	}

	if !exists {
		campaignID, err := m.lastCampaign(ctx, lead.ID, occurred)
		if err != nil {
			return false, err
		}

		subject := strings.TrimSpace(msg.Subject)
		if subject == "" {
			subject = noSubject
		}

		event := &outreach.EmailEvent{
			ID:                outreach.NewEventID(occurred),
			LeadID:            lead.ID,
			CampaignID:        campaignID,
			Type:              outreach.EventReplied,
			Subject:           subject,
			Snippet:           utils.Snippet(msg.Snippet, snippetLength),
			ProviderMessageID: msg.ID,
			OccurredAt:        occurred,
			CreatedAt:         m.now(),
		}
		if err := m.events.AppendEvent(ctx, event); err != nil {
			return false, fmt.Errorf("append reply event: %w", err)
		}
	}

	changed, err := m.registry.MarkReplied(ctx, lead, occurred)
	if err != nil {
		return false, fmt.Errorf("mark lead replied: %w", err)
	}

	m.logger.Info("reply detected",
		append(logger.OutreachFields(lead.ID, "", msg.ID), zap.String("email", lead.Email))...,
	)
	return changed, nil
}

// lastCampaign attributes a reply to the campaign of the latest event that
// preceded it. Scheduled follow-ups in the future do not count.
func (m *Matcher) lastCampaign(ctx context.Context, leadID string, at time.Time) (string, error) {
	last, err := m.events.LatestCampaignEvent(ctx, leadID, at)
	if errors.Is(err, outreach.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find last campaign: %w", err)
	}
	return last.CampaignID, nil
}
