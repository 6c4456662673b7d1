package outreach

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/ai"
	"github.com/pitchpilot/outreach/internal/logger"
	"github.com/pitchpilot/outreach/internal/mailer"
	"github.com/pitchpilot/outreach/internal/utils"
)

const (
	// DefaultFollowUpWindow is how far back a tick looks for due follow-ups.
	DefaultFollowUpWindow = 5 * time.Minute
	followUpSnippetLength = 240
)

// FollowUpOptions configure follow-up processing.
type FollowUpOptions struct {
	// Credential sends scheduled mail on behalf of the daemon's owner.
	Credential  mailer.Credential
	Window      time.Duration
	MaxAttempts int
}

// FollowUps schedules and sends campaign follow-ups.
type FollowUps struct {
	svc         *Service
	cred        mailer.Credential
	window      time.Duration
	maxAttempts int
	logger      *zap.Logger

	mu sync.Mutex
	// covered is the upper bound of the last successful due query.
	covered time.Time
}

func NewFollowUps(svc *Service, opts FollowUpOptions) *FollowUps {
	if opts.Window <= 0 {
		opts.Window = DefaultFollowUpWindow
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &FollowUps{
		svc:         svc,
		cred:        opts.Credential,
		window:      opts.Window,
		maxAttempts: opts.MaxAttempts,
		logger:      svc.logger.With(zap.String(logger.FieldComponent, "followups")),
		covered:     svc.now(),
	}
}

// dueFrom is the lower bound of the next due query: the window, stretched
// back to the last covered instant when ticks were skipped or run slower
// than the window.
func (f *FollowUps) dueFrom(now time.Time) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	from := now.Add(-f.window)
	if !f.covered.IsZero() && f.covered.Before(from) {
		from = f.covered
	}
	return from
}

func (f *FollowUps) markCovered(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if now.After(f.covered) {
		f.covered = now
	}
}

// Schedule records a followup_due event for the lead at sendAt.
func (f *FollowUps) Schedule(ctx context.Context, ownerID, leadID, campaignID, stepID string, sendAt time.Time) (*EmailEvent, error) {
	if sendAt.IsZero() {
		return nil, required("send at")
	}
	if strings.TrimSpace(campaignID) == "" {
		return nil, required("campaign id")
	}

	lead, err := f.svc.registry.Get(ctx, leadID, ownerID)
	if err != nil {
		return nil, err
	}
	if _, err := f.svc.ownedCampaign(ctx, campaignID, ownerID); err != nil {
		return nil, err
	}
	if stepID != "" {
		step, err := f.svc.store.GetStep(ctx, stepID)
		if err != nil {
			return nil, err
		}
		if step.CampaignID != campaignID {
			return nil, notFound("sequence step", stepID)
		}
	}

	event := &EmailEvent{
		ID:             NewEventID(sendAt),
		LeadID:         lead.ID,
		CampaignID:     campaignID,
		SequenceStepID: stepID,
		Type:           EventFollowUpDue,
		OccurredAt:     sendAt,
		CreatedAt:      f.svc.now(),
	}
	if err := f.svc.store.AppendEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("schedule follow-up: %w", err)
	}

	f.logger.Info("follow-up scheduled",
		append(logger.OutreachFields(lead.ID, campaignID, ""), zap.Time("send_at", sendAt))...,
	)
	return event, nil
}

// FollowUpResult summarises one processing tick.
type FollowUpResult struct {
	Due       int
	Sent      int
	Requeued  int
	Exhausted int
}

// ProcessDue sends every follow-up due in [now-window, now], reaching further
// back to the end of the previous successful tick so nothing falls between
// ticks. Events are independent: a failure re-queues that event with backoff
// and the batch goes on. Only a failed query is returned as an error.
func (f *FollowUps) ProcessDue(ctx context.Context) (*FollowUpResult, error) {
	now := f.svc.now()
	due, err := f.svc.store.EventsBetween(ctx, EventFollowUpDue, f.dueFrom(now), now)
	if err != nil {
		return nil, fmt.Errorf("query due follow-ups: %w", err)
	}
	f.markCovered(now)

	result := &FollowUpResult{}
	for _, event := range due {
		if event.Exhausted() {
			continue
		}
		result.Due++

		sent, err := f.process(ctx, event)
		if sent {
			result.Sent++
		}
		if err == nil {
			continue
		}

		log := f.logger.With(logger.OutreachFields(event.LeadID, event.CampaignID, "")...)
		if sent {
			log.Error("follow-up sent but bookkeeping failed", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}

		log.Error("failed to send scheduled follow-up", zap.String("event_id", event.ID), zap.Error(err))
		gaveUp, rerr := f.requeue(ctx, event, err, now)
		switch {
		case rerr != nil:
			log.Error("failed to re-queue follow-up", zap.String("event_id", event.ID), zap.Error(rerr))
		case gaveUp:
			result.Exhausted++
		default:
			result.Requeued++
		}
	}

	if result.Due > 0 {
		f.logger.Info("follow-ups processed",
			zap.Int("due", result.Due),
			zap.Int("sent", result.Sent),
			zap.Int("requeued", result.Requeued),
			zap.Int("exhausted", result.Exhausted),
		)
	}
	return result, nil
}

// process drafts and sends one follow-up. It reports whether the email left,
// so a later bookkeeping failure never causes a second send.
func (f *FollowUps) process(ctx context.Context, due *EmailEvent) (bool, error) {
	store := f.svc.store

	lead, err := store.GetLead(ctx, due.LeadID)
	if err != nil {
		return false, fmt.Errorf("load lead: %w", err)
	}
	campaign, err := store.GetCampaign(ctx, due.CampaignID)
	if err != nil {
		return false, fmt.Errorf("load campaign: %w", err)
	}

	tone := campaign.Tone
	if due.SequenceStepID != "" {
		step, err := store.GetStep(ctx, due.SequenceStepID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return false, fmt.Errorf("load sequence step: %w", err)
		}
		if step != nil && strings.TrimSpace(step.Tone) != "" {
			tone = step.Tone
		}
	}

	draft := f.svc.drafts.Generate(ctx, ai.Request{
		Recipient:      recipientOf(lead),
		JobDescription: campaign.JobDescription,
		Pitch:          campaign.Pitch,
		Tone:           tone,
		Temperature:    -1,
	})

	res, err := f.svc.mail.Send(ctx, mailer.Message{
		To:      lead.Email,
		Subject: draft.Subject,
		Body:    draft.Body,
	}, f.cred)
	if err != nil {
		return false, err
	}

	now := f.svc.now()
	sent := &EmailEvent{
		ID:                NewEventID(now),
		LeadID:            lead.ID,
		CampaignID:        campaign.ID,
		SequenceStepID:    due.SequenceStepID,
		Type:              EventSent,
		Subject:           draft.Subject,
		Snippet:           utils.Snippet(draft.Body, followUpSnippetLength),
		ProviderMessageID: res.MessageID,
		Payload:           map[string]any{PayloadAutoFollowUp: true},
		OccurredAt:        now,
		CreatedAt:         now,
	}
	if err := store.AppendEvent(ctx, sent); err != nil {
		return true, fmt.Errorf("record follow-up: %w", err)
	}
	if err := f.svc.registry.MarkContacted(ctx, lead, now); err != nil {
		return true, fmt.Errorf("mark lead contacted: %w", err)
	}
	if err := store.DeleteEvent(ctx, due.ID); err != nil {
		return true, fmt.Errorf("consume due event: %w", err)
	}

	f.logger.Info("follow-up sent",
		append(logger.OutreachFields(lead.ID, campaign.ID, res.MessageID), zap.String(logger.FieldProvider, draft.Provider))...,
	)
	return true, nil
}

// requeue moves a failed follow-up forward by the backoff for its attempt.
// Once attempts run out the event stays where it is, marked exhausted.
func (f *FollowUps) requeue(ctx context.Context, due *EmailEvent, cause error, now time.Time) (bool, error) {
	attempt := due.Attempts() + 1

	payload := maps.Clone(due.Payload)
	if payload == nil {
		payload = make(map[string]any, 3)
	}
	payload[PayloadAttempts] = attempt
	payload[PayloadLastError] = cause.Error()

	if exhausted(attempt, f.maxAttempts) {
		payload[PayloadExhausted] = true
		f.logger.Warn("follow-up gave up after repeated failures",
			append(logger.OutreachFields(due.LeadID, due.CampaignID, ""),
				zap.String("event_id", due.ID),
				zap.Int("attempts", attempt),
			)...,
		)
		return true, f.svc.store.RescheduleEvent(ctx, due.ID, due.OccurredAt, payload)
	}

	next := now.Add(backoff(attempt))
	f.logger.Info("follow-up re-queued",
		zap.String("event_id", due.ID),
		zap.Int("attempt", attempt),
		zap.Time("next_attempt", next),
	)
	return false, f.svc.store.RescheduleEvent(ctx, due.ID, next, payload)
}
