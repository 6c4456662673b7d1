package outreach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/ai"
	"github.com/pitchpilot/outreach/internal/logger"
	"github.com/pitchpilot/outreach/internal/mailer"
	"github.com/pitchpilot/outreach/internal/utils"
)

const (
	// InteractiveTemperature is the sampling temperature for drafts requested
	// by a person rather than the scheduler.
	InteractiveTemperature = 0.15
	sentSnippetLength      = 200
)

// Drafter produces email drafts. It never fails.
type Drafter interface {
	Generate(ctx context.Context, req ai.Request) *ai.Draft
}

// Mailer delivers encoded email.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message, cred mailer.Credential) (*mailer.SendResult, error)
}

// ReplySyncer scans the mailbox for lead replies.
type ReplySyncer interface {
	Sync(ctx context.Context, cred mailer.Credential, ownerID string) (*SyncResult, error)
}

// Deps wires a Service.
type Deps struct {
	Store    Store
	Registry *Registry
	Drafter  Drafter
	Mailer   Mailer
	Replies  ReplySyncer
}

// Service is the surface consumed by the command layer and by external
// callers: drafting, sending, reply sync and lead upserts.
type Service struct {
	store    Store
	registry *Registry
	drafts   Drafter
	mail     Mailer
	replies  ReplySyncer
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(deps Deps, log *zap.Logger) *Service {
	registry := deps.Registry
	if registry == nil {
		registry = NewRegistry(deps.Store, log)
	}
	return &Service{
		store:    deps.Store,
		registry: registry,
		drafts:   deps.Drafter,
		mail:     deps.Mailer,
		replies:  deps.Replies,
		logger:   logger.Component(log, "outreach"),
		now:      time.Now,
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// DraftInput is an interactive draft request.
type DraftInput struct {
	Lead           Lead
	JobDescription string
	Pitch          string
	Tone           string
	// Temperature nil selects InteractiveTemperature.
	Temperature *float64
	APIKey      string
}

// GenerateDraft drafts an email for in.Lead. Provider trouble is absorbed
// into the fallback template; only invalid input is an error.
func (s *Service) GenerateDraft(ctx context.Context, in DraftInput) (*ai.Draft, error) {
	if strings.TrimSpace(in.Lead.Email) == "" {
		return nil, required("lead email")
	}

	tone := strings.TrimSpace(in.Tone)
	if tone == "" {
		tone = ai.DefaultTone
	}
	temperature := InteractiveTemperature
	if in.Temperature != nil {
		temperature = *in.Temperature
	}

	return s.drafts.Generate(ctx, ai.Request{
		Recipient:      recipientOf(&in.Lead),
		JobDescription: in.JobDescription,
		Pitch:          in.Pitch,
		Tone:           tone,
		Temperature:    temperature,
		APIKey:         in.APIKey,
	}), nil
}

func recipientOf(l *Lead) ai.Recipient {
	return ai.Recipient{
		Name:       l.Name,
		Email:      l.Email,
		Role:       l.Role,
		Company:    l.Company,
		JDSnapshot: l.JDSnapshot,
		Notes:      l.PersonalizationNotes,
	}
}

// SendInput is one outreach email.
type SendInput struct {
	LeadID string
	// CampaignID empty creates a campaign for the lead's company.
	CampaignID  string
	Subject     string
	Body        string
	Attachments []mailer.Attachment
	// Pitch seeds an implicitly created campaign.
	Pitch string
}

// SendOutcome reports a delivered email.
type SendOutcome struct {
	Lead       *Lead
	CampaignID string
	MessageID  string
	EventID    string
}

// SendOutreach delivers an email to a lead owned by ownerID, records the sent
// event and moves the lead to contacted. Delivery errors are returned as is.
// Once the email is delivered the outcome is always returned; ledger
// failures after that point come with it, wrapped in ErrNotRecorded.
func (s *Service) SendOutreach(ctx context.Context, cred mailer.Credential, ownerID string, in SendInput) (*SendOutcome, error) {
	switch {
	case strings.TrimSpace(in.LeadID) == "":
		return nil, required("lead id")
	case strings.TrimSpace(in.Subject) == "":
		return nil, required("subject")
	case strings.TrimSpace(in.Body) == "":
		return nil, required("body")
	}

	lead, err := s.registry.Get(ctx, in.LeadID, ownerID)
	if err != nil {
		return nil, err
	}

	var campaign *Campaign
	if in.CampaignID != "" {
		if campaign, err = s.ownedCampaign(ctx, in.CampaignID, ownerID); err != nil {
			return nil, err
		}
	}

	res, err := s.mail.Send(ctx, mailer.Message{
		To:          lead.Email,
		Subject:     in.Subject,
		Body:        in.Body,
		Attachments: in.Attachments,
	}, cred)
	if err != nil {
		return nil, err
	}

	// The email is out. From here on failures are collected, never returned
	// bare, so the caller always learns the message id.
	var failed []error
	log := s.logger.With(logger.OutreachFields(lead.ID, in.CampaignID, res.MessageID)...)

	if campaign == nil {
		if campaign, err = s.implicitCampaign(ctx, lead, cred.Sender, in.Pitch); err != nil {
			log.Error("failed to create campaign for sent email", zap.Error(err))
			failed = append(failed, fmt.Errorf("create campaign: %w", err))
		}
	}
	campaignID := ""
	if campaign != nil {
		campaignID = campaign.ID
	}

	now := s.now()
	event := &EmailEvent{
		ID:                NewEventID(now),
		LeadID:            lead.ID,
		CampaignID:        campaignID,
		Type:              EventSent,
		Subject:           in.Subject,
		Snippet:           utils.Snippet(in.Body, sentSnippetLength),
		ProviderMessageID: res.MessageID,
		OccurredAt:        now,
		CreatedAt:         now,
	}
	if err := s.store.AppendEvent(ctx, event); err != nil {
		log.Error("failed to record sent event", zap.Error(err))
		failed = append(failed, fmt.Errorf("record sent event: %w", err))
	}

	if err := s.registry.MarkContacted(ctx, lead, now); err != nil {
		log.Error("failed to mark lead contacted", zap.Error(err))
		failed = append(failed, fmt.Errorf("mark lead contacted: %w", err))
	}
	if campaignID != "" {
		if err := s.store.AddCampaignLead(ctx, campaignID, lead.ID); err != nil {
			log.Error("failed to link lead to campaign", zap.Error(err))
			failed = append(failed, fmt.Errorf("link lead to campaign: %w", err))
		}
	}

	out := &SendOutcome{
		Lead:       lead,
		CampaignID: campaignID,
		MessageID:  res.MessageID,
		EventID:    event.ID,
	}
	if len(failed) > 0 {
		return out, fmt.Errorf("%w: %w", ErrNotRecorded, errors.Join(failed...))
	}

	s.logger.Info("outreach sent",
		logger.OutreachFields(lead.ID, campaignID, res.MessageID)...,
	)
	return out, nil
}

// implicitCampaign is created only after a successful send, so a failed
// delivery leaves no trace.
func (s *Service) implicitCampaign(ctx context.Context, lead *Lead, ownerEmail, pitch string) (*Campaign, error) {
	company := strings.TrimSpace(lead.Company)
	if company == "" {
		company = "Campaign"
	}
	targetRole := strings.TrimSpace(lead.Role)
	if targetRole == "" {
		targetRole = "Recruiter"
	}

	now := s.now()
	campaign := &Campaign{
		ID:             NewID(),
		OwnerID:        lead.OwnerID,
		OwnerEmail:     ownerEmail,
		Title:          "Recruiter Outreach · " + company,
		JobDescription: orDefault(lead.JDSnapshot, "Not provided"),
		Pitch:          orDefault(pitch, "Not provided"),
		Tone:           ai.DefaultTone,
		TargetRole:     targetRole,
		Status:         CampaignActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateCampaign(ctx, campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	s.logger.Info("campaign created for outreach",
		logger.OutreachFields(lead.ID, campaign.ID, "")...,
	)
	return campaign, nil
}

// SyncReplies runs reply detection for ownerID.
func (s *Service) SyncReplies(ctx context.Context, cred mailer.Credential, ownerID string) (*SyncResult, error) {
	if s.replies == nil {
		return nil, errors.New("reply detection is not configured")
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, required("owner")
	}
	return s.replies.Sync(ctx, cred, ownerID)
}

// UpsertLead creates or merges a lead. See Registry.Upsert.
func (s *Service) UpsertLead(ctx context.Context, email, ownerID string, fields LeadFields) (*Lead, error) {
	return s.registry.Upsert(ctx, email, ownerID, fields)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
