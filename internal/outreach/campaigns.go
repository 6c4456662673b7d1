package outreach

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultCampaignTone       = "friendly"
	defaultCampaignTargetRole = "HR"
	defaultStepTone           = "friendly"
	defaultCampaignListLimit  = 50
)

// CampaignInput creates a campaign.
type CampaignInput struct {
	Title          string
	JobDescription string
	Pitch          string
	Tone           string
	TargetRole     string
	OwnerEmail     string
	Status         CampaignStatus
}

func (s *Service) CreateCampaign(ctx context.Context, ownerID string, in CampaignInput) (*Campaign, error) {
	switch {
	case strings.TrimSpace(ownerID) == "":
		return nil, required("owner")
	case strings.TrimSpace(in.Title) == "":
		return nil, required("title")
	case strings.TrimSpace(in.JobDescription) == "":
		return nil, required("job description")
	case strings.TrimSpace(in.Pitch) == "":
		return nil, required("pitch")
	}

	status := in.Status
	if status == "" {
		status = CampaignDraft
	}
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	now := s.now()
	c := &Campaign{
		ID:             NewID(),
		OwnerID:        ownerID,
		OwnerEmail:     strings.TrimSpace(in.OwnerEmail),
		Title:          strings.TrimSpace(in.Title),
		JobDescription: in.JobDescription,
		Pitch:          in.Pitch,
		Tone:           orDefault(in.Tone, defaultCampaignTone),
		TargetRole:     orDefault(in.TargetRole, defaultCampaignTargetRole),
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

func (s *Service) ownedCampaign(ctx context.Context, id, ownerID string) (*Campaign, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, notFound("campaign", id)
	}
	return c, nil
}

// GetCampaign returns the campaign with its steps ordered by day offset.
func (s *Service) GetCampaign(ctx context.Context, id, ownerID string) (*Campaign, []*SequenceStep, error) {
	c, err := s.ownedCampaign(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}
	steps, err := s.store.ListSteps(ctx, c.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list steps: %w", err)
	}
	return c, steps, nil
}

// ListCampaigns returns the owner's most recently updated campaigns.
func (s *Service) ListCampaigns(ctx context.Context, ownerID string, limit int) ([]*Campaign, error) {
	if limit <= 0 {
		limit = defaultCampaignListLimit
	}
	return s.store.ListCampaigns(ctx, ownerID, limit)
}

func (s *Service) UpdateCampaign(ctx context.Context, id, ownerID string, fields CampaignFields) (*Campaign, error) {
	c, err := s.ownedCampaign(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if fields.Status != nil && !fields.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *fields.Status)}
	}
	switch {
	case blank(fields.Title):
		return nil, required("title")
	case blank(fields.JobDescription):
		return nil, required("job description")
	case blank(fields.Pitch):
		return nil, required("pitch")
	}

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Title, fields.Title)
	set(&c.JobDescription, fields.JobDescription)
	set(&c.Pitch, fields.Pitch)
	set(&c.Tone, fields.Tone)
	set(&c.TargetRole, fields.TargetRole)
	if fields.Status != nil {
		c.Status = *fields.Status
	}
	c.UpdatedAt = s.now()

	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	return c, nil
}

// StepInput creates a sequence step.
type StepInput struct {
	DayOffset       int
	SubjectTemplate string
	BodyTemplate    string
	Tone            string
	FollowUpType    FollowUpType
}

func (s *Service) CreateStep(ctx context.Context, campaignID, ownerID string, in StepInput) (*SequenceStep, error) {
	if _, err := s.ownedCampaign(ctx, campaignID, ownerID); err != nil {
		return nil, err
	}
	if in.DayOffset < 0 {
		return nil, &ValidationError{Field: "day offset", Reason: "must not be negative"}
	}

	kind := in.FollowUpType
	if kind == "" {
		kind = FollowUpNudge
	}
	if !kind.Valid() {
		return nil, &ValidationError{Field: "followup type", Reason: fmt.Sprintf("unknown type %q", kind)}
	}

	step := &SequenceStep{
		ID:              NewID(),
		CampaignID:      campaignID,
		DayOffset:       in.DayOffset,
		Channel:         ChannelEmail,
		SubjectTemplate: in.SubjectTemplate,
		BodyTemplate:    in.BodyTemplate,
		Tone:            orDefault(in.Tone, defaultStepTone),
		FollowUpType:    kind,
		CreatedAt:       s.now(),
	}
	if err := s.store.CreateStep(ctx, step); err != nil {
		return nil, fmt.Errorf("create step: %w", err)
	}
	return step, nil
}

func (s *Service) ListSteps(ctx context.Context, campaignID, ownerID string) ([]*SequenceStep, error) {
	if _, err := s.ownedCampaign(ctx, campaignID, ownerID); err != nil {
		return nil, err
	}
	return s.store.ListSteps(ctx, campaignID)
}

// blank reports whether a supplied field is empty. Nil means not supplied.
func blank(v *string) bool {
	return v != nil && strings.TrimSpace(*v) == ""
}
