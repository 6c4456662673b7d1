package outreach

import (
	"context"
	"time"
)

// LeadStore persists leads. Lookups return ErrNotFound when nothing matches.
type LeadStore interface {
	// UpsertLead atomically creates a lead with status new, or merges the
	// supplied fields into the existing (email, ownerID) record.
	// A uniqueness violation is reported as ErrDuplicate.
	UpsertLead(ctx context.Context, email, ownerID string, fields LeadFields, now time.Time) (*Lead, error)
	GetLead(ctx context.Context, id string) (*Lead, error)
	FindLead(ctx context.Context, email, ownerID string) (*Lead, error)
	FindLeadsByEmail(ctx context.Context, email string) ([]*Lead, error)
	// UpdateLead writes the profile columns of lead. Status and the
	// contact timestamps are left alone; they only change through the
	// transitions below.
	UpdateLead(ctx context.Context, lead *Lead) error
	// SetLeadStatus overwrites the status unconditionally.
	SetLeadStatus(ctx context.Context, id string, status LeadStatus, now time.Time) (*Lead, error)
	// MarkLeadContacted stamps last_contacted_at and moves a new lead to
	// contacted, in one write against the stored row.
	MarkLeadContacted(ctx context.Context, id string, at, now time.Time) (*Lead, error)
	// MarkLeadReplied moves a new or contacted lead to replied and stamps
	// last_replied_at. It reports false, with the stored lead, when the lead
	// was already past contacted.
	MarkLeadReplied(ctx context.Context, id string, at, now time.Time) (*Lead, bool, error)
	ListLeads(ctx context.Context, ownerID string, limit int) ([]*Lead, error)
	DeleteLead(ctx context.Context, id string) error
}

// CampaignStore persists campaigns and their sequence steps.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, c *Campaign) error
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	UpdateCampaign(ctx context.Context, c *Campaign) error
	ListCampaigns(ctx context.Context, ownerID string, limit int) ([]*Campaign, error)
	// AddCampaignLead appends leadID to the campaign; adding twice is a no-op.
	AddCampaignLead(ctx context.Context, campaignID, leadID string) error

	CreateStep(ctx context.Context, s *SequenceStep) error
	GetStep(ctx context.Context, id string) (*SequenceStep, error)
	// ListSteps returns steps ordered by day offset.
	ListSteps(ctx context.Context, campaignID string) ([]*SequenceStep, error)
}

// EventLog is the append-only outreach ledger.
type EventLog interface {
	AppendEvent(ctx context.Context, e *EmailEvent) error
	// LatestCampaignEvent returns the lead's most recent event that names a
	// campaign and occurred at or before at.
	LatestCampaignEvent(ctx context.Context, leadID string, at time.Time) (*EmailEvent, error)
	// EventsBetween returns events of type t with from <= occurred_at <= to.
	EventsBetween(ctx context.Context, t EventType, from, to time.Time) ([]*EmailEvent, error)
	// HasProviderEvent reports whether the lead already has an event of type t
	// for the given provider message id.
	HasProviderEvent(ctx context.Context, leadID string, t EventType, messageID string) (bool, error)
	ListEvents(ctx context.Context, leadID string) ([]*EmailEvent, error)
	// RescheduleEvent moves a followup_due event and replaces its payload.
	RescheduleEvent(ctx context.Context, id string, occurredAt time.Time, payload map[string]any) error
	DeleteEvent(ctx context.Context, id string) error
}

// Store is everything the engine persists.
type Store interface {
	LeadStore
	CampaignStore
	EventLog
}
