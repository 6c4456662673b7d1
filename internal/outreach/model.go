// Package outreach holds the recruiter-outreach domain: leads, campaigns,
// sequence steps and the email event ledger, plus the operations that drive
// them (lead registry, sending, follow-up processing).
package outreach

import "time"

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadReplied   LeadStatus = "replied"
	LeadQualified LeadStatus = "qualified"
	LeadClosed    LeadStatus = "closed"
)

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether s is only ever reached through manual review.
func (s LeadStatus) Terminal() bool {
	return s == LeadQualified || s == LeadClosed
}

// rank orders statuses by how much they tell us about a lead.
// Automatic transitions only move to a higher rank.
func (s LeadStatus) rank() int {
	switch s {
	case LeadNew:
		return 0
	case LeadContacted:
		return 1
	case LeadReplied:
		return 2
	case LeadQualified, LeadClosed:
		return 3
	default:
		return -1
	}
}

// Lead is a recruiting contact. (Email, OwnerID) is unique.
type Lead struct {
	ID                   string     `json:"id"`
	OwnerID              string     `json:"owner_id"`
	Email                string     `json:"email"`
	Name                 string     `json:"name,omitempty"`
	Role                 string     `json:"role,omitempty"`
	Company              string     `json:"company,omitempty"`
	LinkedInURL          string     `json:"linkedin_url,omitempty"`
	JDSnapshot           string     `json:"jd_snapshot,omitempty"`
	PersonalizationNotes string     `json:"personalization_notes,omitempty"`
	Status               LeadStatus `json:"status"`
	LastContactedAt      *time.Time `json:"last_contacted_at,omitempty"`
	LastRepliedAt        *time.Time `json:"last_replied_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// LeadFields is a partial lead update. Nil fields are left untouched.
type LeadFields struct {
	Name                 *string
	Role                 *string
	Company              *string
	LinkedInURL          *string
	JDSnapshot           *string
	PersonalizationNotes *string
}

// Apply merges the supplied fields into l.
func (f LeadFields) Apply(l *Lead) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&l.Name, f.Name)
	set(&l.Role, f.Role)
	set(&l.Company, f.Company)
	set(&l.LinkedInURL, f.LinkedInURL)
	set(&l.JDSnapshot, f.JDSnapshot)
	set(&l.PersonalizationNotes, f.PersonalizationNotes)
}

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted:
		return true
	}
	return false
}

// Campaign is a reusable outreach context.
type Campaign struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"owner_id"`
	OwnerEmail     string         `json:"owner_email,omitempty"`
	Title          string         `json:"title"`
	JobDescription string         `json:"job_description"`
	Pitch          string         `json:"pitch"`
	Tone           string         `json:"tone"`
	TargetRole     string         `json:"target_role"`
	Status         CampaignStatus `json:"status"`
	LeadIDs        []string       `json:"lead_ids,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CampaignFields is a partial campaign update.
type CampaignFields struct {
	Title          *string
	JobDescription *string
	Pitch          *string
	Tone           *string
	TargetRole     *string
	Status         *CampaignStatus
}

type FollowUpType string

const (
	FollowUpNudge     FollowUpType = "nudge"
	FollowUpValue     FollowUpType = "value"
	FollowUpCaseStudy FollowUpType = "case-study"
)

func (t FollowUpType) Valid() bool {
	return t == FollowUpNudge || t == FollowUpValue || t == FollowUpCaseStudy
}

// ChannelEmail is the only supported sequence channel.
const ChannelEmail = "email"

// SequenceStep is one step of a campaign follow-up cadence.
type SequenceStep struct {
	ID              string       `json:"id"`
	CampaignID      string       `json:"campaign_id"`
	DayOffset       int          `json:"day_offset"`
	Channel         string       `json:"channel"`
	SubjectTemplate string       `json:"subject_template,omitempty"`
	BodyTemplate    string       `json:"body_template,omitempty"`
	Tone            string       `json:"tone,omitempty"`
	FollowUpType    FollowUpType `json:"followup_type"`
	CreatedAt       time.Time    `json:"created_at"`
}

type EventType string

const (
	EventSent        EventType = "sent"
	EventDelivered   EventType = "delivered"
	EventOpened      EventType = "opened"
	EventReplied     EventType = "replied"
	EventFollowUpDue EventType = "followup_due"
)

// Payload keys written by the engine.
const (
	PayloadAutoFollowUp = "autoFollowUp"
	PayloadAttempts     = "attempts"
	PayloadLastError    = "lastError"
	PayloadExhausted    = "exhausted"
)

// EmailEvent is an append-only ledger entry.
type EmailEvent struct {
	ID                string         `json:"id"`
	LeadID            string         `json:"lead_id"`
	CampaignID        string         `json:"campaign_id,omitempty"`
	SequenceStepID    string         `json:"sequence_step_id,omitempty"`
	Type              EventType      `json:"type"`
	Subject           string         `json:"subject,omitempty"`
	Snippet           string         `json:"snippet,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Payload           map[string]any `json:"payload,omitempty"`
	OccurredAt        time.Time      `json:"occurred_at"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Attempts returns the number of failed processing attempts recorded in the payload.
func (e *EmailEvent) Attempts() int {
	switch v := e.Payload[PayloadAttempts].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Exhausted reports whether a follow-up has given up retrying.
func (e *EmailEvent) Exhausted() bool {
	v, _ := e.Payload[PayloadExhausted].(bool)
	return v
}

// UpdatedLead summarises a lead touched by reply detection.
type UpdatedLead struct {
	LeadID string `json:"lead_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

// SyncResult reports one reply-detection pass.
type SyncResult struct {
	Checked      int           `json:"checked"`
	Matched      int           `json:"matched"`
	UpdatedLeads []UpdatedLead `json:"updated_leads"`
}
