// Package memory keeps the outreach records in process. It enforces the same
// (email, owner) uniqueness as the database and is used in dev mode and tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/pitchpilot/outreach/internal/outreach"
)

type leadKey struct {
	email string
	owner string
}

// Store is a mutex-guarded outreach.Store. Records are copied on the way in
// and out so callers never share memory with the store.
type Store struct {
	mu        sync.RWMutex
	leads     map[string]*outreach.Lead
	leadIndex map[leadKey]string
	campaigns map[string]*outreach.Campaign
	steps     map[string]*outreach.SequenceStep
	events    map[string]*outreach.EmailEvent
}

var _ outreach.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		leads:     make(map[string]*outreach.Lead),
		leadIndex: make(map[leadKey]string),
		campaigns: make(map[string]*outreach.Campaign),
		steps:     make(map[string]*outreach.SequenceStep),
		events:    make(map[string]*outreach.EmailEvent),
	}
}

func copyLead(l *outreach.Lead) *outreach.Lead {
	c := *l
	if l.LastContactedAt != nil {
		t := *l.LastContactedAt
		c.LastContactedAt = &t
	}
	if l.LastRepliedAt != nil {
		t := *l.LastRepliedAt
		c.LastRepliedAt = &t
	}
	return &c
}

func copyCampaign(c *outreach.Campaign) *outreach.Campaign {
	out := *c
	out.LeadIDs = slices.Clone(c.LeadIDs)
	return &out
}

func copyEvent(e *outreach.EmailEvent) *outreach.EmailEvent {
	out := *e
	out.Payload = maps.Clone(e.Payload)
	return &out
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, outreach.ErrNotFound)
}

func (s *Store) UpsertLead(_ context.Context, email, ownerID string, fields outreach.LeadFields, now time.Time) (*outreach.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := leadKey{email: email, owner: ownerID}
	if id, ok := s.leadIndex[key]; ok {
		lead := s.leads[id]
		fields.Apply(lead)
		lead.UpdatedAt = now
		return copyLead(lead), nil
	}

	lead := &outreach.Lead{
		ID:        outreach.NewID(),
		OwnerID:   ownerID,
		Email:     email,
		Status:    outreach.LeadNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields.Apply(lead)

	s.leads[lead.ID] = lead
	s.leadIndex[key] = lead.ID
	return copyLead(lead), nil
}

func (s *Store) GetLead(_ context.Context, id string) (*outreach.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, notFound("lead", id)
	}
	return copyLead(lead), nil
}

func (s *Store) FindLead(_ context.Context, email, ownerID string) (*outreach.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.leadIndex[leadKey{email: email, owner: ownerID}]
	if !ok {
		return nil, notFound("lead", email)
	}
	return copyLead(s.leads[id]), nil
}

func (s *Store) FindLeadsByEmail(_ context.Context, email string) ([]*outreach.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*outreach.Lead
	for _, lead := range s.leads {
		if lead.Email == email {
			out = append(out, copyLead(lead))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateLead replaces the stored lead's profile. Status and contact times
// are kept from the stored record. Moving it onto an (email, owner) pair
// held by another lead is a uniqueness violation.
func (s *Store) UpdateLead(_ context.Context, lead *outreach.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leads[lead.ID]
	if !ok {
		return notFound("lead", lead.ID)
	}

	oldKey := leadKey{email: current.Email, owner: current.OwnerID}
	newKey := leadKey{email: lead.Email, owner: lead.OwnerID}
	if newKey != oldKey {
		if other, taken := s.leadIndex[newKey]; taken && other != lead.ID {
			return fmt.Errorf("lead %s: %w", lead.Email, outreach.ErrDuplicate)
		}
		delete(s.leadIndex, oldKey)
		s.leadIndex[newKey] = lead.ID
	}

	next := copyLead(lead)
	next.Status = current.Status
	next.LastContactedAt = current.LastContactedAt
	next.LastRepliedAt = current.LastRepliedAt
	s.leads[lead.ID] = next
	return nil
}

func (s *Store) SetLeadStatus(_ context.Context, id string, status outreach.LeadStatus, now time.Time) (*outreach.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, notFound("lead", id)
	}
	lead.Status = status
	lead.UpdatedAt = now
	return copyLead(lead), nil
}

func (s *Store) MarkLeadContacted(_ context.Context, id string, at, now time.Time) (*outreach.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, notFound("lead", id)
	}
	if lead.Status == outreach.LeadNew {
		lead.Status = outreach.LeadContacted
	}
	lead.LastContactedAt = &at
	lead.UpdatedAt = now
	return copyLead(lead), nil
}

func (s *Store) MarkLeadReplied(_ context.Context, id string, at, now time.Time) (*outreach.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, false, notFound("lead", id)
	}
	if lead.Status != outreach.LeadNew && lead.Status != outreach.LeadContacted {
		return copyLead(lead), false, nil
	}
	lead.Status = outreach.LeadReplied
	lead.LastRepliedAt = &at
	lead.UpdatedAt = now
	return copyLead(lead), true, nil
}

func (s *Store) ListLeads(_ context.Context, ownerID string, limit int) ([]*outreach.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*outreach.Lead
	for _, lead := range s.leads {
		if lead.OwnerID == ownerID {
			out = append(out, copyLead(lead))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteLead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return notFound("lead", id)
	}
	delete(s.leadIndex, leadKey{email: lead.Email, owner: lead.OwnerID})
	delete(s.leads, id)
	for _, c := range s.campaigns {
		c.LeadIDs = slices.DeleteFunc(c.LeadIDs, func(v string) bool { return v == id })
	}
	for eid, e := range s.events {
		if e.LeadID == id {
			delete(s.events, eid)
		}
	}
	return nil
}

func (s *Store) CreateCampaign(_ context.Context, c *outreach.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[c.ID]; ok {
		return fmt.Errorf("campaign %s: %w", c.ID, outreach.ErrDuplicate)
	}
	s.campaigns[c.ID] = copyCampaign(c)
	return nil
}

func (s *Store) GetCampaign(_ context.Context, id string) (*outreach.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, notFound("campaign", id)
	}
	return copyCampaign(c), nil
}

func (s *Store) UpdateCampaign(_ context.Context, c *outreach.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.campaigns[c.ID]
	if !ok {
		return notFound("campaign", c.ID)
	}
	updated := copyCampaign(c)
	// Lead membership is managed through AddCampaignLead.
	updated.LeadIDs = current.LeadIDs
	s.campaigns[c.ID] = updated
	return nil
}

func (s *Store) ListCampaigns(_ context.Context, ownerID string, limit int) ([]*outreach.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*outreach.Campaign
	for _, c := range s.campaigns {
		if c.OwnerID == ownerID {
			out = append(out, copyCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AddCampaignLead(_ context.Context, campaignID, leadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return notFound("campaign", campaignID)
	}
	if _, ok := s.leads[leadID]; !ok {
		return notFound("lead", leadID)
	}
	if !slices.Contains(c.LeadIDs, leadID) {
		c.LeadIDs = append(c.LeadIDs, leadID)
	}
	return nil
}

func (s *Store) CreateStep(_ context.Context, step *outreach.SequenceStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[step.CampaignID]; !ok {
		return notFound("campaign", step.CampaignID)
	}
	c := *step
	s.steps[step.ID] = &c
	return nil
}

func (s *Store) GetStep(_ context.Context, id string) (*outreach.SequenceStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	step, ok := s.steps[id]
	if !ok {
		return nil, notFound("sequence step", id)
	}
	c := *step
	return &c, nil
}

func (s *Store) ListSteps(_ context.Context, campaignID string) ([]*outreach.SequenceStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*outreach.SequenceStep
	for _, step := range s.steps {
		if step.CampaignID == campaignID {
			c := *step
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DayOffset != out[j].DayOffset {
			return out[i].DayOffset < out[j].DayOffset
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) AppendEvent(_ context.Context, e *outreach.EmailEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("event %s: %w", e.ID, outreach.ErrDuplicate)
	}
	s.events[e.ID] = copyEvent(e)
	return nil
}

func (s *Store) LatestCampaignEvent(_ context.Context, leadID string, at time.Time) (*outreach.EmailEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *outreach.EmailEvent
	for _, e := range s.events {
		if e.LeadID != leadID || e.CampaignID == "" || e.OccurredAt.After(at) {
			continue
		}
		if latest == nil || e.OccurredAt.After(latest.OccurredAt) ||
			(e.OccurredAt.Equal(latest.OccurredAt) && e.ID > latest.ID) {
			latest = e
		}
	}
	if latest == nil {
		return nil, notFound("event for lead", leadID)
	}
	return copyEvent(latest), nil
}

func (s *Store) EventsBetween(_ context.Context, t outreach.EventType, from, to time.Time) ([]*outreach.EmailEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*outreach.EmailEvent
	for _, e := range s.events {
		if e.Type != t || e.OccurredAt.Before(from) || e.OccurredAt.After(to) {
			continue
		}
		out = append(out, copyEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *Store) HasProviderEvent(_ context.Context, leadID string, t outreach.EventType, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.LeadID == leadID && e.Type == t && e.ProviderMessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListEvents(_ context.Context, leadID string) ([]*outreach.EmailEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*outreach.EmailEvent
	for _, e := range s.events {
		if e.LeadID == leadID {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (s *Store) RescheduleEvent(_ context.Context, id string, occurredAt time.Time, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return notFound("event", id)
	}
	if e.Type != outreach.EventFollowUpDue {
		return fmt.Errorf("event %s is %s, only %s events can be rescheduled", id, e.Type, outreach.EventFollowUpDue)
	}
	e.OccurredAt = occurredAt
	e.Payload = maps.Clone(payload)
	return nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return notFound("event", id)
	}
	delete(s.events, id)
	return nil
}
