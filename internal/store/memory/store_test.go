package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pitchpilot/outreach/internal/outreach"
)

func strPtr(s string) *string { return &s }

func TestUpsertLeadMergesSuppliedFields(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{Role: strPtr("R1"), Name: strPtr("Ann")}, now)
	require.NoError(t, err)
	require.Equal(t, outreach.LeadNew, first.Status)

	second, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{Role: strPtr("R2")}, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "R2", second.Role)
	require.Equal(t, "Ann", second.Name)

	leads, err := s.ListLeads(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, leads, 1)

	other, err := s.UpsertLead(ctx, "a@x.com", "u2", outreach.LeadFields{}, now)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)

	byEmail, err := s.FindLeadsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, byEmail, 2)
}

func TestConcurrentUpsertCreatesOneLead(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 16)
	errs := make([]error, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lead, err := s.UpsertLead(ctx, "race@x.com", "u1", outreach.LeadFields{}, time.Now())
			errs[i] = err
			if err == nil {
				ids[i] = lead.ID
			}
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], id)
	}
}

func TestReadsReturnCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	lead, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{}, time.Now())
	require.NoError(t, err)
	lead.Name = "mutated"

	stored, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	require.Empty(t, stored.Name)
}

func TestUpdateLeadRejectsTakenEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{}, time.Now())
	require.NoError(t, err)
	b, err := s.UpsertLead(ctx, "b@x.com", "u1", outreach.LeadFields{}, time.Now())
	require.NoError(t, err)

	b.Email = "a@x.com"
	require.ErrorIs(t, s.UpdateLead(ctx, b), outreach.ErrDuplicate)

	_, err = s.GetLead(ctx, "missing")
	require.ErrorIs(t, err, outreach.ErrNotFound)
}

func TestStatusTransitionsApplyToStoredLead(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	lead, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{}, now)
	require.NoError(t, err)
	stale := *lead

	replied := now.Add(time.Hour)
	got, changed, err := s.MarkLeadReplied(ctx, lead.ID, replied, replied)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, outreach.LeadReplied, got.Status)

	got, err = s.MarkLeadContacted(ctx, lead.ID, replied.Add(time.Minute), replied)
	require.NoError(t, err)
	require.Equal(t, outreach.LeadReplied, got.Status)
	require.NotNil(t, got.LastContactedAt)

	stale.Role = "CTO"
	require.NoError(t, s.UpdateLead(ctx, &stale))

	stored, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	require.Equal(t, outreach.LeadReplied, stored.Status)
	require.Equal(t, "CTO", stored.Role)
	require.NotNil(t, stored.LastRepliedAt)
	require.True(t, stored.LastRepliedAt.Equal(replied))

	_, changed, err = s.MarkLeadReplied(ctx, lead.ID, replied, replied)
	require.NoError(t, err)
	require.False(t, changed)

	_, err = s.MarkLeadContacted(ctx, "missing", now, now)
	require.ErrorIs(t, err, outreach.ErrNotFound)
}

func TestCampaignLeadsAndSteps(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	lead, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{}, now)
	require.NoError(t, err)

	c := &outreach.Campaign{ID: "c1", OwnerID: "u1", Title: "Go roles", Status: outreach.CampaignDraft}
	require.NoError(t, s.CreateCampaign(ctx, c))
	require.NoError(t, s.AddCampaignLead(ctx, "c1", lead.ID))
	require.NoError(t, s.AddCampaignLead(ctx, "c1", lead.ID))

	got, err := s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, []string{lead.ID}, got.LeadIDs)

	require.NoError(t, s.CreateStep(ctx, &outreach.SequenceStep{ID: "s2", CampaignID: "c1", DayOffset: 7, CreatedAt: now}))
	require.NoError(t, s.CreateStep(ctx, &outreach.SequenceStep{ID: "s1", CampaignID: "c1", DayOffset: 3, CreatedAt: now}))
	require.ErrorIs(t, s.CreateStep(ctx, &outreach.SequenceStep{ID: "s3", CampaignID: "nope"}), outreach.ErrNotFound)

	steps, err := s.ListSteps(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	require.Equal(t, "s1", steps[0].ID)
	require.Equal(t, "s2", steps[1].ID)
}

func TestEventLog(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	events := []*outreach.EmailEvent{
		{ID: "e1", LeadID: "l1", CampaignID: "c1", Type: outreach.EventSent, OccurredAt: now.Add(-time.Hour)},
		{ID: "e2", LeadID: "l1", CampaignID: "c2", Type: outreach.EventFollowUpDue, OccurredAt: now.Add(-5 * time.Minute)},
		{ID: "e3", LeadID: "l1", Type: outreach.EventFollowUpDue, OccurredAt: now},
		{ID: "e4", LeadID: "l2", Type: outreach.EventFollowUpDue, OccurredAt: now.Add(-10 * time.Minute)},
		{ID: "e5", LeadID: "l1", Type: outreach.EventReplied, ProviderMessageID: "m1", OccurredAt: now.Add(-30 * time.Minute)},
	}
	for _, e := range events {
		require.NoError(t, s.AppendEvent(ctx, e))
	}
	require.ErrorIs(t, s.AppendEvent(ctx, events[0]), outreach.ErrDuplicate)

	due, err := s.EventsBetween(ctx, outreach.EventFollowUpDue, now.Add(-5*time.Minute), now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, "e2", due[0].ID)
	require.Equal(t, "e3", due[1].ID)

	latest, err := s.LatestCampaignEvent(ctx, "l1", now)
	require.NoError(t, err)
	require.Equal(t, "e2", latest.ID)

	latest, err = s.LatestCampaignEvent(ctx, "l1", now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "e1", latest.ID)

	_, err = s.LatestCampaignEvent(ctx, "l1", now.Add(-2*time.Hour))
	require.ErrorIs(t, err, outreach.ErrNotFound)
	_, err = s.LatestCampaignEvent(ctx, "nobody", now)
	require.ErrorIs(t, err, outreach.ErrNotFound)

	has, err := s.HasProviderEvent(ctx, "l1", outreach.EventReplied, "m1")
	require.NoError(t, err)
	require.True(t, has)

	has, err = s.HasProviderEvent(ctx, "l1", outreach.EventReplied, "")
	require.NoError(t, err)
	require.False(t, has)

	later := now.Add(time.Hour)
	require.NoError(t, s.RescheduleEvent(ctx, "e2", later, map[string]any{outreach.PayloadAttempts: 1}))
	require.Error(t, s.RescheduleEvent(ctx, "e1", later, nil))

	list, err := s.ListEvents(ctx, "l1")
	require.NoError(t, err)
	require.Equal(t, "e2", list[len(list)-1].ID)
	require.Equal(t, 1, list[len(list)-1].Attempts())

	require.NoError(t, s.DeleteEvent(ctx, "e2"))
	require.ErrorIs(t, s.DeleteEvent(ctx, "e2"), outreach.ErrNotFound)
}

func TestDeleteLeadRemovesItsEvents(t *testing.T) {
	s := New()
	ctx := context.Background()

	lead, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{}, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.AppendEvent(ctx, &outreach.EmailEvent{ID: "e1", LeadID: lead.ID, Type: outreach.EventSent}))

	require.NoError(t, s.DeleteLead(ctx, lead.ID))

	events, err := s.ListEvents(ctx, lead.ID)
	require.NoError(t, err)
	require.Empty(t, events)

	_, err = s.FindLead(ctx, "a@x.com", "u1")
	require.ErrorIs(t, err, outreach.ErrNotFound)
}
