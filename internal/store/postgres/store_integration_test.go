//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pitchpilot/outreach/internal/outreach"
)

func newTestStore(t *testing.T) (context.Context, *Store) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	_, err = s.pool.Exec(ctx, `TRUNCATE email_events, sequence_steps, campaign_leads, campaigns, leads`)
	require.NoError(t, err)

	return ctx, s
}

func strPtr(s string) *string { return &s }

func TestIntegrationMigrateIsIdempotent(t *testing.T) {
	ctx, s := newTestStore(t)
	require.NoError(t, s.Migrate(ctx))
}

func TestIntegrationUpsertLead(t *testing.T) {
	ctx, s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	first, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{Role: strPtr("R1"), Name: strPtr("Ann")}, now)
	require.NoError(t, err)
	require.Equal(t, outreach.LeadNew, first.Status)

	second, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{Role: strPtr("R2")}, now.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "R2", second.Role)
	require.Equal(t, "Ann", second.Name)

	leads, err := s.ListLeads(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, leads, 1)

	b, err := s.UpsertLead(ctx, "b@x.com", "u1", outreach.LeadFields{}, now)
	require.NoError(t, err)
	b.Email = "a@x.com"
	require.ErrorIs(t, s.UpdateLead(ctx, b), outreach.ErrDuplicate)

	_, err = s.GetLead(ctx, "missing")
	require.ErrorIs(t, err, outreach.ErrNotFound)
}

func TestIntegrationLeadTimestamps(t *testing.T) {
	ctx, s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	lead, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{}, now)
	require.NoError(t, err)
	require.Nil(t, lead.LastContactedAt)

	stale := *lead

	got, err := s.MarkLeadContacted(ctx, lead.ID, now, now)
	require.NoError(t, err)
	require.Equal(t, outreach.LeadContacted, got.Status)
	require.NotNil(t, got.LastContactedAt)
	require.True(t, got.LastContactedAt.Equal(now))

	replied := now.Add(time.Minute)
	got, changed, err := s.MarkLeadReplied(ctx, lead.ID, replied, replied)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, outreach.LeadReplied, got.Status)

	// A later send and a profile write from an old copy keep the reply.
	got, err = s.MarkLeadContacted(ctx, lead.ID, replied.Add(time.Minute), replied)
	require.NoError(t, err)
	require.Equal(t, outreach.LeadReplied, got.Status)

	name := "Ann"
	stale.Name = name
	require.NoError(t, s.UpdateLead(ctx, &stale))

	got, err = s.FindLead(ctx, "a@x.com", "u1")
	require.NoError(t, err)
	require.Equal(t, outreach.LeadReplied, got.Status)
	require.Equal(t, name, got.Name)
	require.NotNil(t, got.LastRepliedAt)
	require.True(t, got.LastRepliedAt.Equal(replied))

	_, changed, err = s.MarkLeadReplied(ctx, lead.ID, replied, replied)
	require.NoError(t, err)
	require.False(t, changed)

	_, _, err = s.MarkLeadReplied(ctx, "missing", replied, replied)
	require.ErrorIs(t, err, outreach.ErrNotFound)
}

func TestIntegrationCampaignsAndSteps(t *testing.T) {
	ctx, s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	lead, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{}, now)
	require.NoError(t, err)

	c := &outreach.Campaign{
		ID: outreach.NewID(), OwnerID: "u1", Title: "Go roles", JobDescription: "jd", Pitch: "p",
		Tone: "friendly", TargetRole: "HR", Status: outreach.CampaignDraft, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateCampaign(ctx, c))
	require.NoError(t, s.AddCampaignLead(ctx, c.ID, lead.ID))
	require.NoError(t, s.AddCampaignLead(ctx, c.ID, lead.ID))
	require.ErrorIs(t, s.AddCampaignLead(ctx, c.ID, "missing"), outreach.ErrNotFound)

	got, err := s.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{lead.ID}, got.LeadIDs)

	got.Status = outreach.CampaignActive
	require.NoError(t, s.UpdateCampaign(ctx, got))

	for _, offset := range []int{7, 2} {
		require.NoError(t, s.CreateStep(ctx, &outreach.SequenceStep{
			ID: outreach.NewID(), CampaignID: c.ID, DayOffset: offset, Channel: outreach.ChannelEmail,
			Tone: "friendly", FollowUpType: outreach.FollowUpNudge, CreatedAt: now,
		}))
	}

	steps, err := s.ListSteps(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	require.Equal(t, 2, steps[0].DayOffset)

	list, err := s.ListCampaigns(ctx, "u1", 50)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, outreach.CampaignActive, list[0].Status)
}

func TestIntegrationEventLog(t *testing.T) {
	ctx, s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	lead, err := s.UpsertLead(ctx, "a@x.com", "u1", outreach.LeadFields{}, now)
	require.NoError(t, err)

	stale := &outreach.EmailEvent{ID: outreach.NewEventID(now), LeadID: lead.ID, Type: outreach.EventFollowUpDue, OccurredAt: now.Add(-10 * time.Minute), CreatedAt: now}
	fresh := &outreach.EmailEvent{ID: outreach.NewEventID(now), LeadID: lead.ID, Type: outreach.EventFollowUpDue, OccurredAt: now.Add(-2 * time.Minute), CreatedAt: now}
	reply := &outreach.EmailEvent{ID: outreach.NewEventID(now), LeadID: lead.ID, Type: outreach.EventReplied, ProviderMessageID: "m1", Subject: "Re: hi", OccurredAt: now.Add(-time.Minute), CreatedAt: now}
	for _, e := range []*outreach.EmailEvent{stale, fresh, reply} {
		require.NoError(t, s.AppendEvent(ctx, e))
	}
	require.ErrorIs(t, s.AppendEvent(ctx, reply), outreach.ErrDuplicate)

	due, err := s.EventsBetween(ctx, outreach.EventFollowUpDue, now.Add(-5*time.Minute), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, fresh.ID, due[0].ID)
	require.Empty(t, due[0].CampaignID)

	_, err = s.LatestCampaignEvent(ctx, lead.ID, now)
	require.ErrorIs(t, err, outreach.ErrNotFound)

	has, err := s.HasProviderEvent(ctx, lead.ID, outreach.EventReplied, "m1")
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, s.RescheduleEvent(ctx, fresh.ID, now.Add(time.Minute), map[string]any{outreach.PayloadAttempts: 1}))
	require.ErrorIs(t, s.RescheduleEvent(ctx, reply.ID, now, nil), outreach.ErrNotFound)

	events, err := s.ListEvents(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	last := events[len(events)-1]
	require.Equal(t, fresh.ID, last.ID)
	require.Equal(t, 1, last.Attempts())

	require.NoError(t, s.DeleteEvent(ctx, fresh.ID))
	require.ErrorIs(t, s.DeleteEvent(ctx, fresh.ID), outreach.ErrNotFound)

	c := &outreach.Campaign{
		ID: outreach.NewID(), OwnerID: "u1", Title: "Go roles", JobDescription: "jd", Pitch: "p",
		Tone: "friendly", TargetRole: "HR", Status: outreach.CampaignActive, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateCampaign(ctx, c))
	sent := &outreach.EmailEvent{ID: outreach.NewEventID(now), LeadID: lead.ID, CampaignID: c.ID, Type: outreach.EventSent, OccurredAt: now.Add(-3 * time.Minute), CreatedAt: now}
	future := &outreach.EmailEvent{ID: outreach.NewEventID(now), LeadID: lead.ID, CampaignID: c.ID, Type: outreach.EventFollowUpDue, OccurredAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, s.AppendEvent(ctx, sent))
	require.NoError(t, s.AppendEvent(ctx, future))

	latest, err := s.LatestCampaignEvent(ctx, lead.ID, now)
	require.NoError(t, err)
	require.Equal(t, sent.ID, latest.ID)
}
