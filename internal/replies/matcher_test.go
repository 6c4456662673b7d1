package replies

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pitchpilot/outreach/internal/filtering"
	"github.com/pitchpilot/outreach/internal/mailer"
	"github.com/pitchpilot/outreach/internal/outreach"
	"github.com/pitchpilot/outreach/internal/store/memory"
)

type sliceInbox struct {
	items []inboxItem
	pos   int
}

type inboxItem struct {
	msg *mailer.InboxMessage
	err error
}

func (s *sliceInbox) Len() int { return len(s.items) }

func (s *sliceInbox) Next(context.Context) (*mailer.InboxMessage, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item.msg, item.err
}

type stubReader struct {
	items []inboxItem
	err   error
	calls int
}

func (r *stubReader) ListInbox(context.Context, string, mailer.Credential) (mailer.Inbox, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	// Every call is a fresh snapshot of the same mailbox.
	return &sliceInbox{items: r.items}, nil
}

type fixture struct {
	store    *memory.Store
	registry *outreach.Registry
	reader   *stubReader
	matcher  *Matcher
}

func newFixture(t *testing.T, items ...inboxItem) *fixture {
	t.Helper()
	store := memory.New()
	registry := outreach.NewRegistry(store, zap.NewNop())
	reader := &stubReader{items: items}
	return &fixture{
		store:    store,
		registry: registry,
		reader:   reader,
		matcher:  NewMatcher(reader, registry, store, Options{Heuristic: filtering.DefaultHeuristic()}, zap.NewNop()),
	}
}

func (f *fixture) contactedLead(t *testing.T, email, name string) *outreach.Lead {
	t.Helper()
	ctx := context.Background()
	lead, err := f.registry.Upsert(ctx, email, "owner-1", outreach.LeadFields{Name: &name})
	if err != nil {
		t.Fatalf("upsert lead: %v", err)
	}
	if err := f.registry.MarkContacted(ctx, lead, time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatalf("mark contacted: %v", err)
	}
	return lead
}

func countEvents(t *testing.T, s *memory.Store, leadID string, typ outreach.EventType) []*outreach.EmailEvent {
	t.Helper()
	events, err := s.ListEvents(context.Background(), leadID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var out []*outreach.EmailEvent
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestSyncMarksReplyFromTrackedLead(t *testing.T) {
	f := newFixture(t, inboxItem{msg: &mailer.InboxMessage{
		ID:           "m1",
		ThreadID:     "th-1",
		From:         "Jane Doe <jane@co.com>",
		Subject:      "Re: Application",
		Snippet:      "Thanks, let's talk on Monday",
		InternalDate: "1714557600000",
	}})
	lead := f.contactedLead(t, "jane@co.com", "Jane Doe")

	sent := &outreach.EmailEvent{
		ID: outreach.NewEventID(time.Now()), LeadID: lead.ID, CampaignID: "camp-1",
		Type: outreach.EventSent, OccurredAt: time.UnixMilli(1714557600000).Add(-time.Hour),
	}
	if err := f.store.AppendEvent(context.Background(), sent); err != nil {
		t.Fatalf("append: %v", err)
	}

	res, err := f.matcher.Sync(context.Background(), mailer.Credential{}, "owner-1")
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if res.Checked != 1 || res.Matched != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.UpdatedLeads) != 1 || res.UpdatedLeads[0].Email != "jane@co.com" || res.UpdatedLeads[0].Name != "Jane Doe" {
		t.Fatalf("unexpected updated leads: %+v", res.UpdatedLeads)
	}

	stored, err := f.store.GetLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	if stored.Status != outreach.LeadReplied {
		t.Fatalf("expected replied status, got %s", stored.Status)
	}
	if stored.LastRepliedAt == nil || !stored.LastRepliedAt.Equal(time.UnixMilli(1714557600000)) {
		t.Fatalf("unexpected last replied at: %v", stored.LastRepliedAt)
	}

	replied := countEvents(t, f.store, lead.ID, outreach.EventReplied)
	if len(replied) != 1 {
		t.Fatalf("expected one replied event, got %d", len(replied))
	}
	if replied[0].CampaignID != "camp-1" || replied[0].ProviderMessageID != "m1" || replied[0].Subject != "Re: Application" {
		t.Fatalf("unexpected replied event: %+v", replied[0])
	}
}

func TestSyncAttributesReplyToPrecedingCampaign(t *testing.T) {
	received := time.UnixMilli(1714557600000)
	f := newFixture(t, inboxItem{msg: &mailer.InboxMessage{
		ID: "m1", ThreadID: "th-1", From: "jane@co.com", Subject: "Re: Application",
		InternalDate: "1714557600000",
	}})
	lead := f.contactedLead(t, "jane@co.com", "Jane")

	ctx := context.Background()
	for _, e := range []*outreach.EmailEvent{
		{LeadID: lead.ID, CampaignID: "camp-1", Type: outreach.EventSent, OccurredAt: received.Add(-2 * time.Hour)},
		{LeadID: lead.ID, Type: outreach.EventSent, OccurredAt: received.Add(-time.Hour)},
		{LeadID: lead.ID, CampaignID: "camp-2", Type: outreach.EventFollowUpDue, OccurredAt: received.Add(72 * time.Hour)},
	} {
		e.ID = outreach.NewEventID(e.OccurredAt)
		if err := f.store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if _, err := f.matcher.Sync(ctx, mailer.Credential{}, "owner-1"); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}

	replied := countEvents(t, f.store, lead.ID, outreach.EventReplied)
	if len(replied) != 1 {
		t.Fatalf("expected one replied event, got %d", len(replied))
	}
	if replied[0].CampaignID != "camp-1" {
		t.Fatalf("reply should belong to the campaign contacted before it, got %q", replied[0].CampaignID)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t, inboxItem{msg: &mailer.InboxMessage{
		ID: "m1", ThreadID: "th-1", From: "jane@co.com", Subject: "RE: hello",
	}})
	lead := f.contactedLead(t, "jane@co.com", "Jane")

	for run := 0; run < 2; run++ {
		res, err := f.matcher.Sync(context.Background(), mailer.Credential{}, "owner-1")
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		wantMatched := 1
		if run == 1 {
			wantMatched = 0
		}
		if res.Matched != wantMatched || res.Checked != 1 {
			t.Fatalf("run %d: unexpected result %+v", run, res)
		}
	}

	if n := len(countEvents(t, f.store, lead.ID, outreach.EventReplied)); n != 1 {
		t.Fatalf("expected exactly one replied event, got %d", n)
	}
}

type failingRegistry struct {
	Registry
	fail bool
}

func (r *failingRegistry) MarkReplied(ctx context.Context, lead *outreach.Lead, at time.Time) (bool, error) {
	if r.fail {
		return false, errors.New("write failed")
	}
	return r.Registry.MarkReplied(ctx, lead, at)
}

func TestSyncRecoversEventWithoutStatus(t *testing.T) {
	f := newFixture(t, inboxItem{msg: &mailer.InboxMessage{ID: "m1", ThreadID: "th", From: "jane@co.com", Subject: "Re: x"}})
	lead := f.contactedLead(t, "jane@co.com", "Jane")

	broken := &failingRegistry{Registry: f.registry, fail: true}
	f.matcher.registry = broken

	res, err := f.matcher.Sync(context.Background(), mailer.Credential{}, "owner-1")
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if res.Matched != 0 {
		t.Fatalf("nothing should be matched when the status write fails: %+v", res)
	}

	broken.fail = false
	res, err = f.matcher.Sync(context.Background(), mailer.Credential{}, "owner-1")
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if res.Matched != 1 {
		t.Fatalf("expected lead to be marked on retry: %+v", res)
	}
	if n := len(countEvents(t, f.store, lead.ID, outreach.EventReplied)); n != 1 {
		t.Fatalf("expected one replied event after retry, got %d", n)
	}
}

func TestSyncSkipsBadMessages(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	f := newFixture(t,
		inboxItem{err: &mailer.MessageError{ID: "broken", Err: errors.New("timeout")}},
		inboxItem{msg: &mailer.InboxMessage{ID: "m2", From: "Stranger <who@else.com>", Subject: "Re: hi", ThreadID: "t"}},
		inboxItem{msg: &mailer.InboxMessage{ID: "m3", From: "", Subject: "Re: hi"}},
		inboxItem{msg: &mailer.InboxMessage{ID: "m4", From: "jane@co.com", Subject: "", ThreadID: "t4"}},
	)
	f.matcher = NewMatcher(f.reader, f.registry, f.store, Options{Heuristic: filtering.DefaultHeuristic()}, zap.New(core))
	lead := f.contactedLead(t, "jane@co.com", "Jane")

	res, err := f.matcher.Sync(context.Background(), mailer.Credential{}, "owner-1")
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if res.Checked != 4 || res.Matched != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if logs.FilterMessage("failed to fetch message").Len() != 1 {
		t.Fatalf("expected the broken message to be logged")
	}

	replied := countEvents(t, f.store, lead.ID, outreach.EventReplied)
	if len(replied) != 1 || replied[0].Subject != "No subject" || replied[0].CampaignID != "" {
		t.Fatalf("unexpected replied events: %+v", replied)
	}
}

func TestSyncPropagatesListFailure(t *testing.T) {
	f := newFixture(t)
	f.reader.err = mailer.ErrNotConfigured

	if _, err := f.matcher.Sync(context.Background(), mailer.Credential{}, "owner-1"); !errors.Is(err, mailer.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
