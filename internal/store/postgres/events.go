package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pitchpilot/outreach/internal/outreach"
)

const eventColumns = `id, lead_id, coalesce(campaign_id, ''), coalesce(sequence_step_id, ''), type,
	subject, snippet, provider_message_id, payload, occurred_at, created_at`

func scanEvent(row pgx.Row) (*outreach.EmailEvent, error) {
	var e outreach.EmailEvent
	err := row.Scan(
		&e.ID, &e.LeadID, &e.CampaignID, &e.SequenceStepID, &e.Type,
		&e.Subject, &e.Snippet, &e.ProviderMessageID, &e.Payload, &e.OccurredAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]*outreach.EmailEvent, error) {
	defer rows.Close()

	var out []*outreach.EmailEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AppendEvent(ctx context.Context, e *outreach.EmailEvent) error {
	query := `
		INSERT INTO email_events (id, lead_id, campaign_id, sequence_step_id, type, subject, snippet, provider_message_id, payload, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.LeadID, nullable(e.CampaignID), nullable(e.SequenceStepID), e.Type,
		e.Subject, e.Snippet, e.ProviderMessageID, e.Payload, e.OccurredAt, e.CreatedAt,
	)
	if err != nil {
		return wrap("append event", "event", e.ID, err)
	}
	return nil
}

func (s *Store) LatestCampaignEvent(ctx context.Context, leadID string, at time.Time) (*outreach.EmailEvent, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM email_events
		WHERE lead_id = $1 AND campaign_id IS NOT NULL AND occurred_at <= $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT 1
	`, leadID, at))
	if err != nil {
		return nil, wrap("latest campaign event", "campaign event for lead", leadID, err)
	}
	return e, nil
}

func (s *Store) EventsBetween(ctx context.Context, t outreach.EventType, from, to time.Time) ([]*outreach.EmailEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM email_events
		WHERE type = $1 AND occurred_at >= $2 AND occurred_at <= $3
		ORDER BY occurred_at
	`, t, from, to)
	if err != nil {
		return nil, wrap("events between", "event", string(t), err)
	}
	return collectEvents(rows)
}

func (s *Store) HasProviderEvent(ctx context.Context, leadID string, t outreach.EventType, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM email_events
			WHERE lead_id = $1 AND type = $2 AND provider_message_id = $3
		)
	`, leadID, t, messageID).Scan(&exists)
	if err != nil {
		return false, wrap("check provider event", "event", messageID, err)
	}
	return exists, nil
}

func (s *Store) ListEvents(ctx context.Context, leadID string) ([]*outreach.EmailEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM email_events
		WHERE lead_id = $1
		ORDER BY occurred_at, id
	`, leadID)
	if err != nil {
		return nil, wrap("list events", "event for lead", leadID, err)
	}
	return collectEvents(rows)
}

// RescheduleEvent is the only update the ledger allows, and only on
// followup_due entries.
func (s *Store) RescheduleEvent(ctx context.Context, id string, occurredAt time.Time, payload map[string]any) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE email_events SET occurred_at = $2, payload = $3
		WHERE id = $1 AND type = $4
	`, id, occurredAt, payload, outreach.EventFollowUpDue)
	if err != nil {
		return wrap("reschedule event", "event", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("follow-up event", id)
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM email_events WHERE id = $1`, id)
	if err != nil {
		return wrap("delete event", "event", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("event", id)
	}
	return nil
}
