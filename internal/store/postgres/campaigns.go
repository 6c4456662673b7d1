package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pitchpilot/outreach/internal/outreach"
)

const campaignColumns = `c.id, c.owner_id, c.owner_email, c.title, c.job_description, c.pitch, c.tone,
	c.target_role, c.status, c.created_at, c.updated_at,
	coalesce((SELECT array_agg(cl.lead_id ORDER BY cl.added_at) FROM campaign_leads cl WHERE cl.campaign_id = c.id), '{}')`

func scanCampaign(row pgx.Row) (*outreach.Campaign, error) {
	var c outreach.Campaign
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.OwnerEmail, &c.Title, &c.JobDescription, &c.Pitch, &c.Tone,
		&c.TargetRole, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.LeadIDs,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCampaign(ctx context.Context, c *outreach.Campaign) error {
	query := `
		INSERT INTO campaigns (id, owner_id, owner_email, title, job_description, pitch, tone, target_role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		c.ID, c.OwnerID, c.OwnerEmail, c.Title, c.JobDescription, c.Pitch, c.Tone,
		c.TargetRole, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return wrap("create campaign", "campaign", c.ID, err)
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*outreach.Campaign, error) {
	c, err := scanCampaign(s.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns c WHERE c.id = $1`, id))
	if err != nil {
		return nil, wrap("get campaign", "campaign", id, err)
	}
	return c, nil
}

// UpdateCampaign writes the campaign's own columns. Lead membership is
// changed only through AddCampaignLead.
func (s *Store) UpdateCampaign(ctx context.Context, c *outreach.Campaign) error {
	query := `
		UPDATE campaigns SET
			title = $2, job_description = $3, pitch = $4, tone = $5,
			target_role = $6, status = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		c.ID, c.Title, c.JobDescription, c.Pitch, c.Tone, c.TargetRole, c.Status, c.UpdatedAt,
	)
	if err != nil {
		return wrap("update campaign", "campaign", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("campaign", c.ID)
	}
	return nil
}

func (s *Store) ListCampaigns(ctx context.Context, ownerID string, limit int) ([]*outreach.Campaign, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns c WHERE c.owner_id = $1 ORDER BY c.updated_at DESC LIMIT $2`,
		ownerID, limitArg(limit))
	if err != nil {
		return nil, wrap("list campaigns", "campaign", ownerID, err)
	}
	defer rows.Close()

	var out []*outreach.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, wrap("scan campaign", "campaign", ownerID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AddCampaignLead(ctx context.Context, campaignID, leadID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO campaign_leads (campaign_id, lead_id)
		VALUES ($1, $2)
		ON CONFLICT (campaign_id, lead_id) DO NOTHING
	`, campaignID, leadID)
	if err != nil {
		return wrap("add campaign lead", "campaign", campaignID, err)
	}
	return nil
}

const stepColumns = `id, campaign_id, day_offset, channel, subject_template, body_template, tone, followup_type, created_at`

func scanStep(row pgx.Row) (*outreach.SequenceStep, error) {
	var st outreach.SequenceStep
	err := row.Scan(
		&st.ID, &st.CampaignID, &st.DayOffset, &st.Channel, &st.SubjectTemplate,
		&st.BodyTemplate, &st.Tone, &st.FollowUpType, &st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) CreateStep(ctx context.Context, st *outreach.SequenceStep) error {
	query := `
		INSERT INTO sequence_steps (` + stepColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		st.ID, st.CampaignID, st.DayOffset, st.Channel, st.SubjectTemplate,
		st.BodyTemplate, st.Tone, st.FollowUpType, st.CreatedAt,
	)
	if err != nil {
		return wrap("create sequence step", "sequence step", st.ID, err)
	}
	return nil
}

func (s *Store) GetStep(ctx context.Context, id string) (*outreach.SequenceStep, error) {
	st, err := scanStep(s.pool.QueryRow(ctx, `SELECT `+stepColumns+` FROM sequence_steps WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get sequence step", "sequence step", id, err)
	}
	return st, nil
}

func (s *Store) ListSteps(ctx context.Context, campaignID string) ([]*outreach.SequenceStep, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+stepColumns+` FROM sequence_steps WHERE campaign_id = $1 ORDER BY day_offset, created_at`, campaignID)
	if err != nil {
		return nil, wrap("list sequence steps", "campaign", campaignID, err)
	}
	defer rows.Close()

	var out []*outreach.SequenceStep
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, wrap("scan sequence step", "campaign", campaignID, err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
