package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pitchpilot/outreach/internal/outreach"
)

const leadColumns = `id, owner_id, email, coalesce(name, ''), coalesce(role, ''), coalesce(company, ''),
	coalesce(linkedin_url, ''), coalesce(jd_snapshot, ''), coalesce(personalization_notes, ''),
	status, last_contacted_at, last_replied_at, created_at, updated_at`

func scanLead(row pgx.Row) (*outreach.Lead, error) {
	var l outreach.Lead
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Email, &l.Name, &l.Role, &l.Company,
		&l.LinkedInURL, &l.JDSnapshot, &l.PersonalizationNotes,
		&l.Status, &l.LastContactedAt, &l.LastRepliedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func collectLeads(rows pgx.Rows) ([]*outreach.Lead, error) {
	defer rows.Close()

	var leads []*outreach.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// UpsertLead relies on the (email, owner_id) constraint: a concurrent insert
// of the same pair turns into a merge of the supplied (non-NULL) columns.
func (s *Store) UpsertLead(ctx context.Context, email, ownerID string, fields outreach.LeadFields, now time.Time) (*outreach.Lead, error) {
	query := `
		INSERT INTO leads (id, owner_id, email, name, role, company, linkedin_url, jd_snapshot, personalization_notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'new', $10, $10)
		ON CONFLICT (email, owner_id) DO UPDATE SET
			name                  = COALESCE(EXCLUDED.name, leads.name),
			role                  = COALESCE(EXCLUDED.role, leads.role),
			company               = COALESCE(EXCLUDED.company, leads.company),
			linkedin_url          = COALESCE(EXCLUDED.linkedin_url, leads.linkedin_url),
			jd_snapshot           = COALESCE(EXCLUDED.jd_snapshot, leads.jd_snapshot),
			personalization_notes = COALESCE(EXCLUDED.personalization_notes, leads.personalization_notes),
			updated_at            = EXCLUDED.updated_at
		RETURNING ` + leadColumns

	lead, err := scanLead(s.pool.QueryRow(ctx, query,
		outreach.NewID(), ownerID, email,
		fields.Name, fields.Role, fields.Company,
		fields.LinkedInURL, fields.JDSnapshot, fields.PersonalizationNotes,
		now,
	))
	if err != nil {
		return nil, wrap("upsert lead", "lead", email, err)
	}
	return lead, nil
}

func (s *Store) GetLead(ctx context.Context, id string) (*outreach.Lead, error) {
	lead, err := scanLead(s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get lead", "lead", id, err)
	}
	return lead, nil
}

func (s *Store) FindLead(ctx context.Context, email, ownerID string) (*outreach.Lead, error) {
	lead, err := scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE email = $1 AND owner_id = $2`, email, ownerID))
	if err != nil {
		return nil, wrap("find lead", "lead", email, err)
	}
	return lead, nil
}

func (s *Store) FindLeadsByEmail(ctx context.Context, email string) ([]*outreach.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE email = $1 ORDER BY created_at`, email)
	if err != nil {
		return nil, wrap("find leads by email", "lead", email, err)
	}
	return collectLeads(rows)
}

// UpdateLead writes profile columns only. Status and contact times move
// through the targeted statements below so a stale copy cannot roll them back.
func (s *Store) UpdateLead(ctx context.Context, lead *outreach.Lead) error {
	query := `
		UPDATE leads SET
			email = $2, name = $3, role = $4, company = $5, linkedin_url = $6,
			jd_snapshot = $7, personalization_notes = $8, updated_at = $9
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		lead.ID, lead.Email, lead.Name, lead.Role, lead.Company, lead.LinkedInURL,
		lead.JDSnapshot, lead.PersonalizationNotes, lead.UpdatedAt,
	)
	if err != nil {
		return wrap("update lead", "lead", lead.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("lead", lead.ID)
	}
	return nil
}

func (s *Store) SetLeadStatus(ctx context.Context, id string, status outreach.LeadStatus, now time.Time) (*outreach.Lead, error) {
	lead, err := scanLead(s.pool.QueryRow(ctx,
		`UPDATE leads SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+leadColumns,
		id, status, now))
	if err != nil {
		return nil, wrap("set lead status", "lead", id, err)
	}
	return lead, nil
}

func (s *Store) MarkLeadContacted(ctx context.Context, id string, at, now time.Time) (*outreach.Lead, error) {
	query := `
		UPDATE leads SET
			status = CASE WHEN status = 'new' THEN 'contacted' ELSE status END,
			last_contacted_at = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + leadColumns

	lead, err := scanLead(s.pool.QueryRow(ctx, query, id, at, now))
	if err != nil {
		return nil, wrap("mark lead contacted", "lead", id, err)
	}
	return lead, nil
}

// MarkLeadReplied only matches rows still in new or contacted. No match
// means the lead is missing or already further along; GetLead tells which.
func (s *Store) MarkLeadReplied(ctx context.Context, id string, at, now time.Time) (*outreach.Lead, bool, error) {
	query := `
		UPDATE leads SET status = 'replied', last_replied_at = $2, updated_at = $3
		WHERE id = $1 AND status IN ('new', 'contacted')
		RETURNING ` + leadColumns

	lead, err := scanLead(s.pool.QueryRow(ctx, query, id, at, now))
	if err == nil {
		return lead, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, wrap("mark lead replied", "lead", id, err)
	}

	lead, err = s.GetLead(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return lead, false, nil
}

func (s *Store) ListLeads(ctx context.Context, ownerID string, limit int) ([]*outreach.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE owner_id = $1 ORDER BY updated_at DESC LIMIT $2`, ownerID, limitArg(limit))
	if err != nil {
		return nil, wrap("list leads", "lead", ownerID, err)
	}
	return collectLeads(rows)
}

func (s *Store) DeleteLead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return wrap("delete lead", "lead", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("lead", id)
	}
	return nil
}
