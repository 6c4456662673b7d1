package outreach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/logger"
)

const defaultLeadListLimit = 100

// Registry owns lead identity and status.
type Registry struct {
	leads  LeadStore
	logger *zap.Logger
	now    func() time.Time
}

func NewRegistry(leads LeadStore, log *zap.Logger) *Registry {
	return &Registry{
		leads:  leads,
		logger: logger.Component(log, "lead_registry"),
		now:    time.Now,
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Upsert creates the (email, ownerID) lead or merges fields into it.
// Losing a creation race is resolved by retrying as an update; only a record
// that cannot be attributed to ownerID yields ErrConflict.
func (r *Registry) Upsert(ctx context.Context, email, ownerID string, fields LeadFields) (*Lead, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, required("email")
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, required("owner")
	}

	lead, err := r.leads.UpsertLead(ctx, email, ownerID, fields, r.now())
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return nil, fmt.Errorf("upsert lead: %w", err)
	}

	r.logger.Warn("lead creation collided, retrying as update",
		zap.String("email", email),
		zap.String("owner_id", ownerID),
		zap.Error(err),
	)

	existing, err := r.leads.FindLead(ctx, email, ownerID)
	if err == nil {
		return r.merge(ctx, existing, fields)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find lead after duplicate: %w", err)
	}

	candidates, err := r.leads.FindLeadsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find leads by email: %w", err)
	}
	for _, candidate := range candidates {
		if candidate.OwnerID == ownerID {
			return r.merge(ctx, candidate, fields)
		}
	}

	return nil, fmt.Errorf("lead %s: %w", email, ErrConflict)
}

func (r *Registry) merge(ctx context.Context, lead *Lead, fields LeadFields) (*Lead, error) {
	fields.Apply(lead)
	lead.UpdatedAt = r.now()
	if err := r.leads.UpdateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}
	return lead, nil
}

// Get returns the lead if it belongs to ownerID.
func (r *Registry) Get(ctx context.Context, id, ownerID string) (*Lead, error) {
	if strings.TrimSpace(id) == "" {
		return nil, required("lead id")
	}
	lead, err := r.leads.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.OwnerID != ownerID {
		return nil, notFound("lead", id)
	}
	return lead, nil
}

// FindByEmail looks a lead up by normalized address within ownerID.
func (r *Registry) FindByEmail(ctx context.Context, email, ownerID string) (*Lead, error) {
	return r.leads.FindLead(ctx, NormalizeEmail(email), ownerID)
}

func (r *Registry) List(ctx context.Context, ownerID string, limit int) ([]*Lead, error) {
	if limit <= 0 {
		limit = defaultLeadListLimit
	}
	return r.leads.ListLeads(ctx, ownerID, limit)
}

func (r *Registry) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := r.Get(ctx, id, ownerID); err != nil {
		return err
	}
	return r.leads.DeleteLead(ctx, id)
}

// SetStatus is the manual path used for qualification and closing.
func (r *Registry) SetStatus(ctx context.Context, id, ownerID string, status LeadStatus) (*Lead, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if _, err := r.Get(ctx, id, ownerID); err != nil {
		return nil, err
	}
	lead, err := r.leads.SetLeadStatus(ctx, id, status, r.now())
	if err != nil {
		return nil, fmt.Errorf("update lead status: %w", err)
	}
	return lead, nil
}

// MarkContacted records a successful send. Status only moves forward.
// The transition is applied to the stored row, so a reply recorded after
// lead was loaded survives; lead is refreshed from the result.
func (r *Registry) MarkContacted(ctx context.Context, lead *Lead, at time.Time) error {
	stored, err := r.leads.MarkLeadContacted(ctx, lead.ID, at, r.now())
	if err != nil {
		return err
	}
	*lead = *stored
	return nil
}

// MarkReplied records a detected reply on a non-terminal lead.
// It reports whether the lead changed.
func (r *Registry) MarkReplied(ctx context.Context, lead *Lead, at time.Time) (bool, error) {
	stored, changed, err := r.leads.MarkLeadReplied(ctx, lead.ID, at, r.now())
	if err != nil {
		return false, err
	}
	*lead = *stored
	return changed, nil
}
