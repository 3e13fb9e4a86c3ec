package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// SLARepository reads per-OPD SLA policy rows.
type SLARepository interface {
	// GetPolicy returns the resolution window for (opd, priority), or
	// pgx.ErrNoRows when no row is configured.
	GetPolicy(ctx context.Context, opdID string, priority domain.PriorityCategory) (*domain.SLAPolicy, error)
}

type slaRepository struct {
	pool *pgxpool.Pool
}

// NewSLARepository instantiates repository.
func NewSLARepository(pool *pgxpool.Pool) SLARepository {
	return &slaRepository{pool: pool}
}

func (r *slaRepository) GetPolicy(ctx context.Context, opdID string, priority domain.PriorityCategory) (*domain.SLAPolicy, error) {
	const query = `
        SELECT id, opd_id, priority, resolution_time
        FROM sla_policies WHERE opd_id=$1 AND priority=$2`
	var policy domain.SLAPolicy
	if err := r.pool.QueryRow(ctx, query, opdID, priority).Scan(
		&policy.ID,
		&policy.OPDID,
		&policy.Priority,
		&policy.ResolutionTime,
	); err != nil {
		return nil, err
	}
	return &policy, nil
}
