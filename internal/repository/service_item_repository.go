package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// ServiceItemRepository reads catalog entries for service requests.
type ServiceItemRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ServiceItem, error)
}

type serviceItemRepository struct {
	pool *pgxpool.Pool
}

// NewServiceItemRepository instantiates repository.
func NewServiceItemRepository(pool *pgxpool.Pool) ServiceItemRepository {
	return &serviceItemRepository{pool: pool}
}

func (r *serviceItemRepository) GetByID(ctx context.Context, id string) (*domain.ServiceItem, error) {
	const query = `
        SELECT id, catalog_id, name, description, approval_required, approval_levels, is_active
        FROM service_items WHERE id=$1`
	var item domain.ServiceItem
	var levels []string
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.CatalogID,
		&item.Name,
		&item.Description,
		&item.ApprovalRequired,
		&levels,
		&item.IsActive,
	); err != nil {
		return nil, err
	}
	item.ApprovalLevels = make([]domain.Role, 0, len(levels))
	for _, level := range levels {
		item.ApprovalLevels = append(item.ApprovalLevels, domain.Role(level))
	}
	return &item, nil
}
