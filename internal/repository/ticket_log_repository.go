package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// TicketLogRepository appends and lists ticket activity entries.
type TicketLogRepository interface {
	Create(ctx context.Context, entry *domain.TicketLog) error
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.TicketLog, error)
}

type ticketLogRepository struct {
	pool *pgxpool.Pool
}

// NewTicketLogRepository instantiates repository.
func NewTicketLogRepository(pool *pgxpool.Pool) TicketLogRepository {
	return &ticketLogRepository{pool: pool}
}

func (r *ticketLogRepository) Create(ctx context.Context, entry *domain.TicketLog) error {
	const query = `
        INSERT INTO ticket_logs (ticket_id, user_id, action, description)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.UserID,
		entry.Action,
		entry.Description,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ticketLogRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.TicketLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, ticket_id, user_id, action, description, created_at
        FROM ticket_logs WHERE ticket_id=$1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketLog
	for rows.Next() {
		var entry domain.TicketLog
		if err := rows.Scan(&entry.ID, &entry.TicketID, &entry.UserID,
			&entry.Action, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
