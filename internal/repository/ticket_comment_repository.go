package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// TicketCommentRepository manages ticket-scoped comments.
type TicketCommentRepository interface {
	Create(ctx context.Context, comment *domain.TicketComment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketComment, error)
	ListPublic(ctx context.Context, ticketID string) ([]domain.TicketComment, error)
	ListInternal(ctx context.Context, ticketID string) ([]domain.TicketComment, error)
	Delete(ctx context.Context, id string) error
}

type ticketCommentRepository struct {
	pool *pgxpool.Pool
}

// NewTicketCommentRepository instantiates repository.
func NewTicketCommentRepository(pool *pgxpool.Pool) TicketCommentRepository {
	return &ticketCommentRepository{pool: pool}
}

func (r *ticketCommentRepository) Create(ctx context.Context, comment *domain.TicketComment) error {
	const query = `
        INSERT INTO ticket_comments (ticket_id, user_id, content, is_internal)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		comment.TicketID,
		comment.UserID,
		comment.Content,
		comment.IsInternal,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *ticketCommentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	return r.list(ctx, `SELECT id, ticket_id, user_id, content, is_internal, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at ASC`, ticketID)
}

func (r *ticketCommentRepository) ListPublic(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	return r.list(ctx, `SELECT id, ticket_id, user_id, content, is_internal, created_at
        FROM ticket_comments WHERE ticket_id=$1 AND is_internal=FALSE ORDER BY created_at ASC`, ticketID)
}

func (r *ticketCommentRepository) ListInternal(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	return r.list(ctx, `SELECT id, ticket_id, user_id, content, is_internal, created_at
        FROM ticket_comments WHERE ticket_id=$1 AND is_internal=TRUE ORDER BY created_at ASC`, ticketID)
}

func (r *ticketCommentRepository) list(ctx context.Context, query, ticketID string) ([]domain.TicketComment, error) {
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketComment
	for rows.Next() {
		var comment domain.TicketComment
		if err := rows.Scan(&comment.ID, &comment.TicketID, &comment.UserID,
			&comment.Content, &comment.IsInternal, &comment.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}

func (r *ticketCommentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM ticket_comments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
