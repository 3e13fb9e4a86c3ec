package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// NotificationRepository manages persisted notification records.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteRead(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (user_id, title, message, type, related_ticket_id,
            phone_number, wa_message_id, wa_sent_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		n.UserID,
		n.Title,
		n.Message,
		n.Type,
		n.RelatedTicketID,
		n.PhoneNumber,
		n.WAMessageID,
		n.WASentAt,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, user_id, title, message, type, related_ticket_id,
               phone_number, wa_message_id, wa_sent_at, is_read, read_at, created_at
        FROM notifications WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *notificationRepository) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	const query = `
        SELECT id, user_id, title, message, type, related_ticket_id,
               phone_number, wa_message_id, wa_sent_at, is_read, read_at, created_at
        FROM notifications WHERE user_id=$1 AND is_read=FALSE ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read=FALSE`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	const query = `
        UPDATE notifications SET is_read=TRUE, read_at=NOW()
        WHERE id=$1
        RETURNING id, user_id, title, message, type, related_ticket_id,
                  phone_number, wa_message_id, wa_sent_at, is_read, read_at, created_at`
	var n domain.Notification
	if err := scanNotification(r.pool.QueryRow(ctx, query, id), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const query = `
        UPDATE notifications SET is_read=TRUE, read_at=NOW()
        WHERE user_id=$1 AND is_read=FALSE`
	cmd, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) DeleteRead(ctx context.Context, userID string) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id=$1 AND is_read=TRUE`, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanNotification(row pgx.Row, n *domain.Notification) error {
	return row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Message,
		&n.Type,
		&n.RelatedTicketID,
		&n.PhoneNumber,
		&n.WAMessageID,
		&n.WASentAt,
		&n.IsRead,
		&n.ReadAt,
		&n.CreatedAt,
	)
}

func scanNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
