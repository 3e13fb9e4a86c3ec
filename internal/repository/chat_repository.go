package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// ChatRepository manages generic chat rooms and their messages.
type ChatRepository interface {
	CreateRoom(ctx context.Context, room *domain.ChatRoom) error
	GetRoom(ctx context.Context, id string) (*domain.ChatRoom, error)
	ListRooms(ctx context.Context) ([]domain.ChatRoom, error)
	ListRoomsByUser(ctx context.Context, userID string) ([]domain.ChatRoom, error)
	AddParticipant(ctx context.Context, roomID, userID string) error
	CreateMessage(ctx context.Context, msg *domain.ChatMessage) error
	ListMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)
	// UpdateRoomLastMessage refreshes the room's last-message summary.
	UpdateRoomLastMessage(ctx context.Context, roomID, message string, at time.Time) error
	// MarkMessagesRead marks all messages in the room not authored by userID
	// as read and returns the number of rows touched.
	MarkMessagesRead(ctx context.Context, roomID, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type chatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository instantiates repository.
func NewChatRepository(pool *pgxpool.Pool) ChatRepository {
	return &chatRepository{pool: pool}
}

func (r *chatRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	const query = `
        INSERT INTO chat_rooms (name, type, created_by)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, room.Name, room.Type, room.CreatedBy).
		Scan(&room.ID, &room.CreatedAt)
}

func (r *chatRepository) GetRoom(ctx context.Context, id string) (*domain.ChatRoom, error) {
	const query = `
        SELECT id, name, type, created_by, last_message, last_message_at, created_at
        FROM chat_rooms WHERE id=$1`
	var room domain.ChatRoom
	if err := scanChatRoom(r.pool.QueryRow(ctx, query, id), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *chatRepository) ListRooms(ctx context.Context) ([]domain.ChatRoom, error) {
	const query = `
        SELECT id, name, type, created_by, last_message, last_message_at, created_at
        FROM chat_rooms ORDER BY last_message_at DESC NULLS LAST`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChatRooms(rows)
}

func (r *chatRepository) ListRoomsByUser(ctx context.Context, userID string) ([]domain.ChatRoom, error) {
	const query = `
        SELECT cr.id, cr.name, cr.type, cr.created_by, cr.last_message, cr.last_message_at, cr.created_at
        FROM chat_rooms cr
        JOIN chat_participants cp ON cp.room_id = cr.id
        WHERE cp.user_id=$1
        ORDER BY cr.last_message_at DESC NULLS LAST`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChatRooms(rows)
}

func (r *chatRepository) AddParticipant(ctx context.Context, roomID, userID string) error {
	const query = `
        INSERT INTO chat_participants (room_id, user_id)
        VALUES ($1,$2) ON CONFLICT (room_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, roomID, userID)
	return err
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	const query = `
        INSERT INTO chat_messages (room_id, user_id, message, is_read)
        VALUES ($1,$2,$3,FALSE)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, msg.RoomID, msg.UserID, msg.Message).
		Scan(&msg.ID, &msg.CreatedAt)
}

func (r *chatRepository) ListMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, room_id, user_id, message, is_read, read_at, created_at
        FROM chat_messages WHERE room_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Message,
			&msg.IsRead, &msg.ReadAt, &msg.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	// Returned oldest-first for display.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, rows.Err()
}

func (r *chatRepository) UpdateRoomLastMessage(ctx context.Context, roomID, message string, at time.Time) error {
	const query = `UPDATE chat_rooms SET last_message=$1, last_message_at=$2 WHERE id=$3`
	_, err := r.pool.Exec(ctx, query, message, at, roomID)
	return err
}

func (r *chatRepository) MarkMessagesRead(ctx context.Context, roomID, userID string) (int64, error) {
	const query = `
        UPDATE chat_messages SET is_read=TRUE, read_at=NOW()
        WHERE room_id=$1 AND user_id <> $2 AND is_read=FALSE`
	cmd, err := r.pool.Exec(ctx, query, roomID, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *chatRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM chat_messages cm
        JOIN chat_participants cp ON cp.room_id = cm.room_id AND cp.user_id=$1
        WHERE cm.user_id <> $1 AND cm.is_read=FALSE`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanChatRoom(row pgx.Row, room *domain.ChatRoom) error {
	return row.Scan(
		&room.ID,
		&room.Name,
		&room.Type,
		&room.CreatedBy,
		&room.LastMessage,
		&room.LastMessageAt,
		&room.CreatedAt,
	)
}

func scanChatRooms(rows pgx.Rows) ([]domain.ChatRoom, error) {
	var result []domain.ChatRoom
	for rows.Next() {
		var room domain.ChatRoom
		if err := scanChatRoom(rows, &room); err != nil {
			return nil, err
		}
		result = append(result, room)
	}
	return result, rows.Err()
}
