package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// CreateRoomRequest payload.
type CreateRoomRequest struct {
	Name         string              `json:"name"`
	Type         domain.ChatRoomType `json:"type"`
	Participants []string            `json:"participants"`
}

// SendChatMessageRequest payload.
type SendChatMessageRequest struct {
	Message string `json:"message"`
}

// CreateCommentRequest payload for ticket comments.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

// ChatRoomResponse summary.
type ChatRoomResponse struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Type          domain.ChatRoomType `json:"type"`
	LastMessage   *string             `json:"last_message"`
	LastMessageAt *time.Time          `json:"last_message_at"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ChatMessageResponse is one room message.
type ChatMessageResponse struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"room_id"`
	UserID    string     `json:"user_id"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// TicketCommentResponse is one ticket-thread entry.
type TicketCommentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}
