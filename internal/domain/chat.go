package domain

import "time"

// ChatRoomType distinguishes direct and group rooms.
type ChatRoomType string

const (
	ChatRoomDirect ChatRoomType = "direct"
	ChatRoomGroup  ChatRoomType = "group"
)

// ChatRoom is a generic conversation container. Ticket-scoped conversations
// live in ticket_comments instead and reach the hub under the ticket:<id>
// room name.
type ChatRoom struct {
	ID            string
	Name          string
	Type          ChatRoomType
	CreatedBy     *string
	LastMessage   *string
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

// ChatMessage is one message in a generic room.
type ChatMessage struct {
	ID        string
	RoomID    string
	UserID    string
	Message   string
	IsRead    bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

// TicketComment is a ticket-scoped message. Internal comments are visible to
// staff only.
type TicketComment struct {
	ID         string
	TicketID   string
	UserID     string
	Content    string
	IsInternal bool
	CreatedAt  time.Time
}
