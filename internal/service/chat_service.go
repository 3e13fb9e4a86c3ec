package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// RoomBroadcaster pushes an event to everyone joined to a realtime room. The
// websocket hub implements it; a nil broadcaster disables realtime fan-out.
type RoomBroadcaster interface {
	BroadcastToRoom(room, event string, payload any)
}

// ChatMessagePayload is the message:receive wire shape. Both generic room
// messages and ticket comments are broadcast in this form.
type ChatMessagePayload struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReadReceiptPayload is the messages:read wire shape.
type ReadReceiptPayload struct {
	RoomID    string    `json:"roomId"`
	ReadBy    string    `json:"readBy"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatService backs the REST side of chat: room management, message history
// and ticket comments. Live delivery goes through the broadcaster.
type ChatService struct {
	rooms       repository.ChatRepository
	comments    repository.TicketCommentRepository
	tickets     repository.TicketRepository
	logs        repository.TicketLogRepository
	users       repository.UserRepository
	broadcaster RoomBroadcaster
	logger      *zap.Logger
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	ChatRepo    repository.ChatRepository
	CommentRepo repository.TicketCommentRepository
	TicketRepo  repository.TicketRepository
	LogRepo     repository.TicketLogRepository
	UserRepo    repository.UserRepository
	Broadcaster RoomBroadcaster
	Logger      *zap.Logger
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	return &ChatService{
		rooms:       deps.ChatRepo,
		comments:    deps.CommentRepo,
		tickets:     deps.TicketRepo,
		logs:        deps.LogRepo,
		users:       deps.UserRepo,
		broadcaster: deps.Broadcaster,
		logger:      deps.Logger,
	}
}

// CreateRoom opens a room and enrolls the creator plus any listed participants.
func (s *ChatService) CreateRoom(ctx context.Context, creator *domain.User, name string, roomType domain.ChatRoomType, participantIDs []string) (*domain.ChatRoom, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("room name required", nil)
	}
	room := &domain.ChatRoom{
		Name:      strings.TrimSpace(name),
		Type:      roomType,
		CreatedBy: &creator.ID,
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	if err := s.rooms.AddParticipant(ctx, room.ID, creator.ID); err != nil {
		return nil, err
	}
	for _, participantID := range participantIDs {
		if participantID == creator.ID {
			continue
		}
		if err := s.rooms.AddParticipant(ctx, room.ID, participantID); err != nil {
			return nil, err
		}
	}
	return room, nil
}

// ListRooms returns the rooms the user participates in. City admins see every
// room for oversight.
func (s *ChatService) ListRooms(ctx context.Context, requester *domain.User) ([]domain.ChatRoom, error) {
	switch requester.Role {
	case domain.RoleCityAdmin, domain.RoleSuperAdmin:
		return s.rooms.ListRooms(ctx)
	default:
		return s.rooms.ListRoomsByUser(ctx, requester.ID)
	}
}

// GetRoom fetches one room.
func (s *ChatService) GetRoom(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("chat room", map[string]any{"id": roomID})
		}
		return nil, err
	}
	return room, nil
}

// ListMessages returns room history, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("chat room", map[string]any{"id": roomID})
		}
		return nil, err
	}
	return s.rooms.ListMessages(ctx, roomID, limit)
}

// SendMessage persists a message, refreshes the room summary and fans it out
// to connected participants.
func (s *ChatService) SendMessage(ctx context.Context, sender *domain.User, roomID, text string) (*domain.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("message required", nil)
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("chat room", map[string]any{"id": roomID})
		}
		return nil, err
	}

	msg := &domain.ChatMessage{
		RoomID:  roomID,
		UserID:  sender.ID,
		Message: strings.TrimSpace(text),
	}
	if err := s.rooms.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.rooms.UpdateRoomLastMessage(ctx, roomID, msg.Message, msg.CreatedAt); err != nil {
		s.logger.Error("failed to update room summary",
			zap.String("room_id", roomID), zap.Error(err))
	}
	s.broadcast(roomID, "message:receive", ChatMessagePayload{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Username:  s.displayName(ctx, sender),
		Message:   msg.Message,
		IsRead:    msg.IsRead,
		CreatedAt: msg.CreatedAt,
	})
	return msg, nil
}

// MarkMessagesRead marks all messages from other participants as read and
// notifies the room. The receipt goes out even when nothing was unread, so a
// join always produces exactly one messages:read event.
func (s *ChatService) MarkMessagesRead(ctx context.Context, userID, roomID string) (int64, error) {
	updated, err := s.rooms.MarkMessagesRead(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	s.broadcast(roomID, "messages:read", ReadReceiptPayload{
		RoomID:    roomID,
		ReadBy:    userID,
		Timestamp: time.Now(),
	})
	return updated, nil
}

// UnreadCount returns the user's unread message count across rooms.
func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.rooms.UnreadCount(ctx, userID)
}

// AddTicketComment attaches a comment to a ticket and pushes it into the
// ticket's realtime room. Internal comments are staff-only.
func (s *ChatService) AddTicketComment(ctx context.Context, author *domain.User, ticketID, content string, internal bool) (*domain.TicketComment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("comment content required", nil)
	}
	if internal && isReporterRole(author.Role) {
		return nil, apperrors.NewForbidden("internal comments are staff-only")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}

	comment := &domain.TicketComment{
		TicketID:   ticket.ID,
		UserID:     author.ID,
		Content:    strings.TrimSpace(content),
		IsInternal: internal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	if s.logs != nil {
		entry := &domain.TicketLog{TicketID: ticket.ID, UserID: &author.ID,
			Action: "comment", Description: "Comment added"}
		if err := s.logs.Create(ctx, entry); err != nil {
			s.logger.Error("failed to append ticket log",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	s.broadcast("ticket:"+ticket.ID, "message:receive", ChatMessagePayload{
		ID:        comment.ID,
		RoomID:    "ticket:" + ticket.ID,
		UserID:    comment.UserID,
		Username:  s.displayName(ctx, author),
		Message:   comment.Content,
		CreatedAt: comment.CreatedAt,
	})
	return comment, nil
}

// DeleteTicketComment removes a comment. Staff only; reporters cannot retract
// what is already part of the ticket record.
func (s *ChatService) DeleteTicketComment(ctx context.Context, requester *domain.User, commentID string) error {
	if isReporterRole(requester.Role) {
		return apperrors.NewForbidden("comment deletion is staff-only")
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("comment", map[string]any{"id": commentID})
		}
		return err
	}
	return nil
}

// ListTicketComments returns a ticket's comment thread. Reporters never see
// internal comments.
func (s *ChatService) ListTicketComments(ctx context.Context, requester *domain.User, ticketID string) ([]domain.TicketComment, error) {
	if isReporterRole(requester.Role) {
		return s.comments.ListPublic(ctx, ticketID)
	}
	return s.comments.ListByTicket(ctx, ticketID)
}

func (s *ChatService) broadcast(room, event string, payload any) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastToRoom(room, event, payload)
}

// displayName resolves the username for wire payloads. Websocket actors carry
// only token claims, so a missing username falls back to a repo lookup.
func (s *ChatService) displayName(ctx context.Context, user *domain.User) string {
	if user.Username != "" {
		return user.Username
	}
	if s.users == nil {
		return ""
	}
	loaded, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		s.logger.Warn("failed to resolve username",
			zap.String("user_id", user.ID), zap.Error(err))
		return ""
	}
	return loaded.Username
}
