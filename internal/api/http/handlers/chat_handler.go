package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// ChatHandler manages the REST side of chat rooms and ticket comments.
type ChatHandler struct {
	service *service.ChatService
}

// NewChatHandler constructs handler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{service: chatService}
}

// CreateRoom POST /chat/rooms.
func (h *ChatHandler) CreateRoom(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	roomType := req.Type
	if roomType == "" {
		roomType = domain.ChatRoomGroup
	}

	room, err := h.service.CreateRoom(c.Context(), principal.User, req.Name, roomType, req.Participants)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": chatRoomResponse(room)})
}

// ListRooms GET /chat/rooms.
func (h *ChatHandler) ListRooms(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	rooms, err := h.service.ListRooms(c.Context(), principal.User)
	if err != nil {
		return err
	}
	items := make([]dto.ChatRoomResponse, 0, len(rooms))
	for i := range rooms {
		items = append(items, chatRoomResponse(&rooms[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetRoom GET /chat/rooms/:id.
func (h *ChatHandler) GetRoom(c *fiber.Ctx) error {
	room, err := h.service.GetRoom(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": chatRoomResponse(room)})
}

// ListMessages GET /chat/rooms/:id/messages.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	messages, err := h.service.ListMessages(c.Context(), c.Params("id"), parseInt(c.Query("limit"), 50))
	if err != nil {
		return err
	}
	items := make([]dto.ChatMessageResponse, 0, len(messages))
	for i := range messages {
		items = append(items, chatMessageResponse(&messages[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// SendMessage POST /chat/rooms/:id/messages.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.SendChatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	msg, err := h.service.SendMessage(c.Context(), principal.User, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": chatMessageResponse(msg)})
}

// MarkRead PATCH /chat/rooms/:id/read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	updated, err := h.service.MarkMessagesRead(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"updated": updated}})
}

// UnreadCount GET /chat/unread-count.
func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	count, err := h.service.UnreadCount(c.Context(), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"count": count}})
}

// AddComment POST /tickets/:id/comments.
func (h *ChatHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	comment, err := h.service.AddTicketComment(c.Context(), principal.User, c.Params("id"), req.Content, req.IsInternal)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketCommentResponse(comment)})
}

// DeleteComment DELETE /tickets/comments/:id.
func (h *ChatHandler) DeleteComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.service.DeleteTicketComment(c.Context(), principal.User, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListComments GET /tickets/:id/comments.
func (h *ChatHandler) ListComments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	comments, err := h.service.ListTicketComments(c.Context(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketCommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, ticketCommentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func chatRoomResponse(room *domain.ChatRoom) dto.ChatRoomResponse {
	return dto.ChatRoomResponse{
		ID:            room.ID,
		Name:          room.Name,
		Type:          room.Type,
		LastMessage:   room.LastMessage,
		LastMessageAt: room.LastMessageAt,
		CreatedAt:     room.CreatedAt,
	}
}

func chatMessageResponse(msg *domain.ChatMessage) dto.ChatMessageResponse {
	return dto.ChatMessageResponse{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Message:   msg.Message,
		IsRead:    msg.IsRead,
		ReadAt:    msg.ReadAt,
		CreatedAt: msg.CreatedAt,
	}
}

func ticketCommentResponse(comment *domain.TicketComment) dto.TicketCommentResponse {
	return dto.TicketCommentResponse{
		ID:         comment.ID,
		TicketID:   comment.TicketID,
		UserID:     comment.UserID,
		Content:    comment.Content,
		IsInternal: comment.IsInternal,
		CreatedAt:  comment.CreatedAt,
	}
}
