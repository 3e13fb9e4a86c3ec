package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
	sendBuffer = 64
)

const claimsKey = "chat_claims"

// ticketRoomPrefix namespaces ticket-scoped rooms.
const ticketRoomPrefix = "ticket:"

// Client is one websocket connection bound to an authenticated user.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	rooms    map[string]bool
	userID   string
	username string
	role     domain.Role
	opdID    *string
}

// Handler upgrades HTTP requests into hub clients and drives the protocol.
type Handler struct {
	hub     *Hub
	chats   *service.ChatService
	tickets repository.TicketRepository
	users   repository.UserRepository
	auth    *auth.AuthMiddleware
	cfg     config.ChatConfig
	logger  *zap.Logger
}

// NewHandler constructs the websocket handler.
func NewHandler(hub *Hub, chats *service.ChatService, tickets repository.TicketRepository, users repository.UserRepository, authMw *auth.AuthMiddleware, cfg config.ChatConfig, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, chats: chats, tickets: tickets, users: users, auth: authMw, cfg: cfg, logger: logger}
}

// UpgradeGate authenticates the upgrade request and rejects plain HTTP.
// Browsers cannot set headers on websocket dials, so a token query parameter
// is accepted as well.
func (h *Handler) UpgradeGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		header := c.Get("Authorization")
		if header == "" {
			if token := c.Query("token"); token != "" {
				header = "Bearer " + token
			}
		}
		claims, err := h.auth.ParseBearer(header)
		if err != nil {
			return err
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// Serve returns the websocket endpoint handler.
func (h *Handler) Serve() fiber.Handler {
	var origins []string
	for _, origin := range strings.Split(h.cfg.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	handler := func(conn *websocket.Conn) {
		claims, ok := conn.Locals(claimsKey).(*auth.Claims)
		if !ok {
			_ = conn.Close()
			return
		}
		user, err := h.users.GetByID(context.Background(), claims.UserID)
		if err != nil || !user.IsActive {
			h.logger.Warn("rejecting chat connection",
				zap.String("user_id", claims.UserID), zap.Error(err))
			_ = conn.Close()
			return
		}

		client := &Client{
			hub:      h.hub,
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
			rooms:    make(map[string]bool),
			userID:   claims.UserID,
			username: user.Username,
			role:     claims.Role,
			opdID:    claims.OPDID,
		}
		h.hub.register <- client

		go client.writePump()
		h.readPump(client)
	}
	return websocket.New(handler, websocket.Config{Origins: origins})
}

// readPump consumes frames until the connection drops. Runs on the fiber
// connection goroutine; the final unregister tears down the write pump.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.unregister <- client
		_ = client.conn.Close()
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			client.sendError("malformed frame")
			continue
		}
		if err := h.dispatch(client, envelope); err != nil {
			client.sendError(err.Error())
		}
	}
}

func (h *Handler) dispatch(client *Client, envelope Envelope) error {
	ctx := context.Background()
	actor := client.actor()

	switch envelope.Event {
	case EventIdentify:
		// Identity is established at upgrade; reply with the roster.
		client.enqueue(mustEnvelope(EventUsersOnline, h.hub.OnlineUsers()))
		return nil

	case EventRoomJoin:
		var payload RoomPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.Room == "" {
			return errors.New("room required")
		}
		if err := h.authorizeRoom(ctx, client, payload.Room); err != nil {
			return err
		}
		h.hub.JoinRoom(payload.Room, client)
		// Entering a generic room implies catching up on its messages.
		if !strings.HasPrefix(payload.Room, ticketRoomPrefix) {
			if _, err := h.chats.MarkMessagesRead(ctx, client.userID, payload.Room); err != nil {
				h.logger.Error("failed to mark room read on join",
					zap.String("room", payload.Room), zap.Error(err))
			}
		}
		return nil

	case EventRoomLeave:
		var payload RoomPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.Room == "" {
			return errors.New("room required")
		}
		h.hub.LeaveRoom(payload.Room, client)
		return nil

	case EventMessageSend:
		var payload SendMessagePayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.Room == "" {
			return errors.New("room and message required")
		}
		if !h.hub.InRoom(payload.Room, client) {
			return errors.New("join the room before sending")
		}
		if strings.HasPrefix(payload.Room, ticketRoomPrefix) {
			ticketID := strings.TrimPrefix(payload.Room, ticketRoomPrefix)
			_, err := h.chats.AddTicketComment(ctx, actor, ticketID, payload.Message, false)
			return err
		}
		_, err := h.chats.SendMessage(ctx, actor, payload.Room, payload.Message)
		return err

	case EventTypingStart, EventTypingStop:
		var payload RoomPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.Room == "" {
			return errors.New("room required")
		}
		h.hub.BroadcastToRoomExcept(payload.Room, client, EventTypingUser, TypingPayload{
			UserID:   client.userID,
			Username: client.username,
			IsTyping: envelope.Event == EventTypingStart,
		})
		return nil

	case EventMessageRead:
		var payload RoomPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.Room == "" {
			return errors.New("room required")
		}
		if strings.HasPrefix(payload.Room, ticketRoomPrefix) {
			return nil
		}
		_, err := h.chats.MarkMessagesRead(ctx, client.userID, payload.Room)
		return err

	default:
		return errors.New("unknown event: " + envelope.Event)
	}
}

// authorizeRoom enforces the ticket room capability matrix. Generic rooms are
// open to any authenticated user.
func (h *Handler) authorizeRoom(ctx context.Context, client *Client, room string) error {
	if !strings.HasPrefix(room, ticketRoomPrefix) {
		return nil
	}
	ticketID := strings.TrimPrefix(room, ticketRoomPrefix)
	ticket, err := h.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return errors.New("ticket not found")
	}
	if !CanAccessTicketRoom(client.userID, client.role, client.opdID, ticket) {
		return errors.New("access to ticket room denied")
	}
	return nil
}

func (c *Client) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) actor() *domain.User {
	return &domain.User{ID: c.userID, Username: c.username, Role: c.role, OPDID: c.opdID}
}

func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}

func (c *Client) sendError(message string) {
	c.enqueue(mustEnvelope(EventMessageError, ErrorPayload{Message: message}))
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
