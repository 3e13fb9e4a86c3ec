// Package chat implements the realtime hub: websocket clients, named rooms
// with presence, and ticket-scoped rooms gated by role.
package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hub maintains the set of active clients and routes frames between rooms.
// All room and presence state is owned by the Run goroutine's lock.
type Hub struct {
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	// online counts connections per user id; a user with two tabs stays
	// online until both disconnect.
	online map[string]int

	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		online:     make(map[string]int),
		logger:     logger,
	}
}

// Run processes client registration until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.online[client.userID]++
	first := h.online[client.userID] == 1
	h.mu.Unlock()

	if first {
		h.broadcastOnline()
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	// The send channel is never closed; broadcasts from other goroutines may
	// still hold a reference. Closing the connection stops both pumps.
	client.closeConn()

	left := make([]string, 0, len(client.rooms))
	for room := range client.rooms {
		h.dropFromRoom(room, client)
		left = append(left, room)
	}

	h.online[client.userID]--
	last := h.online[client.userID] <= 0
	if last {
		delete(h.online, client.userID)
	}
	h.mu.Unlock()

	// A dropped connection leaves its rooms like an explicit room:leave would.
	for _, room := range left {
		h.BroadcastToRoomExcept(room, client, EventUserLeft, PresencePayload{
			UserID:    client.userID,
			Username:  client.username,
			Room:      room,
			Timestamp: time.Now(),
		})
	}

	if last {
		h.broadcastOnline()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.closeConn()
		delete(h.clients, client)
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.online = make(map[string]int)
}

// JoinRoom adds the client to a room and announces the arrival.
func (h *Hub) JoinRoom(room string, client *Client) {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
	client.rooms[room] = true
	h.mu.Unlock()

	h.BroadcastToRoomExcept(room, client, EventUserJoined, PresencePayload{
		UserID:    client.userID,
		Username:  client.username,
		Room:      room,
		Timestamp: time.Now(),
	})
}

// LeaveRoom removes the client from a room and announces the departure.
func (h *Hub) LeaveRoom(room string, client *Client) {
	h.mu.Lock()
	h.dropFromRoom(room, client)
	h.mu.Unlock()

	h.BroadcastToRoomExcept(room, client, EventUserLeft, PresencePayload{
		UserID:    client.userID,
		Username:  client.username,
		Room:      room,
		Timestamp: time.Now(),
	})
}

// dropFromRoom requires h.mu held.
func (h *Hub) dropFromRoom(room string, client *Client) {
	delete(client.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// BroadcastToRoom sends an event to every client joined to the room. It
// satisfies the service layer's broadcaster contract.
func (h *Hub) BroadcastToRoom(room, event string, payload any) {
	h.BroadcastToRoomExcept(room, nil, event, payload)
}

// BroadcastToRoomExcept sends to every room member but skip. A client whose
// buffer is full is dropped; a stalled reader must not block the room.
func (h *Hub) BroadcastToRoomExcept(room string, skip *Client, event string, payload any) {
	frame := mustEnvelope(event, payload)

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for member := range h.rooms[room] {
		if member != skip {
			members = append(members, member)
		}
	}
	h.mu.RUnlock()

	for _, member := range members {
		select {
		case member.send <- frame:
		default:
			h.logger.Warn("dropping slow chat client",
				zap.String("user_id", member.userID),
				zap.String("room", room))
			// Async so a broadcast issued from the Run goroutine itself
			// cannot block on its own unregister channel.
			go func(m *Client) { h.unregister <- m }(member)
		}
	}
}

// InRoom reports whether the client has joined the room.
func (h *Hub) InRoom(room string, client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[room][client]
}

// OnlineUsers returns the ids of currently connected users.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.online))
	for userID := range h.online {
		users = append(users, userID)
	}
	return users
}

// broadcastOnline pushes the full online roster to every client.
func (h *Hub) broadcastOnline() {
	frame := mustEnvelope(EventUsersOnline, h.OnlineUsers())

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- frame:
		default:
		}
	}
}
