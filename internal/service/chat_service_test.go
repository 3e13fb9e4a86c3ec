package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

type fakeChatRepo struct {
	rooms        map[string]*domain.ChatRoom
	participants map[string][]string
	messages     map[string][]domain.ChatMessage
	seq          int
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		rooms:        make(map[string]*domain.ChatRoom),
		participants: make(map[string][]string),
		messages:     make(map[string][]domain.ChatMessage),
	}
}

func (r *fakeChatRepo) CreateRoom(_ context.Context, room *domain.ChatRoom) error {
	r.seq++
	room.ID = fmt.Sprintf("room-%d", r.seq)
	room.CreatedAt = time.Now()
	clone := *room
	r.rooms[room.ID] = &clone
	return nil
}

func (r *fakeChatRepo) GetRoom(_ context.Context, id string) (*domain.ChatRoom, error) {
	room, ok := r.rooms[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *room
	return &clone, nil
}

func (r *fakeChatRepo) ListRooms(context.Context) ([]domain.ChatRoom, error) {
	var result []domain.ChatRoom
	for _, room := range r.rooms {
		result = append(result, *room)
	}
	return result, nil
}

func (r *fakeChatRepo) ListRoomsByUser(_ context.Context, userID string) ([]domain.ChatRoom, error) {
	var result []domain.ChatRoom
	for roomID, members := range r.participants {
		for _, member := range members {
			if member == userID {
				result = append(result, *r.rooms[roomID])
				break
			}
		}
	}
	return result, nil
}

func (r *fakeChatRepo) AddParticipant(_ context.Context, roomID, userID string) error {
	for _, member := range r.participants[roomID] {
		if member == userID {
			return nil
		}
	}
	r.participants[roomID] = append(r.participants[roomID], userID)
	return nil
}

func (r *fakeChatRepo) CreateMessage(_ context.Context, msg *domain.ChatMessage) error {
	r.seq++
	msg.ID = fmt.Sprintf("msg-%d", r.seq)
	msg.CreatedAt = time.Now()
	r.messages[msg.RoomID] = append(r.messages[msg.RoomID], *msg)
	return nil
}

func (r *fakeChatRepo) ListMessages(_ context.Context, roomID string, _ int) ([]domain.ChatMessage, error) {
	return r.messages[roomID], nil
}

func (r *fakeChatRepo) UpdateRoomLastMessage(_ context.Context, roomID, message string, at time.Time) error {
	room, ok := r.rooms[roomID]
	if !ok {
		return pgx.ErrNoRows
	}
	room.LastMessage = &message
	room.LastMessageAt = &at
	return nil
}

func (r *fakeChatRepo) MarkMessagesRead(_ context.Context, roomID, userID string) (int64, error) {
	var count int64
	msgs := r.messages[roomID]
	for i := range msgs {
		if msgs[i].UserID != userID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *fakeChatRepo) UnreadCount(_ context.Context, userID string) (int, error) {
	count := 0
	for roomID, msgs := range r.messages {
		joined := false
		for _, member := range r.participants[roomID] {
			if member == userID {
				joined = true
				break
			}
		}
		if !joined {
			continue
		}
		for _, msg := range msgs {
			if msg.UserID != userID && !msg.IsRead {
				count++
			}
		}
	}
	return count, nil
}

type fakeCommentRepo struct {
	comments []domain.TicketComment
	seq      int
}

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	r.seq++
	comment.ID = fmt.Sprintf("comment-%d", r.seq)
	comment.CreatedAt = time.Now()
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *fakeCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	var result []domain.TicketComment
	for _, comment := range r.comments {
		if comment.TicketID == ticketID {
			result = append(result, comment)
		}
	}
	return result, nil
}

func (r *fakeCommentRepo) ListPublic(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	all, _ := r.ListByTicket(ctx, ticketID)
	var result []domain.TicketComment
	for _, comment := range all {
		if !comment.IsInternal {
			result = append(result, comment)
		}
	}
	return result, nil
}

func (r *fakeCommentRepo) ListInternal(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	all, _ := r.ListByTicket(ctx, ticketID)
	var result []domain.TicketComment
	for _, comment := range all {
		if comment.IsInternal {
			result = append(result, comment)
		}
	}
	return result, nil
}

func (r *fakeCommentRepo) Delete(_ context.Context, id string) error {
	for i := range r.comments {
		if r.comments[i].ID == id {
			r.comments = append(r.comments[:i], r.comments[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type broadcastCall struct {
	Room    string
	Event   string
	Payload any
}

type recordingBroadcaster struct {
	calls []broadcastCall
}

func (b *recordingBroadcaster) BroadcastToRoom(room, event string, payload any) {
	b.calls = append(b.calls, broadcastCall{Room: room, Event: event, Payload: payload})
}

func chatFixture() (*ChatService, *fakeChatRepo, *fakeCommentRepo, *fakeTicketRepo, *recordingBroadcaster) {
	rooms := newFakeChatRepo()
	comments := &fakeCommentRepo{}
	tickets := newFakeTicketRepo()
	broadcaster := &recordingBroadcaster{}

	svc := NewChatService(ChatDependencies{
		ChatRepo:    rooms,
		CommentRepo: comments,
		TicketRepo:  tickets,
		LogRepo:     &fakeLogRepo{},
		Broadcaster: broadcaster,
		Logger:      zap.NewNop(),
	})
	return svc, rooms, comments, tickets, broadcaster
}

func TestCreateRoomEnrollsParticipants(t *testing.T) {
	svc, rooms, _, _, _ := chatFixture()
	creator := &domain.User{ID: "user-1", Role: domain.RoleHelpdesk}

	room, err := svc.CreateRoom(context.Background(), creator, "incident bridge",
		domain.ChatRoomGroup, []string{"user-2", "user-1"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	members := rooms.participants[room.ID]
	if len(members) != 2 {
		t.Fatalf("participants = %v, want creator plus one", members)
	}
}

func TestSendMessageUpdatesRoomAndBroadcasts(t *testing.T) {
	svc, rooms, _, _, broadcaster := chatFixture()
	sender := &domain.User{ID: "user-1", Username: "helpdesk1", Role: domain.RoleHelpdesk}

	room, err := svc.CreateRoom(context.Background(), sender, "ops", domain.ChatRoomGroup, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	msg, err := svc.SendMessage(context.Background(), sender, room.ID, "  hello  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Message != "hello" {
		t.Fatalf("message = %q, want trimmed", msg.Message)
	}

	updated, _ := rooms.GetRoom(context.Background(), room.ID)
	if updated.LastMessage == nil || *updated.LastMessage != "hello" {
		t.Fatal("room summary not refreshed")
	}

	if len(broadcaster.calls) != 1 || broadcaster.calls[0].Event != "message:receive" {
		t.Fatalf("broadcasts = %+v", broadcaster.calls)
	}
	if broadcaster.calls[0].Room != room.ID {
		t.Fatalf("broadcast room = %s, want %s", broadcaster.calls[0].Room, room.ID)
	}
	payload, ok := broadcaster.calls[0].Payload.(ChatMessagePayload)
	if !ok {
		t.Fatalf("payload type = %T", broadcaster.calls[0].Payload)
	}
	if payload.ID != msg.ID || payload.RoomID != room.ID ||
		payload.Username != "helpdesk1" || payload.Message != "hello" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestSendMessageUnknownRoom(t *testing.T) {
	svc, _, _, _, _ := chatFixture()
	sender := &domain.User{ID: "user-1", Role: domain.RoleHelpdesk}

	_, err := svc.SendMessage(context.Background(), sender, "missing", "hello")
	if apperrors.ToDomainError(err).Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestAddTicketCommentBroadcastsToTicketRoom(t *testing.T) {
	svc, _, _, tickets, broadcaster := chatFixture()
	ticket := &domain.Ticket{Title: "printer", Description: "down", OPDID: "opd-1", Status: domain.TicketStatusOpen}
	_ = tickets.Create(context.Background(), ticket)

	author := &domain.User{ID: "staff-1", Username: "staff1", Role: domain.RoleHelpdesk}
	comment, err := svc.AddTicketComment(context.Background(), author, ticket.ID, "checking now", false)
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if comment.IsInternal {
		t.Fatal("comment should be public")
	}
	if len(broadcaster.calls) != 1 || broadcaster.calls[0].Room != "ticket:"+ticket.ID {
		t.Fatalf("broadcasts = %+v", broadcaster.calls)
	}
	payload, ok := broadcaster.calls[0].Payload.(ChatMessagePayload)
	if !ok {
		t.Fatalf("payload type = %T", broadcaster.calls[0].Payload)
	}
	if payload.RoomID != "ticket:"+ticket.ID || payload.Username != "staff1" ||
		payload.Message != "checking now" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestInternalCommentsStaffOnly(t *testing.T) {
	svc, _, _, tickets, _ := chatFixture()
	ticket := &domain.Ticket{Title: "printer", Description: "down", OPDID: "opd-1", Status: domain.TicketStatusOpen}
	_ = tickets.Create(context.Background(), ticket)

	citizen := &domain.User{ID: "cit-1", Role: domain.RoleCitizen}
	_, err := svc.AddTicketComment(context.Background(), citizen, ticket.ID, "secret note", true)
	if apperrors.ToDomainError(err).Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestDeleteTicketComment(t *testing.T) {
	svc, _, comments, tickets, _ := chatFixture()
	ticket := &domain.Ticket{Title: "printer", Description: "down", OPDID: "opd-1", Status: domain.TicketStatusOpen}
	_ = tickets.Create(context.Background(), ticket)

	staff := &domain.User{ID: "staff-1", Role: domain.RoleHelpdesk}
	comment, err := svc.AddTicketComment(context.Background(), staff, ticket.ID, "wrong ticket, ignore", false)
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}

	citizen := &domain.User{ID: "cit-1", Role: domain.RoleCitizen}
	if err := svc.DeleteTicketComment(context.Background(), citizen, comment.ID); apperrors.ToDomainError(err).Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN for reporter delete, got %v", err)
	}

	if err := svc.DeleteTicketComment(context.Background(), staff, comment.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(comments.comments) != 0 {
		t.Fatal("comment should be removed")
	}
	if err := svc.DeleteTicketComment(context.Background(), staff, comment.ID); apperrors.ToDomainError(err).Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for missing comment, got %v", err)
	}
}

func TestListTicketCommentsFiltersInternalForReporters(t *testing.T) {
	svc, _, _, tickets, _ := chatFixture()
	ticket := &domain.Ticket{Title: "printer", Description: "down", OPDID: "opd-1", Status: domain.TicketStatusOpen}
	_ = tickets.Create(context.Background(), ticket)

	staff := &domain.User{ID: "staff-1", Role: domain.RoleHelpdesk}
	if _, err := svc.AddTicketComment(context.Background(), staff, ticket.ID, "public update", false); err != nil {
		t.Fatalf("public comment: %v", err)
	}
	if _, err := svc.AddTicketComment(context.Background(), staff, ticket.ID, "internal diagnosis", true); err != nil {
		t.Fatalf("internal comment: %v", err)
	}

	citizen := &domain.User{ID: "cit-1", Role: domain.RoleCitizen}
	visible, err := svc.ListTicketComments(context.Background(), citizen, ticket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 1 || visible[0].Content != "public update" {
		t.Fatalf("reporter sees %d comments: %+v", len(visible), visible)
	}

	all, err := svc.ListTicketComments(context.Background(), staff, ticket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("staff sees %d comments, want 2", len(all))
	}
}

func TestMarkMessagesReadBroadcastsReceipt(t *testing.T) {
	svc, _, _, _, broadcaster := chatFixture()
	sender := &domain.User{ID: "user-1", Role: domain.RoleHelpdesk}
	reader := &domain.User{ID: "user-2", Role: domain.RoleTechnician}

	room, err := svc.CreateRoom(context.Background(), sender, "ops", domain.ChatRoomGroup, []string{reader.ID})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), sender, room.ID, "ping"); err != nil {
		t.Fatalf("send: %v", err)
	}
	broadcaster.calls = nil

	updated, err := svc.MarkMessagesRead(context.Background(), reader.ID, room.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}
	if len(broadcaster.calls) != 1 || broadcaster.calls[0].Event != "messages:read" {
		t.Fatalf("broadcasts = %+v", broadcaster.calls)
	}
	payload, ok := broadcaster.calls[0].Payload.(ReadReceiptPayload)
	if !ok {
		t.Fatalf("payload type = %T", broadcaster.calls[0].Payload)
	}
	if payload.RoomID != room.ID || payload.ReadBy != reader.ID || payload.Timestamp.IsZero() {
		t.Fatalf("payload = %+v", payload)
	}

	// A join with nothing unread still produces its receipt.
	broadcaster.calls = nil
	updated, err = svc.MarkMessagesRead(context.Background(), reader.ID, room.ID)
	if err != nil || updated != 0 {
		t.Fatalf("second mark read = %d, %v", updated, err)
	}
	if len(broadcaster.calls) != 1 || broadcaster.calls[0].Event != "messages:read" {
		t.Fatalf("broadcasts = %+v, want one receipt per join", broadcaster.calls)
	}
}

func TestBroadcastResolvesUsernameFromRepo(t *testing.T) {
	rooms := newFakeChatRepo()
	tickets := newFakeTicketRepo()
	broadcaster := &recordingBroadcaster{}
	svc := NewChatService(ChatDependencies{
		ChatRepo:    rooms,
		CommentRepo: &fakeCommentRepo{},
		TicketRepo:  tickets,
		LogRepo:     &fakeLogRepo{},
		UserRepo: &fakeUserRepo{users: map[string]*domain.User{
			"user-1": {ID: "user-1", Username: "budi", Role: domain.RoleHelpdesk},
		}},
		Broadcaster: broadcaster,
		Logger:      zap.NewNop(),
	})

	// Websocket actors carry token claims only; no username.
	sender := &domain.User{ID: "user-1", Role: domain.RoleHelpdesk}
	room, err := svc.CreateRoom(context.Background(), sender, "ops", domain.ChatRoomGroup, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), sender, room.ID, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	payload := broadcaster.calls[0].Payload.(ChatMessagePayload)
	if payload.Username != "budi" {
		t.Fatalf("username = %q, want resolved from repo", payload.Username)
	}
}
