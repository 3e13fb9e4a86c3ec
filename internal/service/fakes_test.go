package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/messaging"
	"github.com/spec-kit/servicedesk/internal/repository"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket
	steps   *fakeApprovalRepo
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) CreateWithApprovalSteps(ctx context.Context, ticket *domain.Ticket, levels []domain.Role) error {
	if err := r.Create(ctx, ticket); err != nil {
		return err
	}
	if r.steps != nil {
		r.steps.seed(ticket.ID, levels)
	}
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *fakeTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.TicketNumber == number {
			clone := *ticket
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.ReporterID != nil &&
			(ticket.ReporterID == nil || *ticket.ReporterID != *filter.ReporterID) {
			continue
		}
		if filter.AssignedTo != nil &&
			(ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.OPDID != nil && ticket.OPDID != *filter.OPDID {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

// setStatus mirrors the transition the real repository applies in-transaction.
func (r *fakeTicketRepo) setStatus(id string, status domain.TicketStatus, closed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return
	}
	ticket.Status = status
	if closed {
		now := time.Now()
		ticket.ClosedAt = &now
	}
}

type fakeApprovalRepo struct {
	mu      sync.Mutex
	seq     int
	steps   map[string][]*domain.ApprovalStep
	tickets *fakeTicketRepo
}

func newFakeApprovalRepo(tickets *fakeTicketRepo) *fakeApprovalRepo {
	repo := &fakeApprovalRepo{steps: make(map[string][]*domain.ApprovalStep), tickets: tickets}
	if tickets != nil {
		tickets.steps = repo
	}
	return repo
}

func (r *fakeApprovalRepo) seed(ticketID string, levels []domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, role := range levels {
		r.seq++
		r.steps[ticketID] = append(r.steps[ticketID], &domain.ApprovalStep{
			ID:            fmt.Sprintf("step-%d", r.seq),
			TicketID:      ticketID,
			WorkflowLevel: i + 1,
			ApproverRole:  role,
			Status:        domain.ApprovalPending,
			CreatedAt:     time.Now(),
		})
	}
}

func (r *fakeApprovalRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.ApprovalStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.ApprovalStep
	for _, step := range r.steps[ticketID] {
		result = append(result, *step)
	}
	return result, nil
}

func (r *fakeApprovalRepo) Approve(_ context.Context, ticketID string, role domain.Role, approverID, notes string) (*domain.ApprovalStep, bool, error) {
	r.mu.Lock()
	step := r.findPending(ticketID, role)
	if step == nil {
		r.mu.Unlock()
		return nil, false, pgx.ErrNoRows
	}
	now := time.Now()
	step.Status = domain.ApprovalApproved
	step.ApproverID = &approverID
	if notes != "" {
		step.Notes = &notes
	}
	step.RespondedAt = &now

	allApproved := true
	for _, other := range r.steps[ticketID] {
		if other.Status != domain.ApprovalApproved {
			allApproved = false
			break
		}
	}
	clone := *step
	r.mu.Unlock()

	if allApproved && r.tickets != nil {
		r.tickets.setStatus(ticketID, domain.TicketStatusOpen, false)
	}
	return &clone, allApproved, nil
}

func (r *fakeApprovalRepo) Reject(_ context.Context, ticketID string, role domain.Role, approverID, notes string) (*domain.ApprovalStep, error) {
	r.mu.Lock()
	step := r.findPending(ticketID, role)
	if step == nil {
		r.mu.Unlock()
		return nil, pgx.ErrNoRows
	}
	now := time.Now()
	step.Status = domain.ApprovalRejected
	step.ApproverID = &approverID
	step.Notes = &notes
	step.RespondedAt = &now
	clone := *step
	r.mu.Unlock()

	if r.tickets != nil {
		r.tickets.setStatus(ticketID, domain.TicketStatusRejected, true)
	}
	return &clone, nil
}

func (r *fakeApprovalRepo) findPending(ticketID string, role domain.Role) *domain.ApprovalStep {
	for _, step := range r.steps[ticketID] {
		if step.ApproverRole == role && step.Status == domain.ApprovalPending {
			return step
		}
	}
	return nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []domain.TicketLog
}

func (r *fakeLogRepo) Create(_ context.Context, entry *domain.TicketLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = fmt.Sprintf("log-%d", len(r.entries)+1)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLogRepo) ListByTicket(_ context.Context, ticketID string, _ int) ([]domain.TicketLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketLog
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *fakeLogRepo) actions(ticketID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []string
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry.Action)
		}
	}
	return result
}

type fakeSLARepo struct {
	policies map[string]*domain.SLAPolicy
	err      error
}

func newFakeSLARepo() *fakeSLARepo {
	return &fakeSLARepo{policies: make(map[string]*domain.SLAPolicy)}
}

func (r *fakeSLARepo) add(opdID string, priority domain.PriorityCategory, hours int) {
	r.policies[opdID+"|"+string(priority)] = &domain.SLAPolicy{
		OPDID:          opdID,
		Priority:       priority,
		ResolutionTime: hours,
	}
}

func (r *fakeSLARepo) GetPolicy(_ context.Context, opdID string, priority domain.PriorityCategory) (*domain.SLAPolicy, error) {
	if r.err != nil {
		return nil, r.err
	}
	policy, ok := r.policies[opdID+"|"+string(priority)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return policy, nil
}

type fakeServiceItemRepo struct {
	items map[string]*domain.ServiceItem
}

func (r *fakeServiceItemRepo) GetByID(_ context.Context, id string) (*domain.ServiceItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return item, nil
}

type fakeUserRepo struct {
	users    map[string]*domain.User
	helpdesk []domain.User
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *fakeUserRepo) ListHelpdesk(_ context.Context) ([]domain.User, error) {
	return r.helpdesk, nil
}

type sentMessage struct {
	Address string
	Text    string
}

type fakeGateway struct {
	connected bool
	failAll   bool
	sent      []sentMessage
}

func (g *fakeGateway) Connect(context.Context) error { return nil }

func (g *fakeGateway) IsConnected() bool { return g.connected }

func (g *fakeGateway) Send(_ context.Context, address, text string) (messaging.SendResult, error) {
	if g.failAll {
		return messaging.SendResult{}, fmt.Errorf("gateway send: status 500")
	}
	g.sent = append(g.sent, sentMessage{Address: address, Text: text})
	return messaging.SendResult{
		MessageID: fmt.Sprintf("wa-%d", len(g.sent)),
		SentAt:    time.Now(),
	}, nil
}

type fakeNotificationRepo struct {
	created    []domain.Notification
	failCreate bool
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	if r.failCreate {
		return fmt.Errorf("insert failed")
	}
	n.ID = fmt.Sprintf("notif-%d", len(r.created)+1)
	n.CreatedAt = time.Now()
	r.created = append(r.created, *n)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID string, _ int) ([]domain.Notification, error) {
	var result []domain.Notification
	for _, n := range r.created {
		if n.UserID != nil && *n.UserID == userID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (r *fakeNotificationRepo) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	return r.ListByUser(ctx, userID, 0)
}

func (r *fakeNotificationRepo) UnreadCount(_ context.Context, userID string) (int, error) {
	count := 0
	for _, n := range r.created {
		if n.UserID != nil && *n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id string) (*domain.Notification, error) {
	for i := range r.created {
		if r.created[i].ID == id {
			r.created[i].IsRead = true
			return &r.created[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	var count int64
	for i := range r.created {
		if r.created[i].UserID != nil && *r.created[i].UserID == userID && !r.created[i].IsRead {
			r.created[i].IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, id string) error {
	for i := range r.created {
		if r.created[i].ID == id {
			r.created = append(r.created[:i], r.created[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeNotificationRepo) DeleteRead(_ context.Context, userID string) (int64, error) {
	var kept []domain.Notification
	var count int64
	for _, n := range r.created {
		if n.UserID != nil && *n.UserID == userID && n.IsRead {
			count++
			continue
		}
		kept = append(kept, n)
	}
	r.created = kept
	return count, nil
}
