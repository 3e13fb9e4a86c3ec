package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/priority"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// TicketService coordinates the ticket lifecycle: creation, classification,
// assignment and status transitions.
type TicketService struct {
	tickets      repository.TicketRepository
	serviceItems repository.ServiceItemRepository
	approvals    repository.ApprovalRepository
	logs         repository.TicketLogRepository
	sla          *SLAService
	dispatcher   events.Dispatcher
	logger       *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	ServiceItemRepo repository.ServiceItemRepository
	ApprovalRepo    repository.ApprovalRepository
	LogRepo         repository.TicketLogRepository
	SLA             *SLAService
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
}

// IncidentInput describes an authenticated incident report.
type IncidentInput struct {
	Title       string
	Description string
	OPDID       string
}

// PublicIncidentInput describes an anonymous incident report. Reporter contact
// fields are mandatory because no account backs the submission.
type PublicIncidentInput struct {
	Title         string
	Description   string
	OPDID         string
	ReporterName  string
	ReporterEmail string
	ReporterPhone string
}

// RequestInput describes a service request creation.
type RequestInput struct {
	ServiceItemID string
	Title         string
	Description   string
	ServiceDetail *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:      deps.TicketRepo,
		serviceItems: deps.ServiceItemRepo,
		approvals:    deps.ApprovalRepo,
		logs:         deps.LogRepo,
		sla:          deps.SLA,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
	}
}

// Default classification for unclassified incoming incidents; the unit head
// reclassifies later via ClassifyIncident.
const (
	defaultUrgency = 3
	defaultImpact  = 3
)

// CreateIncident files an incident for an authenticated reporter.
func (s *TicketService) CreateIncident(ctx context.Context, reporter *domain.User, input IncidentInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	opdID := input.OPDID
	if opdID == "" && reporter.OPDID != nil {
		opdID = *reporter.OPDID
	}
	if opdID == "" {
		return nil, apperrors.NewValidationError("opd_id required", nil)
	}

	ticket := s.newIncident(ctx, input.Title, input.Description, opdID)
	ticket.ReporterID = &reporter.ID
	if reporter.Phone != nil {
		ticket.ReporterPhone = reporter.Phone
	}
	name := reporter.FullName
	ticket.ReporterName = &name

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.appendLog(ctx, ticket.ID, &reporter.ID, "create", "Incident created: "+ticket.TicketNumber)
	return ticket, nil
}

// CreatePublicIncident files an incident without a reporter account.
func (s *TicketService) CreatePublicIncident(ctx context.Context, input PublicIncidentInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Description) == "" ||
		input.OPDID == "" || input.ReporterName == "" || input.ReporterEmail == "" ||
		input.ReporterPhone == "" {
		return nil, apperrors.NewValidationError(
			"title, description, opd_id and reporter contact details required", nil)
	}

	ticket := s.newIncident(ctx, input.Title, input.Description, input.OPDID)
	ticket.ReporterName = &input.ReporterName
	ticket.ReporterEmail = &input.ReporterEmail
	ticket.ReporterPhone = &input.ReporterPhone

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.appendLog(ctx, ticket.ID, nil, "create_public", "Public incident created: "+ticket.TicketNumber)
	return ticket, nil
}

func (s *TicketService) newIncident(ctx context.Context, title, description, opdID string) *domain.Ticket {
	score, category := priority.Compute(defaultUrgency, defaultImpact)
	now := time.Now()
	slaResult := s.sla.Due(ctx, category, opdID, now)

	return &domain.Ticket{
		TicketNumber:       generateTicketNumber(domain.TicketTypeIncident),
		Type:               domain.TicketTypeIncident,
		Title:              strings.TrimSpace(title),
		Description:        strings.TrimSpace(description),
		Urgency:            defaultUrgency,
		Impact:             defaultImpact,
		PriorityScore:      score,
		Priority:           category,
		Status:             domain.TicketStatusOpen,
		VerificationStatus: domain.VerificationPending,
		OPDID:              opdID,
		SLADue:             slaResult.Due,
		SLATargetDate:      slaResult.TargetDate,
		SLATargetTime:      slaResult.TargetTime,
	}
}

// CreateServiceRequest files a service request against a catalog item. When
// the item requires approval, the ticket starts in pending_approval and its
// approval steps are created atomically with it.
func (s *TicketService) CreateServiceRequest(ctx context.Context, reporter *domain.User, input RequestInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Description) == "" ||
		input.ServiceItemID == "" {
		return nil, apperrors.NewValidationError("title, description and service_item_id required", nil)
	}
	if reporter.OPDID == nil {
		return nil, apperrors.NewValidationError("account is not linked to any OPD", nil)
	}

	item, err := s.serviceItems.GetByID(ctx, input.ServiceItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service item", map[string]any{"id": input.ServiceItemID})
		}
		return nil, err
	}

	status := domain.TicketStatusOpen
	var levels []domain.Role
	if item.ApprovalRequired && len(item.ApprovalLevels) > 0 {
		status = domain.TicketStatusPendingApproval
		levels = item.ApprovalLevels
	}

	// Service requests always start at medium; urgency/impact classification
	// applies to incidents only.
	score, category := priority.Compute(defaultUrgency, defaultImpact)
	now := time.Now()
	slaResult := s.sla.Due(ctx, category, *reporter.OPDID, now)

	ticket := &domain.Ticket{
		TicketNumber:       generateTicketNumber(domain.TicketTypeRequest),
		Type:               domain.TicketTypeRequest,
		Title:              strings.TrimSpace(input.Title),
		Description:        strings.TrimSpace(input.Description),
		Urgency:            defaultUrgency,
		Impact:             defaultImpact,
		PriorityScore:      score,
		Priority:           category,
		Status:             status,
		VerificationStatus: domain.VerificationPending,
		OPDID:              *reporter.OPDID,
		ServiceItemID:      &item.ID,
		ServiceDetail:      input.ServiceDetail,
		ReporterID:         &reporter.ID,
		ReporterPhone:      reporter.Phone,
		SLADue:             slaResult.Due,
		SLATargetDate:      slaResult.TargetDate,
		SLATargetTime:      slaResult.TargetTime,
	}
	name := reporter.FullName
	ticket.ReporterName = &name

	if len(levels) > 0 {
		err = s.tickets.CreateWithApprovalSteps(ctx, ticket, levels)
	} else {
		err = s.tickets.Create(ctx, ticket)
	}
	if err != nil {
		return nil, err
	}

	s.appendLog(ctx, ticket.ID, &reporter.ID, "create", "Service request created: "+ticket.TicketNumber)
	return ticket, nil
}

// ClassifyIncident re-evaluates urgency and impact. Score, category and SLA
// due are recomputed together; they are never written independently.
func (s *TicketService) ClassifyIncident(ctx context.Context, actor *domain.User, ticketID string, urgency, impact int) (*domain.Ticket, error) {
	if urgency < 1 || urgency > 5 || impact < 1 || impact > 5 {
		return nil, apperrors.NewValidationError("urgency and impact must be between 1 and 5", nil)
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldPriority := ticket.Priority
	score, category := priority.Compute(urgency, impact)
	slaResult := s.sla.Due(ctx, category, ticket.OPDID, ticket.CreatedAt)

	ticket.Urgency = urgency
	ticket.Impact = impact
	ticket.PriorityScore = score
	ticket.Priority = category
	ticket.SLADue = slaResult.Due
	ticket.SLATargetDate = slaResult.TargetDate
	ticket.SLATargetTime = slaResult.TargetTime
	ticket.VerificationStatus = domain.VerificationVerified

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.appendLog(ctx, ticket.ID, &actor.ID, "classify",
		fmt.Sprintf("Ticket classified. New priority: %s (U: %d, I: %d)", category, urgency, impact))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClassified,
		TicketID: ticket.ID,
		Payload: events.TicketClassifiedPayload{
			OldPriority: oldPriority,
			NewPriority: category,
			Urgency:     urgency,
			Impact:      impact,
		},
	})
	return ticket, nil
}

// AssignTicket hands the ticket to a technician. The resulting row update is
// observed by the change feed, which triggers the assignment notifications.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*domain.Ticket, error) {
	if assigneeID == "" {
		return nil, apperrors.NewValidationError("assignee required", nil)
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusPendingApproval {
		return nil, apperrors.NewConflict("ticket is awaiting approval", nil)
	}
	if ticket.Status == domain.TicketStatusClosed || ticket.Status == domain.TicketStatusRejected {
		return nil, apperrors.NewConflict("ticket is closed", nil)
	}

	ticket.AssignedTo = &assigneeID
	ticket.Status = domain.TicketStatusInProgress
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.appendLog(ctx, ticket.ID, &actor.ID, "assign", "Ticket assigned to technician "+assigneeID)
	return ticket, nil
}

// UpdateStatus applies a staff-driven status transition.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus, notes string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(ticket.Status, newStatus) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": string(ticket.Status),
			"to":   string(newStatus),
		})
	}

	now := time.Now()
	switch newStatus {
	case domain.TicketStatusResolved:
		ticket.ResolvedAt = &now
	case domain.TicketStatusClosed:
		ticket.ClosedAt = &now
	case domain.TicketStatusInProgress:
		ticket.ResolvedAt = nil
	}
	oldStatus := ticket.Status
	ticket.Status = newStatus

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.appendLog(ctx, ticket.ID, &actor.ID, "status",
		fmt.Sprintf("Status changed %s -> %s. %s", oldStatus, newStatus, notes))
	return ticket, nil
}

// GetTicket loads a ticket, mapping missing rows to NotFound.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.getTicket(ctx, ticketID)
}

// GetRequestDetail loads a service request with its approval steps and logs.
func (s *TicketService) GetRequestDetail(ctx context.Context, requester *domain.User, ticketID string) (*domain.Ticket, []domain.ApprovalStep, []domain.TicketLog, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, nil, err
	}
	if isReporterRole(requester.Role) &&
		(ticket.ReporterID == nil || *ticket.ReporterID != requester.ID) {
		return nil, nil, nil, apperrors.NewForbidden("access denied")
	}

	steps, err := s.approvals.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	var logEntries []domain.TicketLog
	if s.logs != nil {
		logEntries, err = s.logs.ListByTicket(ctx, ticket.ID, 100)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return ticket, steps, logEntries, nil
}

// ListTickets returns tickets visible to the requester, narrowing the filter
// by role scope.
func (s *TicketService) ListTickets(ctx context.Context, requester *domain.User, filter repository.TicketFilter) ([]domain.Ticket, error) {
	applyRoleScope(&filter, requester)
	return s.tickets.ListWithFilter(ctx, filter)
}

func applyRoleScope(filter *repository.TicketFilter, requester *domain.User) {
	switch requester.Role {
	case domain.RoleSuperAdmin, domain.RoleCityAdmin, domain.RoleHelpdesk:
		// city-wide visibility
	case domain.RoleTechnician:
		filter.AssignedTo = &requester.ID
	case domain.RoleCitizen, domain.RoleOPDEmployee:
		filter.ReporterID = &requester.ID
	default:
		if requester.OPDID != nil {
			filter.OPDID = requester.OPDID
		}
	}
}

func isReporterRole(role domain.Role) bool {
	return role == domain.RoleCitizen || role == domain.RoleOPDEmployee
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) appendLog(ctx context.Context, ticketID string, userID *string, action, description string) {
	if s.logs == nil {
		return
	}
	entry := &domain.TicketLog{
		TicketID:    ticketID,
		UserID:      userID,
		Action:      action,
		Description: description,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.Error("failed to append ticket log",
			zap.String("ticket_id", ticketID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketNumber(ticketType domain.TicketType) string {
	prefix := "REQ"
	if ticketType == domain.TicketTypeIncident {
		prefix = "INC"
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().Year(), rand.Intn(10000))
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved, domain.TicketStatusOpen},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	// pending_approval leaves only through the approval engine; closed and
	// rejected are terminal.
	domain.TicketStatusPendingApproval: {},
	domain.TicketStatusClosed:          {},
	domain.TicketStatusRejected:        {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
