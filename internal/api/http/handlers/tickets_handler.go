package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateIncident POST /tickets/incidents.
func (h *TicketsHandler) CreateIncident(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateIncident(c.Context(), principal.User, service.IncidentInput{
		Title:       req.Title,
		Description: req.Description,
		OPDID:       req.OPDID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// CreatePublicIncident POST /public/incidents. No authentication.
func (h *TicketsHandler) CreatePublicIncident(c *fiber.Ctx) error {
	var req dto.CreatePublicIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreatePublicIncident(c.Context(), service.PublicIncidentInput{
		Title:         req.Title,
		Description:   req.Description,
		OPDID:         req.OPDID,
		ReporterName:  req.ReporterName,
		ReporterEmail: req.ReporterEmail,
		ReporterPhone: req.ReporterPhone,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// CreateServiceRequest POST /tickets/requests.
func (h *TicketsHandler) CreateServiceRequest(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateServiceRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateServiceRequest(c.Context(), principal.User, service.RequestInput{
		ServiceItemID: req.ServiceItemID,
		Title:         req.Title,
		Description:   req.Description,
		ServiceDetail: req.ServiceDetail,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	tickets, err := h.service.ListTickets(c.Context(), principal.User, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	ticket, steps, logs, err := h.service.GetRequestDetail(c.Context(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, steps, logs)})
}

// Classify POST /tickets/:id/classify.
func (h *TicketsHandler) Classify(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.ClassifyIncident(c.Context(), principal.User, c.Params("id"), req.Urgency, req.Impact)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.AssignTicket(c.Context(), principal.User, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}

	ticket, err := h.service.UpdateStatus(c.Context(), principal.User, c.Params("id"), req.Status, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if typeStr := c.Query("type"); typeStr != "" {
		for _, part := range strings.Split(typeStr, ",") {
			filter.Types = append(filter.Types, domain.TicketType(strings.TrimSpace(part)))
		}
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.PriorityCategory(strings.TrimSpace(part)))
		}
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:            ticket.ID,
		TicketNumber:  ticket.TicketNumber,
		Type:          ticket.Type,
		Title:         ticket.Title,
		Status:        ticket.Status,
		Priority:      ticket.Priority,
		PriorityScore: ticket.PriorityScore,
		OPDID:         ticket.OPDID,
		AssignedTo:    ticket.AssignedTo,
		SLADue:        ticket.SLADue,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, steps []domain.ApprovalStep, logs []domain.TicketLog) dto.TicketDetailResponse {
	detail := dto.TicketDetailResponse{
		TicketSummary:      ticketSummary(ticket),
		Description:        ticket.Description,
		Urgency:            ticket.Urgency,
		Impact:             ticket.Impact,
		VerificationStatus: ticket.VerificationStatus,
		ServiceItemID:      ticket.ServiceItemID,
		ServiceDetail:      ticket.ServiceDetail,
		ReporterID:         ticket.ReporterID,
		ReporterName:       ticket.ReporterName,
		ReporterPhone:      ticket.ReporterPhone,
		SLATargetDate:      ticket.SLATargetDate,
		SLATargetTime:      ticket.SLATargetTime,
		ResolvedAt:         ticket.ResolvedAt,
		ClosedAt:           ticket.ClosedAt,
	}
	for i := range steps {
		detail.Approvals = append(detail.Approvals, approvalStepResponse(&steps[i]))
	}
	for i := range logs {
		detail.Logs = append(detail.Logs, dto.TicketLogResponse{
			ID:          logs[i].ID,
			UserID:      logs[i].UserID,
			Action:      logs[i].Action,
			Description: logs[i].Description,
			CreatedAt:   logs[i].CreatedAt,
		})
	}
	return detail
}

func approvalStepResponse(step *domain.ApprovalStep) dto.ApprovalStepResponse {
	return dto.ApprovalStepResponse{
		ID:            step.ID,
		WorkflowLevel: step.WorkflowLevel,
		ApproverRole:  step.ApproverRole,
		Status:        step.Status,
		ApproverID:    step.ApproverID,
		Notes:         step.Notes,
		RespondedAt:   step.RespondedAt,
	}
}
