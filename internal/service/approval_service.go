package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// ApprovalService drives the approval workflow state machine for service
// requests. Steps resolve per role in any order; workflow_level is recorded
// but never enforced as an ordering.
type ApprovalService struct {
	approvals repository.ApprovalRepository
	tickets   repository.TicketRepository
	logs      repository.TicketLogRepository
	logger    *zap.Logger
}

// ApprovalDependencies bundles repositories for the approval service.
type ApprovalDependencies struct {
	ApprovalRepo repository.ApprovalRepository
	TicketRepo   repository.TicketRepository
	LogRepo      repository.TicketLogRepository
	Logger       *zap.Logger
}

// ApprovalDecision reports the outcome of an approve call.
type ApprovalDecision struct {
	Step        *domain.ApprovalStep
	AllApproved bool
}

// NewApprovalService constructs the service.
func NewApprovalService(deps ApprovalDependencies) *ApprovalService {
	return &ApprovalService{
		approvals: deps.ApprovalRepo,
		tickets:   deps.TicketRepo,
		logs:      deps.LogRepo,
		logger:    deps.Logger,
	}
}

// Approve resolves the pending step matching the approver's role. When every
// step for the ticket is approved the ticket moves to open; the step update
// and the completion check share one transaction in the repository, so
// concurrent final approvals cannot both miss the transition.
func (s *ApprovalService) Approve(ctx context.Context, ticketID string, approverRole domain.Role, approverID, notes string) (*ApprovalDecision, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}

	step, allApproved, err := s.approvals.Approve(ctx, ticketID, approverRole, approverID, notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("pending approval step", map[string]any{
				"ticket_id": ticketID,
				"role":      string(approverRole),
			})
		}
		return nil, err
	}

	s.appendLog(ctx, ticketID, approverID, "approve",
		"Approved by "+string(approverRole)+noteSuffix(notes))
	if allApproved {
		s.logger.Info("approval workflow complete; ticket opened",
			zap.String("ticket_id", ticketID))
	}
	return &ApprovalDecision{Step: step, AllApproved: allApproved}, nil
}

// Reject resolves the pending step matching the approver's role and moves the
// ticket to rejected immediately. A single rejection short-circuits the
// workflow regardless of other steps' states. Notes are mandatory.
func (s *ApprovalService) Reject(ctx context.Context, ticketID string, approverRole domain.Role, approverID, notes string) (*domain.ApprovalStep, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, apperrors.NewValidationError("rejection notes required", nil)
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}

	step, err := s.approvals.Reject(ctx, ticketID, approverRole, approverID, notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("pending approval step", map[string]any{
				"ticket_id": ticketID,
				"role":      string(approverRole),
			})
		}
		return nil, err
	}

	s.appendLog(ctx, ticketID, approverID, "reject",
		"Rejected by "+string(approverRole)+". Reason: "+notes)
	return step, nil
}

// ListSteps returns the steps for a ticket in workflow_level order.
func (s *ApprovalService) ListSteps(ctx context.Context, ticketID string) ([]domain.ApprovalStep, error) {
	return s.approvals.ListByTicket(ctx, ticketID)
}

func (s *ApprovalService) appendLog(ctx context.Context, ticketID, userID, action, description string) {
	if s.logs == nil {
		return
	}
	entry := &domain.TicketLog{
		TicketID:    ticketID,
		UserID:      &userID,
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

func noteSuffix(notes string) string {
	if strings.TrimSpace(notes) == "" {
		return ""
	}
	return ". " + notes
}
