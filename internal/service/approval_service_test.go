package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

func newApprovalFixture(t *testing.T, levels []domain.Role) (*ApprovalService, *fakeTicketRepo, *fakeLogRepo, string) {
	t.Helper()
	tickets := newFakeTicketRepo()
	approvals := newFakeApprovalRepo(tickets)
	logs := &fakeLogRepo{}

	ticket := &domain.Ticket{
		TicketNumber: "REQ-2026-0001",
		Type:         domain.TicketTypeRequest,
		Title:        "laptop request",
		Description:  "need a laptop",
		Status:       domain.TicketStatusPendingApproval,
		OPDID:        "opd-1",
	}
	if err := tickets.CreateWithApprovalSteps(context.Background(), ticket, levels); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}

	svc := NewApprovalService(ApprovalDependencies{
		ApprovalRepo: approvals,
		TicketRepo:   tickets,
		LogRepo:      logs,
		Logger:       zap.NewNop(),
	})
	return svc, tickets, logs, ticket.ID
}

func TestApproveAllStepsOpensTicket(t *testing.T) {
	svc, tickets, logs, ticketID := newApprovalFixture(t,
		[]domain.Role{domain.RoleUnitHead, domain.RoleSectionHead})
	ctx := context.Background()

	decision, err := svc.Approve(ctx, ticketID, domain.RoleUnitHead, "approver-1", "looks fine")
	if err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if decision.AllApproved {
		t.Fatal("workflow should not complete after one of two approvals")
	}
	ticket, _ := tickets.GetByID(ctx, ticketID)
	if ticket.Status != domain.TicketStatusPendingApproval {
		t.Fatalf("status = %s, want pending_approval", ticket.Status)
	}

	decision, err = svc.Approve(ctx, ticketID, domain.RoleSectionHead, "approver-2", "")
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if !decision.AllApproved {
		t.Fatal("workflow should complete after final approval")
	}
	ticket, _ = tickets.GetByID(ctx, ticketID)
	if ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("status = %s, want open", ticket.Status)
	}

	actions := logs.actions(ticketID)
	if len(actions) != 2 || actions[0] != "approve" || actions[1] != "approve" {
		t.Fatalf("log actions = %v", actions)
	}
}

func TestConcurrentFinalApprovalsOpenTicket(t *testing.T) {
	svc, tickets, _, ticketID := newApprovalFixture(t,
		[]domain.Role{domain.RoleUnitHead, domain.RoleSectionHead})
	ctx := context.Background()

	// Both remaining approvals race; the repository serializes them, so
	// exactly one observes the workflow complete and the ticket always opens.
	results := make(chan *ApprovalDecision, 2)
	errs := make(chan error, 2)
	for _, role := range []domain.Role{domain.RoleUnitHead, domain.RoleSectionHead} {
		go func(role domain.Role) {
			decision, err := svc.Approve(ctx, ticketID, role, "approver-"+string(role), "")
			results <- decision
			errs <- err
		}(role)
	}

	completions := 0
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("approve: %v", err)
		}
		if decision := <-results; decision.AllApproved {
			completions++
		}
	}
	if completions != 1 {
		t.Fatalf("completions = %d, want exactly one", completions)
	}
	ticket, _ := tickets.GetByID(ctx, ticketID)
	if ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("status = %s, want open", ticket.Status)
	}
}

func TestApproveOrderIndependent(t *testing.T) {
	svc, tickets, _, ticketID := newApprovalFixture(t,
		[]domain.Role{domain.RoleUnitHead, domain.RoleSectionHead})
	ctx := context.Background()

	// Level 2 resolves before level 1.
	if _, err := svc.Approve(ctx, ticketID, domain.RoleSectionHead, "approver-2", ""); err != nil {
		t.Fatalf("out-of-order approve: %v", err)
	}
	decision, err := svc.Approve(ctx, ticketID, domain.RoleUnitHead, "approver-1", "")
	if err != nil {
		t.Fatalf("final approve: %v", err)
	}
	if !decision.AllApproved {
		t.Fatal("workflow should complete regardless of order")
	}
	ticket, _ := tickets.GetByID(ctx, ticketID)
	if ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("status = %s, want open", ticket.Status)
	}
}

func TestRejectShortCircuitsWorkflow(t *testing.T) {
	svc, tickets, logs, ticketID := newApprovalFixture(t,
		[]domain.Role{domain.RoleUnitHead, domain.RoleSectionHead})
	ctx := context.Background()

	step, err := svc.Reject(ctx, ticketID, domain.RoleUnitHead, "approver-1", "budget exhausted")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if step.Status != domain.ApprovalRejected {
		t.Fatalf("step status = %s", step.Status)
	}

	ticket, _ := tickets.GetByID(ctx, ticketID)
	if ticket.Status != domain.TicketStatusRejected {
		t.Fatalf("status = %s, want rejected", ticket.Status)
	}
	if ticket.ClosedAt == nil {
		t.Fatal("closed_at should be stamped on rejection")
	}
	if actions := logs.actions(ticketID); len(actions) != 1 || actions[0] != "reject" {
		t.Fatalf("log actions = %v", actions)
	}
}

func TestRejectRequiresNotes(t *testing.T) {
	svc, _, _, ticketID := newApprovalFixture(t, []domain.Role{domain.RoleUnitHead})

	_, err := svc.Reject(context.Background(), ticketID, domain.RoleUnitHead, "approver-1", "  ")
	if err == nil {
		t.Fatal("expected validation error for empty notes")
	}
	domainErr := apperrors.ToDomainError(err)
	if domainErr.Code != "VALIDATION_FAILED" {
		t.Fatalf("code = %s", domainErr.Code)
	}
}

func TestApproveNoPendingStepForRole(t *testing.T) {
	svc, _, _, ticketID := newApprovalFixture(t, []domain.Role{domain.RoleUnitHead})
	ctx := context.Background()

	_, err := svc.Approve(ctx, ticketID, domain.RoleOPDAdmin, "approver-9", "")
	if err == nil {
		t.Fatal("expected error for role with no step")
	}
	if apperrors.ToDomainError(err).Code != "NOT_FOUND" {
		t.Fatalf("code = %s", apperrors.ToDomainError(err).Code)
	}

	// A second approval from the same role has no pending step left either.
	if _, err := svc.Approve(ctx, ticketID, domain.RoleUnitHead, "approver-1", ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Approve(ctx, ticketID, domain.RoleUnitHead, "approver-1", ""); err == nil {
		t.Fatal("expected error for already-resolved step")
	}
}

func TestApproveUnknownTicket(t *testing.T) {
	svc, _, _, _ := newApprovalFixture(t, []domain.Role{domain.RoleUnitHead})

	_, err := svc.Approve(context.Background(), "missing", domain.RoleUnitHead, "approver-1", "")
	if apperrors.ToDomainError(err).Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
