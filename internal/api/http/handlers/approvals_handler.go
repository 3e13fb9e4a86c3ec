package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// ApprovalsHandler manages approval workflow endpoints.
type ApprovalsHandler struct {
	service *service.ApprovalService
}

// NewApprovalsHandler constructs handler.
func NewApprovalsHandler(approvalService *service.ApprovalService) *ApprovalsHandler {
	return &ApprovalsHandler{service: approvalService}
}

// ListSteps GET /tickets/:id/approvals.
func (h *ApprovalsHandler) ListSteps(c *fiber.Ctx) error {
	steps, err := h.service.ListSteps(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ApprovalStepResponse, 0, len(steps))
	for i := range steps {
		items = append(items, approvalStepResponse(&steps[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Approve POST /tickets/:id/approvals/approve. The pending step is resolved by
// the caller's role.
func (h *ApprovalsHandler) Approve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ApprovalActionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	decision, err := h.service.Approve(c.Context(), c.Params("id"),
		principal.User.Role, principal.User.ID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"step":         approvalStepResponse(decision.Step),
		"all_approved": decision.AllApproved,
	}})
}

// Reject POST /tickets/:id/approvals/reject.
func (h *ApprovalsHandler) Reject(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ApprovalActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	step, err := h.service.Reject(c.Context(), c.Params("id"),
		principal.User.Role, principal.User.ID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": approvalStepResponse(step)})
}
