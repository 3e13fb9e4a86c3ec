package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// CreateIncidentRequest payload for authenticated reports.
type CreateIncidentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	OPDID       string `json:"opd_id"`
}

// CreatePublicIncidentRequest payload for anonymous reports.
type CreatePublicIncidentRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	OPDID         string `json:"opd_id"`
	ReporterName  string `json:"reporter_name"`
	ReporterEmail string `json:"reporter_email"`
	ReporterPhone string `json:"reporter_phone"`
}

// CreateServiceRequestRequest payload for catalog-backed requests.
type CreateServiceRequestRequest struct {
	ServiceItemID string  `json:"service_item_id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	ServiceDetail *string `json:"service_detail"`
}

// ClassifyRequest payload for urgency/impact re-evaluation.
type ClassifyRequest struct {
	Urgency int `json:"urgency"`
	Impact  int `json:"impact"`
}

// AssignRequest payload for technician assignment.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// UpdateStatusRequest payload for staff transitions.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
	Notes  string              `json:"notes"`
}

// TicketSummary response.
type TicketSummary struct {
	ID            string                  `json:"id"`
	TicketNumber  string                  `json:"ticket_number"`
	Type          domain.TicketType       `json:"type"`
	Title         string                  `json:"title"`
	Status        domain.TicketStatus     `json:"status"`
	Priority      domain.PriorityCategory `json:"priority"`
	PriorityScore int                     `json:"priority_score"`
	OPDID         string                  `json:"opd_id"`
	AssignedTo    *string                 `json:"assigned_to"`
	SLADue        *time.Time              `json:"sla_due"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description        string                    `json:"description"`
	Urgency            int                       `json:"urgency"`
	Impact             int                       `json:"impact"`
	VerificationStatus domain.VerificationStatus `json:"verification_status"`
	ServiceItemID      *string                   `json:"service_item_id"`
	ServiceDetail      *string                   `json:"service_detail"`
	ReporterID         *string                   `json:"reporter_id"`
	ReporterName       *string                   `json:"reporter_name"`
	ReporterPhone      *string                   `json:"reporter_phone"`
	SLATargetDate      *string                   `json:"sla_target_date"`
	SLATargetTime      *string                   `json:"sla_target_time"`
	ResolvedAt         *time.Time                `json:"resolved_at"`
	ClosedAt           *time.Time                `json:"closed_at"`
	Approvals          []ApprovalStepResponse    `json:"approvals,omitempty"`
	Logs               []TicketLogResponse       `json:"logs,omitempty"`
}

// ApprovalStepResponse represents one approval gate.
type ApprovalStepResponse struct {
	ID            string                `json:"id"`
	WorkflowLevel int                   `json:"workflow_level"`
	ApproverRole  domain.Role           `json:"approver_role"`
	Status        domain.ApprovalStatus `json:"status"`
	ApproverID    *string               `json:"approver_id"`
	Notes         *string               `json:"notes"`
	RespondedAt   *time.Time            `json:"responded_at"`
}

// TicketLogResponse is one activity entry.
type TicketLogResponse struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
