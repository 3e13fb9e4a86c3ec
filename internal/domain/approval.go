package domain

import "time"

// ApprovalStatus enumerates states of a single approval step.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalStep is one role's gate on a service request. All steps for a ticket
// are created together at ticket creation; WorkflowLevel records the configured
// order but resolution is per-role and order-independent.
type ApprovalStep struct {
	ID            string
	TicketID      string
	WorkflowLevel int
	ApproverRole  Role
	Status        ApprovalStatus
	ApproverID    *string
	Notes         *string
	RespondedAt   *time.Time
	CreatedAt     time.Time
}
