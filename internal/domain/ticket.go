package domain

import "time"

// TicketType distinguishes incidents from service requests.
type TicketType string

const (
	TicketTypeIncident TicketType = "incident"
	TicketTypeRequest  TicketType = "request"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPendingApproval TicketStatus = "pending_approval"
	TicketStatusOpen            TicketStatus = "open"
	TicketStatusInProgress      TicketStatus = "in_progress"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusClosed          TicketStatus = "closed"
	TicketStatusRejected        TicketStatus = "rejected"
)

// PriorityCategory is the banded priority derived from urgency and impact.
type PriorityCategory string

const (
	PriorityLow    PriorityCategory = "low"
	PriorityMedium PriorityCategory = "medium"
	PriorityHigh   PriorityCategory = "high"
	PriorityMajor  PriorityCategory = "major"
)

// VerificationStatus tracks helpdesk verification of incoming reports.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationInvalid  VerificationStatus = "invalid"
)

// Ticket is the aggregate for incidents and service requests.
//
// PriorityScore, Priority and the SLA fields are always recomputed together;
// no code path sets one of them independently.
type Ticket struct {
	ID                 string
	TicketNumber       string
	Type               TicketType
	Title              string
	Description        string
	Urgency            int
	Impact             int
	PriorityScore      int
	Priority           PriorityCategory
	Status             TicketStatus
	VerificationStatus VerificationStatus
	OPDID              string
	ServiceItemID      *string
	ServiceDetail      *string
	ReporterID         *string
	ReporterName       *string
	ReporterEmail      *string
	ReporterPhone      *string
	AssignedTo         *string
	SLADue             *time.Time
	SLATargetDate      *string
	SLATargetTime      *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ResolvedAt         *time.Time
	ClosedAt           *time.Time
}
