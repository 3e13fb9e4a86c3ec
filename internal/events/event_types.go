package events

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketClassified EventType = "ticket_classified"
	EventTicketResolved   EventType = "ticket_resolved"
)

// Event represents a domain event observed on the ticket change feed or
// emitted directly by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload carries the full new row for the creation flow.
type TicketCreatedPayload struct {
	Ticket domain.Ticket `json:"ticket"`
}

// TicketAssignedPayload carries the row after assigned_to transitioned from
// unset to set.
type TicketAssignedPayload struct {
	Ticket     domain.Ticket `json:"ticket"`
	AssignedTo string        `json:"assigned_to"`
}

// TicketClassifiedPayload records a reclassification.
type TicketClassifiedPayload struct {
	OldPriority domain.PriorityCategory `json:"old_priority"`
	NewPriority domain.PriorityCategory `json:"new_priority"`
	Urgency     int                     `json:"urgency"`
	Impact      int                     `json:"impact"`
}
