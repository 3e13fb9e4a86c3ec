package domain

import "time"

// TicketLog is an append-only activity entry for a ticket.
type TicketLog struct {
	ID          string
	TicketID    string
	UserID      *string
	Action      string
	Description string
	CreatedAt   time.Time
}
