package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// NotificationResponse is one in-app notification record.
type NotificationResponse struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Message         string                  `json:"message"`
	Type            domain.NotificationType `json:"type"`
	RelatedTicketID *string                 `json:"related_ticket_id"`
	IsRead          bool                    `json:"is_read"`
	ReadAt          *time.Time              `json:"read_at"`
	CreatedAt       time.Time               `json:"created_at"`
}
