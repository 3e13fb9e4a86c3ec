package domain

import "time"

// NotificationType mirrors the UI severity levels.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
	NotificationSuccess NotificationType = "success"
)

// Notification records one delivered phone message plus its in-app copy.
// A row exists only for dispatch attempts that reached the gateway; failed
// sends leave no row.
type Notification struct {
	ID              string
	UserID          *string
	Title           string
	Message         string
	Type            NotificationType
	RelatedTicketID *string
	PhoneNumber     *string
	WAMessageID     *string
	WASentAt        *time.Time
	IsRead          bool
	ReadAt          *time.Time
	CreatedAt       time.Time
}
