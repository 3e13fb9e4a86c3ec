package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/messaging"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/repository"
)

// NotificationService fans ticket events out to phone messages and persists an
// in-app copy of each delivered message.
type NotificationService struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	sender        messaging.Gateway
	cfg           config.NotificationConfig
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NotificationDependencies bundles collaborators for the dispatcher.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	Gateway          messaging.Gateway
	Config           config.NotificationConfig
	Metrics          *observability.Metrics
	Logger           *zap.Logger
}

// RecipientResult reports the outcome for one recipient of a dispatch.
type RecipientResult struct {
	UserID    *string
	Phone     string
	Sent      bool
	MessageID string
	Persisted bool
	Reason    string
}

// DispatchResult aggregates a single dispatch flow.
type DispatchResult struct {
	Skipped    bool
	Message    string
	Recipients []RecipientResult
}

// Success reports whether at least one recipient received the message.
func (r DispatchResult) Success() bool {
	for _, recipient := range r.Recipients {
		if recipient.Sent {
			return true
		}
	}
	return false
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		users:         deps.UserRepo,
		notifications: deps.NotificationRepo,
		sender:        deps.Gateway,
		cfg:           deps.Config,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
	}
}

// RegisterHandlers subscribes the dispatch flows to the event dispatcher.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.TicketCreatedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", event.Type)
		}
		_, err := s.DispatchTicketCreated(ctx, &payload.Ticket)
		return err
	})
	dispatcher.Subscribe(events.EventTicketAssigned, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.TicketAssignedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", event.Type)
		}
		_, err := s.DispatchTicketAssigned(ctx, &payload.Ticket, payload.AssignedTo)
		return err
	})
}

// DispatchTicketCreated notifies the reporter that the ticket was registered
// and, when enabled, broadcasts the new ticket to the helpdesk audience.
// Recipients are independent: one failed send never aborts the rest.
func (s *NotificationService) DispatchTicketCreated(ctx context.Context, ticket *domain.Ticket) (DispatchResult, error) {
	if !s.sender.IsConnected() {
		s.metrics.RecordDispatch(false)
		s.logger.Warn("messaging gateway disconnected; skipping dispatch",
			zap.String("ticket_id", ticket.ID),
			zap.String("event", "ticket_created"))
		return DispatchResult{Skipped: true, Message: "gateway disconnected; dispatch skipped"}, nil
	}

	var result DispatchResult
	var sendErr error

	if ticket.ReporterPhone != nil && *ticket.ReporterPhone != "" {
		text := reporterCreatedMessage(ticket)
		recipient, err := s.sendAndPersist(ctx, ticket, ticket.ReporterID, *ticket.ReporterPhone,
			"Ticket Registered", text, domain.NotificationInfo)
		result.Recipients = append(result.Recipients, recipient)
		if err != nil {
			sendErr = err
		}
	}

	if s.cfg.NotifyHelpdesk {
		staff, err := s.users.ListHelpdesk(ctx)
		if err != nil {
			s.logger.Error("helpdesk recipient lookup failed", zap.Error(err))
		}
		text := helpdeskCreatedMessage(ticket)
		for i := range staff {
			member := &staff[i]
			if member.Phone == nil || *member.Phone == "" {
				result.Recipients = append(result.Recipients, RecipientResult{
					UserID: &member.ID,
					Reason: "no phone number",
				})
				continue
			}
			recipient, err := s.sendAndPersist(ctx, ticket, &member.ID, *member.Phone,
				"New Ticket", text, domain.NotificationWarning)
			result.Recipients = append(result.Recipients, recipient)
			if err != nil {
				sendErr = err
			}
		}
	}

	return s.finish(result, sendErr)
}

// DispatchTicketAssigned notifies the reporter that work started and tells the
// technician about the new assignment.
func (s *NotificationService) DispatchTicketAssigned(ctx context.Context, ticket *domain.Ticket, assigneeID string) (DispatchResult, error) {
	if !s.sender.IsConnected() {
		s.metrics.RecordDispatch(false)
		s.logger.Warn("messaging gateway disconnected; skipping dispatch",
			zap.String("ticket_id", ticket.ID),
			zap.String("event", "ticket_assigned"))
		return DispatchResult{Skipped: true, Message: "gateway disconnected; dispatch skipped"}, nil
	}

	var result DispatchResult
	var sendErr error

	if ticket.ReporterPhone != nil && *ticket.ReporterPhone != "" {
		text := reporterAssignedMessage(ticket)
		recipient, err := s.sendAndPersist(ctx, ticket, ticket.ReporterID, *ticket.ReporterPhone,
			"Ticket In Progress", text, domain.NotificationInfo)
		result.Recipients = append(result.Recipients, recipient)
		if err != nil {
			sendErr = err
		}
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		s.logger.Error("assignee lookup failed",
			zap.String("user_id", assigneeID),
			zap.Error(err))
	} else if assignee.Phone != nil && *assignee.Phone != "" {
		text := assigneeMessage(ticket)
		recipient, err := s.sendAndPersist(ctx, ticket, &assignee.ID, *assignee.Phone,
			"New Assignment", text, domain.NotificationWarning)
		result.Recipients = append(result.Recipients, recipient)
		if err != nil {
			sendErr = err
		}
	} else {
		result.Recipients = append(result.Recipients, RecipientResult{
			UserID: &assigneeID,
			Reason: "no phone number",
		})
	}

	return s.finish(result, sendErr)
}

// finish propagates a send error only when nothing was delivered at all.
func (s *NotificationService) finish(result DispatchResult, sendErr error) (DispatchResult, error) {
	if !result.Success() && sendErr != nil {
		return result, sendErr
	}
	return result, nil
}

// sendAndPersist delivers one message and best-effort records its in-app copy.
// Persistence failures are logged but never fail the dispatch: the message is
// already on the wire.
func (s *NotificationService) sendAndPersist(ctx context.Context, ticket *domain.Ticket, userID *string, rawPhone, title, text string, kind domain.NotificationType) (RecipientResult, error) {
	phone := messaging.NormalizePhone(rawPhone, s.cfg.CountryPrefix)
	recipient := RecipientResult{UserID: userID, Phone: phone}

	sent, err := s.sender.Send(ctx, phone, text)
	if err != nil {
		s.metrics.RecordDispatch(false)
		s.logger.Error("message send failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("phone", phone),
			zap.Error(err))
		recipient.Reason = err.Error()
		return recipient, err
	}
	recipient.Sent = true
	recipient.MessageID = sent.MessageID
	s.metrics.RecordDispatch(true)

	record := &domain.Notification{
		UserID:          userID,
		Title:           title,
		Message:         text,
		Type:            kind,
		RelatedTicketID: &ticket.ID,
		PhoneNumber:     &phone,
		WAMessageID:     &sent.MessageID,
		WASentAt:        &sent.SentAt,
	}
	if err := s.notifications.Create(ctx, record); err != nil {
		s.logger.Error("failed to persist notification record",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		recipient.Reason = "sent but not persisted"
		return recipient, nil
	}
	recipient.Persisted = true
	return recipient, nil
}

// ListForUser returns the recipient's notification feed, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, limit)
}

// ListUnread returns the recipient's unread notifications.
func (s *NotificationService) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.notifications.ListUnread(ctx, userID)
}

// UnreadCount returns the unread badge count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.notifications.UnreadCount(ctx, userID)
}

// MarkRead marks a single notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	return s.notifications.MarkRead(ctx, id)
}

// MarkAllRead marks the recipient's whole feed as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

// Delete removes a notification.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	return s.notifications.Delete(ctx, id)
}

// DeleteRead clears the recipient's read notifications.
func (s *NotificationService) DeleteRead(ctx context.Context, userID string) (int64, error) {
	return s.notifications.DeleteRead(ctx, userID)
}

func reporterCreatedMessage(ticket *domain.Ticket) string {
	return fmt.Sprintf(
		"Your ticket %s has been registered.\n\nTitle: %s\nPriority: %s\nStatus: %s\n\nWe will keep you updated.",
		ticket.TicketNumber, ticket.Title, ticket.Priority, ticket.Status)
}

func helpdeskCreatedMessage(ticket *domain.Ticket) string {
	reporter := "anonymous"
	if ticket.ReporterName != nil {
		reporter = *ticket.ReporterName
	}
	return fmt.Sprintf(
		"New ticket %s requires verification.\n\nTitle: %s\nPriority: %s\nReporter: %s\nCreated: %s",
		ticket.TicketNumber, ticket.Title, ticket.Priority, reporter,
		ticket.CreatedAt.Format(time.RFC3339))
}

func reporterAssignedMessage(ticket *domain.Ticket) string {
	return fmt.Sprintf(
		"Your ticket %s is now being worked on.\n\nTitle: %s\nStatus: %s",
		ticket.TicketNumber, ticket.Title, ticket.Status)
}

func assigneeMessage(ticket *domain.Ticket) string {
	due := "-"
	if ticket.SLADue != nil {
		due = ticket.SLADue.Format(time.RFC3339)
	}
	return fmt.Sprintf(
		"A ticket has been assigned to you.\n\nNumber: %s\nTitle: %s\nPriority: %s\nSLA due: %s",
		ticket.TicketNumber, ticket.Title, ticket.Priority, due)
}
