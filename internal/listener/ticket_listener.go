// Package listener tails the ticket change feed.
//
// A database trigger emits one pg_notify per insert/update on tickets; the
// listener holds a dedicated connection on the channel, deduplicates deliveries
// through Redis and republishes qualifying changes as domain events.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
)

// Channel is the NOTIFY channel the tickets trigger publishes on.
const Channel = "ticket_events"

// changePayload is the trigger's JSON notification body.
type changePayload struct {
	Event         string  `json:"event"` // INSERT or UPDATE
	ID            string  `json:"id"`
	OldAssignedTo *string `json:"old_assigned_to"`
	NewAssignedTo *string `json:"new_assigned_to"`
	UpdatedAt     int64   `json:"updated_at"` // unix seconds
}

// TicketListener consumes the change feed and republishes domain events.
type TicketListener struct {
	pool       *pgxpool.Pool
	redis      *redis.Client
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	dedupTTL   time.Duration
	logger     *zap.Logger
}

// New constructs a listener.
func New(pool *pgxpool.Pool, redisClient *redis.Client, tickets repository.TicketRepository, dispatcher events.Dispatcher, cfg config.NotificationConfig, logger *zap.Logger) *TicketListener {
	return &TicketListener{
		pool:       pool,
		redis:      redisClient,
		tickets:    tickets,
		dispatcher: dispatcher,
		dedupTTL:   cfg.DedupTTL(),
		logger:     logger,
	}
}

// Run blocks on the notification channel until ctx is cancelled, reconnecting
// with backoff after connection loss. Notifications missed while disconnected
// are lost; delivery is at-least-once while connected, so consumers rely on
// the dedup guard rather than on exactly-once transport.
func (l *TicketListener) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("change feed connection lost; reconnecting",
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func (l *TicketListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}
	l.logger.Info("listening on ticket change feed", zap.String("channel", Channel))

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.handle(ctx, notification.Payload)
	}
}

// handle processes one raw notification. Errors are logged, never fatal: a bad
// payload must not take down the feed.
func (l *TicketListener) handle(ctx context.Context, raw string) {
	var payload changePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		l.logger.Error("malformed change feed payload", zap.String("payload", raw), zap.Error(err))
		return
	}

	eventType, ok := classify(payload)
	if !ok {
		return
	}

	fresh, err := l.markSeen(ctx, payload, eventType)
	if err != nil {
		// Dedup store down: degrade to at-least-once rather than drop.
		l.logger.Warn("dedup check failed; processing anyway", zap.Error(err))
	} else if !fresh {
		l.logger.Debug("duplicate change feed delivery skipped",
			zap.String("ticket_id", payload.ID),
			zap.String("event", string(eventType)))
		return
	}

	ticket, err := l.tickets.GetByID(ctx, payload.ID)
	if err != nil {
		l.logger.Error("failed to load ticket for change event",
			zap.String("ticket_id", payload.ID),
			zap.Error(err))
		return
	}

	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticket.ID,
		Timestamp: time.Now(),
	}
	switch eventType {
	case events.EventTicketCreated:
		event.Payload = events.TicketCreatedPayload{Ticket: *ticket}
	case events.EventTicketAssigned:
		if payload.NewAssignedTo == nil {
			return
		}
		event.Payload = events.TicketAssignedPayload{Ticket: *ticket, AssignedTo: *payload.NewAssignedTo}
	}

	if err := l.dispatcher.Publish(ctx, event); err != nil {
		l.logger.Error("failed to publish change event",
			zap.String("ticket_id", ticket.ID),
			zap.String("event", string(eventType)),
			zap.Error(err))
	}
}

// classify maps a row change to a domain event. Only inserts and
// unset-to-set assignment transitions qualify; every other update is noise.
func classify(payload changePayload) (events.EventType, bool) {
	switch payload.Event {
	case "INSERT":
		return events.EventTicketCreated, true
	case "UPDATE":
		if payload.OldAssignedTo == nil && payload.NewAssignedTo != nil {
			return events.EventTicketAssigned, true
		}
	}
	return "", false
}

// markSeen claims the idempotency key for this delivery. Returns false when
// another delivery already claimed it.
func (l *TicketListener) markSeen(ctx context.Context, payload changePayload, eventType events.EventType) (bool, error) {
	if l.redis == nil {
		return true, errors.New("dedup store not configured")
	}
	key := fmt.Sprintf("ticket:%s:%s:%d", payload.ID, eventType, payload.UpdatedAt)
	return l.redis.SetNX(ctx, key, 1, l.dedupTTL).Result()
}
