package service

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/observability"
)

func notificationFixture(gateway *fakeGateway, notifyHelpdesk bool) (*NotificationService, *fakeNotificationRepo, *fakeUserRepo) {
	notifications := &fakeNotificationRepo{}
	phone := "08999888777"
	users := &fakeUserRepo{
		users: map[string]*domain.User{
			"tech-1": {ID: "tech-1", FullName: "Tech One", Role: domain.RoleTechnician, Phone: &phone},
		},
		helpdesk: []domain.User{
			{ID: "hd-1", FullName: "Helpdesk One", Role: domain.RoleHelpdesk, Phone: &phone},
		},
	}

	svc := NewNotificationService(NotificationDependencies{
		NotificationRepo: notifications,
		UserRepo:         users,
		Gateway:          gateway,
		Config: config.NotificationConfig{
			CountryPrefix:  "62",
			NotifyHelpdesk: notifyHelpdesk,
		},
		Metrics: observability.NewMetrics(),
		Logger:  zap.NewNop(),
	})
	return svc, notifications, users
}

func sampleTicket() *domain.Ticket {
	reporterID := "citizen-1"
	reporterName := "Jane Citizen"
	reporterPhone := "081234567890"
	return &domain.Ticket{
		ID:           "ticket-1",
		TicketNumber: "INC-2026-0042",
		Type:         domain.TicketTypeIncident,
		Title:        "printer down",
		Priority:     domain.PriorityMedium,
		Status:       domain.TicketStatusOpen,
		OPDID:        "opd-1",
		ReporterID:   &reporterID,
		ReporterName: &reporterName,
		ReporterPhone: &reporterPhone,
	}
}

func TestDispatchSkippedWhenGatewayDisconnected(t *testing.T) {
	gateway := &fakeGateway{connected: false}
	svc, notifications, _ := notificationFixture(gateway, true)

	result, err := svc.DispatchTicketCreated(context.Background(), sampleTicket())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !result.Skipped {
		t.Fatal("dispatch should be skipped while disconnected")
	}
	if len(gateway.sent) != 0 {
		t.Fatalf("sent %d messages while disconnected", len(gateway.sent))
	}
	if len(notifications.created) != 0 {
		t.Fatal("no records should be persisted for a skipped dispatch")
	}
}

func TestDispatchTicketCreatedSendsAndPersists(t *testing.T) {
	gateway := &fakeGateway{connected: true}
	svc, notifications, _ := notificationFixture(gateway, true)

	result, err := svc.DispatchTicketCreated(context.Background(), sampleTicket())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Skipped {
		t.Fatal("dispatch should run while connected")
	}
	if !result.Success() {
		t.Fatal("expected at least one delivery")
	}

	// Reporter plus one helpdesk broadcast.
	if len(gateway.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(gateway.sent))
	}
	if gateway.sent[0].Address != "6281234567890" {
		t.Fatalf("reporter address = %s, want normalized 62 prefix", gateway.sent[0].Address)
	}
	if !strings.Contains(gateway.sent[0].Text, "INC-2026-0042") {
		t.Fatal("message should reference the ticket number")
	}
	if len(notifications.created) != 2 {
		t.Fatalf("persisted = %d, want 2", len(notifications.created))
	}
	for _, recipient := range result.Recipients {
		if !recipient.Sent || !recipient.Persisted {
			t.Fatalf("recipient not fully processed: %+v", recipient)
		}
	}
}

func TestDispatchTicketCreatedHelpdeskBroadcastDisabled(t *testing.T) {
	gateway := &fakeGateway{connected: true}
	svc, _, _ := notificationFixture(gateway, false)

	if _, err := svc.DispatchTicketCreated(context.Background(), sampleTicket()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(gateway.sent) != 1 {
		t.Fatalf("sent = %d, want reporter only", len(gateway.sent))
	}
}

func TestDispatchErrorOnlyWhenNothingDelivered(t *testing.T) {
	gateway := &fakeGateway{connected: true, failAll: true}
	svc, notifications, _ := notificationFixture(gateway, true)

	_, err := svc.DispatchTicketCreated(context.Background(), sampleTicket())
	if err == nil {
		t.Fatal("expected error when every send fails")
	}
	if len(notifications.created) != 0 {
		t.Fatal("failed sends must not leave notification rows")
	}
}

func TestDispatchPersistFailureIsSoft(t *testing.T) {
	gateway := &fakeGateway{connected: true}
	svc, notifications, _ := notificationFixture(gateway, false)
	notifications.failCreate = true

	result, err := svc.DispatchTicketCreated(context.Background(), sampleTicket())
	if err != nil {
		t.Fatalf("persist failure must not fail the dispatch: %v", err)
	}
	if len(result.Recipients) != 1 {
		t.Fatalf("recipients = %d", len(result.Recipients))
	}
	recipient := result.Recipients[0]
	if !recipient.Sent || recipient.Persisted {
		t.Fatalf("want sent-but-not-persisted, got %+v", recipient)
	}
}

func TestDispatchTicketAssigned(t *testing.T) {
	gateway := &fakeGateway{connected: true}
	svc, notifications, _ := notificationFixture(gateway, true)

	result, err := svc.DispatchTicketAssigned(context.Background(), sampleTicket(), "tech-1")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(gateway.sent) != 2 {
		t.Fatalf("sent = %d, want reporter and assignee", len(gateway.sent))
	}
	if !strings.Contains(gateway.sent[1].Text, "assigned to you") {
		t.Fatal("assignee message missing assignment text")
	}
	if len(notifications.created) != 2 {
		t.Fatalf("persisted = %d, want 2", len(notifications.created))
	}
	if !result.Success() {
		t.Fatal("expected successful dispatch")
	}
}

func TestDispatchTicketAssignedUnknownAssignee(t *testing.T) {
	gateway := &fakeGateway{connected: true}
	svc, _, users := notificationFixture(gateway, true)
	delete(users.users, "tech-1")

	result, err := svc.DispatchTicketAssigned(context.Background(), sampleTicket(), "tech-1")
	if err != nil {
		t.Fatalf("unknown assignee must not fail the flow: %v", err)
	}
	// Reporter still notified.
	if len(gateway.sent) != 1 {
		t.Fatalf("sent = %d, want reporter only", len(gateway.sent))
	}
	if !result.Success() {
		t.Fatal("reporter delivery should count as success")
	}
}
