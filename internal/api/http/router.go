package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/chat"
	"github.com/spec-kit/servicedesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Approvals      *handlers.ApprovalsHandler
	Notifications  *handlers.NotificationsHandler
	Chat           *handlers.ChatHandler
	Gateway        *handlers.GatewayHandler
	ChatSocket     *chat.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	// Anonymous incident intake.
	app.Post("/public/incidents", cfg.Tickets.CreatePublicIncident)

	// Realtime chat; authentication happens at upgrade.
	app.Get("/ws/chat", cfg.ChatSocket.UpgradeGate(), cfg.ChatSocket.Serve())

	api := app.Group("", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("/incidents", cfg.Tickets.CreateIncident)
	tickets.Post("/requests", cfg.Tickets.CreateServiceRequest)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/classify", auth.RequireRole(
		domain.RoleUnitHead, domain.RoleSectionHead, domain.RoleOPDAdmin,
		domain.RoleHelpdesk, domain.RoleCityAdmin, domain.RoleSuperAdmin,
	), cfg.Tickets.Classify)
	tickets.Post("/:id/assign", auth.RequireRole(
		domain.RoleUnitHead, domain.RoleSectionHead, domain.RoleOPDAdmin,
		domain.RoleHelpdesk, domain.RoleCityAdmin, domain.RoleSuperAdmin,
	), cfg.Tickets.Assign)
	tickets.Patch("/:id/status", auth.RequireStaff(), cfg.Tickets.UpdateStatus)

	tickets.Get("/:id/approvals", cfg.Approvals.ListSteps)
	tickets.Post("/:id/approvals/approve", auth.RequireStaff(), cfg.Approvals.Approve)
	tickets.Post("/:id/approvals/reject", auth.RequireStaff(), cfg.Approvals.Reject)

	tickets.Get("/:id/comments", cfg.Chat.ListComments)
	tickets.Post("/:id/comments", cfg.Chat.AddComment)
	tickets.Delete("/comments/:id", auth.RequireStaff(), cfg.Chat.DeleteComment)

	notifications := api.Group("/notifications")
	notifications.Get("", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Patch("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Patch("/:id/read", cfg.Notifications.MarkRead)
	notifications.Delete("/read", cfg.Notifications.DeleteRead)
	notifications.Delete("/:id", cfg.Notifications.Delete)

	chatGroup := api.Group("/chat")
	chatGroup.Post("/rooms", cfg.Chat.CreateRoom)
	chatGroup.Get("/rooms", cfg.Chat.ListRooms)
	chatGroup.Get("/rooms/:id", cfg.Chat.GetRoom)
	chatGroup.Get("/rooms/:id/messages", cfg.Chat.ListMessages)
	chatGroup.Post("/rooms/:id/messages", cfg.Chat.SendMessage)
	chatGroup.Patch("/rooms/:id/read", cfg.Chat.MarkRead)
	chatGroup.Get("/unread-count", cfg.Chat.UnreadCount)

	gateway := api.Group("/gateway", auth.RequireRole(
		domain.RoleCityAdmin, domain.RoleSuperAdmin, domain.RoleHelpdesk,
	))
	gateway.Get("/status", cfg.Gateway.Status)
	gateway.Post("/connect", cfg.Gateway.Connect)
}
