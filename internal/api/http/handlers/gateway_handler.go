package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/messaging"
)

// GatewayHandler exposes the messaging gateway's state to operators.
type GatewayHandler struct {
	gateway messaging.Gateway
}

// NewGatewayHandler constructs handler.
func NewGatewayHandler(gateway messaging.Gateway) *GatewayHandler {
	return &GatewayHandler{gateway: gateway}
}

// Status GET /gateway/status.
func (h *GatewayHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{
		"connected": h.gateway.IsConnected(),
	}})
}

// Connect POST /gateway/connect.
func (h *GatewayHandler) Connect(c *fiber.Ctx) error {
	if err := h.gateway.Connect(c.Context()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "connecting"}})
}
