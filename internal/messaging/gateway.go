// Package messaging abstracts the external phone-messaging gateway.
//
// The gateway itself is a separate process speaking the WhatsApp protocol; this
// package only carries the capability contract (connect, connection state,
// send) and talks to the gateway's local HTTP bridge. Callers must check
// IsConnected before Send.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/config"
)

// SendResult reports a delivered message.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Gateway is the external messaging capability.
type Gateway interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Send(ctx context.Context, address, text string) (SendResult, error)
}

type httpGateway struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPGateway builds a Gateway backed by the bridge's HTTP endpoints.
func NewHTTPGateway(cfg config.NotificationConfig, logger *zap.Logger) Gateway {
	return &httpGateway{
		baseURL: cfg.GatewayBaseURL,
		client:  &http.Client{Timeout: cfg.GatewayTimeout()},
		logger:  logger,
	}
}

// Connect asks the bridge to establish its upstream session.
func (g *httpGateway) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/connect", nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway connect: status %d", resp.StatusCode)
	}
	return nil
}

// IsConnected reports the bridge's upstream session state. Any transport or
// decode failure counts as disconnected.
func (g *httpGateway) IsConnected() bool {
	req, err := http.NewRequest(http.MethodGet, g.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("gateway status check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var status struct {
		Connected bool `json:"connected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false
	}
	return status.Connected
}

// Send delivers text to a normalized address and returns the gateway message id.
func (g *httpGateway) Send(ctx context.Context, address, text string) (SendResult, error) {
	payload, err := json.Marshal(map[string]string{
		"to":      address,
		"message": text,
	})
	if err != nil {
		return SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return SendResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return SendResult{}, fmt.Errorf("gateway send: status %d", resp.StatusCode)
	}

	var body struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return SendResult{}, err
	}
	return SendResult{MessageID: body.MessageID, SentAt: time.Now()}, nil
}
