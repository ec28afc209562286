// Package stocksync delivers stock and document events to an external
// marketplace endpoint. It consumes outbox messages via the relay worker;
// delivery is fire-and-forget from the ledger's point of view, so document
// and stock transactions never wait on this code.
package stocksync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"warelog/internal/domain/event"
	"warelog/internal/infrastructure/storage/postgres"
	"warelog/pkg/logger"
)

// Config for the sync handler.
type Config struct {
	// EndpointURL receives event payloads via POST. Empty disables delivery
	// (messages are acknowledged without sending).
	EndpointURL string

	// AuthToken is sent as a bearer token when set
	AuthToken string

	// Timeout per delivery attempt
	Timeout time.Duration
}

// DefaultConfig returns delivery defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
	}
}

// Handler implements postgres.OutboxHandler.
type Handler struct {
	cfg    Config
	client *http.Client
}

// Ensure compile-time interface compliance.
var _ postgres.OutboxHandler = (*Handler)(nil)

// NewHandler creates a new sync handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Handler{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Handle delivers one outbox message. Non-2xx responses count as failures
// so the relay retries them with backoff.
func (h *Handler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	if h.cfg.EndpointURL == "" {
		logger.Debug(ctx, "stocksync disabled, dropping event",
			"message_id", msg.ID,
			"topic", msg.Topic,
		)
		return nil
	}

	// Only stock and document topics leave the system.
	switch msg.Topic {
	case event.TopicStockChanged, event.TopicDocumentCreated, event.TopicDocumentClosed, event.TopicDocumentDeleted:
	default:
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.EndpointURL, bytes.NewReader(msg.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Topic", msg.Topic)
	req.Header.Set("X-Event-ID", msg.ID.String())
	if h.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.AuthToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver event: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d for topic %s", resp.StatusCode, msg.Topic)
	}

	logger.Debug(ctx, "event delivered",
		"message_id", msg.ID,
		"topic", msg.Topic,
	)

	return nil
}
