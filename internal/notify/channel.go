package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/campuskit/helpdesk-service/internal/config"
)

// Message is the channel-agnostic notification shape.
type Message struct {
	TicketID string `json:"ticket_id"`
	Event    string `json:"event"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// Channel is the outbound delivery capability. Send either succeeds or
// returns an error that feeds the dispatcher's retry path.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// WebhookChannel posts messages to a Slack-style incoming webhook.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel builds the webhook channel; a nil client uses the
// default.
func NewWebhookChannel(url string, client *http.Client) *WebhookChannel {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookChannel{url: url, client: client}
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// EmailChannel is the mail adapter. Delivery is stubbed to structured logs
// until an SMTP relay is wired in.
type EmailChannel struct {
	from   string
	logger *zap.Logger
}

// NewEmailChannel builds the email channel.
func NewEmailChannel(cfg config.NotificationConfig, logger *zap.Logger) *EmailChannel {
	return &EmailChannel{from: cfg.EmailFrom, logger: logger}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(e.from) == "" {
		return nil
	}
	e.logger.Info("email notification",
		zap.String("from", e.from),
		zap.String("ticket_id", msg.TicketID),
		zap.String("event", msg.Event),
		zap.String("title", msg.Title))
	return nil
}
