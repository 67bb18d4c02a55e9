package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/outbox"
)

type fakeChannel struct {
	name string
	sent []Message
	err  error
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, msg Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func escalatedEntry(t *testing.T, payload outbox.EscalatedPayload) domain.OutboxEntry {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return domain.OutboxEntry{ID: "e1", EventType: outbox.EventTicketEscalated, Payload: raw}
}

func TestEscalationRoutedToRuleChannel(t *testing.T) {
	email := &fakeChannel{name: "email"}
	webhook := &fakeChannel{name: "webhook"}
	w := NewWorkers(zap.NewNop(), email, webhook)

	entry := escalatedEntry(t, outbox.EscalatedPayload{
		TicketID: "t1", ToLevel: 2, AssignedTo: "admin-2", Channel: "email",
	})
	require.NoError(t, w.handleEscalated(context.Background(), entry))

	require.Len(t, email.sent, 1)
	assert.Empty(t, webhook.sent, "rule-pinned channel excludes the rest")
	assert.Equal(t, "t1", email.sent[0].TicketID)
}

func TestEscalationWithoutChannelBroadcasts(t *testing.T) {
	email := &fakeChannel{name: "email"}
	webhook := &fakeChannel{name: "webhook"}
	w := NewWorkers(zap.NewNop(), email, webhook)

	entry := escalatedEntry(t, outbox.EscalatedPayload{TicketID: "t1", ToLevel: 1})
	require.NoError(t, w.handleEscalated(context.Background(), entry))

	assert.Len(t, email.sent, 1)
	assert.Len(t, webhook.sent, 1)
}

func TestEscalationUnknownChannelFallsBackToBroadcast(t *testing.T) {
	email := &fakeChannel{name: "email"}
	w := NewWorkers(zap.NewNop(), email)

	entry := escalatedEntry(t, outbox.EscalatedPayload{TicketID: "t1", ToLevel: 1, Channel: "sms"})
	require.NoError(t, w.handleEscalated(context.Background(), entry))

	assert.Len(t, email.sent, 1)
}

func TestChannelFailurePropagatesForRetry(t *testing.T) {
	email := &fakeChannel{name: "email", err: errors.New("relay down")}
	w := NewWorkers(zap.NewNop(), email)

	entry := escalatedEntry(t, outbox.EscalatedPayload{TicketID: "t1", ToLevel: 1, Channel: "email"})
	assert.Error(t, w.handleEscalated(context.Background(), entry))
}
