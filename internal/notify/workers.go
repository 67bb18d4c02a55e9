package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/outbox"
)

// Workers turns outbox entries into channel notifications, one handler per
// event type. A failing channel fails the entry so the dispatcher retries it.
type Workers struct {
	channels []Channel
	logger   *zap.Logger
}

// NewWorkers constructs the worker set.
func NewWorkers(logger *zap.Logger, channels ...Channel) *Workers {
	return &Workers{channels: channels, logger: logger}
}

// RegisterAll installs a handler for every known event type.
func (w *Workers) RegisterAll(d *outbox.Dispatcher) {
	d.Register(outbox.EventTicketCreated, w.handleCreated)
	d.Register(outbox.EventTicketCommentAdded, w.handleCommentAdded)
	d.Register(outbox.EventTicketStatusChange, w.handleStatusChanged)
	d.Register(outbox.EventTicketEscalated, w.handleEscalated)
}

func (w *Workers) handleCreated(ctx context.Context, entry domain.OutboxEntry) error {
	var payload outbox.TicketCreatedPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return err
	}
	return w.broadcast(ctx, Message{
		TicketID: payload.TicketID,
		Event:    entry.EventType,
		Title:    "New ticket",
		Body:     fmt.Sprintf("Ticket %s created and assigned to %s", payload.TicketID, payload.AssignedTo),
	})
}

func (w *Workers) handleCommentAdded(ctx context.Context, entry domain.OutboxEntry) error {
	var payload outbox.CommentAddedPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return err
	}
	if payload.Visibility == domain.VisibilityInternal {
		// internal notes stay internal
		return nil
	}
	return w.broadcast(ctx, Message{
		TicketID: payload.TicketID,
		Event:    entry.EventType,
		Title:    "New comment",
		Body:     payload.Preview,
	})
}

func (w *Workers) handleStatusChanged(ctx context.Context, entry domain.OutboxEntry) error {
	var payload outbox.StatusChangedPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return err
	}
	return w.broadcast(ctx, Message{
		TicketID: payload.TicketID,
		Event:    entry.EventType,
		Title:    "Status changed",
		Body:     fmt.Sprintf("%s -> %s", payload.OldStatus, payload.NewStatus),
	})
}

func (w *Workers) handleEscalated(ctx context.Context, entry domain.OutboxEntry) error {
	var payload outbox.EscalatedPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return err
	}
	msg := Message{
		TicketID: payload.TicketID,
		Event:    entry.EventType,
		Title:    fmt.Sprintf("Escalated to level %d", payload.ToLevel),
		Body:     fmt.Sprintf("Ticket %s escalated, now with %s", payload.TicketID, payload.AssignedTo),
	}

	// the escalation rule may pin a delivery channel
	if payload.Channel != "" {
		for _, ch := range w.channels {
			if ch.Name() == payload.Channel {
				return w.send(ctx, ch, msg)
			}
		}
		w.logger.Warn("escalation rule names an unconfigured channel, broadcasting",
			zap.String("channel", payload.Channel),
			zap.String("ticket_id", payload.TicketID))
	}
	return w.broadcast(ctx, msg)
}

func (w *Workers) broadcast(ctx context.Context, msg Message) error {
	for _, ch := range w.channels {
		if err := w.send(ctx, ch, msg); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workers) send(ctx context.Context, ch Channel, msg Message) error {
	if err := ch.Send(ctx, msg); err != nil {
		w.logger.Warn("channel send failed",
			zap.String("channel", ch.Name()),
			zap.String("ticket_id", msg.TicketID),
			zap.Error(err))
		return err
	}
	return nil
}
