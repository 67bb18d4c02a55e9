package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/lifecycle"
	"github.com/campuskit/helpdesk-service/internal/outbox"
	"github.com/campuskit/helpdesk-service/internal/repository"
	"github.com/campuskit/helpdesk-service/internal/routing"
	apperrors "github.com/campuskit/helpdesk-service/pkg/util"
)

// TicketService coordinates ticket commands. Every command runs inside one
// transaction: the ticket row is locked, the category tree re-validated, the
// state mutated and the outbox record appended atomically.
type TicketService struct {
	store    repository.Store
	resolver *routing.Resolver
	logger   *zap.Logger
	opts     TicketOptions
	now      func() time.Time
}

// TicketOptions bounds command behavior.
type TicketOptions struct {
	DefaultTAT       time.Duration
	AckTAT           time.Duration
	ForwardCeiling   int
	MaxMetadataBytes int
}

func (o TicketOptions) withDefaults() TicketOptions {
	if o.DefaultTAT <= 0 {
		o.DefaultTAT = lifecycle.DefaultTAT
	}
	if o.AckTAT <= 0 {
		o.AckTAT = 24 * time.Hour
	}
	if o.ForwardCeiling <= 0 {
		o.ForwardCeiling = lifecycle.DefaultForwardCeiling
	}
	if o.MaxMetadataBytes <= 0 {
		o.MaxMetadataBytes = 16384
	}
	return o
}

// NewTicketService constructs the service.
func NewTicketService(store repository.Store, resolver *routing.Resolver, logger *zap.Logger, opts TicketOptions) *TicketService {
	return &TicketService{
		store:    store,
		resolver: resolver,
		logger:   logger,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CategoryID       string
	SubcategoryID    *string
	SubSubcategoryID *string
	FieldValues      map[string]string
	Description      string
	Location         *string
}

// CommentInput describes a new thread comment. AwaitReply marks a handler
// question that pauses the TAT clock.
type CommentInput struct {
	Body       string
	Visibility domain.CommentVisibility
	AwaitReply bool
}

// CreateTicket validates the category tree, routes the ticket through the
// assignment cascade and appends the creation event, all in one transaction.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.CategoryID) == "" {
		return nil, apperrors.NewValidationError("category_id required", nil)
	}
	if err := s.checkMetadataSize(input.FieldValues); err != nil {
		return nil, err
	}

	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		category, err := tx.Categories().GetCategory(ctx, input.CategoryID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewStaleReference("category")
			}
			return err
		}
		if !category.IsActive {
			return apperrors.NewStaleReference("category")
		}

		var subcategory *domain.Subcategory
		if input.SubcategoryID != nil {
			subcategory, err = tx.Categories().GetSubcategory(ctx, *input.SubcategoryID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewStaleReference("subcategory")
				}
				return err
			}
			if !subcategory.IsActive || subcategory.CategoryID != category.ID {
				return apperrors.NewStaleReference("subcategory")
			}
		}

		var subSubcategory *domain.SubSubcategory
		if input.SubSubcategoryID != nil {
			if subcategory == nil {
				return apperrors.NewValidationError("sub_subcategory requires subcategory", nil)
			}
			subSubcategory, err = tx.Categories().GetSubSubcategory(ctx, *input.SubSubcategoryID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewStaleReference("sub-subcategory")
				}
				return err
			}
			if !subSubcategory.IsActive || subSubcategory.SubcategoryID != subcategory.ID {
				return apperrors.NewStaleReference("sub-subcategory")
			}
		}

		creator, err := tx.Users().GetByID(ctx, actor.ID)
		if err != nil {
			return apperrors.MapError(err)
		}

		resolution, err := s.resolver.Resolve(ctx, tx, routing.Input{
			Category:       category,
			Subcategory:    subcategory,
			SubSubcategory: subSubcategory,
			FieldSlugs:     fieldSlugs(input.FieldValues),
			Creator:        creator,
			Location:       input.Location,
		})
		if err != nil {
			return err
		}

		now := s.now()
		ackDue := now.Add(s.opts.AckTAT)
		ticket = &domain.Ticket{
			ExternalKey:      generateTicketKey(),
			CreatedBy:        actor.ID,
			CategoryID:       category.ID,
			SubcategoryID:    input.SubcategoryID,
			SubSubcategoryID: input.SubSubcategoryID,
			AssignedTo:       resolution.HandlerID,
			NeedsAttention:   resolution.NeedsAttention,
			Description:      strings.TrimSpace(input.Description),
			Location:         input.Location,
			Status:           domain.StatusOpen,
			AckDueAt:         &ackDue,
			Metadata:         domain.TicketMetadata{FieldValues: input.FieldValues},
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}

		if err := tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:   ticket.ID,
			ActorID:    actorID(actor),
			ChangeType: domain.ChangeTypeRouting,
			NewValue: map[string]any{
				"assigned_to": resolution.HandlerID,
				"step":        string(resolution.Step),
			},
		}); err != nil {
			return err
		}

		return s.appendEvent(ctx, tx, outbox.EventTicketCreated, outbox.TicketCreatedPayload{
			TicketID:   ticket.ID,
			CategoryID: ticket.CategoryID,
			CreatedBy:  ticket.CreatedBy,
			AssignedTo: ticket.AssignedTo,
			Step:       string(resolution.Step),
			Location:   ticket.Location,
		})
	})
	if err != nil {
		return nil, err
	}
	if ticket.NeedsAttention {
		s.logger.Warn("ticket created without routable handler",
			zap.String("ticket_id", ticket.ID),
			zap.String("category_id", ticket.CategoryID))
	}
	return ticket, nil
}

// ChangeStatus applies a lifecycle transition requested by the actor.
func (s *TicketService) ChangeStatus(ctx context.Context, actor domain.Actor, ticketID string, target domain.StatusCode, reason string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		ticket, err = s.lockAndValidate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		oldStatus := ticket.Status
		now := s.now()

		switch target {
		case domain.StatusInProgress:
			if !actor.Role.IsHandler() {
				return apperrors.NewForbidden("handler role required")
			}
			err = lifecycle.Start(ticket, s.opts.DefaultTAT, now)
		case domain.StatusAwaitingStudent:
			if !actor.Role.IsHandler() {
				return apperrors.NewForbidden("handler role required")
			}
			err = lifecycle.AwaitStudent(ticket, now)
		case domain.StatusEscalated:
			return s.escalateLocked(ctx, tx, ticket, actor, reason)
		case domain.StatusResolved:
			if !actor.Role.IsHandler() && actor.Role != domain.RoleCommittee {
				return apperrors.NewForbidden("handler role required")
			}
			err = lifecycle.Resolve(ticket, now)
		case domain.StatusReopened:
			err = lifecycle.Reopen(ticket, actor)
		case domain.StatusForwarded:
			return apperrors.NewValidationError("use the forward command", nil)
		default:
			return apperrors.NewValidationError("unknown target status", map[string]any{"status": target})
		}
		if err != nil {
			return guardError(err)
		}

		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if err := s.recordStatusChange(ctx, tx, actor, ticket.ID, oldStatus, ticket.Status, reason); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, outbox.EventTicketStatusChange, outbox.StatusChangedPayload{
			TicketID:  ticket.ID,
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			ActorID:   actor.ID,
			Reason:    reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// AddComment appends a comment and applies any implied transition: a handler
// question pauses the TAT clock, a student reply to a waiting ticket resumes
// it.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID string, input CommentInput) (*domain.Comment, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}
	if input.Visibility == "" {
		input.Visibility = domain.VisibilityPublic
	}
	if input.Visibility == domain.VisibilityInternal && !actor.Role.IsHandler() && actor.Role != domain.RoleCommittee {
		return nil, apperrors.NewForbidden("internal notes require a staff role")
	}

	var comment *domain.Comment
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := s.lockAndValidate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if actor.Role == domain.RoleStudent && ticket.CreatedBy != actor.ID {
			return apperrors.NewForbidden("access denied")
		}

		oldStatus := ticket.Status
		now := s.now()
		transitioned := false

		if input.AwaitReply && actor.Role.IsHandler() {
			if err := lifecycle.AwaitStudent(ticket, now); err != nil {
				return guardError(err)
			}
			transitioned = true
		} else if actor.ID == ticket.CreatedBy && ticket.Status == domain.StatusAwaitingStudent {
			if err := lifecycle.Resume(ticket, now); err != nil {
				return guardError(err)
			}
			transitioned = true
		}

		comment = &domain.Comment{
			TicketID:   ticket.ID,
			AuthorID:   actor.ID,
			AuthorRole: actor.Role,
			Visibility: input.Visibility,
			Body:       body,
		}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}

		if transitioned {
			if err := tx.Tickets().Update(ctx, ticket); err != nil {
				return err
			}
			if err := s.recordStatusChange(ctx, tx, actor, ticket.ID, oldStatus, ticket.Status, "comment"); err != nil {
				return err
			}
		}

		return s.appendEvent(ctx, tx, outbox.EventTicketCommentAdded, outbox.CommentAddedPayload{
			TicketID:   ticket.ID,
			CommentID:  comment.ID,
			AuthorID:   actor.ID,
			Visibility: input.Visibility,
			Preview:    stringPreview(body, 120),
		})
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Escalate bumps the escalation level and hands the ticket to the next rule
// target for its (domain, scope).
func (s *TicketService) Escalate(ctx context.Context, actor domain.Actor, ticketID, reason string) (*domain.Escalation, error) {
	var record *domain.Escalation
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := s.lockAndValidate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := s.escalateLocked(ctx, tx, ticket, actor, reason); err != nil {
			return err
		}
		records, err := tx.Escalations().ListByTicket(ctx, ticket.ID)
		if err != nil {
			return err
		}
		record = &records[len(records)-1]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// escalateLocked runs the shared escalation path against an already locked
// ticket.
func (s *TicketService) escalateLocked(ctx context.Context, tx repository.Store, ticket *domain.Ticket, actor domain.Actor, reason string) error {
	fromLevel := ticket.EscalationLevel
	now := s.now()
	if err := lifecycle.Escalate(ticket, now); err != nil {
		return guardError(err)
	}

	category, err := tx.Categories().GetCategory(ctx, ticket.CategoryID)
	if err != nil {
		return apperrors.MapError(err)
	}
	rule, channel := s.ruleForLevel(ctx, tx, category, ticket)
	if rule != "" {
		ticket.AssignedTo = rule
		ticket.NeedsAttention = false
	} else {
		// no rule at this level: keep the handler, flag for operators
		ticket.NeedsAttention = true
	}

	if err := tx.Tickets().Update(ctx, ticket); err != nil {
		return err
	}

	esc := &domain.Escalation{
		TicketID:  ticket.ID,
		FromLevel: fromLevel,
		ToLevel:   ticket.EscalationLevel,
		ActorID:   actorID(actor),
		Reason:    reason,
	}
	if err := tx.Escalations().Create(ctx, esc); err != nil {
		return err
	}
	if err := tx.History().Create(ctx, &domain.TicketHistory{
		TicketID:   ticket.ID,
		ActorID:    actorID(actor),
		ChangeType: domain.ChangeTypeEscalation,
		OldValue:   map[string]any{"level": fromLevel},
		NewValue:   map[string]any{"level": ticket.EscalationLevel, "assigned_to": ticket.AssignedTo},
	}); err != nil {
		return err
	}
	return s.appendEvent(ctx, tx, outbox.EventTicketEscalated, outbox.EscalatedPayload{
		TicketID:   ticket.ID,
		FromLevel:  fromLevel,
		ToLevel:    ticket.EscalationLevel,
		AssignedTo: ticket.AssignedTo,
		Reason:     reason,
		Channel:    channel,
	})
}

// ruleForLevel looks up the escalation rule matching the ticket's new level,
// trying the scoped rule before the domain-wide one.
func (s *TicketService) ruleForLevel(ctx context.Context, tx repository.Store, category *domain.Category, ticket *domain.Ticket) (assignee, channel string) {
	routingDomain := category.RoutingDomain()
	scope := category.Scope
	if category.DynamicScope {
		if creator, err := tx.Users().GetByID(ctx, ticket.CreatedBy); err == nil {
			scope = creator.Hostel
		}
	}
	if scope != nil {
		if rule, err := tx.EscalationRules().GetRule(ctx, routingDomain, scope, ticket.EscalationLevel); err == nil {
			return rule.AssigneeID, rule.Channel
		}
	}
	if rule, err := tx.EscalationRules().GetRule(ctx, routingDomain, nil, ticket.EscalationLevel); err == nil {
		return rule.AssigneeID, rule.Channel
	}
	return "", ""
}

// Forward hands the ticket to an explicit target, or to the next-level rule
// handler when target is "auto". The escalation level does not change.
func (s *TicketService) Forward(ctx context.Context, actor domain.Actor, ticketID, target, reason string) (*domain.Ticket, error) {
	if !actor.Role.IsHandler() {
		return nil, apperrors.NewForbidden("handler role required")
	}
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		ticket, err = s.lockAndValidate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		oldStatus := ticket.Status
		oldAssignee := ticket.AssignedTo

		if err := lifecycle.Forward(ticket, s.opts.ForwardCeiling, s.now()); err != nil {
			return guardError(err)
		}

		newAssignee := target
		if target == "" || target == "auto" {
			category, err := tx.Categories().GetCategory(ctx, ticket.CategoryID)
			if err != nil {
				return apperrors.MapError(err)
			}
			// one level above the current escalation level
			probe := *ticket
			probe.EscalationLevel = ticket.EscalationLevel + 1
			newAssignee, _ = s.ruleForLevel(ctx, tx, category, &probe)
			if newAssignee == "" {
				return apperrors.NewDomainError("CONFIG_INCOMPLETE", "no forward target at next level", 409, nil)
			}
		} else {
			handler, err := tx.Users().GetByID(ctx, target)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewNotFound("handler", map[string]any{"handler_id": target})
				}
				return err
			}
			if !handler.Active || !handler.Role.IsHandler() {
				return apperrors.NewConflict("target cannot handle tickets", map[string]any{"handler_id": target})
			}
		}
		ticket.AssignedTo = newAssignee
		ticket.NeedsAttention = false

		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if err := tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:   ticket.ID,
			ActorID:    actorID(actor),
			ChangeType: domain.ChangeTypeForward,
			OldValue:   map[string]any{"assigned_to": oldAssignee},
			NewValue:   map[string]any{"assigned_to": newAssignee, "forward_count": ticket.Metadata.ForwardCount},
		}); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, outbox.EventTicketStatusChange, outbox.StatusChangedPayload{
			TicketID:  ticket.ID,
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			ActorID:   actor.ID,
			Reason:    reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Reassign moves the ticket to a specific handler. Privileged; audit only,
// no outbox event.
func (s *TicketService) Reassign(ctx context.Context, actor domain.Actor, ticketID, targetHandler string) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleSuperAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		handler, err := tx.Users().GetByID(ctx, targetHandler)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("handler", map[string]any{"handler_id": targetHandler})
			}
			return err
		}
		if !handler.Active || !handler.Role.IsHandler() {
			return apperrors.NewConflict("target cannot handle tickets", map[string]any{"handler_id": targetHandler})
		}

		ticket, err = s.lockAndValidate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		oldAssignee := ticket.AssignedTo
		ticket.AssignedTo = handler.ID
		ticket.NeedsAttention = false
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		return tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:   ticket.ID,
			ActorID:    actorID(actor),
			ChangeType: domain.ChangeTypeAssignee,
			OldValue:   map[string]any{"assigned_to": oldAssignee},
			NewValue:   map[string]any{"assigned_to": handler.ID},
		})
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ExtendTAT grows the resolution window of an in-progress ticket, preserving
// the full extension history.
func (s *TicketService) ExtendTAT(ctx context.Context, actor domain.Actor, ticketID string, newTAT time.Duration) (*domain.Ticket, error) {
	if !actor.Role.IsHandler() {
		return nil, apperrors.NewForbidden("handler role required")
	}
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		ticket, err = s.lockAndValidate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		previous := ticket.TAT
		if err := lifecycle.ExtendTAT(ticket, newTAT, actor.ID, s.now()); err != nil {
			return guardError(err)
		}
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		return tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:   ticket.ID,
			ActorID:    actorID(actor),
			ChangeType: domain.ChangeTypeTATExtended,
			OldValue:   map[string]any{"tat_seconds": int64(previous / time.Second)},
			NewValue:   map[string]any{"tat_seconds": int64(newTAT / time.Second)},
		})
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Reopen re-enters the flow from RESOLVED, keeping the prior handler.
func (s *TicketService) Reopen(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		ticket, err = s.lockAndValidate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		oldStatus := ticket.Status
		if err := lifecycle.Reopen(ticket, actor); err != nil {
			return guardError(err)
		}
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if err := tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:   ticket.ID,
			ActorID:    actorID(actor),
			ChangeType: domain.ChangeTypeReopen,
			OldValue:   map[string]any{"status": oldStatus},
			NewValue:   map[string]any{"status": ticket.Status, "reopen_count": ticket.ReopenCount},
		}); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, outbox.EventTicketStatusChange, outbox.StatusChangedPayload{
			TicketID:  ticket.ID,
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			ActorID:   actor.ID,
			Reason:    "reopened",
		})
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Rate records the creator's satisfaction score on a resolved ticket.
func (s *TicketService) Rate(ctx context.Context, actor domain.Actor, ticketID string, rating int, feedback string) (*domain.Ticket, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", nil)
	}
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		ticket, err = s.lockAndValidate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if ticket.CreatedBy != actor.ID {
			return apperrors.NewForbidden("only the creator may rate")
		}
		if ticket.Status != domain.StatusResolved {
			return apperrors.NewGuardViolation("only resolved tickets can be rated", nil)
		}
		ticket.Rating = &rating
		if feedback != "" {
			ticket.Feedback = &feedback
		}
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		return tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:   ticket.ID,
			ActorID:    actorID(actor),
			ChangeType: domain.ChangeTypeRating,
			NewValue:   map[string]any{"rating": rating},
		})
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// EscalateOverdue scans unresolved tickets past their adjusted deadline and
// escalates each through the same path as a manual escalation. Called
// periodically by the worker process.
func (s *TicketService) EscalateOverdue(ctx context.Context, batch int) (int, error) {
	now := s.now()
	// candidates are pre-filtered on the raw deadline; the pause-adjusted
	// check happens in the lifecycle package per ticket
	candidates, err := s.store.Tickets().ListDueCandidates(ctx, now, batch)
	if err != nil {
		return 0, err
	}
	escalated := 0
	actor := domain.Actor{ID: domain.SystemActorID, Role: domain.RoleSuperAdmin}
	for _, candidate := range candidates {
		if !lifecycle.IsOverdue(&candidate, now) {
			continue
		}
		err := s.store.WithinTx(ctx, func(tx repository.Store) error {
			ticket, err := tx.Tickets().GetByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !lifecycle.IsOverdue(ticket, s.now()) {
				return nil
			}
			return s.escalateLocked(ctx, tx, ticket, actor, "TAT breach")
		})
		if err != nil {
			s.logger.Error("auto-escalation failed", zap.String("ticket_id", candidate.ID), zap.Error(err))
			continue
		}
		escalated++
	}
	return escalated, nil
}

// GetTicket fetches a ticket with role-based access checks.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, []domain.Comment, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, nil, err
	}
	if actor.Role == domain.RoleStudent && ticket.CreatedBy != actor.ID {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	comments, err := s.store.Comments().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role == domain.RoleStudent {
		visible := comments[:0]
		for _, c := range comments {
			if c.Visibility == domain.VisibilityPublic {
				visible = append(visible, c)
			}
		}
		comments = visible
	}
	return ticket, comments, nil
}

// ListTickets returns tickets scoped to the actor.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if actor.Role == domain.RoleStudent {
		filter.CreatedBy = &actor.ID
	}
	return s.store.Tickets().ListWithFilter(ctx, filter)
}

// ListHistory returns the audit trail for staff.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if !actor.Role.IsHandler() && actor.Role != domain.RoleCommittee {
		return nil, apperrors.NewForbidden("staff role required")
	}
	return s.store.History().ListByTicket(ctx, ticketID, limit, offset)
}

// lockAndValidate locks the ticket row and re-validates its category inside
// the transaction, defending against concurrent deactivation.
func (s *TicketService) lockAndValidate(ctx context.Context, tx repository.Store, ticketID string) (*domain.Ticket, error) {
	ticket, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	category, err := tx.Categories().GetCategory(ctx, ticket.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewStaleReference("category")
		}
		return nil, err
	}
	if !category.IsActive {
		return nil, apperrors.NewStaleReference("category")
	}
	return ticket, nil
}

func (s *TicketService) appendEvent(ctx context.Context, tx repository.Store, eventType string, payload any) error {
	entry, err := outbox.NewEntry(eventType, payload)
	if err != nil {
		return err
	}
	return tx.Outbox().Append(ctx, entry)
}

func (s *TicketService) recordStatusChange(ctx context.Context, tx repository.Store, actor domain.Actor, ticketID string, oldStatus, newStatus domain.StatusCode, reason string) error {
	return tx.History().Create(ctx, &domain.TicketHistory{
		TicketID:   ticketID,
		ActorID:    actorID(actor),
		ChangeType: domain.ChangeTypeStatus,
		OldValue:   map[string]any{"status": oldStatus},
		NewValue:   map[string]any{"status": newStatus, "reason": reason},
	})
}

func (s *TicketService) checkMetadataSize(fieldValues map[string]string) error {
	if len(fieldValues) == 0 {
		return nil
	}
	raw, err := json.Marshal(fieldValues)
	if err != nil {
		return apperrors.NewValidationError("invalid field values", nil)
	}
	if len(raw) > s.opts.MaxMetadataBytes {
		return apperrors.NewPayloadTooLarge(s.opts.MaxMetadataBytes)
	}
	return nil
}

func guardError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.NewGuardViolation(err.Error(), nil)
}

func actorID(actor domain.Actor) *string {
	if actor.ID == "" {
		return nil
	}
	id := actor.ID
	return &id
}

func fieldSlugs(values map[string]string) []string {
	if len(values) == 0 {
		return nil
	}
	slugs := make([]string, 0, len(values))
	for slug := range values {
		slugs = append(slugs, slug)
	}
	return slugs
}

func generateTicketKey() string {
	return "HDT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	cut := max
	ellipsis := ""
	if max > 3 {
		cut = max - 3
		ellipsis = "..."
	}
	// never split a multibyte rune
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + ellipsis
}
