package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/lifecycle"
	"github.com/campuskit/helpdesk-service/internal/repository"
)

// memStore is an in-memory repository.Store. WithinTx snapshots all state and
// restores it when the callback fails, mirroring a rolled-back transaction.
type memStore struct {
	seq         int
	tickets     map[string]domain.Ticket
	categories  map[string]domain.Category
	subcats     map[string]domain.Subcategory
	subsubcats  map[string]domain.SubSubcategory
	fields      []domain.CategoryField
	coverage    []domain.CategoryCoverage
	rules       []domain.EscalationRule
	escalations []domain.Escalation
	statuses    map[domain.StatusCode]domain.StatusDefinition
	outbox      []domain.OutboxEntry
	comments    []domain.Comment
	history     []domain.TicketHistory
	users       map[string]domain.User
}

func newMemStore() *memStore {
	return &memStore{
		tickets:    make(map[string]domain.Ticket),
		categories: make(map[string]domain.Category),
		subcats:    make(map[string]domain.Subcategory),
		subsubcats: make(map[string]domain.SubSubcategory),
		statuses:   make(map[domain.StatusCode]domain.StatusDefinition),
		users:      make(map[string]domain.User),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) Tickets() repository.TicketRepository                 { return &memTickets{s} }
func (s *memStore) Categories() repository.CategoryRepository            { return &memCategories{s} }
func (s *memStore) EscalationRules() repository.EscalationRuleRepository { return &memRules{s} }
func (s *memStore) Escalations() repository.EscalationRepository         { return &memEscalations{s} }
func (s *memStore) Statuses() repository.StatusRepository                { return &memStatuses{s} }
func (s *memStore) Outbox() repository.OutboxRepository                  { return &memOutbox{s} }
func (s *memStore) Comments() repository.CommentRepository               { return &memComments{s} }
func (s *memStore) History() repository.TicketHistoryRepository          { return &memHistory{s} }
func (s *memStore) Users() repository.UserRepository                     { return &memUsers{s} }

func (s *memStore) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	snapshot := s.clone()
	if err := fn(s); err != nil {
		*s = *snapshot
		return err
	}
	return nil
}

func (s *memStore) clone() *memStore {
	c := *s
	c.tickets = make(map[string]domain.Ticket, len(s.tickets))
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	c.escalations = append([]domain.Escalation(nil), s.escalations...)
	c.outbox = append([]domain.OutboxEntry(nil), s.outbox...)
	c.comments = append([]domain.Comment(nil), s.comments...)
	c.history = append([]domain.TicketHistory(nil), s.history...)
	c.users = make(map[string]domain.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	return &c
}

type memTickets struct{ s *memStore }

func (r *memTickets) Create(_ context.Context, t *domain.Ticket) error {
	t.ID = r.s.nextID("ticket")
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	r.s.tickets[t.ID] = *t
	return nil
}

func (r *memTickets) Update(_ context.Context, t *domain.Ticket) error {
	if _, ok := r.s.tickets[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	t.UpdatedAt = time.Now()
	r.s.tickets[t.ID] = *t
	return nil
}

func (r *memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r *memTickets) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *memTickets) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && t.AssignedTo != *filter.AssignedTo {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memTickets) CountOpenAssigned(_ context.Context, handlerIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(handlerIDs))
	for _, id := range handlerIDs {
		out[id] = 0
	}
	for _, t := range r.s.tickets {
		if t.Status == domain.StatusResolved {
			continue
		}
		if _, ok := out[t.AssignedTo]; ok {
			out[t.AssignedTo]++
		}
	}
	return out, nil
}

func (r *memTickets) ListDueCandidates(_ context.Context, before time.Time, limit int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if t.Status == domain.StatusResolved || t.ResolutionDueAt == nil {
			continue
		}
		if t.ResolutionDueAt.Before(before) {
			out = append(out, t)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type memCategories struct{ s *memStore }

func (r *memCategories) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	c, ok := r.s.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (r *memCategories) GetSubcategory(_ context.Context, id string) (*domain.Subcategory, error) {
	sc, ok := r.s.subcats[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &sc, nil
}

func (r *memCategories) GetSubSubcategory(_ context.Context, id string) (*domain.SubSubcategory, error) {
	ss, ok := r.s.subsubcats[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ss, nil
}

func (r *memCategories) ListFieldsBySlugs(_ context.Context, subcategoryID string, slugs []string) ([]domain.CategoryField, error) {
	allowed := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		allowed[slug] = true
	}
	var out []domain.CategoryField
	for _, f := range r.s.fields {
		if f.SubcategoryID == subcategoryID && allowed[f.Slug] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memCategories) ListCoverage(_ context.Context, categoryID string) ([]domain.CategoryCoverage, error) {
	var out []domain.CategoryCoverage
	for _, cov := range r.s.coverage {
		if cov.CategoryID == categoryID {
			out = append(out, cov)
		}
	}
	return out, nil
}

type memRules struct{ s *memStore }

func (r *memRules) GetRule(_ context.Context, routingDomain string, scope *string, level int) (*domain.EscalationRule, error) {
	for i := range r.s.rules {
		rule := &r.s.rules[i]
		if rule.Domain != routingDomain || rule.Level != level {
			continue
		}
		if scope == nil && rule.Scope == nil {
			return rule, nil
		}
		if scope != nil && rule.Scope != nil && *scope == *rule.Scope {
			return rule, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memEscalations struct{ s *memStore }

func (r *memEscalations) Create(_ context.Context, esc *domain.Escalation) error {
	esc.ID = r.s.nextID("esc")
	esc.CreatedAt = time.Now()
	r.s.escalations = append(r.s.escalations, *esc)
	return nil
}

func (r *memEscalations) ListByTicket(_ context.Context, ticketID string) ([]domain.Escalation, error) {
	var out []domain.Escalation
	for _, esc := range r.s.escalations {
		if esc.TicketID == ticketID {
			out = append(out, esc)
		}
	}
	return out, nil
}

type memStatuses struct{ s *memStore }

func (r *memStatuses) List(context.Context) ([]domain.StatusDefinition, error) {
	var out []domain.StatusDefinition
	for _, def := range r.s.statuses {
		out = append(out, def)
	}
	return out, nil
}

func (r *memStatuses) Upsert(_ context.Context, def *domain.StatusDefinition) error {
	r.s.statuses[def.Value] = *def
	return nil
}

func (r *memStatuses) Delete(_ context.Context, value domain.StatusCode) error {
	delete(r.s.statuses, value)
	return nil
}

type memOutbox struct{ s *memStore }

func (r *memOutbox) Append(_ context.Context, entry *domain.OutboxEntry) error {
	entry.ID = r.s.nextID("outbox")
	entry.CreatedAt = time.Now()
	r.s.outbox = append(r.s.outbox, *entry)
	return nil
}

func (r *memOutbox) ClaimDue(_ context.Context, limit, maxAttempts int, now time.Time) ([]domain.OutboxEntry, error) {
	var out []domain.OutboxEntry
	for _, e := range r.s.outbox {
		if e.ProcessedAt != nil || e.Attempts >= maxAttempts {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memOutbox) MarkProcessed(_ context.Context, id string, now time.Time) error {
	for i := range r.s.outbox {
		if r.s.outbox[i].ID == id {
			r.s.outbox[i].ProcessedAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memOutbox) MarkFailed(_ context.Context, id string, attempts int, nextRetryAt time.Time, cause string) error {
	for i := range r.s.outbox {
		if r.s.outbox[i].ID == id {
			r.s.outbox[i].Attempts = attempts
			r.s.outbox[i].NextRetryAt = &nextRetryAt
			r.s.outbox[i].LastError = &cause
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memOutbox) ListDeadLettered(_ context.Context, maxAttempts, limit int) ([]domain.OutboxEntry, error) {
	var out []domain.OutboxEntry
	for _, e := range r.s.outbox {
		if e.ProcessedAt == nil && e.Attempts >= maxAttempts {
			out = append(out, e)
		}
	}
	return out, nil
}

type memComments struct{ s *memStore }

func (r *memComments) Create(_ context.Context, c *domain.Comment) error {
	c.ID = r.s.nextID("comment")
	c.CreatedAt = time.Now()
	r.s.comments = append(r.s.comments, *c)
	return nil
}

func (r *memComments) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range r.s.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memHistory struct{ s *memStore }

func (r *memHistory) Create(_ context.Context, entry *domain.TicketHistory) error {
	entry.ID = r.s.nextID("hist")
	entry.CreatedAt = time.Now()
	r.s.history = append(r.s.history, *entry)
	return nil
}

func (r *memHistory) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	for _, entry := range r.s.history {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type memUsers struct{ s *memStore }

func (r *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUsers) Create(_ context.Context, u *domain.User) error {
	u.ID = r.s.nextID("user")
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUsers) GetSuperAdmin(_ context.Context) (*domain.User, error) {
	var best *domain.User
	for id := range r.s.users {
		u := r.s.users[id]
		if u.Role != domain.RoleSuperAdmin || !u.Active {
			continue
		}
		if best == nil || u.CreatedAt.Before(best.CreatedAt) {
			best = &u
		}
	}
	if best == nil {
		return nil, pgx.ErrNoRows
	}
	return best, nil
}

// ticketInState seeds a ticket directly into the store.
func (s *memStore) ticketInState(status domain.StatusCode, mutate func(*domain.Ticket)) string {
	id := s.nextID("ticket")
	t := domain.Ticket{
		ID:         id,
		CreatedBy:  "student-1",
		CategoryID: "cat-1",
		AssignedTo: "admin-1",
		Status:     status,
		TAT:        lifecycle.DefaultTAT,
	}
	if mutate != nil {
		mutate(&t)
	}
	s.tickets[id] = t
	return id
}
