// Package routing computes the responsible handler for a ticket through an
// ordered list of resolver steps. Each step is independently testable; the
// engine runs them top-down and returns the first match. Missing
// configuration is never an error here: the cascade bottoms out at the
// unassigned sentinel so ticket creation cannot fail on routing alone.
package routing

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/repository"
)

// Step tags identify which cascade level produced a resolution; they are
// written to the ticket's audit trail.
type Step string

const (
	StepSubSubcategory Step = "SUB_SUBCATEGORY_OVERRIDE"
	StepSubcategory    Step = "SUBCATEGORY_OVERRIDE"
	StepDynamicField   Step = "FIELD_OVERRIDE"
	StepCoverage       Step = "CATEGORY_COVERAGE"
	StepCategory       Step = "CATEGORY_DEFAULT"
	StepDomainScope    Step = "DOMAIN_SCOPE_FALLBACK"
	StepSuperAdmin     Step = "SUPER_ADMIN_FALLBACK"
	StepUnassigned     Step = "UNASSIGNED"
)

// Input carries everything a resolution needs. The category tree entities are
// loaded by the caller inside its transaction so the resolver sees the same
// snapshot the command validates against.
type Input struct {
	Category       *domain.Category
	Subcategory    *domain.Subcategory
	SubSubcategory *domain.SubSubcategory
	FieldSlugs     []string
	Creator        *domain.User
	Location       *string
}

// Resolution names the chosen handler and the step that produced it.
type Resolution struct {
	HandlerID      string
	Step           Step
	NeedsAttention bool
}

// SuperAdminSource yields the system-wide fallback handler, typically backed
// by a TTL cache in front of the users table.
type SuperAdminSource interface {
	SuperAdminID(ctx context.Context) (string, error)
}

// Resolver runs the cascade against a transactional store.
type Resolver struct {
	superAdmins SuperAdminSource
}

// NewResolver constructs the resolver.
func NewResolver(superAdmins SuperAdminSource) *Resolver {
	return &Resolver{superAdmins: superAdmins}
}

type step func(ctx context.Context, s repository.Store, in Input) (*Resolution, error)

// Resolve evaluates the priority cascade top-down; the first step returning a
// non-nil resolution wins, with no partial combination of levels.
func (r *Resolver) Resolve(ctx context.Context, s repository.Store, in Input) (Resolution, error) {
	steps := []step{
		subSubcategoryOverride,
		subcategoryOverride,
		fieldOverride,
		categoryCoverage,
		categoryDefault,
		r.domainScopeFallback,
	}
	for _, fn := range steps {
		res, err := fn(ctx, s, in)
		if err != nil {
			return Resolution{}, err
		}
		if res != nil {
			return *res, nil
		}
	}
	return Resolution{HandlerID: domain.HandlerUnassigned, Step: StepUnassigned, NeedsAttention: true}, nil
}

func subSubcategoryOverride(_ context.Context, _ repository.Store, in Input) (*Resolution, error) {
	if in.SubSubcategory == nil || in.SubSubcategory.AssignedAdminID == nil {
		return nil, nil
	}
	return &Resolution{HandlerID: *in.SubSubcategory.AssignedAdminID, Step: StepSubSubcategory}, nil
}

func subcategoryOverride(_ context.Context, _ repository.Store, in Input) (*Resolution, error) {
	if in.Subcategory == nil || in.Subcategory.AssignedAdminID == nil {
		return nil, nil
	}
	return &Resolution{HandlerID: *in.Subcategory.AssignedAdminID, Step: StepSubcategory}, nil
}

// fieldOverride picks the first dynamic field carrying a handler override, in
// stored display order.
func fieldOverride(ctx context.Context, s repository.Store, in Input) (*Resolution, error) {
	if in.Subcategory == nil || len(in.FieldSlugs) == 0 {
		return nil, nil
	}
	fields, err := s.Categories().ListFieldsBySlugs(ctx, in.Subcategory.ID, in.FieldSlugs)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if f.AssignedAdminID != nil {
			return &Resolution{HandlerID: *f.AssignedAdminID, Step: StepDynamicField}, nil
		}
	}
	return nil, nil
}

// categoryCoverage applies the coverage rows: primaries first, then highest
// priority number; ties break to the handler with the fewest open tickets,
// then to the earliest coverage row, keeping the outcome deterministic.
func categoryCoverage(ctx context.Context, s repository.Store, in Input) (*Resolution, error) {
	coverage, err := s.Categories().ListCoverage(ctx, in.Category.ID)
	if err != nil {
		return nil, err
	}
	if len(coverage) == 0 {
		return nil, nil
	}

	pool := make([]domain.CategoryCoverage, 0, len(coverage))
	for _, cov := range coverage {
		if cov.IsPrimary {
			pool = append(pool, cov)
		}
	}
	if len(pool) == 0 {
		pool = coverage
	}

	top := pool[0].Priority
	for _, cov := range pool[1:] {
		if cov.Priority > top {
			top = cov.Priority
		}
	}
	candidates := make([]domain.CategoryCoverage, 0, len(pool))
	for _, cov := range pool {
		if cov.Priority == top {
			candidates = append(candidates, cov)
		}
	}
	if len(candidates) == 1 {
		return &Resolution{HandlerID: candidates[0].AdminID, Step: StepCoverage}, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, cov := range candidates {
		ids = append(ids, cov.AdminID)
	}
	open, err := s.Tickets().CountOpenAssigned(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := open[candidates[i].AdminID], open[candidates[j].AdminID]
		if li != lj {
			return li < lj
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return &Resolution{HandlerID: candidates[0].AdminID, Step: StepCoverage}, nil
}

func categoryDefault(_ context.Context, _ repository.Store, in Input) (*Resolution, error) {
	if in.Category.DefaultAdminID == nil {
		return nil, nil
	}
	return &Resolution{HandlerID: *in.Category.DefaultAdminID, Step: StepCategory}, nil
}

// domainScopeFallback routes through the escalation-rule chain at level 1 for
// the ticket's (domain, scope), trying the scoped rule, then the domain-wide
// rule, then the super admin.
func (r *Resolver) domainScopeFallback(ctx context.Context, s repository.Store, in Input) (*Resolution, error) {
	routingDomain := in.Category.RoutingDomain()
	scope := resolveScope(in)

	rules := s.EscalationRules()
	if scope != nil {
		rule, err := rules.GetRule(ctx, routingDomain, scope, 1)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if rule != nil {
			return &Resolution{HandlerID: rule.AssigneeID, Step: StepDomainScope}, nil
		}
	}
	rule, err := rules.GetRule(ctx, routingDomain, nil, 1)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if rule != nil {
		return &Resolution{HandlerID: rule.AssigneeID, Step: StepDomainScope}, nil
	}

	if r.superAdmins != nil {
		id, err := r.superAdmins.SuperAdminID(ctx)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if id != "" {
			return &Resolution{HandlerID: id, Step: StepSuperAdmin}, nil
		}
	}
	return nil, nil
}

// resolveScope returns the routing scope: the category's static scope, or the
// creator's profile attribute when the category marks its scope dynamic.
func resolveScope(in Input) *string {
	if in.Category.DynamicScope {
		if in.Creator == nil {
			return nil
		}
		switch in.Category.ScopeAttribute {
		case "", "hostel":
			return in.Creator.Hostel
		default:
			return nil
		}
	}
	return in.Category.Scope
}
