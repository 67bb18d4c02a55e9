package routing

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/repository"
)

// fakeStore provides only the repositories the cascade touches.
type fakeStore struct {
	repository.Store

	fields    []domain.CategoryField
	coverage  []domain.CategoryCoverage
	openCount map[string]int
	rules     []domain.EscalationRule
}

func (s *fakeStore) Categories() repository.CategoryRepository {
	return &fakeCategoryRepo{store: s}
}

func (s *fakeStore) Tickets() repository.TicketRepository {
	return &fakeTicketRepo{store: s}
}

func (s *fakeStore) EscalationRules() repository.EscalationRuleRepository {
	return &fakeRuleRepo{store: s}
}

type fakeCategoryRepo struct {
	repository.CategoryRepository
	store *fakeStore
}

func (r *fakeCategoryRepo) ListFieldsBySlugs(_ context.Context, _ string, slugs []string) ([]domain.CategoryField, error) {
	allowed := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		allowed[slug] = true
	}
	var out []domain.CategoryField
	for _, f := range r.store.fields {
		if allowed[f.Slug] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeCategoryRepo) ListCoverage(context.Context, string) ([]domain.CategoryCoverage, error) {
	return r.store.coverage, nil
}

type fakeTicketRepo struct {
	repository.TicketRepository
	store *fakeStore
}

func (r *fakeTicketRepo) CountOpenAssigned(_ context.Context, handlerIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(handlerIDs))
	for _, id := range handlerIDs {
		out[id] = r.store.openCount[id]
	}
	return out, nil
}

type fakeRuleRepo struct {
	repository.EscalationRuleRepository
	store *fakeStore
}

func (r *fakeRuleRepo) GetRule(_ context.Context, routingDomain string, scope *string, level int) (*domain.EscalationRule, error) {
	for i := range r.store.rules {
		rule := &r.store.rules[i]
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

type fakeSuperAdmins struct {
	id string
}

func (f *fakeSuperAdmins) SuperAdminID(context.Context) (string, error) {
	if f.id == "" {
		return "", pgx.ErrNoRows
	}
	return f.id, nil
}

func strPtr(s string) *string { return &s }

func baseInput() Input {
	return Input{
		Category: &domain.Category{ID: "cat-1", Domain: "Hostel", IsActive: true},
		Creator:  &domain.User{ID: "student-1", Role: domain.RoleStudent},
	}
}

func TestSubSubcategoryOverrideWinsOverEverything(t *testing.T) {
	store := &fakeStore{
		coverage: []domain.CategoryCoverage{{AdminID: "coverage-admin", IsPrimary: true}},
	}
	in := baseInput()
	in.Category.DefaultAdminID = strPtr("default-admin")
	in.Subcategory = &domain.Subcategory{ID: "sub-1", AssignedAdminID: strPtr("sub-admin")}
	in.SubSubcategory = &domain.SubSubcategory{ID: "ss-1", AssignedAdminID: strPtr("ss-admin")}

	res, err := NewResolver(nil).Resolve(context.Background(), store, in)
	require.NoError(t, err)
	assert.Equal(t, "ss-admin", res.HandlerID)
	assert.Equal(t, StepSubSubcategory, res.Step)
	assert.False(t, res.NeedsAttention)
}

func TestSubcategoryOverrideBeatsFieldsAndCoverage(t *testing.T) {
	store := &fakeStore{
		fields: []domain.CategoryField{{Slug: "block", AssignedAdminID: strPtr("field-admin")}},
	}
	in := baseInput()
	in.Subcategory = &domain.Subcategory{ID: "sub-1", AssignedAdminID: strPtr("sub-admin")}
	in.FieldSlugs = []string{"block"}

	res, err := NewResolver(nil).Resolve(context.Background(), store, in)
	require.NoError(t, err)
	assert.Equal(t, "sub-admin", res.HandlerID)
	assert.Equal(t, StepSubcategory, res.Step)
}

func TestFieldOverrideHonorsDisplayOrder(t *testing.T) {
	// repository returns fields pre-sorted by display order; the first one
	// carrying an override wins
	store := &fakeStore{
		fields: []domain.CategoryField{
			{Slug: "wing", DisplayOrder: 1},
			{Slug: "block", DisplayOrder: 2, AssignedAdminID: strPtr("block-admin")},
			{Slug: "floor", DisplayOrder: 3, AssignedAdminID: strPtr("floor-admin")},
		},
	}
	in := baseInput()
	in.Subcategory = &domain.Subcategory{ID: "sub-1"}
	in.FieldSlugs = []string{"wing", "block", "floor"}

	res, err := NewResolver(nil).Resolve(context.Background(), store, in)
	require.NoError(t, err)
	assert.Equal(t, "block-admin", res.HandlerID)
	assert.Equal(t, StepDynamicField, res.Step)
}

func TestCoveragePrimaryFirstThenPriority(t *testing.T) {
	store := &fakeStore{
		coverage: []domain.CategoryCoverage{
			{AdminID: "secondary-high", IsPrimary: false, Priority: 9},
			{AdminID: "primary-low", IsPrimary: true, Priority: 1},
			{AdminID: "primary-high", IsPrimary: true, Priority: 5},
		},
	}
	res, err := NewResolver(nil).Resolve(context.Background(), store, baseInput())
	require.NoError(t, err)
	assert.Equal(t, "primary-high", res.HandlerID)
	assert.Equal(t, StepCoverage, res.Step)
}

func TestCoverageTieBreaksOnOpenLoadThenAge(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	store := &fakeStore{
		coverage: []domain.CategoryCoverage{
			{AdminID: "busy", IsPrimary: true, Priority: 5, CreatedAt: older},
			{AdminID: "idle", IsPrimary: true, Priority: 5, CreatedAt: newer},
		},
		openCount: map[string]int{"busy": 7, "idle": 2},
	}
	res, err := NewResolver(nil).Resolve(context.Background(), store, baseInput())
	require.NoError(t, err)
	assert.Equal(t, "idle", res.HandlerID)

	// equal load falls back to the earliest coverage row
	store.openCount = map[string]int{"busy": 3, "idle": 3}
	res, err = NewResolver(nil).Resolve(context.Background(), store, baseInput())
	require.NoError(t, err)
	assert.Equal(t, "busy", res.HandlerID)
}

func TestResolveIsDeterministic(t *testing.T) {
	store := &fakeStore{
		coverage: []domain.CategoryCoverage{
			{AdminID: "a", IsPrimary: true, Priority: 2, CreatedAt: time.Unix(100, 0)},
			{AdminID: "b", IsPrimary: true, Priority: 2, CreatedAt: time.Unix(200, 0)},
			{AdminID: "c", IsPrimary: true, Priority: 2, CreatedAt: time.Unix(300, 0)},
		},
		openCount: map[string]int{"a": 1, "b": 1, "c": 1},
	}
	resolver := NewResolver(nil)
	first, err := resolver.Resolve(context.Background(), store, baseInput())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := resolver.Resolve(context.Background(), store, baseInput())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCategoryDefaultWhenNoCoverage(t *testing.T) {
	store := &fakeStore{}
	in := baseInput()
	in.Category.DefaultAdminID = strPtr("default-admin")

	res, err := NewResolver(nil).Resolve(context.Background(), store, in)
	require.NoError(t, err)
	assert.Equal(t, "default-admin", res.HandlerID)
	assert.Equal(t, StepCategory, res.Step)
}

func TestDomainScopeFallbackPrefersScopedRule(t *testing.T) {
	store := &fakeStore{
		rules: []domain.EscalationRule{
			{Domain: "Hostel", Scope: nil, Level: 1, AssigneeID: "domain-admin"},
			{Domain: "Hostel", Scope: strPtr("North Block"), Level: 1, AssigneeID: "north-admin"},
		},
	}
	in := baseInput()
	in.Category.DynamicScope = true
	in.Creator.Hostel = strPtr("North Block")

	res, err := NewResolver(nil).Resolve(context.Background(), store, in)
	require.NoError(t, err)
	assert.Equal(t, "north-admin", res.HandlerID)
	assert.Equal(t, StepDomainScope, res.Step)

	// no profile attribute: scoped rule unreachable, domain-wide rule wins
	in.Creator.Hostel = nil
	res, err = NewResolver(nil).Resolve(context.Background(), store, in)
	require.NoError(t, err)
	assert.Equal(t, "domain-admin", res.HandlerID)
}

func TestSuperAdminFallback(t *testing.T) {
	store := &fakeStore{}
	res, err := NewResolver(&fakeSuperAdmins{id: "root-admin"}).Resolve(context.Background(), store, baseInput())
	require.NoError(t, err)
	assert.Equal(t, "root-admin", res.HandlerID)
	assert.Equal(t, StepSuperAdmin, res.Step)
	assert.False(t, res.NeedsAttention)
}

func TestUnassignedSentinelWhenNothingMatches(t *testing.T) {
	store := &fakeStore{}
	res, err := NewResolver(&fakeSuperAdmins{}).Resolve(context.Background(), store, baseInput())
	require.NoError(t, err)
	assert.Equal(t, domain.HandlerUnassigned, res.HandlerID)
	assert.Equal(t, StepUnassigned, res.Step)
	assert.True(t, res.NeedsAttention)
}

func TestEmptyDomainRoutesAsGeneral(t *testing.T) {
	store := &fakeStore{
		rules: []domain.EscalationRule{
			{Domain: domain.DomainGeneral, Scope: nil, Level: 1, AssigneeID: "general-admin"},
		},
	}
	in := baseInput()
	in.Category.Domain = ""

	res, err := NewResolver(nil).Resolve(context.Background(), store, in)
	require.NoError(t, err)
	assert.Equal(t, "general-admin", res.HandlerID)
}
