package domain

import "time"

// DomainGeneral is the sentinel routing domain assigned to categories whose
// configuration never set one, guaranteeing the final fallback step of the
// assignment cascade always has somewhere to route.
const DomainGeneral = "General"

// Category is the top level of the content hierarchy. Routing domain/scope is
// a separate two-level hierarchy carried on the category row.
type Category struct {
	ID             string
	Name           string
	Domain         string
	Scope          *string
	DynamicScope   bool
	ScopeAttribute string
	DefaultAdminID *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RoutingDomain returns the category's domain, never empty.
func (c *Category) RoutingDomain() string {
	if c.Domain == "" {
		return DomainGeneral
	}
	return c.Domain
}

// Subcategory is the second level of the content hierarchy.
type Subcategory struct {
	ID              string
	CategoryID      string
	Name            string
	AssignedAdminID *string
	IsActive        bool
	CreatedAt       time.Time
}

// SubSubcategory is the third level of the content hierarchy.
type SubSubcategory struct {
	ID              string
	SubcategoryID   string
	Name            string
	AssignedAdminID *string
	IsActive        bool
	CreatedAt       time.Time
}

// FieldType enumerates supported dynamic field kinds.
type FieldType string

const (
	FieldTypeText   FieldType = "TEXT"
	FieldTypeChoice FieldType = "CHOICE"
	FieldTypeDate   FieldType = "DATE"
)

// CategoryField is a named, typed dynamic field attached to a subcategory.
// A field may carry its own handler override used for value-based routing.
type CategoryField struct {
	ID              string
	SubcategoryID   string
	Slug            string
	Label           string
	FieldType       FieldType
	Options         []string
	AssignedAdminID *string
	DisplayOrder    int
	CreatedAt       time.Time
}

// CategoryCoverage maps handlers onto a category for load-balanced or backup
// coverage (the fourth level of the assignment cascade).
type CategoryCoverage struct {
	ID         string
	CategoryID string
	AdminID    string
	IsPrimary  bool
	Priority   int
	CreatedAt  time.Time
}
