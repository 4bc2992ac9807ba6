// Package models defines the domain models for TenantPulse.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tenant represents an organization whose usage is scored and benchmarked.
type Tenant struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	IsActive       bool      `json:"is_active"`
	IndustrySector *string   `json:"industry_sector,omitempty"`
	EmployeeCount  *int      `json:"employee_count,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewTenant creates a new active Tenant with the given name and slug.
func NewTenant(name, slug string) *Tenant {
	now := time.Now()
	return &Tenant{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EmployeeBucket is a fixed employee-size range used to group tenants
// into peer cohorts.
type EmployeeBucket struct {
	Min int
	Max int // 0 means unbounded
}

// DefaultEmployeeBuckets are the cohort size ranges used by the nightly
// benchmark aggregation.
var DefaultEmployeeBuckets = []EmployeeBucket{
	{Min: 1, Max: 100},
	{Min: 101, Max: 500},
	{Min: 501, Max: 2000},
	{Min: 2001, Max: 0},
}

// Contains reports whether the given employee count falls inside the bucket.
func (b EmployeeBucket) Contains(count int) bool {
	if count < b.Min {
		return false
	}
	return b.Max == 0 || count <= b.Max
}

// Label returns a human-readable description of the bucket.
func (b EmployeeBucket) Label() string {
	if b.Max == 0 {
		return fmt.Sprintf("%d+ employees", b.Min)
	}
	return fmt.Sprintf("%d-%d employees", b.Min, b.Max)
}
