package warehouses

import (
	"time"
)

// Warehouse represents a physical storage site.
type Warehouse struct {
	ID         int64     `json:"id"`
	TenantID   int64     `json:"tenant_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	CapacityKg float64   `json:"capacity_kg,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListFilters narrows warehouse listings.
type ListFilters struct {
	Active *bool
	Search string
	Page   int
	Limit  int
}
