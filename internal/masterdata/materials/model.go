package materials

import (
	"time"
)

// MaterialType classifies recoverable material handled in lots.
type MaterialType struct {
	ID          int64  `json:"id"`
	TenantID    int64  `json:"tenant_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	DefaultUnit string `json:"default_unit"`
	IsHazardous bool   `json:"is_hazardous"`
	HazardClass string `json:"hazard_class,omitempty"`
	// RecyclingRate is the expected recovery rate as a percentage, 0 to 100.
	RecyclingRate float64   `json:"recycling_rate"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListFilters narrows material listings.
type ListFilters struct {
	Category string
	Active   *bool
	Search   string
	Page     int
	Limit    int
}
