package materials

import (
	"fmt"
	"strings"

	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

var knownCategories = map[string]bool{
	"ferrous":     true,
	"non_ferrous": true,
	"paper":       true,
	"plastic":     true,
	"glass":       true,
	"e_waste":     true,
	"organic":     true,
	"mixed":       true,
}

func validate(m MaterialType) error {
	if strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("%w: material code is required", shared.ErrInvalidArgument)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: material name is required", shared.ErrInvalidArgument)
	}
	if m.Category != "" && !knownCategories[m.Category] {
		return fmt.Errorf("%w: unknown category %q", shared.ErrInvalidArgument, m.Category)
	}
	if strings.TrimSpace(m.DefaultUnit) == "" {
		return fmt.Errorf("%w: default unit is required", shared.ErrInvalidArgument)
	}
	if m.RecyclingRate < 0 || m.RecyclingRate > 100 {
		return fmt.Errorf("%w: recycling rate must be between 0 and 100", shared.ErrInvalidArgument)
	}
	if m.IsHazardous && strings.TrimSpace(m.HazardClass) == "" {
		return fmt.Errorf("%w: hazardous materials require a hazard class", shared.ErrInvalidArgument)
	}
	return nil
}
