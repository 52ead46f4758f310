package warehouses

import (
	"fmt"
	"strings"

	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

func validate(w Warehouse) error {
	if strings.TrimSpace(w.Code) == "" {
		return fmt.Errorf("%w: warehouse code is required", shared.ErrInvalidArgument)
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("%w: warehouse name is required", shared.ErrInvalidArgument)
	}
	if w.CapacityKg < 0 {
		return fmt.Errorf("%w: capacity must be >= 0", shared.ErrInvalidArgument)
	}
	return nil
}
