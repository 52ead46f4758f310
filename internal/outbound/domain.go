package outbound

import "time"

// OrderStatus models the dispatch order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusDispatched OrderStatus = "dispatched"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsValid checks if the status is a known value.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusDispatched, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// DispatchOrder reserves quantity from a lot for outbound shipment.
// Stock leaves the lot only when the dispatch is confirmed; a pending
// order holds no physical claim.
type DispatchOrder struct {
	ID            int64       `json:"id"`
	TenantID      int64       `json:"tenant_id"`
	Number        string      `json:"number"`
	LotID         int64       `json:"lot_id"`
	WarehouseID   int64       `json:"warehouse_id"`
	BuyerID       int64       `json:"buyer_id,omitempty"`
	Quantity      float64     `json:"quantity"`
	UnitOfMeasure string      `json:"unit_of_measure"`
	PricePerUnit  float64     `json:"price_per_unit,omitempty"`
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	DispatchedAt  *time.Time  `json:"dispatched_at,omitempty"`
	DeliveredAt   *time.Time  `json:"delivered_at,omitempty"`
	VehicleNumber string      `json:"vehicle_number,omitempty"`
	DriverName    string      `json:"driver_name,omitempty"`
	Notes         string      `json:"notes,omitempty"`
}

// CreateOrderInput describes dispatch order creation.
type CreateOrderInput struct {
	Number        string
	LotID         int64
	WarehouseID   int64
	BuyerID       int64
	Quantity      float64
	UnitOfMeasure string
	PricePerUnit  float64
	Notes         string
}

// DeliveryInput carries proof-of-delivery details.
type DeliveryInput struct {
	VehicleNumber string
	DriverName    string
	Notes         string
}

// OrderFilter filters dispatch order listings.
type OrderFilter struct {
	Status      OrderStatus
	LotID       int64
	WarehouseID int64
	Page        int
	PerPage     int
}
