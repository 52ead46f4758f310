package inbound

import "time"

// ReceiptStatus models the goods receipt lifecycle.
type ReceiptStatus string

const (
	ReceiptStatusPending  ReceiptStatus = "pending"
	ReceiptStatusApproved ReceiptStatus = "approved"
	ReceiptStatusRejected ReceiptStatus = "rejected"
)

// IsValid checks if the status is a known value.
func (s ReceiptStatus) IsValid() bool {
	switch s {
	case ReceiptStatusPending, ReceiptStatusApproved, ReceiptStatusRejected:
		return true
	default:
		return false
	}
}

// GoodsReceipt records material arriving at a warehouse. Approval is the
// only path that creates inventory; a pending receipt holds no stock.
type GoodsReceipt struct {
	ID             int64         `json:"id"`
	TenantID       int64         `json:"tenant_id"`
	Number         string        `json:"number"`
	JobID          int64         `json:"job_id,omitempty"`
	DealID         int64         `json:"deal_id,omitempty"`
	SupplierID     int64         `json:"supplier_id,omitempty"`
	MaterialTypeID int64         `json:"material_type_id"`
	WarehouseID    int64         `json:"warehouse_id"`
	Quantity       float64       `json:"quantity"`
	UnitOfMeasure  string        `json:"unit_of_measure"`
	CostPerUnit    float64       `json:"cost_per_unit"`
	Status         ReceiptStatus `json:"status"`
	ReceivedAt     time.Time     `json:"received_at"`
	ApprovedBy     int64         `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time    `json:"approved_at,omitempty"`
	RejectReason   string        `json:"reject_reason,omitempty"`
	LotID          int64         `json:"lot_id,omitempty"`
	Notes          string        `json:"notes,omitempty"`
}

// CreateReceiptInput describes receipt creation.
type CreateReceiptInput struct {
	Number         string
	JobID          int64
	DealID         int64
	SupplierID     int64
	MaterialTypeID int64
	WarehouseID    int64
	Quantity       float64
	UnitOfMeasure  string
	CostPerUnit    float64
	ReceivedAt     time.Time
	Notes          string
}

// ReceiptFilter filters receipt listings.
type ReceiptFilter struct {
	Status      ReceiptStatus
	WarehouseID int64
	JobID       int64
	Page        int
	PerPage     int
}
