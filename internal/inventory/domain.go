package inventory

import (
	"time"
)

// LotStatus models the lot lifecycle.
type LotStatus string

const (
	// LotStatusOpen marks a freshly received lot.
	LotStatusOpen LotStatus = "open"
	// LotStatusWorkInProgress marks a lot under processing.
	LotStatusWorkInProgress LotStatus = "work_in_progress"
	// LotStatusClosed marks a manually closed (e.g. written off) lot.
	LotStatusClosed LotStatus = "closed"
	// LotStatusSold marks a lot fully drained by dispatch.
	LotStatusSold LotStatus = "sold"
)

// IsValid checks if the status is a known value.
func (s LotStatus) IsValid() bool {
	switch s {
	case LotStatusOpen, LotStatusWorkInProgress, LotStatusClosed, LotStatusSold:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further balance mutation is permitted.
func (s LotStatus) Terminal() bool {
	return s == LotStatusClosed || s == LotStatusSold
}

// Active reports whether the lot contributes to inventory summaries.
func (s LotStatus) Active() bool {
	return s == LotStatusOpen || s == LotStatusWorkInProgress
}

// TransactionType enumerates supported stock movements.
type TransactionType string

const (
	TransactionInbound     TransactionType = "inbound"
	TransactionOutbound    TransactionType = "outbound"
	TransactionAdjustment  TransactionType = "adjustment"
	TransactionTransfer    TransactionType = "transfer"
	TransactionInspection  TransactionType = "inspection"
	TransactionSorting     TransactionType = "sorting"
	TransactionProcessing  TransactionType = "processing"
	TransactionDestruction TransactionType = "destruction"
)

// IsValid checks if the transaction type is a known value.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionInbound, TransactionOutbound, TransactionAdjustment, TransactionTransfer,
		TransactionInspection, TransactionSorting, TransactionProcessing, TransactionDestruction:
		return true
	default:
		return false
	}
}

// Lot is the mutable current-state record for a batch of material. The
// movement ledger is the source of truth for how its balance was reached.
type Lot struct {
	ID              int64      `json:"id"`
	TenantID        int64      `json:"tenant_id"`
	LotNumber       string     `json:"lot_number"`
	JobID           int64      `json:"job_id,omitempty"`
	DealID          int64      `json:"deal_id,omitempty"`
	MaterialTypeID  int64      `json:"material_type_id"`
	WarehouseID     int64      `json:"warehouse_id"`
	InitialQuantity float64    `json:"initial_quantity"`
	CurrentQuantity float64    `json:"current_quantity"`
	UnitOfMeasure   string     `json:"unit_of_measure"`
	CostPerUnit     float64    `json:"cost_per_unit"`
	TotalCost       float64    `json:"total_cost"`
	ValueOfMaterial *float64   `json:"value_of_material,omitempty"`
	Status          LotStatus  `json:"status"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// LotDetail pairs a lot with its ledger, movements ordered newest first.
type LotDetail struct {
	Lot       Lot             `json:"lot"`
	Movements []StockMovement `json:"movements"`
}

// StockMovement is one immutable ledger entry. Corrections append a new
// movement, existing rows are never edited or deleted.
type StockMovement struct {
	ID              int64           `json:"id"`
	TenantID        int64           `json:"tenant_id"`
	LotID           int64           `json:"lot_id,omitempty"`
	WarehouseID     int64           `json:"warehouse_id"`
	MaterialTypeID  int64           `json:"material_type_id"`
	Type            TransactionType `json:"transaction_type"`
	TransactionDate time.Time       `json:"transaction_date"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	ReferenceType   string          `json:"reference_type,omitempty"`
	ReferenceID     int64           `json:"reference_id,omitempty"`
	Quantity        float64         `json:"quantity"`
	UnitOfMeasure   string          `json:"unit_of_measure,omitempty"`
	CostPerUnit     float64         `json:"cost_per_unit,omitempty"`
	TotalCost       float64         `json:"total_cost,omitempty"`
	FromWarehouseID int64           `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   int64           `json:"to_warehouse_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       int64           `json:"created_by"`
}

// Summary is the derived per (warehouse, material type) rollup. It is a
// cache recomputed from active lots, never patched incrementally.
type Summary struct {
	TenantID       int64     `json:"tenant_id"`
	WarehouseID    int64     `json:"warehouse_id"`
	MaterialTypeID int64     `json:"material_type_id"`
	TotalQuantity  float64   `json:"total_quantity"`
	TotalValue     float64   `json:"total_value"`
	LastUpdated    time.Time `json:"last_updated"`
}

// SummaryKey identifies one rollup row.
type SummaryKey struct {
	TenantID       int64
	WarehouseID    int64
	MaterialTypeID int64
}

// Valuation reports the live value of active lots, computed independently
// of the cached summaries so drift can be detected.
type Valuation struct {
	Lots       []Lot   `json:"lots"`
	TotalLots  int     `json:"total_lots"`
	TotalValue float64 `json:"total_value"`
}

// LotDrift reports a lot whose replayed ledger disagrees with its balance.
type LotDrift struct {
	LotID           int64   `json:"lot_id"`
	LotNumber       string  `json:"lot_number"`
	CurrentQuantity float64 `json:"current_quantity"`
	LedgerQuantity  float64 `json:"ledger_quantity"`
}

// OpenLotInput carries an approved goods receipt into lot creation.
type OpenLotInput struct {
	JobID           int64
	DealID          int64
	MaterialTypeID  int64
	WarehouseID     int64
	Quantity        float64
	UnitOfMeasure   string
	CostPerUnit     float64
	ReferenceNumber string
	ReferenceType   string
	ReferenceID     int64
	TransactionDate time.Time
	Notes           string
}

// DispatchInput describes an outbound release against a lot.
type DispatchInput struct {
	LotID           int64
	WarehouseID     int64
	Quantity        float64
	ReferenceNumber string
	ReferenceType   string
	ReferenceID     int64
	TransactionDate time.Time
	Notes           string
}

// AdjustInput describes a manual correction with a signed delta.
type AdjustInput struct {
	LotID  int64
	Delta  float64
	Reason string
}

// MetadataUpdate carries the editable fields of an active lot.
type MetadataUpdate struct {
	ValueOfMaterial *float64
	Notes           *string
}

// LotFilter filters lot listings.
type LotFilter struct {
	Status      LotStatus
	WarehouseID int64
	JobID       int64
	Page        int
	PerPage     int
}

// MovementFilter filters ledger listings.
type MovementFilter struct {
	LotID       int64
	WarehouseID int64
	Type        TransactionType
	From        time.Time
	To          time.Time
	Page        int
	PerPage     int
}

// SummaryFilter filters rollup listings.
type SummaryFilter struct {
	WarehouseID    int64
	MaterialTypeID int64
	Page           int
	PerPage        int
}
