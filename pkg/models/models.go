// Package models holds the entity types shared by the local and remote
// stores and the payload formats carried through the sync queue.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entity is implemented by every tenant-scoped record. The dual-store
// router and both adapters work against this surface only.
type Entity interface {
	EntityID() string
	EntityTenant() string
	Table() string
}

// NewID generates a client-side record id, so a row can be persisted
// locally without a remote round-trip first.
func NewID() string {
	return uuid.NewString()
}

// Shift statuses.
const (
	ShiftActive  = "active"
	ShiftClosed  = "closed"
	ShiftFlagged = "flagged"
)

// Sync operation types.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// PaymentCash marks transactions that move physical cash and therefore
// count toward shift reconciliation.
const PaymentCash = "cash"

type Product struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	RecipeID  string          `json:"recipe_id,omitempty"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

type Material struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Unit      string          `json:"unit" validate:"required"`
	Stock     decimal.Decimal `json:"stock"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	CreatedAt time.Time       `json:"created_at"`
}

type Discount struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Percent   decimal.Decimal `json:"percent"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id" validate:"required"`
	Username     string    `json:"username" validate:"required,min=3"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role" validate:"required,oneof=owner manager cashier"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecipeItem references a material consumed by one unit of a product.
// Materials must reach the remote store before recipes pointing at them,
// which is why queue drain preserves global enqueue order.
type RecipeItem struct {
	MaterialID string          `json:"material_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
}

type Recipe struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenant_id" validate:"required"`
	Name      string       `json:"name" validate:"required"`
	Items     []RecipeItem `json:"items" validate:"dive"`
	CreatedAt time.Time    `json:"created_at"`
}

type Expense struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	SpentAt   time.Time       `json:"spent_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// Shift is a bounded cash-register session. Exactly one active shift may
// exist per (tenant, user); the closing mutation is terminal.
type Shift struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"tenant_id" validate:"required"`
	UserID       string           `json:"user_id" validate:"required"`
	StartTime    time.Time        `json:"start_time"`
	OpeningCash  decimal.Decimal  `json:"opening_cash"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
	ClosingCash  *decimal.Decimal `json:"closing_cash,omitempty"`
	ExpectedCash *decimal.Decimal `json:"expected_cash,omitempty"`
	Variance     *decimal.Decimal `json:"variance,omitempty"`
	VarianceNote string           `json:"variance_note,omitempty"`
	Status       string           `json:"status" validate:"required,oneof=active closed flagged"`
}

// Transaction is owned by the sales subsystem; this layer only reads it
// to aggregate cash totals for an open shift.
type Transaction struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id" validate:"required"`
	ShiftID       string          `json:"shift_id"`
	PaymentMethod string          `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (p Product) EntityID() string     { return p.ID }
func (p Product) EntityTenant() string { return p.TenantID }
func (Product) Table() string          { return "products" }

func (m Material) EntityID() string     { return m.ID }
func (m Material) EntityTenant() string { return m.TenantID }
func (Material) Table() string          { return "materials" }

func (d Discount) EntityID() string     { return d.ID }
func (d Discount) EntityTenant() string { return d.TenantID }
func (Discount) Table() string          { return "discounts" }

func (u User) EntityID() string     { return u.ID }
func (u User) EntityTenant() string { return u.TenantID }
func (User) Table() string          { return "users" }

func (r Recipe) EntityID() string     { return r.ID }
func (r Recipe) EntityTenant() string { return r.TenantID }
func (Recipe) Table() string          { return "recipes" }

func (e Expense) EntityID() string     { return e.ID }
func (e Expense) EntityTenant() string { return e.TenantID }
func (Expense) Table() string          { return "expenses" }

func (s Shift) EntityID() string     { return s.ID }
func (s Shift) EntityTenant() string { return s.TenantID }
func (Shift) Table() string          { return "shifts" }

func (t Transaction) EntityID() string     { return t.ID }
func (t Transaction) EntityTenant() string { return t.TenantID }
func (Transaction) Table() string          { return "transactions" }

// SyncOperation is one pending offline mutation. Created only when a
// remote attempt failed and the local write succeeded; consumed on
// successful replay, retained on failure for the next drain.
type SyncOperation struct {
	ID         int64     `json:"id"`
	TableName  string    `json:"table_name"`
	EntryID    string    `json:"entry_id"`
	TenantID   string    `json:"tenant_id"`
	Operation  string    `json:"operation"`
	Payload    []byte    `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DrainReport summarizes one pass over the pending queue.
type DrainReport struct {
	Succeeded int
	Failed    int
}
