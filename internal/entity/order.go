package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order represents a purchase order travelling through the approval workflow.
// Status is never written directly by callers; every change goes through the
// workflow engine's guarded transition path.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID           int64           `bun:",pk,autoincrement"`
	Number       string          `bun:"number"`
	PurchaserID  int64           `bun:"purchaser_id"`
	Description  string          `bun:"description"`
	Amount       decimal.Decimal `bun:"amount,type:numeric(15,2)"`
	Vendor       string          `bun:"vendor"`
	Confidential string          `bun:"confidential"`
	Status       string          `bun:"status"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time       `bun:"updated_at,nullzero"`
}
