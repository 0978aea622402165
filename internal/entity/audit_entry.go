package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditEntry records one observed workflow action, attempted or successful.
// Entries are owned by the system, not by an order, so they survive order
// deletion. ActorID is nullable because actors may be deleted later.
type AuditEntry struct {
	bun.BaseModel `bun:"table:audit_entries"`

	ID         int64     `bun:",pk,autoincrement"`
	ActorID    *int64    `bun:"actor_id"`
	Action     string    `bun:"action"`
	Detail     string    `bun:"detail"`
	SourceAddr string    `bun:"source_addr"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
