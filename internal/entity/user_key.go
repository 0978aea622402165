package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// UserKey is one version of a user's public signing key plus the role the
// user held when the key was registered. Key rotation inserts a new version;
// existing rows are immutable so historical signatures stay verifiable.
// Private keys are never stored here.
type UserKey struct {
	bun.BaseModel `bun:"table:user_keys"`

	ID        int64     `bun:",pk,autoincrement"`
	UserID    int64     `bun:"user_id"`
	Role      string    `bun:"role"`
	PublicKey string    `bun:"public_key"`
	Version   int       `bun:"version"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
