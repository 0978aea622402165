package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// SignatureRecord is one attestation over one order at one point in its
// lifecycle. Records are append-only: they are inserted exactly once per
// successful transition and never updated or deleted afterwards.
type SignatureRecord struct {
	bun.BaseModel `bun:"table:signature_records"`

	ID         int64     `bun:",pk,autoincrement"`
	OrderID    int64     `bun:"order_id"`
	SignerID   int64     `bun:"signer_id"`
	SignerRole string    `bun:"signer_role"`
	Kind       string    `bun:"kind"`
	Digest     string    `bun:"digest"`
	Signature  string    `bun:"signature"`
	KeyVersion int       `bun:"key_version"`
	ProducedAt time.Time `bun:"produced_at,nullzero"`
	// AttestedAt is the order's updated_at value as observed by the signer;
	// chain replay needs it to rebuild the exact signed bytes.
	AttestedAt time.Time `bun:"attested_at,nullzero"`
	RecordedAt time.Time `bun:"recorded_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
