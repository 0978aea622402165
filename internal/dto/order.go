package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderResponse represents a purchase order as exposed via transport layers.
type OrderResponse struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	PurchaserID  int64           `json:"purchaser_id"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Vendor       string          `json:"vendor"`
	Confidential bool            `json:"confidential"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreateOrderRequest carries the purchaser-supplied fields of a new order.
// Confidential is an opaque ciphertext envelope produced client-side; the
// server stores it without decrypting.
type CreateOrderRequest struct {
	Description  string `json:"description"`
	Amount       string `json:"amount"`
	Vendor       string `json:"vendor"`
	Confidential string `json:"confidential,omitempty"`
}

// TransitionRequest carries a client-produced signature for one workflow
// transition. Signature is base64; Digest is the hex SHA-256 of the canonical
// payload the client signed and lets the server fail fast on drift.
type TransitionRequest struct {
	Signature  string    `json:"signature"`
	Digest     string    `json:"digest,omitempty"`
	ProducedAt time.Time `json:"produced_at,omitempty"`
}

// SignatureRecordResponse is one entry of an order's signature chain.
type SignatureRecordResponse struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	SignerID   int64     `json:"signer_id"`
	SignerRole string    `json:"signer_role"`
	Kind       string    `json:"kind"`
	Digest     string    `json:"digest"`
	Signature  string    `json:"signature"`
	KeyVersion int       `json:"key_version"`
	ProducedAt time.Time `json:"produced_at"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ChainEntryVerification reports the outcome for one replayed chain entry.
type ChainEntryVerification struct {
	RecordID int64  `json:"record_id"`
	SignerID int64  `json:"signer_id"`
	Kind     string `json:"kind"`
	Digest   string `json:"digest"`
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
}

// ChainVerificationReport is the full replay result for an order.
type ChainVerificationReport struct {
	OrderID int64                    `json:"order_id"`
	Valid   bool                     `json:"valid"`
	Entries []ChainEntryVerification `json:"entries"`
}

// KeyResponse exposes a user's current public key for client-side use.
type KeyResponse struct {
	UserID    int64  `json:"user_id"`
	Version   int    `json:"version"`
	PublicKey string `json:"public_key"`
}

// AuditEntryResponse is one audit trail line.
type AuditEntryResponse struct {
	ID         int64     `json:"id"`
	ActorID    *int64    `json:"actor_id,omitempty"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail"`
	SourceAddr string    `json:"source_addr,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
