// Package canonical produces the deterministic byte encoding of an order's
// attested state. The exact bytes returned by Snapshot.Bytes are what signers
// sign and what chain replay re-verifies; any change to the encoding is a
// breaking change for every stored signature.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot captures exactly the order fields bound into a signature. Status
// holds the status the order will have after the pending transition, not the
// current one: the signature is over the state being agreed to. UpdatedAt is
// the order's update timestamp as last observed by the signer.
type Snapshot struct {
	OrderNumber  string
	PurchaserID  int64
	Description  string
	Amount       decimal.Decimal
	Vendor       string
	Confidential string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Fields flattens the snapshot into its canonical field map. Amounts are
// rendered with exactly two fraction digits and timestamps as RFC 3339 nano
// in UTC so the same logical content always yields the same strings.
func (s Snapshot) Fields() map[string]string {
	return map[string]string{
		"amount":       s.Amount.StringFixed(2),
		"confidential": s.Confidential,
		"created_at":   s.CreatedAt.UTC().Format(time.RFC3339Nano),
		"description":  s.Description,
		"order_number": s.OrderNumber,
		"purchaser":    strconv.FormatInt(s.PurchaserID, 10),
		"status":       s.Status,
		"updated_at":   s.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"vendor":       s.Vendor,
	}
}

// Bytes returns the canonical encoding of the snapshot.
func (s Snapshot) Bytes() []byte {
	return Encode(s.Fields())
}

// Digest returns the sha256 hex digest of the snapshot's canonical bytes.
func (s Snapshot) Digest() string {
	return DigestBytes(s.Bytes())
}

// Encode serialises a field map as a single JSON object with keys sorted
// lexicographically and HTML escaping disabled. Equal maps encode to
// byte-identical output regardless of insertion order.
func Encode(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(encodeString(k))
		buf.WriteByte(':')
		buf.Write(encodeString(fields[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// DigestBytes computes the sha256 hex digest of raw canonical bytes.
func DigestBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func encodeString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encode on a string cannot fail.
	_ = enc.Encode(s)
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
}
