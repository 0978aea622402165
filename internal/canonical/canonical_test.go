package canonical

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return Snapshot{
		OrderNumber:  "A1B2C3D4",
		PurchaserID:  7,
		Description:  "widgets",
		Amount:       decimal.RequireFromString("100"),
		Vendor:       "Acme",
		Confidential: "b64envelope",
		Status:       "pending",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestSnapshotBytesDeterministic(t *testing.T) {
	a := sampleSnapshot().Bytes()
	b := sampleSnapshot().Bytes()
	require.Equal(t, a, b)
	assert.Equal(t, sampleSnapshot().Digest(), DigestBytes(a))
}

func TestEncodeOrderIndependent(t *testing.T) {
	first := map[string]string{}
	first["vendor"] = "Acme"
	first["amount"] = "100.00"
	first["status"] = "pending"

	second := map[string]string{}
	second["status"] = "pending"
	second["vendor"] = "Acme"
	second["amount"] = "100.00"

	require.Equal(t, Encode(first), Encode(second))
	assert.Equal(t, `{"amount":"100.00","status":"pending","vendor":"Acme"}`, string(Encode(first)))
}

func TestAmountFormattingStable(t *testing.T) {
	snap := sampleSnapshot()
	snap.Amount = decimal.RequireFromString("100.0")
	other := sampleSnapshot()
	other.Amount = decimal.RequireFromString("100.00")
	require.Equal(t, snap.Bytes(), other.Bytes())
	assert.Contains(t, string(snap.Bytes()), `"amount":"100.00"`)
}

func TestTimestampsNormalisedToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	snap := sampleSnapshot()
	snap.UpdatedAt = time.Date(2025, 3, 14, 11, 26, 53, 0, loc)
	other := sampleSnapshot()
	other.UpdatedAt = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	require.Equal(t, other.Bytes(), snap.Bytes())
}

func TestDigestChangesOnAnyFieldChange(t *testing.T) {
	base := sampleSnapshot().Digest()

	mutated := sampleSnapshot()
	mutated.Description = "widgets."
	assert.NotEqual(t, base, mutated.Digest())

	mutated = sampleSnapshot()
	mutated.Status = "approved"
	assert.NotEqual(t, base, mutated.Digest())

	mutated = sampleSnapshot()
	mutated.Confidential = "b64envelope2"
	assert.NotEqual(t, base, mutated.Digest())
}

func TestEncodeNoHTMLEscaping(t *testing.T) {
	got := Encode(map[string]string{"vendor": "Smith & Sons <Ltd>"})
	assert.Equal(t, `{"vendor":"Smith & Sons <Ltd>"}`, string(got))
}
