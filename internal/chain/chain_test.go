package chain

import (
	"context"
	"crypto/rsa"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/canonical"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/crypto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/entity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
)

type staticKeys map[int64]*rsa.PublicKey

func (k staticKeys) PublicKeyVersion(_ context.Context, userID int64, _ int) (*rsa.PublicKey, error) {
	pub, ok := k[userID]
	if !ok {
		return nil, fmt.Errorf("no key for user %d", userID)
	}
	return pub, nil
}

type signer struct {
	id   int64
	role workflow.Role
	priv *rsa.PrivateKey
}

func newSigner(t *testing.T, id int64, role workflow.Role) signer {
	t.Helper()
	priv, err := crypto.GenerateKeyPair(2048)
	require.NoError(t, err)
	return signer{id: id, role: role, priv: priv}
}

func newOrder(t *testing.T) *entity.Order {
	t.Helper()
	created := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	return &entity.Order{
		ID:           42,
		Number:       "9F3A1C2B",
		PurchaserID:  1,
		Description:  "widgets",
		Amount:       decimal.RequireFromString("100.00"),
		Vendor:       "Acme",
		Confidential: "sealed",
		Status:       string(workflow.StatusPending),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

// attest signs the canonical post-transition snapshot the way an external
// client would, then mutates the order the way the engine does on success.
func attest(t *testing.T, order *entity.Order, s signer, kind workflow.Kind, recID int64) entity.SignatureRecord {
	t.Helper()

	target, err := workflow.Result(kind, workflow.Status(order.Status))
	require.NoError(t, err)

	snap := canonical.Snapshot{
		OrderNumber:  order.Number,
		PurchaserID:  order.PurchaserID,
		Description:  order.Description,
		Amount:       order.Amount,
		Vendor:       order.Vendor,
		Confidential: order.Confidential,
		Status:       string(target),
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
	payload := snap.Bytes()
	sig, err := crypto.Sign(payload, s.priv)
	require.NoError(t, err)

	rec := entity.SignatureRecord{
		ID:         recID,
		OrderID:    order.ID,
		SignerID:   s.id,
		SignerRole: string(s.role),
		Kind:       string(kind),
		Digest:     canonical.DigestBytes(payload),
		Signature:  EncodeSignature(sig),
		KeyVersion: 1,
		ProducedAt: order.UpdatedAt.Add(time.Second),
		AttestedAt: order.UpdatedAt,
		RecordedAt: order.UpdatedAt.Add(2 * time.Second),
	}

	order.Status = string(target)
	order.UpdatedAt = order.UpdatedAt.Add(time.Minute)
	return rec
}

func TestReplayFullLifecycle(t *testing.T) {
	supervisor := newSigner(t, 2, workflow.RoleSupervisor)
	purchasing := newSigner(t, 3, workflow.RolePurchasing)
	keys := staticKeys{2: &supervisor.priv.PublicKey, 3: &purchasing.priv.PublicKey}

	order := newOrder(t)
	records := []entity.SignatureRecord{
		attest(t, order, supervisor, workflow.KindApprove, 1),
		attest(t, order, purchasing, workflow.KindProcess, 2),
	}
	require.Equal(t, string(workflow.StatusProcessed), order.Status)

	report := Replay(context.Background(), order, records, keys)
	require.True(t, report.Valid)
	require.Len(t, report.Entries, 2)
	for _, entry := range report.Entries {
		assert.True(t, entry.Valid, "entry %d: %s", entry.RecordID, entry.Reason)
	}
}

func TestReplayIsIdempotent(t *testing.T) {
	supervisor := newSigner(t, 2, workflow.RoleSupervisor)
	keys := staticKeys{2: &supervisor.priv.PublicKey}

	order := newOrder(t)
	records := []entity.SignatureRecord{attest(t, order, supervisor, workflow.KindApprove, 1)}

	first := Replay(context.Background(), order, records, keys)
	second := Replay(context.Background(), order, records, keys)
	assert.Equal(t, first, second)
}

func TestReplayDetectsStorageTamper(t *testing.T) {
	supervisor := newSigner(t, 2, workflow.RoleSupervisor)
	keys := staticKeys{2: &supervisor.priv.PublicKey}

	order := newOrder(t)
	records := []entity.SignatureRecord{attest(t, order, supervisor, workflow.KindApprove, 1)}

	// Mutate a signed field directly, bypassing the engine.
	order.Description = "widgets plus extras"

	report := Replay(context.Background(), order, records, keys)
	require.False(t, report.Valid)
	require.Len(t, report.Entries, 1)
	assert.False(t, report.Entries[0].Valid)
	assert.Equal(t, "canonical digest mismatch", report.Entries[0].Reason)
}

func TestReplayDetectsSwappedSignature(t *testing.T) {
	supervisor := newSigner(t, 2, workflow.RoleSupervisor)
	impostor := newSigner(t, 9, workflow.RoleSupervisor)
	keys := staticKeys{2: &supervisor.priv.PublicKey}

	order := newOrder(t)
	rec := attest(t, order, supervisor, workflow.KindApprove, 1)

	// Replace the signature with one from a different key over the same bytes.
	forged := attestPayloadSignature(t, order, impostor)
	rec.Signature = EncodeSignature(forged)

	report := Replay(context.Background(), order, []entity.SignatureRecord{rec}, keys)
	require.False(t, report.Valid)
	assert.Equal(t, "signature invalid", report.Entries[0].Reason)
}

func attestPayloadSignature(t *testing.T, order *entity.Order, s signer) []byte {
	t.Helper()
	snap := canonical.Snapshot{
		OrderNumber:  order.Number,
		PurchaserID:  order.PurchaserID,
		Description:  order.Description,
		Amount:       order.Amount,
		Vendor:       order.Vendor,
		Confidential: order.Confidential,
		Status:       order.Status,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
	sig, err := crypto.Sign(snap.Bytes(), s.priv)
	require.NoError(t, err)
	return sig
}

func TestReplayMissingKeyInvalidatesEntry(t *testing.T) {
	supervisor := newSigner(t, 2, workflow.RoleSupervisor)
	order := newOrder(t)
	records := []entity.SignatureRecord{attest(t, order, supervisor, workflow.KindApprove, 1)}

	report := Replay(context.Background(), order, records, staticKeys{})
	require.False(t, report.Valid)
	assert.Contains(t, report.Entries[0].Reason, "key material unavailable")
}

func TestReplayEmptyChainIsValid(t *testing.T) {
	order := newOrder(t)
	report := Replay(context.Background(), order, nil, staticKeys{})
	assert.True(t, report.Valid)
	assert.Empty(t, report.Entries)
}
