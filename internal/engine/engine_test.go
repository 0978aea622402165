package engine

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/canonical"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/crypto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/entity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
)

// memStore is an in-memory OrderStore honouring the same contract as the
// database repository: conditional transitions and insertion-ordered chains.
type memStore struct {
	mu      sync.Mutex
	orders  map[int64]*entity.Order
	chains  map[int64][]entity.SignatureRecord
	nextID  int64
	nextRec int64
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[int64]*entity.Order), chains: make(map[int64][]entity.SignatureRecord)}
}

func (s *memStore) Load(_ context.Context, id int64) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *memStore) Insert(_ context.Context, order *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	order.ID = s.nextID
	copied := *order
	s.orders[order.ID] = &copied
	return nil
}

func (s *memStore) Chain(_ context.Context, orderID int64) ([]entity.SignatureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.SignatureRecord(nil), s.chains[orderID]...), nil
}

func (s *memStore) ApplyTransition(_ context.Context, order *entity.Order, prior string, record *entity.SignatureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[order.ID]
	if !ok {
		return workflow.ErrNotFound
	}
	if stored.Status != prior {
		return workflow.ErrConflict
	}
	stored.Status = order.Status
	stored.UpdatedAt = order.UpdatedAt
	s.nextRec++
	record.ID = s.nextRec
	s.chains[order.ID] = append(s.chains[order.ID], *record)
	return nil
}

// tamper mutates a signed field directly, bypassing the engine.
func (s *memStore) tamper(orderID int64, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[orderID].Description = description
}

type memKeys struct {
	keys map[int64]*rsa.PrivateKey
}

func (k *memKeys) PublicKey(_ context.Context, userID int64) (*rsa.PublicKey, int, error) {
	priv, ok := k.keys[userID]
	if !ok {
		return nil, 0, fmt.Errorf("no key for user %d", userID)
	}
	return &priv.PublicKey, 1, nil
}

func (k *memKeys) PublicKeyVersion(ctx context.Context, userID int64, _ int) (*rsa.PublicKey, error) {
	pub, _, err := k.PublicKey(ctx, userID)
	return pub, err
}

type memTrail struct {
	mu      sync.Mutex
	entries []entity.AuditEntry
}

func (t *memTrail) Append(_ context.Context, entry entity.AuditEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	return nil
}

func (t *memTrail) actions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	actions := make([]string, len(t.entries))
	for i, e := range t.entries {
		actions[i] = e.Action
	}
	return actions
}

type fixture struct {
	engine *Engine
	store  *memStore
	keys   *memKeys
	trail  *memTrail
}

const (
	purchaserID  = int64(1)
	supervisorID = int64(2)
	purchasingID = int64(3)
)

var keyPairs = struct {
	once sync.Once
	keys map[int64]*rsa.PrivateKey
}{}

func testKeys(t *testing.T) map[int64]*rsa.PrivateKey {
	t.Helper()
	keyPairs.once.Do(func() {
		keyPairs.keys = make(map[int64]*rsa.PrivateKey)
		for _, id := range []int64{purchaserID, supervisorID, purchasingID, 4} {
			priv, err := crypto.GenerateKeyPair(2048)
			if err != nil {
				t.Fatalf("generate key: %v", err)
			}
			keyPairs.keys[id] = priv
		}
	})
	return keyPairs.keys
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	keys := &memKeys{keys: testKeys(t)}
	trail := &memTrail{}
	return &fixture{engine: New(store, keys, trail, zap.NewNop()), store: store, keys: keys, trail: trail}
}

func (f *fixture) create(t *testing.T) *entity.Order {
	t.Helper()
	order, err := f.engine.CreateOrder(context.Background(), purchaserID, workflow.RolePurchaser, CreateOrderInput{
		Description: "widgets",
		Amount:      decimal.RequireFromString("100.00"),
		Vendor:      "Acme",
	}, "10.0.0.1")
	require.NoError(t, err)
	return order
}

// signRequest produces the signature an external client would submit: over
// the canonical snapshot carrying the post-transition status and the
// updated_at the signer last observed.
func (f *fixture) signRequest(t *testing.T, orderID, signerID int64, kind workflow.Kind) workflow.TransitionRequest {
	t.Helper()
	order, err := f.store.Load(context.Background(), orderID)
	require.NoError(t, err)
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
	sig, err := crypto.Sign(payload, f.keys.keys[signerID])
	require.NoError(t, err)

	digest := canonical.DigestBytes(payload)
	now := time.Now().UTC()
	switch kind {
	case workflow.KindSign:
		return workflow.NewSignRequest(sig, digest, now)
	case workflow.KindApprove:
		return workflow.NewApproveRequest(sig, digest, now)
	case workflow.KindReject:
		return workflow.NewRejectRequest(sig, digest, now)
	default:
		return workflow.NewProcessRequest(sig, digest, now)
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	order := f.create(t)

	assert.Equal(t, string(workflow.StatusPending), order.Status)
	assert.Len(t, order.Number, 8)
	assert.Equal(t, purchaserID, order.PurchaserID)
	assert.Contains(t, f.trail.actions(), workflow.AuditCreated)
}

func TestCreateOrderRequiresPurchaserRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateOrder(context.Background(), supervisorID, workflow.RoleSupervisor, CreateOrderInput{
		Description: "widgets",
		Amount:      decimal.RequireFromString("10.00"),
		Vendor:      "Acme",
	}, "")
	assert.ErrorIs(t, err, workflow.ErrUnauthorized)
}

func TestFullLifecycleWithChainVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	// Supervisor approves with a valid signature over the post-transition state.
	req := f.signRequest(t, order.ID, supervisorID, workflow.KindApprove)
	approved, err := f.engine.ApplyTransition(ctx, order.ID, supervisorID, workflow.RoleSupervisor, req, "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusApproved), approved.Status)

	records, err := f.engine.GetChain(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Purchasing department processes while approved.
	req = f.signRequest(t, order.ID, purchasingID, workflow.KindProcess)
	processed, err := f.engine.ApplyTransition(ctx, order.ID, purchasingID, workflow.RolePurchasing, req, "10.0.0.3")
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusProcessed), processed.Status)

	records, err = f.engine.GetChain(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	report, err := f.engine.VerifyChain(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, report.Valid)
	for _, entry := range report.Entries {
		assert.True(t, entry.Valid, "entry %d: %s", entry.RecordID, entry.Reason)
	}

	actions := f.trail.actions()
	assert.Contains(t, actions, workflow.AuditApproved)
	assert.Contains(t, actions, workflow.AuditProcessed)
}

func TestPurchaserCannotApproveOwnOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	req := f.signRequest(t, order.ID, purchaserID, workflow.KindApprove)
	_, err := f.engine.ApplyTransition(ctx, order.ID, purchaserID, workflow.RolePurchaser, req, "10.0.0.1")
	assert.ErrorIs(t, err, workflow.ErrUnauthorized)

	current, err := f.engine.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusPending), current.Status)
	assert.Contains(t, f.trail.actions(), workflow.AuditDenied)
}

func TestDuplicateSignatureRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	req := f.signRequest(t, order.ID, supervisorID, workflow.KindSign)
	_, err := f.engine.ApplyTransition(ctx, order.ID, supervisorID, workflow.RoleSupervisor, req, "")
	require.NoError(t, err)

	req = f.signRequest(t, order.ID, supervisorID, workflow.KindSign)
	_, err = f.engine.ApplyTransition(ctx, order.ID, supervisorID, workflow.RoleSupervisor, req, "")
	assert.ErrorIs(t, err, workflow.ErrDuplicateSignature)

	records, err := f.engine.GetChain(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCoAttestSignDoesNotAdvanceStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	req := f.signRequest(t, order.ID, purchaserID, workflow.KindSign)
	signed, err := f.engine.ApplyTransition(ctx, order.ID, purchaserID, workflow.RolePurchaser, req, "")
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusPending), signed.Status)

	report, err := f.engine.VerifyChain(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestInvalidSignatureRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	req := f.signRequest(t, order.ID, supervisorID, workflow.KindApprove)
	mutated := append([]byte(nil), req.Signature...)
	mutated[0] ^= 0x01
	bad := workflow.NewApproveRequest(mutated, req.Digest, req.ProducedAt)

	_, err := f.engine.ApplyTransition(ctx, order.ID, supervisorID, workflow.RoleSupervisor, bad, "")
	assert.ErrorIs(t, err, workflow.ErrInvalidSignature)

	records, err := f.engine.GetChain(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDigestMismatchRejectedBeforeVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	req := f.signRequest(t, order.ID, supervisorID, workflow.KindApprove)
	bad := workflow.NewApproveRequest(req.Signature, "deadbeef", req.ProducedAt)

	_, err := f.engine.ApplyTransition(ctx, order.ID, supervisorID, workflow.RoleSupervisor, bad, "")
	assert.ErrorIs(t, err, workflow.ErrInvalidSignature)
}

func TestTransitionOnMissingOrder(t *testing.T) {
	f := newFixture(t)
	req := workflow.NewApproveRequest([]byte("sig"), "", time.Now())
	_, err := f.engine.ApplyTransition(context.Background(), 999, supervisorID, workflow.RoleSupervisor, req, "")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestConcurrentApprovesYieldExactlyOneApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	// Two supervisors race to approve the same pending order. Both sign
	// valid payloads up front; the engine's per-order lock serialises them
	// and the loser fails the status precondition.
	reqA := f.signRequest(t, order.ID, supervisorID, workflow.KindApprove)
	reqB := f.signRequest(t, order.ID, 4, workflow.KindApprove)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.engine.ApplyTransition(ctx, order.ID, supervisorID, workflow.RoleSupervisor, reqA, "")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.engine.ApplyTransition(ctx, order.ID, 4, workflow.RoleSupervisor, reqB, "")
	}()
	wg.Wait()

	var succeeded, failed int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			failed++
			assert.True(t,
				errors.Is(err, workflow.ErrUnauthorized) ||
					errors.Is(err, workflow.ErrConflict) ||
					errors.Is(err, workflow.ErrInvalidSignature),
				"unexpected loser error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	current, err := f.engine.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusApproved), current.Status)

	records, err := f.engine.GetChain(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestVerifyChainDetectsTamperedStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	req := f.signRequest(t, order.ID, supervisorID, workflow.KindApprove)
	_, err := f.engine.ApplyTransition(ctx, order.ID, supervisorID, workflow.RoleSupervisor, req, "")
	require.NoError(t, err)

	f.store.tamper(order.ID, "widgets and a yacht")

	report, err := f.engine.VerifyChain(ctx, order.ID)
	require.NoError(t, err)
	require.False(t, report.Valid)
	require.Len(t, report.Entries, 1)
	assert.False(t, report.Entries[0].Valid)
}

func TestVerifyChainIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	req := f.signRequest(t, order.ID, supervisorID, workflow.KindApprove)
	_, err := f.engine.ApplyTransition(ctx, order.ID, supervisorID, workflow.RoleSupervisor, req, "")
	require.NoError(t, err)

	first, err := f.engine.VerifyChain(ctx, order.ID)
	require.NoError(t, err)
	second, err := f.engine.VerifyChain(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
