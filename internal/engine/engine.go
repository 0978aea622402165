// Package engine is the transition entry point of the signed workflow: it
// loads the order, evaluates the guards in their fixed sequence, verifies the
// submitted signature against the canonical post-transition state, and
// persists the status change together with the new chain record.
package engine

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/canonical"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/chain"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/crypto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/entity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
)

var tracer = otel.Tracer("github.com/patelmeet1372/Secure-Purchase-Order-System/engine")

// OrderStore is the persistence collaborator the engine consumes. Load
// returns workflow.ErrNotFound for missing orders; ApplyTransition returns
// workflow.ErrConflict when the conditional status update loses a race.
type OrderStore interface {
	Load(ctx context.Context, id int64) (*entity.Order, error)
	Insert(ctx context.Context, order *entity.Order) error
	Chain(ctx context.Context, orderID int64) ([]entity.SignatureRecord, error)
	ApplyTransition(ctx context.Context, order *entity.Order, prior string, record *entity.SignatureRecord) error
}

// KeyRegistry resolves signer public keys. The engine never sees a private
// key on any production path.
type KeyRegistry interface {
	PublicKey(ctx context.Context, userID int64) (*rsa.PublicKey, int, error)
	PublicKeyVersion(ctx context.Context, userID int64, version int) (*rsa.PublicKey, error)
}

// AuditTrail records attempted and successful transitions.
type AuditTrail interface {
	Append(ctx context.Context, entry entity.AuditEntry) error
}

// CreateOrderInput carries the purchaser-supplied fields of a new order. The
// confidential payload arrives as an opaque ciphertext envelope; the engine
// never decrypts it.
type CreateOrderInput struct {
	Description  string
	Amount       decimal.Decimal
	Vendor       string
	Confidential string
}

// Engine orchestrates guarded, signed workflow transitions.
type Engine struct {
	store  OrderStore
	keys   KeyRegistry
	trail  AuditTrail
	logger *zap.Logger
	locks  *orderLocks
	now    func() time.Time
}

// New builds an Engine over its collaborators.
func New(store OrderStore, keys KeyRegistry, trail AuditTrail, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		keys:   keys,
		trail:  trail,
		logger: logger,
		locks:  newOrderLocks(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder registers a new purchase order in Pending status. Only
// purchasers may create; the order number is generated server-side and is
// immutable afterwards.
func (e *Engine) CreateOrder(ctx context.Context, callerID int64, callerRole workflow.Role, in CreateOrderInput, source string) (*entity.Order, error) {
	ctx, span := tracer.Start(ctx, "Engine.CreateOrder", trace.WithAttributes(attribute.Int64("caller.id", callerID)))
	defer span.End()

	if callerID <= 0 {
		return nil, workflow.ErrUnauthorized
	}
	if !workflow.Authorized(workflow.KindCreate, callerRole) {
		e.auditDenied(ctx, callerID, "create denied", source)
		return nil, workflow.ErrUnauthorized
	}
	if strings.TrimSpace(in.Description) == "" || strings.TrimSpace(in.Vendor) == "" {
		return nil, fmt.Errorf("description and vendor are required")
	}
	if in.Amount.IsNegative() || in.Amount.IsZero() {
		return nil, fmt.Errorf("amount must be positive")
	}

	now := e.now()
	order := &entity.Order{
		Number:       newOrderNumber(),
		PurchaserID:  callerID,
		Description:  in.Description,
		Amount:       in.Amount,
		Vendor:       in.Vendor,
		Confidential: in.Confidential,
		Status:       string(workflow.StatusPending),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.Insert(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, err
	}

	e.audit(ctx, callerID, workflow.AuditCreated, fmt.Sprintf("created purchase order %s", order.Number), source)
	return order, nil
}

// ApplyTransition runs one guarded transition under the order's exclusive
// lock. A lost optimistic update is retried once with freshly loaded state
// before surfacing workflow.ErrConflict.
func (e *Engine) ApplyTransition(ctx context.Context, orderID, callerID int64, callerRole workflow.Role, req workflow.TransitionRequest, source string) (*entity.Order, error) {
	ctx, span := tracer.Start(ctx, "Engine.ApplyTransition", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("caller.id", callerID),
		attribute.String("transition.kind", string(req.Kind())),
	))
	defer span.End()

	e.locks.lock(orderID)
	defer e.locks.unlock(orderID)

	order, err := e.applyOnce(ctx, orderID, callerID, callerRole, req, source)
	if errors.Is(err, workflow.ErrConflict) {
		order, err = e.applyOnce(ctx, orderID, callerID, callerRole, req, source)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return order, nil
}

func (e *Engine) applyOnce(ctx context.Context, orderID, callerID int64, callerRole workflow.Role, req workflow.TransitionRequest, source string) (*entity.Order, error) {
	kind := req.Kind()

	// Guard 1: order exists.
	order, err := e.store.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Guard 2: caller is authenticated.
	if callerID <= 0 {
		return nil, workflow.ErrUnauthorized
	}

	// Guard 3: role is authorized for the transition.
	if !workflow.Authorized(kind, callerRole) {
		e.auditDenied(ctx, callerID, fmt.Sprintf("%s denied on order %s: role %s not authorized", kind, order.Number, callerRole), source)
		return nil, workflow.ErrUnauthorized
	}

	// Guard 4: order status is compatible.
	target, err := workflow.Result(kind, workflow.Status(order.Status))
	if err != nil {
		e.auditDenied(ctx, callerID, fmt.Sprintf("%s denied on order %s: status %s", kind, order.Number, order.Status), source)
		return nil, err
	}

	// Guard 5: no duplicate signature for this transition.
	records, err := e.store.Chain(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if hasDuplicate(records, callerID, kind) {
		e.auditDenied(ctx, callerID, fmt.Sprintf("%s denied on order %s: already signed", kind, order.Number), source)
		return nil, workflow.ErrDuplicateSignature
	}

	// Guard 6: the signature verifies over the canonical post-transition
	// state as the signer last observed it.
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
	digest := canonical.DigestBytes(payload)
	if req.Digest != "" && req.Digest != digest {
		e.auditDenied(ctx, callerID, fmt.Sprintf("%s denied on order %s: digest mismatch", kind, order.Number), source)
		return nil, workflow.ErrInvalidSignature
	}

	pub, keyVersion, err := e.keys.PublicKey(ctx, callerID)
	if err != nil {
		return nil, err
	}
	ok, err := crypto.Verify(payload, req.Signature, pub)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.auditDenied(ctx, callerID, fmt.Sprintf("%s denied on order %s: invalid signature", kind, order.Number), source)
		return nil, workflow.ErrInvalidSignature
	}

	// All guards passed: mutate and append atomically.
	now := e.now()
	record := &entity.SignatureRecord{
		OrderID:    order.ID,
		SignerID:   callerID,
		SignerRole: string(callerRole),
		Kind:       string(kind),
		Digest:     digest,
		Signature:  chain.EncodeSignature(req.Signature),
		KeyVersion: keyVersion,
		ProducedAt: req.ProducedAt,
		AttestedAt: order.UpdatedAt,
		RecordedAt: now,
	}
	prior := order.Status
	order.Status = string(target)
	order.UpdatedAt = now

	if err := e.store.ApplyTransition(ctx, order, prior, record); err != nil {
		// Undo the in-memory mutation; the caller may retry with fresh state.
		order.Status = prior
		return nil, err
	}

	e.audit(ctx, callerID, workflow.AuditAction(kind), fmt.Sprintf("%s purchase order %s", workflow.AuditAction(kind), order.Number), source)
	if e.logger != nil {
		e.logger.Info("transition applied",
			zap.Int64("order_id", order.ID),
			zap.String("kind", string(kind)),
			zap.String("status", order.Status),
			zap.Int64("signer", callerID),
		)
	}
	return order, nil
}

// GetChain returns the order's signature records in insertion order.
func (e *Engine) GetChain(ctx context.Context, orderID int64) ([]entity.SignatureRecord, error) {
	if _, err := e.store.Load(ctx, orderID); err != nil {
		return nil, err
	}
	return e.store.Chain(ctx, orderID)
}

// VerifyChain replays the order's chain and re-verifies every entry. It is
// read-only and takes no lock; it needs only a consistent snapshot of the
// order and its records.
func (e *Engine) VerifyChain(ctx context.Context, orderID int64) (chain.Report, error) {
	ctx, span := tracer.Start(ctx, "Engine.VerifyChain", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := e.store.Load(ctx, orderID)
	if err != nil {
		return chain.Report{}, err
	}
	records, err := e.store.Chain(ctx, orderID)
	if err != nil {
		return chain.Report{}, err
	}
	return chain.Replay(ctx, order, records, e.keys), nil
}

// Get loads one order.
func (e *Engine) Get(ctx context.Context, orderID int64) (*entity.Order, error) {
	return e.store.Load(ctx, orderID)
}

// hasDuplicate applies the duplicate-signature rule: a co-attest sign
// conflicts with any earlier signature by the same signer on the order,
// advancing transitions conflict per (signer, kind).
func hasDuplicate(records []entity.SignatureRecord, signerID int64, kind workflow.Kind) bool {
	for _, rec := range records {
		if rec.SignerID != signerID {
			continue
		}
		if kind == workflow.KindSign || rec.Kind == string(kind) {
			return true
		}
	}
	return false
}

func (e *Engine) audit(ctx context.Context, actorID int64, action, detail, source string) {
	entry := entity.AuditEntry{Action: action, Detail: detail, SourceAddr: source, CreatedAt: e.now()}
	if actorID > 0 {
		entry.ActorID = &actorID
	}
	if err := e.trail.Append(ctx, entry); err != nil && e.logger != nil {
		e.logger.Warn("audit append failed", zap.String("action", action), zap.Error(err))
	}
}

func (e *Engine) auditDenied(ctx context.Context, actorID int64, detail, source string) {
	e.audit(ctx, actorID, workflow.AuditDenied, detail, source)
}

// newOrderNumber generates the short immutable order identifier: the first
// eight hex characters of a v4 UUID, uppercased.
func newOrderNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
