package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/audit"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/cache"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/chain"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/config"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/crypto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/engine"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/entity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/keyring"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/messaging"
	repo "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/repository/order"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/patelmeet1372/Secure-Purchase-Order-System/service/order")

// Service fronts the workflow engine for the transport layers: it translates
// domain errors into transport-neutral AppErrors, keeps the order cache
// coherent across transitions, and publishes transition events.
type Service struct {
	engine    *engine.Engine
	repo      *repo.Repository
	keys      *keyring.Registry
	trail     *audit.Trail
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Engine     *engine.Engine
	Repository *repo.Repository
	Keys       *keyring.Registry
	Trail      *audit.Trail
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		engine:    p.Engine,
		repo:      p.Repository,
		keys:      p.Keys,
		trail:     p.Trail,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Create registers a new purchase order for the calling purchaser.
func (s *Service) Create(ctx context.Context, callerID int64, role workflow.Role, in engine.CreateOrderInput, source string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int64("caller.id", callerID)))
	defer span.End()

	if strings.TrimSpace(in.Description) == "" || strings.TrimSpace(in.Vendor) == "" {
		return nil, errorbank.BadRequest("description and vendor are required")
	}
	if !in.Amount.GreaterThan(decimal.Zero) {
		return nil, errorbank.BadRequest("amount must be positive")
	}

	order, err := s.engine.CreateOrder(ctx, callerID, role, in, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, mapDomainErr(err)
	}

	if err := s.storeInCache(ctx, order); err != nil && s.logger != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
	s.publishTransition(ctx, order, workflow.KindCreate, callerID)
	return order, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
		}
	}

	order, err := s.engine.Get(ctx, id)
	if err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.storeInCache(ctx, order); err != nil && s.logger != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

// List returns the orders visible to the caller's role.
func (s *Service) List(ctx context.Context, callerID int64, role workflow.Role) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List", trace.WithAttributes(attribute.String("caller.role", string(role))))
	defer span.End()

	orders, err := s.repo.ListForRole(ctx, callerID, role)
	if err != nil {
		return nil, mapDomainErr(err)
	}
	return orders, nil
}

// Transition applies one signed workflow transition and keeps cache and
// event stream coherent with the new state.
func (s *Service) Transition(ctx context.Context, orderID, callerID int64, role workflow.Role, req workflow.TransitionRequest, source string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("transition.kind", string(req.Kind())),
	))
	defer span.End()

	order, err := s.engine.ApplyTransition(ctx, orderID, callerID, role, req, source)
	if err != nil {
		span.SetStatus(codes.Error, "transition failed")
		return nil, mapDomainErr(err)
	}

	if err := s.cache.Delete(ctx, s.cacheKey(orderID)); err != nil && s.logger != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int64("id", orderID), zap.Error(err))
	}
	if err := s.storeInCache(ctx, order); err != nil && s.logger != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", orderID), zap.Error(err))
	}

	s.publishTransition(ctx, order, req.Kind(), callerID)
	return order, nil
}

// Chain returns the order's signature records in insertion order.
func (s *Service) Chain(ctx context.Context, orderID int64) ([]entity.SignatureRecord, error) {
	records, err := s.engine.GetChain(ctx, orderID)
	if err != nil {
		return nil, mapDomainErr(err)
	}
	return records, nil
}

// VerifyChain replays and re-verifies the order's signature chain.
func (s *Service) VerifyChain(ctx context.Context, orderID int64) (chain.Report, error) {
	report, err := s.engine.VerifyChain(ctx, orderID)
	if err != nil {
		return chain.Report{}, mapDomainErr(err)
	}
	return report, nil
}

// PublicKey returns the current public key PEM and version for a user.
func (s *Service) PublicKey(ctx context.Context, userID int64) (string, int, error) {
	pem, version, err := s.keys.PublicKeyPEM(ctx, userID)
	if err != nil {
		return "", 0, mapDomainErr(err)
	}
	return pem, version, nil
}

// Role resolves a user's workflow role from the key registry.
func (s *Service) Role(ctx context.Context, userID int64) (workflow.Role, error) {
	role, err := s.keys.Role(ctx, userID)
	if err != nil {
		return "", mapDomainErr(err)
	}
	return role, nil
}

// AuditRecent returns the newest audit entries.
func (s *Service) AuditRecent(ctx context.Context, limit int) ([]entity.AuditEntry, error) {
	entries, err := s.trail.Recent(ctx, limit)
	if err != nil {
		return nil, mapDomainErr(err)
	}
	return entries, nil
}

// OrderTransitionedEvent is emitted whenever an order is created or moved
// through the workflow.
type OrderTransitionedEvent struct {
	OrderID    int64     `json:"order_id"`
	Number     string    `json:"number"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	SignerID   int64     `json:"signer_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *Service) publishTransition(ctx context.Context, order *entity.Order, kind workflow.Kind, signerID int64) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderTransitionedEvent{
		OrderID:    order.ID,
		Number:     order.Number,
		Kind:       string(kind),
		Status:     order.Status,
		SignerID:   signerID,
		OccurredAt: order.UpdatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal order transitioned", zap.Error(err))
		}
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		if s.logger != nil {
			s.logger.Error("publish order transitioned", zap.Error(err))
		}
	}
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

// mapDomainErr translates workflow, keyring and crypto errors into
// transport-neutral AppErrors.
func mapDomainErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, workflow.ErrNotFound):
		return errorbank.NotFound("order not found")
	case errors.Is(err, keyring.ErrUnknownUser):
		return errorbank.NotFound("no key registered for user")
	case errors.Is(err, workflow.ErrUnauthorized):
		return errorbank.Unauthorized("transition not permitted")
	case errors.Is(err, workflow.ErrDuplicateSignature):
		return errorbank.Conflict("transition already signed by this user", errorbank.WithDetail("code", "duplicate_signature"))
	case errors.Is(err, workflow.ErrInvalidSignature):
		return errorbank.Unprocessable("signature verification failed")
	case errors.Is(err, workflow.ErrConflict):
		return errorbank.Unavailable("order is being modified concurrently, retry")
	case errors.Is(err, crypto.ErrCryptoFault):
		return errorbank.Internal("cryptographic backend failure", errorbank.WithDetail("code", "crypto_fault"), errorbank.WithCause(err))
	default:
		return errorbank.Internal("internal error", errorbank.WithCause(err))
	}
}
