package order

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/chain"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/dto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/engine"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/entity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/presentation/http/response"
	service "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/service/order"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/transport/http/identity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/patelmeet1372/Secure-Purchase-Order-System/transport/http/order")

// Handler exposes purchase order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.POST("/:id/sign", h.transition(workflow.KindSign, workflow.NewSignRequest))
	g.POST("/:id/approve", h.transition(workflow.KindApprove, workflow.NewApproveRequest))
	g.POST("/:id/reject", h.transition(workflow.KindReject, workflow.NewRejectRequest))
	g.POST("/:id/process", h.transition(workflow.KindProcess, workflow.NewProcessRequest))
	g.GET("/:id/chain", h.chain)
	g.GET("/:id/chain/verify", h.verifyChain)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	caller, ok := identity.From(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("authentication required")).Build()
	}

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid amount", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(attribute.Int64("caller.id", caller.UserID)))
	defer span.End()

	order, err := h.svc.Create(ctx, caller.UserID, caller.Role, engine.CreateOrderInput{
		Description:  payload.Description,
		Amount:       amount,
		Vendor:       payload.Vendor,
		Confidential: payload.Confidential,
	}, c.RealIP())
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toDTO(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	caller, ok := identity.From(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("authentication required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, caller.UserID, caller.Role)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.OrderResponse, len(orders))
	for i := range orders {
		out[i] = toDTO(&orders[i])
	}
	return b.WithData(out).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

// transition builds one POST handler per workflow verb; the verbs differ
// only in the request constructor they tag the signature with.
func (h *Handler) transition(kind workflow.Kind, newRequest func([]byte, string, time.Time) workflow.TransitionRequest) echo.HandlerFunc {
	return func(c echo.Context) error {
		b := response.New(c)

		caller, ok := identity.From(c)
		if !ok {
			return b.WithError(errorbank.Unauthorized("authentication required")).Build()
		}
		id, err := parseID(c)
		if err != nil {
			return b.WithError(err).Build()
		}

		var payload dto.TransitionRequest
		if err := c.Bind(&payload); err != nil {
			return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
		}
		if payload.Signature == "" {
			return b.WithError(errorbank.BadRequest("signature is required")).Build()
		}
		signature, err := base64.StdEncoding.DecodeString(payload.Signature)
		if err != nil {
			return b.WithError(errorbank.BadRequest("signature must be base64", errorbank.WithCause(err))).Build()
		}
		producedAt := payload.ProducedAt
		if producedAt.IsZero() {
			producedAt = time.Now().UTC()
		}

		ctx, span := httpTracer.Start(c.Request().Context(), "orders.transition", trace.WithAttributes(
			attribute.Int64("order.id", id),
			attribute.String("transition.kind", string(kind)),
		))
		defer span.End()

		order, err := h.svc.Transition(ctx, id, caller.UserID, caller.Role, newRequest(signature, payload.Digest, producedAt), c.RealIP())
		if err != nil {
			return b.WithError(err).Build()
		}

		return b.WithData(toDTO(order)).Build()
	}
}

func (h *Handler) chain(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.chain", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	records, err := h.svc.Chain(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.SignatureRecordResponse, len(records))
	for i, rec := range records {
		out[i] = dto.SignatureRecordResponse{
			ID:         rec.ID,
			OrderID:    rec.OrderID,
			SignerID:   rec.SignerID,
			SignerRole: rec.SignerRole,
			Kind:       rec.Kind,
			Digest:     rec.Digest,
			Signature:  rec.Signature,
			KeyVersion: rec.KeyVersion,
			ProducedAt: rec.ProducedAt,
			RecordedAt: rec.RecordedAt,
		}
	}
	return b.WithData(out).Build()
}

func (h *Handler) verifyChain(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.verifyChain", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	report, err := h.svc.VerifyChain(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toReportDTO(report)).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

func toDTO(order *entity.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:           order.ID,
		Number:       order.Number,
		PurchaserID:  order.PurchaserID,
		Description:  order.Description,
		Amount:       order.Amount,
		Vendor:       order.Vendor,
		Confidential: order.Confidential != "",
		Status:       order.Status,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
}

func toReportDTO(report chain.Report) dto.ChainVerificationReport {
	out := dto.ChainVerificationReport{
		OrderID: report.OrderID,
		Valid:   report.Valid,
		Entries: make([]dto.ChainEntryVerification, len(report.Entries)),
	}
	for i, entry := range report.Entries {
		out.Entries[i] = dto.ChainEntryVerification{
			RecordID: entry.RecordID,
			SignerID: entry.SignerID,
			Kind:     string(entry.Kind),
			Digest:   entry.Digest,
			Valid:    entry.Valid,
			Reason:   entry.Reason,
		}
	}
	return out
}
