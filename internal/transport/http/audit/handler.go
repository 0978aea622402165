package audit

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/dto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/presentation/http/response"
	service "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/service/order"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/transport/http/identity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/patelmeet1372/Secure-Purchase-Order-System/transport/http/audit")

// Handler exposes the audit trail over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an audit Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/audit", h.recent)
}

func (h *Handler) recent(c echo.Context) error {
	b := response.New(c)

	if _, ok := identity.From(c); !ok {
		return b.WithError(errorbank.Unauthorized("authentication required")).Build()
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return b.WithError(errorbank.BadRequest("invalid limit")).Build()
		}
		limit = parsed
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "audit.recent")
	defer span.End()

	entries, err := h.svc.AuditRecent(ctx, limit)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.AuditEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = dto.AuditEntryResponse{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			Action:     entry.Action,
			Detail:     entry.Detail,
			SourceAddr: entry.SourceAddr,
			CreatedAt:  entry.CreatedAt,
		}
	}
	return b.WithData(out).Build()
}
