package key

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/dto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/presentation/http/response"
	service "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/service/order"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/patelmeet1372/Secure-Purchase-Order-System/transport/http/key")

// Handler exposes public key distribution over HTTP. Only public halves are
// ever served; private keys never reach the server.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a key Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/keys/:userID", h.getByUserID)
}

func (h *Handler) getByUserID(c echo.Context) error {
	b := response.New(c)

	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid user id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "keys.getByUserID", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	pem, version, err := h.svc.PublicKey(ctx, userID)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.KeyResponse{UserID: userID, Version: version, PublicKey: pem}).Build()
}
