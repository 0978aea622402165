package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/config"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/messaging"
	ordersvc "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/service/order"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/worker"
)

var workerTracer = otel.Tracer("github.com/patelmeet1372/Secure-Purchase-Order-System/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderTransitionedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderTransitionedHandler sets up a worker handler that re-verifies an
// order's signature chain after every transition, flagging tampering or
// verification drift out of band of the request path.
func NewOrderTransitionedHandler(svc *ordersvc.Service, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.transitioned", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.OrderTransitionedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order transitioned", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		report, err := svc.VerifyChain(ctx, event.OrderID)
		if err != nil {
			logger.Error("chain re-verification failed",
				zap.Int64("order_id", event.OrderID),
				zap.Error(err),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "verify error")
			return err
		}
		if !report.Valid {
			logger.Error("chain re-verification found invalid entries",
				zap.Int64("order_id", event.OrderID),
				zap.String("number", event.Number),
				zap.Int("entries", len(report.Entries)),
			)
			return nil
		}

		logger.Info("order transition event processed",
			zap.Int64("order_id", event.OrderID),
			zap.String("number", event.Number),
			zap.String("kind", event.Kind),
			zap.String("status", event.Status),
			zap.Int64("signer", event.SignerID),
			zap.Int("chain_length", len(report.Entries)),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
