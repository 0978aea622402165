package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/database"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/entity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
)

var repoTracer = otel.Tracer("github.com/patelmeet1372/Secure-Purchase-Order-System/repository/order")

// Repository encapsulates read/write access for orders and their signature
// chains. Status changes only happen through ApplyTransition, which is
// conditional on the expected prior status.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Insert persists a new order using the write connection.
func (r *Repository) Insert(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Insert", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// Load fetches an order by primary key. Transition paths read through the
// writer so guards always see the latest committed state.
func (r *Repository) Load(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Load", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.writer.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// ListForRole returns the orders visible to a caller: purchasers see their
// own, supervisors see pending, the purchasing department sees approved.
func (r *Repository) ListForRole(ctx context.Context, callerID int64, role workflow.Role) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListForRole", trace.WithAttributes(attribute.String("caller.role", string(role))))
	defer span.End()

	var orders []entity.Order
	q := r.reader.NewSelect().Model(&orders).Order("id DESC")
	switch role {
	case workflow.RolePurchaser:
		q = q.Where("purchaser_id = ?", callerID)
	case workflow.RoleSupervisor:
		q = q.Where("status = ?", string(workflow.StatusPending))
	case workflow.RolePurchasing:
		q = q.Where("status = ?", string(workflow.StatusApproved))
	default:
		return nil, workflow.ErrUnauthorized
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Chain returns the order's signature records in insertion order.
func (r *Repository) Chain(ctx context.Context, orderID int64) ([]entity.SignatureRecord, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Chain", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var records []entity.SignatureRecord
	err := r.writer.NewSelect().Model(&records).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return records, nil
}

// ApplyTransition persists one transition atomically: the status/updated_at
// change (conditional on the expected prior status) and the new chain record
// commit together or not at all. A lost conditional update surfaces as
// workflow.ErrConflict so the engine can retry with fresh state.
func (r *Repository) ApplyTransition(ctx context.Context, order *entity.Order, prior string, record *entity.SignatureRecord) error {
	if order == nil || record == nil {
		return errors.New("nil order or record")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ApplyTransition", trace.WithAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("order.status", order.Status),
		attribute.String("transition.kind", record.Kind),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(order).
			Column("status", "updated_at").
			Where("id = ?", order.ID).
			Where("status = ?", prior).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected != 1 {
			return workflow.ErrConflict
		}

		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return fmt.Errorf("append chain record: %w", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, workflow.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
	}
	return err
}
