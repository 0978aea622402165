// Package audit appends workflow actions to the append-only audit trail.
// Entries are owned by the system rather than by orders, so reporting
// survives order deletion.
package audit

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/database"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/entity"
)

var tracer = otel.Tracer("github.com/patelmeet1372/Secure-Purchase-Order-System/audit")

// Module provides the audit trail to Fx.
var Module = fx.Provide(NewTrail)

// Trail records audit entries. A failed append must never fail a transition
// that already committed; callers log the returned error and continue.
type Trail struct {
	writer *bun.DB
	reader *bun.DB
	logger *zap.Logger
}

// NewTrail builds a Trail over the configured database connections.
func NewTrail(conns *database.Connections, logger *zap.Logger) *Trail {
	return &Trail{writer: conns.Writer, reader: conns.Reader, logger: logger}
}

// Append writes one entry to the trail.
func (t *Trail) Append(ctx context.Context, entry entity.AuditEntry) error {
	ctx, span := tracer.Start(ctx, "AuditTrail.Append", trace.WithAttributes(attribute.String("audit.action", entry.Action)))
	defer span.End()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := t.writer.NewInsert().Model(&entry).Exec(ctx); err != nil {
		if t.logger != nil {
			t.logger.Error("audit append failed", zap.String("action", entry.Action), zap.Error(err))
		}
		return err
	}
	return nil
}

// Recent returns the newest entries for reporting, most recent first.
func (t *Trail) Recent(ctx context.Context, limit int) ([]entity.AuditEntry, error) {
	ctx, span := tracer.Start(ctx, "AuditTrail.Recent")
	defer span.End()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []entity.AuditEntry
	err := t.reader.NewSelect().Model(&entries).
		Order("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
