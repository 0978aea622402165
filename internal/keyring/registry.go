// Package keyring resolves user identities to their public signing keys and
// roles. Keys are versioned: rotation inserts a new version so signatures
// made under an older key stay verifiable through PublicKeyVersion.
package keyring

import (
	"context"
	"crypto/rsa"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/crypto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/database"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/entity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
)

var tracer = otel.Tracer("github.com/patelmeet1372/Secure-Purchase-Order-System/keyring")

// ErrUnknownUser is returned when no key material exists for a user.
var ErrUnknownUser = errors.New("no key registered for user")

// Registry is the database-backed key and role resolver.
type Registry struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRegistry wires a registry over the configured database connections.
func NewRegistry(conns *database.Connections) *Registry {
	return &Registry{writer: conns.Writer, reader: conns.Reader}
}

// PublicKey returns the user's current public key and its version.
func (r *Registry) PublicKey(ctx context.Context, userID int64) (*rsa.PublicKey, int, error) {
	key, err := r.current(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	pub, err := crypto.ParsePublicKey([]byte(key.PublicKey))
	if err != nil {
		return nil, 0, err
	}
	return pub, key.Version, nil
}

// PublicKeyVersion returns the key a user held at a specific version.
func (r *Registry) PublicKeyVersion(ctx context.Context, userID int64, version int) (*rsa.PublicKey, error) {
	ctx, span := tracer.Start(ctx, "Keyring.PublicKeyVersion", trace.WithAttributes(
		attribute.Int64("user.id", userID), attribute.Int("key.version", version)))
	defer span.End()

	key := new(entity.UserKey)
	err := r.reader.NewSelect().Model(key).
		Where("user_id = ?", userID).
		Where("version = ?", version).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return crypto.ParsePublicKey([]byte(key.PublicKey))
}

// PublicKeyPEM returns the current key as stored, for distribution endpoints.
func (r *Registry) PublicKeyPEM(ctx context.Context, userID int64) (string, int, error) {
	key, err := r.current(ctx, userID)
	if err != nil {
		return "", 0, err
	}
	return key.PublicKey, key.Version, nil
}

// Role resolves the user's workflow role. The transport layer calls this once
// at the authentication boundary; the engine receives the role as a parameter
// and never re-derives it mid-transition.
func (r *Registry) Role(ctx context.Context, userID int64) (workflow.Role, error) {
	key, err := r.current(ctx, userID)
	if err != nil {
		return "", err
	}
	return workflow.Role(key.Role), nil
}

// Register stores a new key version for the user. Existing versions are
// never overwritten.
func (r *Registry) Register(ctx context.Context, userID int64, role workflow.Role, publicKeyPEM string) (int, error) {
	ctx, span := tracer.Start(ctx, "Keyring.Register", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if _, err := crypto.ParsePublicKey([]byte(publicKeyPEM)); err != nil {
		return 0, err
	}

	version := 1
	if current, err := r.current(ctx, userID); err == nil {
		version = current.Version + 1
	} else if !errors.Is(err, ErrUnknownUser) {
		return 0, err
	}

	key := &entity.UserKey{
		UserID:    userID,
		Role:      string(role),
		PublicKey: publicKeyPEM,
		Version:   version,
	}
	if _, err := r.writer.NewInsert().Model(key).Exec(ctx); err != nil {
		return 0, err
	}
	return version, nil
}

func (r *Registry) current(ctx context.Context, userID int64) (*entity.UserKey, error) {
	key := new(entity.UserKey)
	err := r.reader.NewSelect().Model(key).
		Where("user_id = ?", userID).
		Order("version DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}
