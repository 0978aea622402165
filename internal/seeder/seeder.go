package seeder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/config"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/crypto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/database"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/entity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/keyring"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
)

// Module provides the seeder to Fx for CLI use.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups: one user per
// workflow role with a freshly generated keypair, plus a sample order. The
// private halves are written to the configured key directory for use by
// local signing clients; they are never stored in the database.
type Seeder struct {
	db     *bun.DB
	keys   *keyring.Registry
	cfg    config.Config
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, keys *keyring.Registry, cfg config.Config, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, keys: keys, cfg: cfg, logger: logger}
}

// Users seeds one user per role, generating and registering a keypair for
// each. Users that already hold a registered key are skipped.
func (s *Seeder) Users(ctx context.Context) error {
	samples := []struct {
		userID int64
		role   workflow.Role
	}{
		{1, workflow.RolePurchaser},
		{2, workflow.RoleSupervisor},
		{3, workflow.RolePurchasing},
	}

	if err := os.MkdirAll(s.cfg.Crypto.KeyDir, 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	for _, sample := range samples {
		if _, _, err := s.keys.PublicKey(ctx, sample.userID); err == nil {
			continue
		}

		priv, err := crypto.GenerateKeyPair(s.cfg.Crypto.KeygenBits)
		if err != nil {
			return fmt.Errorf("generate key for user %d: %w", sample.userID, err)
		}
		pubPEM, err := crypto.EncodePublicKey(&priv.PublicKey)
		if err != nil {
			return fmt.Errorf("encode public key for user %d: %w", sample.userID, err)
		}
		version, err := s.keys.Register(ctx, sample.userID, sample.role, string(pubPEM))
		if err != nil {
			return fmt.Errorf("register key for user %d: %w", sample.userID, err)
		}

		privPEM, err := crypto.EncodePrivateKey(priv)
		if err != nil {
			return fmt.Errorf("encode private key for user %d: %w", sample.userID, err)
		}
		path := filepath.Join(s.cfg.Crypto.KeyDir, fmt.Sprintf("user-%d.pem", sample.userID))
		if err := os.WriteFile(path, privPEM, 0o600); err != nil {
			return fmt.Errorf("write private key for user %d: %w", sample.userID, err)
		}

		if s.logger != nil {
			s.logger.Info("seeded user key",
				zap.Int64("user_id", sample.userID),
				zap.String("role", string(sample.role)),
				zap.Int("version", version),
				zap.String("private_key", path),
			)
		}
	}
	return nil
}

// Orders seeds example orders if they are missing. The second sample carries
// a confidential payload sealed to the purchaser's public key, exercising the
// same envelope format clients produce.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Order{
		{
			Number:      "D3ADBEEF",
			PurchaserID: 1,
			Description: "Office chairs",
			Amount:      decimal.RequireFromString("1499.90"),
			Vendor:      "Initech Supplies",
			Status:      string(workflow.StatusPending),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	if pub, _, err := s.keys.PublicKey(ctx, 1); err == nil {
		sealed, err := crypto.Encrypt([]byte("negotiated unit price: 12.50"), pub)
		if err != nil {
			return fmt.Errorf("seal confidential sample: %w", err)
		}
		samples = append(samples, entity.Order{
			Number:       "C0FFEE42",
			PurchaserID:  1,
			Description:  "Vendor contract renewal",
			Amount:       decimal.RequireFromString("25000.00"),
			Vendor:       "Globex Corporation",
			Confidential: sealed,
			Status:       string(workflow.StatusPending),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	for _, sample := range samples {
		order := sample
		_, err := s.db.NewInsert().Model(&order).
			On("CONFLICT (number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}
