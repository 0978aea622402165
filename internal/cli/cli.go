package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/app"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/config"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/crypto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/keyring"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/migration"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/seeder"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
)

// NewRootCommand builds the root spo CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "spo",
		Short: "Secure purchase order service toolkit",
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newGRPCCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newKeygenCmd())
	root.AddCommand(newWorkerCmd())

	return root
}

// Execute runs the spo CLI.
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Module)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	}
}

func newGRPCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grpc",
		Short: "Run the gRPC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.GRPC)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed development users, keys and orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			opts := fx.Options(app.Core, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := seed.Users(ctx); err != nil {
					return err
				}
				if err := seed.Orders(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
				return nil
			})
		},
	}
}

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate and register a keypair for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			roleName, _ := cmd.Flags().GetString("role")
			if userID <= 0 {
				return fmt.Errorf("--user must be a positive id")
			}
			role := workflow.Role(roleName)
			if !workflow.ValidRole(role) {
				return fmt.Errorf("unknown role %q", roleName)
			}

			var (
				reg *keyring.Registry
				cfg config.Config
			)
			opts := fx.Options(app.Core, fx.Populate(&reg, &cfg))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				priv, err := crypto.GenerateKeyPair(cfg.Crypto.KeygenBits)
				if err != nil {
					return err
				}
				pubPEM, err := crypto.EncodePublicKey(&priv.PublicKey)
				if err != nil {
					return err
				}
				version, err := reg.Register(ctx, userID, role, string(pubPEM))
				if err != nil {
					return err
				}

				privPEM, err := crypto.EncodePrivateKey(priv)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(cfg.Crypto.KeyDir, 0o700); err != nil {
					return err
				}
				path := filepath.Join(cfg.Crypto.KeyDir, fmt.Sprintf("user-%d.pem", userID))
				if err := os.WriteFile(path, privPEM, 0o600); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "registered key version %d for user %d; private key written to %s\n", version, userID, path)
				return nil
			})
		},
	}
	cmd.Flags().Int64("user", 0, "User id to register the key for")
	cmd.Flags().String("role", "", "Workflow role: purchaser, supervisor or purchasing_dept")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Worker)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	})
	return cmd
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
