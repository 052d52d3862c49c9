package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/app"
	"libraryhub/internal/config"
	"libraryhub/internal/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// @title LibraryHub API
// @version 1.0
// @description Library lending tracker: catalog, members, checkouts and returns with late penalties.

// @contact.name API Support
// @contact.email support@libraryhub.local

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "libraryhub",
		Short:         "LibraryHub lending tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newCreateAdminCmd(),
	)
	return root
}

// bootstrap loads configuration, installs the logger and opens the database
func bootstrap() (*config.Config, *gorm.DB, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.SetupDefault(os.Stdout, logger.LevelFor(cfg.AppMode))

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, db, log, nil
}

func newServeCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer config.CloseDatabase(db)

			if !skipMigrate {
				if err := models.AutoMigrate(db); err != nil {
					return fmt.Errorf("failed to auto migrate: %w", err)
				}
				log.Info("✅ Database migration completed")
			}

			if err := config.NewSeeder(db, cfg.Seed).Run(); err != nil {
				log.Warn("⚠️ Failed to seed database", slog.String("error", err.Error()))
			}

			server, err := app.New(cfg, db, log)
			if err != nil {
				return err
			}
			if err := server.Start(); err != nil {
				return err
			}

			go gracefulShutdown(server, log)

			if err := server.Listen(); err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run schema migration on startup")
	return cmd
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(server *app.App, log *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("❌ Error during shutdown", slog.String("error", err.Error()))
		return
	}
	log.Info("✅ Server stopped gracefully")
}
