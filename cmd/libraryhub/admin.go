package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer config.CloseDatabase(db)

			if err := models.AutoMigrate(db); err != nil {
				return fmt.Errorf("failed to auto migrate: %w", err)
			}
			log.Info("✅ Database migration completed")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var sample bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the bootstrap admin and, optionally, a sample catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, _, err := bootstrap()
			if err != nil {
				return err
			}
			defer config.CloseDatabase(db)

			seed := cfg.Seed
			if cmd.Flags().Changed("sample-books") {
				seed.SampleBooks = sample
			}
			return config.NewSeeder(db, seed).Run()
		},
	}
	cmd.Flags().BoolVar(&sample, "sample-books", false, "add the sample catalog when the catalog is empty")
	return cmd
}

func newCreateAdminCmd() *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, prompting for the password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || email == "" {
				return errors.New("--username and --email are required")
			}

			pass, err := readPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			confirm, err := readPassword("Confirm password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if pass != confirm {
				return domain.ErrPasswordMismatch
			}

			_, db, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer config.CloseDatabase(db)

			users := services.NewUserService(repositories.NewStore(db), time.Now, log)
			user, err := users.CreateUser(context.Background(), &services.CreateUserInput{
				Username: username,
				Email:    email,
				Password: pass,
				Role:     domain.RoleAdmin.String(),
			})
			if err != nil {
				return err
			}

			fmt.Printf("✅ Admin %q created (id %d)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	return cmd
}

// readPassword reads a password without echoing it
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}
