// Command seeduser creates or updates a back office user.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"

	"github.com/lochiel/hacienda/internal/auth"
	authStore "github.com/lochiel/hacienda/internal/auth/store"
	"github.com/lochiel/hacienda/internal/config"
	"github.com/lochiel/hacienda/internal/database"
)

func main() {
	_ = godotenv.Load()

	var (
		email = flag.String("email", "", "user email")
		name  = flag.String("name", "", "display name")
		role  = flag.String("role", string(auth.RoleOperator), "ADMIN or OPERADOR")
	)

	flag.Parse()

	if err := run(*email, *name, auth.Role(strings.ToUpper(*role))); err != nil {
		slog.Error("seeding user failed", "error", err)
		os.Exit(1)
	}
}

func run(email, name string, role auth.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	var password string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&email).
				Validate(required("email")),
			huh.NewInput().
				Title("Nombre").
				Value(&name),
			huh.NewInput().
				Title("Contraseña").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(func(s string) error {
					if len(s) < 8 {
						return errors.New("at least 8 characters")
					}

					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cfg.ConnectionString(), 2)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, authStore.Schema); err != nil {
		return fmt.Errorf("applying auth schema: %w", err)
	}

	svc := auth.NewService(authStore.New(db), cfg.Auth.Secret, cfg.Auth.TokenTTL)

	u, err := svc.Seed(ctx, email, name, password, role)
	if err != nil {
		return err
	}

	slog.Info("user saved", "id", u.ID, "email", u.Email, "role", u.Role)

	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}

		return nil
	}
}
