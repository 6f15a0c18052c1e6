package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"memoir/internal/app"
	"memoir/internal/config"
	"memoir/internal/db"
	"memoir/internal/markdown"
	"memoir/internal/models"
	"memoir/internal/service"
	"memoir/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:          "memoir",
		Short:        "memoir is a personal note-taking service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newAdminCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC-Web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			container, cleanup, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			defer cleanup() //nolint:errcheck

			log.Printf("memoir listening on %s (storage=%s)", cfg.Addr, cfg.Storage)
			return container.Mux.Listen(cfg.Addr)
		},
	}
}

func newAdminCmd() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands against the local database",
	}
	admin.AddCommand(newAdminUserCmd(), newAdminMemoCmd(), newAdminTokenCmd(), newAdminRegistrationCmd())
	return admin
}

// withServices opens the database, runs migrations, and hands the wired
// services to fn.
func withServices(ctx context.Context, fn func(cfg config.Config, userService *service.UserService, memoService *service.MemoService) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sqliteDB, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer sqliteDB.Close() //nolint:errcheck
	if err := db.Migrate(sqliteDB); err != nil {
		return fmt.Errorf("migrate db: %w", err)
	}

	sqlStore := store.New(sqliteDB)
	return fn(cfg,
		service.NewUserService(sqlStore, cfg.JWTSecret),
		service.NewMemoService(sqlStore, markdown.NewParser()),
	)
}

func newAdminUserCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var displayName string
	var role string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user, prompting for the password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}

			return withServices(cmd.Context(), func(_ config.Config, userService *service.UserService, _ *service.MemoService) error {
				admin := &models.User{Role: "ADMIN"}
				created, err := userService.CreateUser(cmd.Context(), admin, service.CreateUserInput{
					Username:    args[0],
					DisplayName: displayName,
					Password:    password,
					Role:        role,
				}, true)
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				fmt.Printf("user created: id=%d username=%s role=%s\n", created.ID, created.Username, created.Role)
				return nil
			})
		},
	}
	create.Flags().StringVar(&displayName, "display-name", "", "display name")
	create.Flags().StringVar(&role, "role", "USER", "user role (USER or ADMIN)")
	user.AddCommand(create)
	return user
}

func newAdminMemoCmd() *cobra.Command {
	memo := &cobra.Command{
		Use:   "memo",
		Short: "Manage memos",
	}
	memo.AddCommand(&cobra.Command{
		Use:   "rebuild-payload",
		Short: "Re-derive every memo's searchable facts from its content",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(_ config.Config, _ *service.UserService, memoService *service.MemoService) error {
				count, err := memoService.RebuildAllMemoPayloads(cmd.Context())
				if err != nil {
					return fmt.Errorf("rebuild payload: %w", err)
				}
				fmt.Printf("rebuild complete, updated=%d\n", count)
				return nil
			})
		},
	})
	return memo
}

func newAdminTokenCmd() *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Manage personal access tokens",
	}

	var description string
	var ttl time.Duration
	create := &cobra.Command{
		Use:   "create <username_or_id>",
		Short: "Create a personal access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(_ config.Config, userService *service.UserService, _ *service.MemoService) error {
				user, err := userService.GetUserByIdentifier(cmd.Context(), args[0])
				if err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return fmt.Errorf("user not found: %s", args[0])
					}
					return err
				}
				var expiresAt *time.Time
				if ttl > 0 {
					v := time.Now().UTC().Add(ttl)
					expiresAt = &v
				}
				_, raw, err := userService.CreatePersonalAccessToken(cmd.Context(), user.ID, description, expiresAt)
				if err != nil {
					return fmt.Errorf("create token: %w", err)
				}
				fmt.Printf("token created for user=%s(%d)\n", user.Username, user.ID)
				fmt.Printf("accessToken=%s\n", raw)
				if expiresAt != nil {
					fmt.Printf("expiresAt=%s\n", expiresAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "token description")
	create.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, e.g. 720h")
	token.AddCommand(create)

	token.AddCommand(&cobra.Command{
		Use:   "list <username_or_id>",
		Short: "List a user's personal access tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(_ config.Config, userService *service.UserService, _ *service.MemoService) error {
				user, err := userService.GetUserByIdentifier(cmd.Context(), args[0])
				if err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return fmt.Errorf("user not found: %s", args[0])
					}
					return err
				}
				tokens, err := userService.ListPersonalAccessTokens(cmd.Context(), user.ID)
				if err != nil {
					return err
				}
				fmt.Printf("tokens for user=%s(%d), count=%d\n", user.Username, user.ID, len(tokens))
				fmt.Println("id\tprefix\tcreatedAt\texpiresAt\trevokedAt\tdescription")
				for _, item := range tokens {
					fmt.Printf("%d\t%s\t%s\t%s\t%s\t%s\n",
						item.ID,
						item.TokenPrefix,
						item.CreatedAt.UTC().Format(time.RFC3339),
						formatOptionalTime(item.ExpiresAt),
						formatOptionalTime(item.RevokedAt),
						strings.TrimSpace(item.Description),
					)
				}
				return nil
			})
		},
	})

	token.AddCommand(&cobra.Command{
		Use:   "revoke <username_or_id> <token_id>",
		Short: "Revoke a personal access token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil || tokenID <= 0 {
				return fmt.Errorf("invalid token id: %s", args[1])
			}
			return withServices(cmd.Context(), func(_ config.Config, userService *service.UserService, _ *service.MemoService) error {
				user, err := userService.GetUserByIdentifier(cmd.Context(), args[0])
				if err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return fmt.Errorf("user not found: %s", args[0])
					}
					return err
				}
				if err := userService.RevokePersonalAccessToken(cmd.Context(), user.ID, tokenID); err != nil {
					if errors.Is(err, service.ErrTokenAlreadyRevoked) {
						return fmt.Errorf("token not found or already revoked: %d", tokenID)
					}
					return err
				}
				fmt.Printf("token revoked: id=%d\n", tokenID)
				return nil
			})
		},
	})
	return token
}

func newAdminRegistrationCmd() *cobra.Command {
	registration := &cobra.Command{
		Use:   "registration",
		Short: "Inspect or toggle open registration",
	}

	registration.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the effective registration setting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(cfg config.Config, userService *service.UserService, _ *service.MemoService) error {
				allow, err := userService.ResolveAllowRegistration(cmd.Context(), cfg.AllowRegistration)
				if err != nil {
					return err
				}
				fmt.Printf("allow_registration=%t\n", allow)
				return nil
			})
		},
	})
	return registration
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimSpace(string(raw))
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
