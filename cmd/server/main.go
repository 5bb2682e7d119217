package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/library-server/internal/api"
	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/config"
	"github.com/rongwang/library-server/internal/repository"
	"github.com/rongwang/library-server/internal/seed"
	"github.com/rongwang/library-server/internal/service"
	"github.com/rongwang/library-server/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// app holds the wired dependencies shared by the commands
type app struct {
	cfg    *config.Config
	logger *utils.Logger
	db     *sqlx.DB
	repo   repository.Repository
	tokens *auth.TokenIssuer
	svc    service.Service
}

func newApp() (*app, error) {
	// Load configuration
	cfg := config.LoadConfig()

	logger := utils.NewLogger(cfg.Log.Level)

	// Set up database connection and schema
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up database: %w", err)
	}

	if cfg.Auth.UsesDefaultSecret() {
		logger.Warn("JWT_SECRET is not set, signing tokens with the insecure default secret")
	}

	repo := repository.NewPostgresRepository(db)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	svc := service.NewDefaultService(repo, tokens, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		repo:   repo,
		tokens: tokens,
		svc:    svc,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "library-server",
		Short: "Library catalog and loan server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
		SilenceUsage: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Migrate the schema and start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.Close()

				a.logger.Info("schema is up to date", "database", a.cfg.Database.DBName)
				return nil
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Load the initial admin, sample member and catalog",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.Close()

				result, err := seed.Run(cmd.Context(), a.svc, a.repo, a.cfg.Seed, a.logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin created: %t, member created: %t, categories: %d, books: %d\n",
					result.AdminCreated, result.MemberCreated, result.Categories, result.Books)
				return nil
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Mark past-due loans as Overdue once",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.Close()

				swept, err := a.svc.RunSweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d loan(s) marked overdue\n", swept)
				return nil
			},
		},
		newCreateAdminCommand(),
	)

	return root
}

func newCreateAdminCommand() *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword(cmd, "Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.svc.CreateAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&name, "name", "Administrator", "admin full name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// readPassword reads a password without echoing it
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

func runServe(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Seed.OnStart {
		if _, err := seed.Run(ctx, a.svc, a.repo, a.cfg.Seed, a.logger); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handler := api.NewHandler(a.svc, a.tokens, a.logger)
	handler.SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
