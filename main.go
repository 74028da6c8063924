package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"healthcare-appointment-server/internal/cache"
	"healthcare-appointment-server/internal/config"
	"healthcare-appointment-server/internal/handlers"
	"healthcare-appointment-server/internal/logger"
	"healthcare-appointment-server/internal/metrics"
	"healthcare-appointment-server/internal/models"
	"healthcare-appointment-server/internal/routes"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "healthcare-server",
		Short:         "Healthcare appointment API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads .env and the environment, then opens the database.
func bootstrap() (*config.Config, *logger.Logger, *gorm.DB, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, nil, nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.BcryptCost > 0 {
		models.PasswordCost = cfg.BcryptCost
	}

	log := logger.New(cfg.LogLevel)

	db, err := models.InitDB(models.DatabaseConfig{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, log, db, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var c *cache.Cache
	if cfg.Cache.Enabled {
		if c, err = cache.New(cfg.Cache.Size, log); err != nil {
			return err
		}
	}

	router := routes.NewRouter(routes.Dependencies{
		DB:      db,
		Config:  cfg,
		Log:     log,
		Cache:   c,
		Metrics: metrics.New(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// InitDB migrates on open.
			_, log, _, err := bootstrap()
			if err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var name, username, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := bootstrap()
			if err != nil {
				return err
			}

			admin, err := handlers.NewAdmin(name, username, email, password)
			if err != nil {
				return err
			}
			if err := db.Create(admin).Error; err != nil {
				if models.IsDuplicateKey(err) {
					return fmt.Errorf("an account with email %s already exists", admin.Email)
				}
				return fmt.Errorf("create admin: %w", err)
			}

			log.Audit("cli", "create", "admin", true, map[string]interface{}{"admin_id": admin.ID})
			fmt.Printf("Created admin %s (%s)\n", admin.Email, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "Initial password (min 8 characters)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
