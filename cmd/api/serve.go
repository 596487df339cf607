package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskboard/api/internal/app"
	"taskboard/api/internal/config"
	"taskboard/api/internal/email"
	"taskboard/api/internal/export"
	"taskboard/api/internal/search"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
)

type configLoader func() (config.Config, error)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, dialect, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			log.Printf("migrations applied (%s)", dialect)
			return nil
		},
	}
}

func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, store.Dialect, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db, dialect, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("database connection failed: %w", err)
	}
	migrations, err := store.Migrations(cfg.MigrationsDir)
	if err != nil {
		db.Close()
		return nil, "", err
	}
	if err := store.ApplyMigrations(ctx, db, dialect, migrations); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("migrations failed: %w", err)
	}
	return db, dialect, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return fmt.Errorf("jwt secret is required (TASKBOARD_JWT_SECRET)")
	}

	db, dialect, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	dataStore := store.NewSQLStore(db, dialect)
	var opts []app.Option

	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for session storage")
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisStore.Close()
		opts = append(opts, app.WithSessionStore(redisStore))
	} else {
		log.Printf("Using %s for session storage", dialect)
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		opts = append(opts, app.WithSearchIndex(meiliClient))
	}

	if cfg.ObjectStore.Enabled() {
		objects, err := export.NewMinioStore(export.MinioConfig{
			Endpoint:  cfg.ObjectStore.Endpoint,
			Bucket:    cfg.ObjectStore.Bucket,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			UseSSL:    cfg.ObjectStore.UseSSL,
			Region:    cfg.ObjectStore.Region,
		})
		if err != nil {
			return err
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = objects.EnsureBucket(bucketCtx)
		cancel()
		if err != nil {
			log.Printf("WARNING: object store bucket check failed, snapshots may fail: %v", err)
		}
		opts = append(opts, app.WithObjectStore(objects))
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		BaseURL:  cfg.PublicURL,
	})
	if mailer.IsConfigured() {
		opts = append(opts, app.WithMailer(mailer))
	} else {
		log.Printf("SMTP not configured, membership emails disabled")
	}

	service := app.New(cfg, dataStore, opts...)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Taskboard API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-sigCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	return nil
}
