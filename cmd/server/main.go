package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/GianDevelops/corex-portal/internal/api"
	"github.com/GianDevelops/corex-portal/internal/auth"
	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/database"
	"github.com/GianDevelops/corex-portal/internal/email"
	"github.com/GianDevelops/corex-portal/internal/realtime"
	"github.com/GianDevelops/corex-portal/internal/repository"
	"github.com/GianDevelops/corex-portal/internal/service"
	"github.com/GianDevelops/corex-portal/internal/storage"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/GianDevelops/corex-portal/pkg/logger"
)

func main() {
	migrateDown := flag.Bool("migrate-down", false, "roll back the last schema migration and exit")
	flag.Parse()

	log := logger.New()
	log.Info().Msg("Starting Corex portal server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.Configure(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if *migrateDown {
		if err := db.MigrateDown(cfg.Database.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to roll back database migration")
		}
		return
	}

	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	repos := repository.New(db)

	store, closeStore, err := newAssetStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize media storage")
	}
	defer closeStore()

	provider, err := newEmailProvider(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize email provider")
	}
	mailer := email.New(provider, cfg.Email.BaseURL, log)

	engine := workflow.NewEngine(service.PolicyFromConfig(&cfg.Workflow))
	services := service.NewServices(repos, store, mailer, engine, cfg, log)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	hub := realtime.NewHub(log)
	go func() {
		if err := hub.Listen(ctx, cfg.Database.GetDSN()); err != nil {
			log.Error().Err(err).Msg("Change listener exited")
		}
	}()

	go services.Notification.StartProcessor(ctx)
	log.Info().Str("provider", cfg.Email.Provider).Msg("Notification email processor started")

	router := api.NewRouter(services, tokens, hub, db, cfg, log)

	// WriteTimeout stays zero so the event stream is not cut off
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.ReadTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Streams only end once their request context is cancelled
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	services.Notification.StopProcessor()
	services.Notification.Wait()

	log.Info().Msg("Server exited gracefully")
}

// newAssetStore picks Cloud Storage when a bucket is configured and the local
// filesystem otherwise
func newAssetStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.AssetStore, func(), error) {
	if cfg.Storage.Bucket == "" {
		baseURL := cfg.Storage.PublicBaseURL
		if baseURL == "" {
			baseURL = strings.TrimRight(cfg.Email.BaseURL, "/") + "/media"
		}
		store, err := storage.NewLocalStore(cfg.Storage.LocalPath, baseURL, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.Storage.LocalPath).Msg("Storing media on local disk")
		return store, func() {}, nil
	}

	var opts []option.ClientOption
	if cfg.Storage.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Storage.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("bucket", cfg.Storage.Bucket).Msg("Storing media in Cloud Storage")

	return storage.NewGCSStore(client, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL, log), func() { client.Close() }, nil
}

func newEmailProvider(ctx context.Context, cfg *config.Config, log zerolog.Logger) (email.Provider, error) {
	switch cfg.Email.Provider {
	case "brevo":
		return email.NewBrevoProvider(cfg.Email.BrevoAPIKey, cfg.Email.FromAddress, cfg.Email.FromName, log), nil
	case "gmail":
		svc, err := email.NewGmailService(ctx, cfg.Storage.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return email.NewGmailProvider(svc, log), nil
	default:
		return email.NewLogProvider(log), nil
	}
}
