package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/entity-lookup/internal/config"
	"github.com/rpattn/entity-lookup/internal/db"
	"github.com/rpattn/entity-lookup/internal/extract"
	"github.com/rpattn/entity-lookup/internal/ingest"
	"github.com/rpattn/entity-lookup/internal/joblog"
	"github.com/rpattn/entity-lookup/internal/loader"
	"github.com/rpattn/entity-lookup/internal/logging"
	"github.com/rpattn/entity-lookup/internal/metrics"
	"github.com/rpattn/entity-lookup/internal/middleware"
	"github.com/rpattn/entity-lookup/internal/provision"
	"github.com/rpattn/entity-lookup/internal/registry"

	"github.com/rs/cors"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logging.New("entity-lookup")

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Single shared clients, constructed once and injected everywhere.
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	objectStore, err := extract.NewClient(cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create object store client")
	}

	provisioner := provision.New(conn.Pool)
	jobs := joblog.NewRepository(conn.Pool)

	// Bootstrap the lookup schema and the job log up front so the first
	// event does not race table creation with its own audit write.
	if err := provisioner.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure lookup schema")
	}
	if err := jobs.EnsureTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure jobs table")
	}

	ingestionMetrics := metrics.NewIngestion()
	service := ingest.NewService(
		registry.NewResolver(conn.Pool),
		provisioner,
		objectStore,
		loader.New(conn.Pool),
		jobs,
		ingestionMetrics,
		logging.New("ingest"),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	httpLog := logging.New("http")
	webhookAuth := middleware.BearerAuth(cfg.Webhook.Tokens)

	mux := http.NewServeMux()
	mux.Handle("/minio/events", middleware.Logging(httpLog, webhookAuth(ingest.NewHTTPHandler(service))))
	mux.Handle("/jobs", corsHandler.Handler(middleware.Logging(httpLog, joblog.NewHTTPHandler(jobs))))
	mux.Handle("/metrics", ingestionMetrics.Handler())

	// No WriteTimeout: a webhook request stays open for the whole
	// attempt, and large files take as long as they take.
	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting entity lookup server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	// In-flight attempts finish their current batch before we exit;
	// Shutdown waits for active webhook requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
