// Package ingest drives one notification event through the full pipeline:
// resolve the dataset schema, provision lookup tables and views, stream the
// projected columns out of the object, and append them table by table.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/entity-lookup/internal/domain"
	"github.com/rpattn/entity-lookup/internal/extract"
	"github.com/rpattn/entity-lookup/internal/joblog"
	"github.com/rpattn/entity-lookup/internal/loader"
	"github.com/rpattn/entity-lookup/internal/metrics"
	"github.com/rpattn/entity-lookup/internal/provision"
	"github.com/rpattn/entity-lookup/internal/registry"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service orchestrates ingestion attempts. It holds no state across events;
// everything durable lives in the relational store.
type Service struct {
	resolver    registry.Resolver
	provisioner provision.Provisioner
	extractor   extract.Extractor
	loader      loader.Loader
	jobs        joblog.Repository
	metrics     *metrics.Ingestion
	log         zerolog.Logger
}

// NewService wires the orchestrator with its collaborators.
func NewService(
	resolver registry.Resolver,
	provisioner provision.Provisioner,
	extractor extract.Extractor,
	ldr loader.Loader,
	jobs joblog.Repository,
	ingestionMetrics *metrics.Ingestion,
	log zerolog.Logger,
) *Service {
	return &Service{
		resolver:    resolver,
		provisioner: provisioner,
		extractor:   extractor,
		loader:      ldr,
		jobs:        jobs,
		metrics:     ingestionMetrics,
		log:         log,
	}
}

// Handle processes one notification event to completion and returns the
// attempt record. Removal events are acknowledged without starting an
// attempt. Business failures never propagate to the caller: they end up in
// the job log, and the notification source only ever sees success.
func (s *Service) Handle(ctx context.Context, event domain.Notification) domain.IngestionAttempt {
	attempt := domain.IngestionAttempt{
		Started: time.Now().UTC(),
		Status:  domain.AttemptSuccess,
		Path:    event.Key,
	}

	if !event.IsCreation() {
		s.log.Debug().Str("event", event.EventName).Str("path", event.Key).Msg("ignoring non-creation event")
		attempt.Ended = attempt.Started
		return attempt
	}

	attemptID := uuid.New()
	log := s.log.With().Stringer("attempt_id", attemptID).Str("path", event.Key).Logger()

	runErr := s.run(ctx, log, event.Key, &attempt)
	attempt.Ended = time.Now().UTC()
	if runErr != nil {
		attempt.Status = domain.AttemptFailed
		message := runErr.Error()
		attempt.StatusMsg = &message
		log.Error().Err(runErr).Msg("ingestion attempt failed")
	} else {
		log.Info().Dur("took", attempt.Ended.Sub(attempt.Started)).Msg("ingestion attempt succeeded")
	}

	// One job record per attempt, whatever happened above. A failing
	// write is the only error that may be swallowed: the notification
	// source must never be blocked on it.
	if err := s.jobs.Record(ctx, attempt); err != nil {
		log.Error().Err(err).Msg("could not write job record")
		s.metrics.ObserveLogWriteFailure()
	}

	s.metrics.ObserveAttempt(string(attempt.Status), attempt.Ended.Sub(attempt.Started))
	return attempt
}

// run walks the attempt through its stages, filling attempt fields as they
// resolve so a failure later still logs everything known so far.
func (s *Service) run(ctx context.Context, log zerolog.Logger, objectPath string, attempt *domain.IngestionAttempt) error {
	desc, err := s.resolver.Resolve(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("resolve schema: %w", err)
	}
	attempt.FeatureTable = &desc.FeatureTable
	attempt.EntityNames = desc.EntityNames()

	tables, err := s.provisioner.EnsureTables(ctx, desc)
	if err != nil {
		return fmt.Errorf("provision tables: %w", err)
	}
	if err := s.provisioner.EnsureViews(ctx, tables, desc); err != nil {
		return fmt.Errorf("provision views: %w", err)
	}

	stream, err := s.extractor.Extract(ctx, objectPath, desc)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	defer stream.Close()

	// Strict backpressure: each batch is written through before the next
	// one is requested, so the pipeline never runs ahead of the database.
	for stream.Next() {
		batch := stream.Batch()
		rows, err := s.loader.Load(ctx, tables, batch)
		if err != nil {
			return fmt.Errorf("load batch: %w", err)
		}
		s.metrics.ObserveBatch(rows)
		log.Debug().Int64("rows", rows).Msg("batch loaded")
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	return nil
}
