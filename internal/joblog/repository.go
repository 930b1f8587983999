// Package joblog keeps the append-only audit record of ingestion attempts.
package joblog

import (
	"context"
	"fmt"

	"github.com/rpattn/entity-lookup/internal/domain"
	"github.com/rpattn/entity-lookup/internal/provision"
	"github.com/rpattn/entity-lookup/pkg/sqlident"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository records and lists ingestion attempts.
type Repository interface {
	EnsureTable(ctx context.Context) error
	Record(ctx context.Context, attempt domain.IngestionAttempt) error
	List(ctx context.Context, limit int) ([]domain.IngestionAttempt, error)
}

type repository struct {
	pool   *pgxpool.Pool
	schema string
}

// NewRepository wires a repository backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool, schema: provision.Schema}
}

// EnsureTable creates the jobs table if it does not exist yet.
func (r *repository) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s."jobs" (
			"id" SERIAL PRIMARY KEY,
			"started" TIMESTAMP WITHOUT TIME ZONE,
			"ended" TIMESTAMP WITHOUT TIME ZONE,
			"status" VARCHAR(255),
			"status_msg" TEXT,
			"entity_names" CHARACTER VARYING[],
			"feature_table" VARCHAR(255),
			"path" TEXT
		)`, sqlident.Quote(r.schema))

	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	return nil
}

func (r *repository) Record(ctx context.Context, attempt domain.IngestionAttempt) error {
	if r.pool == nil {
		return fmt.Errorf("job log repository not initialized")
	}

	_, err := r.pool.Exec(
		ctx,
		fmt.Sprintf(`INSERT INTO %s."jobs" (started, ended, status, status_msg, entity_names, feature_table, path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`, sqlident.Quote(r.schema)),
		attempt.Started,
		attempt.Ended,
		string(attempt.Status),
		attempt.StatusMsg,
		attempt.EntityNames,
		attempt.FeatureTable,
		attempt.Path,
	)
	if err != nil {
		return fmt.Errorf("failed to record ingestion attempt: %w", err)
	}

	return nil
}

func (r *repository) List(ctx context.Context, limit int) ([]domain.IngestionAttempt, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("job log repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}

	rows, err := r.pool.Query(
		ctx,
		fmt.Sprintf(`SELECT id, started, ended, status, status_msg, entity_names, feature_table, path
		 FROM %s."jobs"
		 ORDER BY id DESC
		 LIMIT $1`, sqlident.Quote(r.schema)),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion attempts: %w", err)
	}
	defer rows.Close()

	attempts := []domain.IngestionAttempt{}
	for rows.Next() {
		var (
			attempt      domain.IngestionAttempt
			started      pgtype.Timestamp
			ended        pgtype.Timestamp
			status       string
			statusMsg    pgtype.Text
			featureTable pgtype.Text
		)
		if scanErr := rows.Scan(
			&attempt.ID,
			&started,
			&ended,
			&status,
			&statusMsg,
			&attempt.EntityNames,
			&featureTable,
			&attempt.Path,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan ingestion attempt: %w", scanErr)
		}

		attempt.Status = domain.AttemptStatus(status)
		if started.Valid {
			attempt.Started = started.Time
		}
		if ended.Valid {
			attempt.Ended = ended.Time
		}
		if statusMsg.Valid {
			value := statusMsg.String
			attempt.StatusMsg = &value
		}
		if featureTable.Valid {
			value := featureTable.String
			attempt.FeatureTable = &value
		}

		attempts = append(attempts, attempt)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate ingestion attempts: %w", rowsErr)
	}

	return attempts, nil
}
