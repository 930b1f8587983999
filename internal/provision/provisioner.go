// Package provision owns the existence of per-entity lookup tables and
// their latest-value views. All DDL is idempotent: concurrent attempts may
// race to create the same object and both must proceed.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/entity-lookup/internal/domain"
	"github.com/rpattn/entity-lookup/pkg/sqlident"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the Postgres schema holding all lookup tables, views and the
// job log.
const Schema = "entity_lookup"

// duplicateTableCode is the SQLSTATE raised when a view (or table) already
// exists. It is the only DDL error that may be swallowed.
const duplicateTableCode = "42P07"

// columnTypes maps registry entity types to Postgres column types. An
// entity type outside this map fails the attempt.
var columnTypes = map[domain.EntityType]string{
	domain.EntityTypeInt64:  "BIGINT",
	domain.EntityTypeInt32:  "INTEGER",
	domain.EntityTypeBool:   "BOOLEAN",
	domain.EntityTypeString: "TEXT",
}

// Execer is the subset of pgxpool.Pool the provisioner needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Provisioner creates schema objects on first sighting of an entity type.
type Provisioner interface {
	EnsureSchema(ctx context.Context) error
	EnsureTables(ctx context.Context, desc domain.DatasetDescriptor) (map[string]string, error)
	EnsureViews(ctx context.Context, tables map[string]string, desc domain.DatasetDescriptor) error
}

type provisioner struct {
	db     Execer
	schema string
}

// New wires a provisioner that executes DDL against db.
func New(db Execer) Provisioner {
	return &provisioner{db: db, schema: Schema}
}

func (p *provisioner) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+sqlident.Quote(p.schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", p.schema, err)
	}
	return nil
}

// EnsureTables creates one lookup table per entity in the descriptor and
// returns table name -> entity name for the ones that exist afterwards.
// Each entity is provisioned independently: a failing sibling does not roll
// back or skip the others, so the attempt makes as much progress as it can
// before the error is reported.
func (p *provisioner) EnsureTables(ctx context.Context, desc domain.DatasetDescriptor) (map[string]string, error) {
	if err := sqlident.ValidateAll(desc.EventTimestampColumn, desc.CreatedTimestampColumn); err != nil {
		return nil, fmt.Errorf("unsafe timestamp column name: %w", err)
	}

	tables := make(map[string]string, len(desc.Entities))
	var errs []error
	for _, entity := range desc.Entities {
		tableName := domain.EntityTableName(entity.Name)
		if err := p.ensureTable(ctx, tableName, entity, desc); err != nil {
			errs = append(errs, fmt.Errorf("entity %s: %w", entity.Name, err))
			continue
		}
		tables[tableName] = entity.Name
	}

	if len(errs) > 0 {
		return tables, errors.Join(errs...)
	}
	return tables, nil
}

func (p *provisioner) ensureTable(ctx context.Context, tableName string, entity domain.Entity, desc domain.DatasetDescriptor) error {
	columnType, ok := columnTypes[entity.Type]
	if !ok {
		return fmt.Errorf("no column type mapping for entity type %q", entity.Type)
	}
	if err := sqlident.Validate(tableName); err != nil {
		return fmt.Errorf("unsafe table name: %w", err)
	}

	eventTS := sqlident.Quote(desc.EventTimestampColumn)
	createdTS := sqlident.Quote(desc.CreatedTimestampColumn)

	// The composite key admits the same id once per distinct file
	// ingestion while rejecting exact re-ingestion of one file/version.
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			"id" %s,
			"feature_table" VARCHAR(255),
			%s TIMESTAMP WITHOUT TIME ZONE,
			%s TIMESTAMP WITHOUT TIME ZONE,
			"path" TEXT,
			PRIMARY KEY (%s)
		)`,
		sqlident.Quote(p.schema), sqlident.Quote(tableName),
		columnType,
		eventTS,
		createdTS,
		strings.Join([]string{`"id"`, `"feature_table"`, eventTS, createdTS}, ", "),
	)

	if _, err := p.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// EnsureViews creates the latest-value view for every table in tables. A
// view that already exists is a no-op, not an error; any other DDL failure
// propagates.
func (p *provisioner) EnsureViews(ctx context.Context, tables map[string]string, desc domain.DatasetDescriptor) error {
	for tableName := range tables {
		viewName := domain.LatestViewName(tableName)
		if err := sqlident.ValidateAll(viewName, tableName); err != nil {
			return fmt.Errorf("unsafe view name: %w", err)
		}

		eventTS := sqlident.Quote(desc.EventTimestampColumn)
		createdTS := sqlident.Quote(desc.CreatedTimestampColumn)

		// Latest row wins: max created timestamp, ties broken by the
		// lexicographically greater path. The path tie-break keeps the
		// view deterministic across re-ingestions.
		ddl := fmt.Sprintf(`
			CREATE VIEW %[1]s.%[2]s AS
				WITH groups AS (
					SELECT id, feature_table, MAX(%[3]s) AS %[3]s, %[4]s, path,
					ROW_NUMBER() OVER(PARTITION BY id ORDER BY %[4]s DESC, path DESC) AS rk
					FROM %[1]s.%[5]s
					GROUP BY id, feature_table, %[4]s, path
				)
				SELECT id, feature_table, %[3]s, %[4]s, path FROM groups WHERE rk = 1`,
			sqlident.Quote(p.schema), sqlident.Quote(viewName),
			eventTS, createdTS,
			sqlident.Quote(tableName),
		)

		if _, err := p.db.Exec(ctx, ddl); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == duplicateTableCode {
				continue
			}
			return fmt.Errorf("failed to create view %s: %w", viewName, err)
		}
	}
	return nil
}
