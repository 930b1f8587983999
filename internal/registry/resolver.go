// Package registry resolves a changed file's path to its dataset schema by
// querying the feature store's metadata registry. The registry is read-only
// from this pipeline's point of view.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rpattn/entity-lookup/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrSchemaNotFound is returned when no registry row matches the
	// file's parent directory.
	ErrSchemaNotFound = errors.New("no registered data source matches path")

	// ErrAmbiguousSchema is returned when the matching registry rows do
	// not reduce to exactly one dataset.
	ErrAmbiguousSchema = errors.New("registry match does not reduce to one dataset")
)

// Resolver maps an object path to the dataset descriptor registered for it.
type Resolver interface {
	Resolve(ctx context.Context, objectPath string) (domain.DatasetDescriptor, error)
}

type resolver struct {
	pool *pgxpool.Pool
}

// NewResolver wires a resolver backed by the registry database.
func NewResolver(pool *pgxpool.Pool) Resolver {
	return &resolver{pool: pool}
}

// sourceRow is one registry row before grouping: an entity as registered by
// one batch source. Re-registrations of the same dataset yield several rows
// per entity with increasing source ids.
type sourceRow struct {
	SourceID               int64
	EntityName             string
	EntityType             string
	FeatureTable           string
	EventTimestampColumn   string
	CreatedTimestampColumn string
}

// registryQuery collapses duplicate registrations per entity in SQL; the
// reduction to a single dataset happens in buildDescriptor so ambiguity can
// be reported instead of silently taking the first row.
const registryQuery = `
SELECT max(ds.id) AS source_id,
       en.name AS entity_name,
       en.type AS entity_type,
       ft.name AS feature_table,
       ds.timestamp_column,
       ds.created_timestamp_column
FROM public.data_sources ds
JOIN public.feature_tables ft ON ds.id = ft.batch_source_id
JOIN public.feature_tables_entities_v2 fte ON ft.id = fte.feature_table_id
JOIN public.entities_v2 en ON fte.entity_v2_id = en.id
JOIN public.projects pr ON ft.project_name = pr.name
WHERE ds.config::json ->> 'file_url' LIKE $1
  AND ft.is_deleted = false
  AND pr.archived = false
GROUP BY en.name, en.type, ft.name, ds.timestamp_column, ds.created_timestamp_column`

// likeEscaper neutralizes LIKE metacharacters so a parent path containing
// % or _ matches literally instead of widening the pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *resolver) Resolve(ctx context.Context, objectPath string) (domain.DatasetDescriptor, error) {
	parent := path.Dir(objectPath)

	rows, err := r.pool.Query(ctx, registryQuery, "%"+likeEscaper.Replace(parent)+"%")
	if err != nil {
		return domain.DatasetDescriptor{}, fmt.Errorf("failed to query registry: %w", err)
	}

	sources, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (sourceRow, error) {
		var src sourceRow
		err := row.Scan(
			&src.SourceID,
			&src.EntityName,
			&src.EntityType,
			&src.FeatureTable,
			&src.EventTimestampColumn,
			&src.CreatedTimestampColumn,
		)
		return src, err
	})
	if err != nil {
		return domain.DatasetDescriptor{}, fmt.Errorf("failed to scan registry rows: %w", err)
	}

	return buildDescriptor(parent, sources)
}

// buildDescriptor reduces matched registry rows to one descriptor. Per
// entity the most recently registered source wins; after that reduction all
// surviving rows must agree on (feature_table, timestamp columns).
func buildDescriptor(parent string, sources []sourceRow) (domain.DatasetDescriptor, error) {
	if len(sources) == 0 {
		return domain.DatasetDescriptor{}, fmt.Errorf("%w: %s", ErrSchemaNotFound, parent)
	}

	latest := make(map[string]sourceRow, len(sources))
	order := make([]string, 0, len(sources))
	for _, src := range sources {
		existing, seen := latest[src.EntityName]
		if !seen {
			order = append(order, src.EntityName)
		}
		if !seen || src.SourceID > existing.SourceID {
			latest[src.EntityName] = src
		}
	}

	desc := domain.DatasetDescriptor{}
	for i, name := range order {
		src := latest[name]
		if i == 0 {
			desc.FeatureTable = src.FeatureTable
			desc.EventTimestampColumn = src.EventTimestampColumn
			desc.CreatedTimestampColumn = src.CreatedTimestampColumn
		} else if src.FeatureTable != desc.FeatureTable ||
			src.EventTimestampColumn != desc.EventTimestampColumn ||
			src.CreatedTimestampColumn != desc.CreatedTimestampColumn {
			return domain.DatasetDescriptor{}, fmt.Errorf("%w: %s", ErrAmbiguousSchema, parent)
		}
		desc.Entities = append(desc.Entities, domain.Entity{
			Name: src.EntityName,
			Type: domain.EntityType(src.EntityType),
		})
	}

	if err := desc.Validate(); err != nil {
		return domain.DatasetDescriptor{}, fmt.Errorf("invalid registry schema for %s: %w", parent, err)
	}

	return desc, nil
}
