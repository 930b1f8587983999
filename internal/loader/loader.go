// Package loader appends extracted row batches into the per-entity lookup
// tables. The write path is append-only: duplicates are resolved at read
// time by the latest-value view, never here.
package loader

import (
	"context"
	"fmt"

	"github.com/rpattn/entity-lookup/internal/domain"
	"github.com/rpattn/entity-lookup/internal/provision"

	"github.com/jackc/pgx/v5"
)

// Loader persists one batch into every entity table it maps to.
type Loader interface {
	Load(ctx context.Context, tables map[string]string, batch domain.RowBatch) (int64, error)
}

// CopyConn is the subset of pgxpool.Pool the loader needs. COPY is the bulk
// append path; per-row inserts are not an option for arbitrarily large
// files.
type CopyConn interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type copyLoader struct {
	db     CopyConn
	schema string
}

// New wires a loader that bulk-appends via COPY.
func New(db CopyConn) Loader {
	return &copyLoader{db: db, schema: provision.Schema}
}

// Load projects the batch down to each entity table's columns and appends
// the rows. The entity's own key column is renamed to id; sibling entities'
// columns are dropped.
func (l *copyLoader) Load(ctx context.Context, tables map[string]string, batch domain.RowBatch) (int64, error) {
	if batch.Len() == 0 {
		return 0, nil
	}

	var total int64
	for tableName, entityName := range tables {
		columns, rows, err := projectBatch(batch, entityName)
		if err != nil {
			return total, fmt.Errorf("table %s: %w", tableName, err)
		}

		copied, err := l.db.CopyFrom(
			ctx,
			pgx.Identifier{l.schema, tableName},
			columns,
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return total, fmt.Errorf("failed to copy into %s: %w", tableName, err)
		}
		total += copied
	}

	return total, nil
}

// projectBatch narrows a batch to one entity table's shape: the entity key
// as id, the dataset and path tags, and the two timestamp columns. Batch
// columns end with (created, event) per the extraction projection.
func projectBatch(batch domain.RowBatch, entityName string) (columns []string, rows [][]any, err error) {
	if len(batch.Columns) < 3 {
		return nil, nil, fmt.Errorf("batch has %d columns, need at least 3", len(batch.Columns))
	}

	createdIdx := len(batch.Columns) - 2
	eventIdx := len(batch.Columns) - 1
	createdColumn := batch.Columns[createdIdx]
	eventColumn := batch.Columns[eventIdx]

	entityIdx := -1
	for i, column := range batch.Columns[:createdIdx] {
		if column == entityName {
			entityIdx = i
			break
		}
	}
	if entityIdx < 0 {
		return nil, nil, fmt.Errorf("batch has no column for entity %s", entityName)
	}

	columns = []string{"id", "feature_table", eventColumn, createdColumn, "path"}
	rows = make([][]any, len(batch.Rows))
	for i, row := range batch.Rows {
		rows[i] = []any{
			row[entityIdx],
			batch.FeatureTable,
			row[eventIdx],
			row[createdIdx],
			batch.Path,
		}
	}
	return columns, rows, nil
}
