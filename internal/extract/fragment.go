package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/rpattn/entity-lookup/internal/domain"
)

// parseFragment parses one record-delimited CSV fragment into a batch. The
// fragment's field order matches the projection: entity columns, then the
// created and event timestamp columns. Timestamps arrive as microsecond
// epoch integers and are normalized to UTC instants; entity values are
// coerced to the Go type matching their registry type. Every row is tagged
// with the dataset name and the source path.
func parseFragment(desc domain.DatasetDescriptor, path string, data []byte) (domain.RowBatch, error) {
	batch := domain.RowBatch{
		FeatureTable: desc.FeatureTable,
		Path:         path,
		Columns:      desc.Columns(),
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = len(batch.Columns)

	records, err := reader.ReadAll()
	if err != nil {
		return domain.RowBatch{}, fmt.Errorf("failed to parse record fragment: %w", err)
	}

	entityCount := len(desc.Entities)
	for _, record := range records {
		row := make([]any, len(record))
		for i, raw := range record {
			if i < entityCount {
				value, err := coerceEntityValue(desc.Entities[i].Type, raw)
				if err != nil {
					return domain.RowBatch{}, fmt.Errorf("column %s: %w", batch.Columns[i], err)
				}
				row[i] = value
				continue
			}
			instant, err := parseMicros(raw)
			if err != nil {
				return domain.RowBatch{}, fmt.Errorf("column %s: %w", batch.Columns[i], err)
			}
			row[i] = instant
		}
		batch.Rows = append(batch.Rows, row)
	}

	return batch, nil
}

func coerceEntityValue(entityType domain.EntityType, raw string) (any, error) {
	switch entityType {
	case domain.EntityTypeInt64, domain.EntityTypeInt32:
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not an integer", raw)
		}
		return value, nil
	case domain.EntityTypeBool:
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("value %q is not a boolean", raw)
		}
		return value, nil
	case domain.EntityTypeString:
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported entity type %q", entityType)
	}
}

func parseMicros(raw string) (time.Time, error) {
	micros, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("value %q is not a microsecond timestamp", raw)
	}
	return time.UnixMicro(micros).UTC(), nil
}
