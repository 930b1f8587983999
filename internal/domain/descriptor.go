package domain

import (
	"errors"
	"fmt"
)

// EntityType is the registry's declared value type for an entity key.
type EntityType string

const (
	EntityTypeInt64  EntityType = "INT64"
	EntityTypeInt32  EntityType = "INT32"
	EntityTypeBool   EntityType = "BOOL"
	EntityTypeString EntityType = "STRING"
)

// Entity pairs a registry entity name with its declared value type.
type Entity struct {
	Name string
	Type EntityType
}

// DatasetDescriptor is the schema metadata resolved for one ingestion
// attempt: which dataset the changed file belongs to, which entity keys it
// carries, and which columns hold its two timestamps.
type DatasetDescriptor struct {
	FeatureTable           string
	Entities               []Entity
	EventTimestampColumn   string
	CreatedTimestampColumn string
}

// Validate rejects descriptors that cannot drive an ingestion attempt.
func (d DatasetDescriptor) Validate() error {
	if d.FeatureTable == "" {
		return errors.New("descriptor has no feature table name")
	}
	if len(d.Entities) == 0 {
		return errors.New("descriptor has no entities")
	}
	if d.EventTimestampColumn == "" || d.CreatedTimestampColumn == "" {
		return errors.New("descriptor is missing a timestamp column name")
	}
	seen := make(map[string]bool, len(d.Entities))
	for _, entity := range d.Entities {
		if entity.Name == "" {
			return errors.New("descriptor has an entity with an empty name")
		}
		if seen[entity.Name] {
			return fmt.Errorf("descriptor names entity %q more than once", entity.Name)
		}
		seen[entity.Name] = true
	}
	return nil
}

// EntityNames returns the entity key names in descriptor order.
func (d DatasetDescriptor) EntityNames() []string {
	names := make([]string, len(d.Entities))
	for i, entity := range d.Entities {
		names[i] = entity.Name
	}
	return names
}

// Columns returns the projection column list for extraction: entity columns
// first, then the created and event timestamp columns.
func (d DatasetDescriptor) Columns() []string {
	columns := make([]string, 0, len(d.Entities)+2)
	for _, entity := range d.Entities {
		columns = append(columns, entity.Name)
	}
	return append(columns, d.CreatedTimestampColumn, d.EventTimestampColumn)
}

// EntityTableName derives the canonical lookup table name for an entity.
func EntityTableName(entityName string) string {
	return "entity_" + entityName
}

// LatestViewName derives the deduplicating view name for an entity table.
func LatestViewName(tableName string) string {
	return "max_" + tableName
}
