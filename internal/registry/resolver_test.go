package registry

import (
	"errors"
	"testing"

	"github.com/rpattn/entity-lookup/internal/domain"
)

func row(sourceID int64, entity, entityType, featureTable string) sourceRow {
	return sourceRow{
		SourceID:               sourceID,
		EntityName:             entity,
		EntityType:             entityType,
		FeatureTable:           featureTable,
		EventTimestampColumn:   "event_timestamp",
		CreatedTimestampColumn: "created_timestamp",
	}
}

func TestBuildDescriptorSingleEntity(t *testing.T) {
	desc, err := buildDescriptor("feast/offline/driver_stats", []sourceRow{
		row(7, "driver_id", "INT64", "driver_stats"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if desc.FeatureTable != "driver_stats" {
		t.Fatalf("unexpected feature table: %s", desc.FeatureTable)
	}
	if len(desc.Entities) != 1 || desc.Entities[0].Name != "driver_id" || desc.Entities[0].Type != domain.EntityTypeInt64 {
		t.Fatalf("unexpected entities: %+v", desc.Entities)
	}
	if desc.EventTimestampColumn != "event_timestamp" || desc.CreatedTimestampColumn != "created_timestamp" {
		t.Fatalf("unexpected timestamp columns: %+v", desc)
	}
}

func TestBuildDescriptorNoMatchesIsNotFound(t *testing.T) {
	_, err := buildDescriptor("feast/offline/unknown", nil)
	if !errors.Is(err, ErrSchemaNotFound) {
		t.Fatalf("expected ErrSchemaNotFound, got %v", err)
	}
}

func TestBuildDescriptorReRegistrationTakesLatestSource(t *testing.T) {
	desc, err := buildDescriptor("feast/offline/driver_stats", []sourceRow{
		row(3, "driver_id", "INT32", "driver_stats"),
		row(9, "driver_id", "INT64", "driver_stats"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(desc.Entities) != 1 {
		t.Fatalf("expected duplicate registrations collapsed, got %+v", desc.Entities)
	}
	if desc.Entities[0].Type != domain.EntityTypeInt64 {
		t.Fatalf("expected latest registration to win, got %s", desc.Entities[0].Type)
	}
}

func TestBuildDescriptorMultipleEntitiesSameDataset(t *testing.T) {
	desc, err := buildDescriptor("feast/offline/trips", []sourceRow{
		row(4, "driver_id", "INT64", "trips"),
		row(4, "rider_id", "INT64", "trips"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(desc.Entities) != 2 {
		t.Fatalf("expected both entities, got %+v", desc.Entities)
	}
}

func TestBuildDescriptorConflictingDatasetsIsAmbiguous(t *testing.T) {
	_, err := buildDescriptor("feast/offline/shared", []sourceRow{
		row(4, "driver_id", "INT64", "driver_stats"),
		row(5, "trip_id", "INT64", "trip_stats"),
	})
	if !errors.Is(err, ErrAmbiguousSchema) {
		t.Fatalf("expected ErrAmbiguousSchema, got %v", err)
	}
}

func TestBuildDescriptorConflictingTimestampColumnsIsAmbiguous(t *testing.T) {
	conflicting := row(5, "rider_id", "INT64", "trips")
	conflicting.CreatedTimestampColumn = "ingested_at"

	_, err := buildDescriptor("feast/offline/trips", []sourceRow{
		row(4, "driver_id", "INT64", "trips"),
		conflicting,
	})
	if !errors.Is(err, ErrAmbiguousSchema) {
		t.Fatalf("expected ErrAmbiguousSchema, got %v", err)
	}
}

func TestLikeEscaperNeutralizesPatternCharacters(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"feast/offline/driver_stats", `feast/offline/driver\_stats`},
		{"feast/100%_done", `feast/100\%\_done`},
		{`feast\offline`, `feast\\offline`},
		{"feast/offline/plain", "feast/offline/plain"},
	}

	for _, tc := range cases {
		if got := likeEscaper.Replace(tc.in); got != tc.want {
			t.Fatalf("escape %q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
