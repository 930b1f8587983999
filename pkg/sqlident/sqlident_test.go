package sqlident

import (
	"strings"
	"testing"
)

func TestValidateAcceptsSafeIdentifiers(t *testing.T) {
	for _, name := range []string{"entity_driver_id", "max_entity_driver_id", "created_timestamp", "_private", "a1"} {
		if err := Validate(name); err != nil {
			t.Fatalf("expected %q to be valid: %v", name, err)
		}
	}
}

func TestValidateRejectsUnsafeIdentifiers(t *testing.T) {
	cases := []string{
		"",
		"1driver",
		"Driver",
		"driver-id",
		"driver id",
		`driver"; DROP TABLE jobs; --`,
		"driver;",
		strings.Repeat("a", 64),
	}
	for _, name := range cases {
		if err := Validate(name); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestQuote(t *testing.T) {
	if got := Quote("entity_driver_id"); got != `"entity_driver_id"` {
		t.Fatalf("unexpected quoting: %s", got)
	}
	if got := Quote(`odd"name`); got != `"odd""name"` {
		t.Fatalf("expected embedded quotes doubled, got %s", got)
	}
}

func TestValidateAllStopsAtFirstFailure(t *testing.T) {
	if err := ValidateAll("ok", "also_ok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateAll("ok", "not ok", "ignored"); err == nil {
		t.Fatalf("expected failure for unsafe identifier")
	}
}
