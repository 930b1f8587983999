// Package sqlident validates and quotes dynamic SQL identifiers. Table and
// column names derived from registry entity names cannot be parameterized
// like values, so they are checked against a strict allowlist before ever
// being interpolated into DDL.
package sqlident

import (
	"fmt"
	"strings"
)

// Postgres truncates identifiers beyond this length; reject instead.
const maxLength = 63

// Validate reports whether name is a safe dynamic identifier: lowercase
// letters, digits and underscores, not starting with a digit, and within
// the Postgres identifier length limit.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("empty identifier")
	}
	if len(name) > maxLength {
		return fmt.Errorf("identifier %q exceeds %d characters", name, maxLength)
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return fmt.Errorf("identifier %q starts with a digit", name)
			}
		default:
			return fmt.Errorf("identifier %q contains disallowed character %q", name, r)
		}
	}
	return nil
}

// Quote returns the double-quoted form of an already validated identifier,
// doubling any embedded quotes the way Postgres expects.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ValidateAll validates every identifier and returns the first failure.
func ValidateAll(names ...string) error {
	for _, name := range names {
		if err := Validate(name); err != nil {
			return err
		}
	}
	return nil
}
