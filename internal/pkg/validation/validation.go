// Package validation parses request fields into ledger types. Failures are
// ledger validation errors so handlers can pass them to response.LedgerError.
package validation

import (
	"strings"
	"time"

	"stocktransfer-backend/internal/ledger"

	"github.com/google/uuid"
)

// UUID parses a required id field.
func UUID(field, raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, ledger.Validation("%s is required", field)
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, ledger.Validation("Invalid UUID format for %s", field)
	}
	return id, nil
}

// OptionalUUID returns uuid.Nil for an empty value.
func OptionalUUID(field, raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, nil
	}
	return UUID(field, raw)
}

// UUIDs parses several required id fields in order and stops at the first bad one.
func UUIDs(fields ...string) ([]uuid.UUID, error) {
	if len(fields)%2 != 0 {
		panic("validation.UUIDs: fields must be name/value pairs")
	}
	ids := make([]uuid.UUID, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		id, err := UUID(fields[i], fields[i+1])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Date accepts YYYY-MM-DD or RFC 3339. Empty yields nil.
func Date(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, ledger.Validation("%s must be a date (YYYY-MM-DD or RFC 3339)", field)
}

// CertificateNumbers trims and de-duplicates surrendered certificate numbers.
func CertificateNumbers(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, ledger.Validation("surrendered_certificates must not contain empty numbers")
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}
