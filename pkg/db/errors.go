package db

import "strings"

// IsUniqueViolation reports whether err is a unique-constraint violation.
// With a constraint name the check is scoped to that index, so callers can
// distinguish an expected race (outbox dedup, duplicate reference) from an
// unrelated conflict. Both the Postgres and sqlite message shapes are
// recognized; sqlite backs the test fixtures.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
