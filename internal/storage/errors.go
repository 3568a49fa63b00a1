package storage

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// IsRelationMissing reports whether err is PostgreSQL's "relation does not
// exist" (42P01), i.e. the table has not been provisioned.
func IsRelationMissing(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}

// IsUniqueViolation reports whether err is a unique-constraint violation
// (23505), e.g. a duplicate discount code or email.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
