package sqlxrepos

import (
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// uniqueViolation is the postgres error code raised when an INSERT or UPDATE
// breaks a uniqueness constraint. Conflicts are decided here, by the store,
// never by a check-then-insert in application code.
const uniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}
