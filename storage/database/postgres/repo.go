// Package pgrepos implements the domain repositories on PostgreSQL with sqlx.
//
// Each repository holds a default executor and accepts an optional override
// so services can route all statements of a unit of work through one
// transaction.
package pgrepos

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core"
)

const pqUniqueViolation = "23505"

func getExec(def core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return def
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

// constraintErr surfaces a duplicate-key error with the offending fields.
func constraintErr(fields ...string) error {
	return core.NewError(core.ConstraintViolation, "duplicate field value entered: "+strings.Join(fields, ", "))
}
