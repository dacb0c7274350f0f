// Package txn runs multi-document work inside a MongoDB transaction when the
// deployment supports one, and reports when it does not so callers can fall
// back to guarded single-document writes.
//
// Transactions need a replica set or mongos; a standalone server rejects
// session/transaction commands. The attribution path uses WithTransaction and
// falls back to its filter-guarded write sequence on IsNotSupported errors.
package txn

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// unsupportedCodes are server error codes that indicate transactions are
// unavailable on this deployment (standalone server, illegal operation).
var unsupportedCodes = map[int32]struct{}{
	20:  {}, // IllegalOperation: transaction numbers only on replica set members
	51:  {},
	263: {}, // OperationNotSupportedInTransaction
}

// WithTransaction runs fn inside a session transaction. The callback may run
// more than once on transient errors; it must be idempotent within the
// transaction scope.
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	session, err := client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	return session.WithTransaction(ctx, fn)
}

// IsNotSupported reports whether err means the deployment cannot run
// transactions at all (as opposed to a transient or logical failure).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if ok := errorAs(err, &cmdErr); ok {
		if _, unsupported := unsupportedCodes[cmdErr.Code]; unsupported {
			return true
		}
	}

	// Driver and server phrasing varies; look for the well-known pairings.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "transaction") && strings.Contains(msg, "replica set"):
		return true
	case strings.Contains(msg, "session") && strings.Contains(msg, "not supported"):
		return true
	case strings.Contains(msg, "transaction") && strings.Contains(msg, "session"):
		return true
	case strings.Contains(msg, "illegal operation") && strings.Contains(msg, "transaction"):
		return true
	}
	return false
}

// errorAs unwraps err looking for a mongo.CommandError. mongo.CommandError is
// a value type, so errors.As needs the concrete target.
func errorAs(err error, target *mongo.CommandError) bool {
	for err != nil {
		if ce, ok := err.(mongo.CommandError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
