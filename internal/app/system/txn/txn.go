// Package txn provides the multi-document unit of work used by the
// membership coordinator.
//
// MongoDB transactions require a replica set (or mongos). Development and
// CI frequently run a standalone server, so WithTransaction degrades to
// running the function without a session when the server reports that
// transactions are unsupported. Production deployments are expected to
// run a replica set; the unique index on (user_id, group_id) remains the
// backstop either way.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// WithTransaction runs fn inside a MongoDB multi-document transaction.
// The session context passed to fn must be threaded through every store
// call so all writes join the same unit of work. If fn returns an error
// the transaction is aborted and nothing is visible to other readers;
// otherwise it is committed before WithTransaction returns.
//
// On servers without transaction support fn runs once with the plain
// context and no session.
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(ctx context.Context) error) error {
	sess, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		return fn(ctx)
	}
	return err
}

// Server error codes that indicate transactions are unavailable:
// 20 IllegalOperation ("Transaction numbers are only allowed on a replica
// set member"), 51 and 263 variants seen from standalone/older servers.
var notSupportedCodes = map[int32]bool{20: true, 51: true, 263: true}

// IsNotSupported reports whether err indicates the server cannot run
// multi-document transactions (standalone server, no replica set).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) && notSupportedCodes[ce.Code] {
		return true
	}

	// Fall back to message heuristics; drivers and proxies vary in how
	// they surface the condition.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "illegal operation") {
		return true
	}
	if strings.Contains(msg, "transaction") &&
		(strings.Contains(msg, "replica set") || strings.Contains(msg, "session")) {
		return true
	}
	if strings.Contains(msg, "session") && strings.Contains(msg, "not supported") {
		return true
	}
	return false
}
