// Package dialect provides the small set of interfaces the rest of Pyre
// uses to talk to a SQL backend without depending on database/sql directly.
//
// Pyre targets SQLite-family engines only (spec Non-goals exclude other
// dialects), but the interfaces stay dialect-shaped rather than
// SQLite-specific because libsql and its forks are reached through more
// than one driver name.
package dialect

import "context"

// Supported dialect names. SQLite is the only one Pyre's own generator
// emits for, but the constraint-error classifier in dialect/sql/sqlgraph
// recognizes the others too, since a libsql deployment may be proxied
// through a driver that reports one of them.
const (
	SQLite   = "sqlite3"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// ExecQuerier wraps the two methods every statement in a Prepared batch needs.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is a dialect-aware connection capable of starting transactions.
type Driver interface {
	ExecQuerier
	Tx(ctx context.Context) (Tx, error)
	Close() error
	Dialect() string
}

// Tx is a Driver bound to a single transaction.
type Tx interface {
	Driver
	Commit() error
	Rollback() error
}
