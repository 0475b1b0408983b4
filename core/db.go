package core

import (
	"context"
	"database/sql"
)

// DBExecutor is the query surface repositories run on; both *sqlx.DB and
// *sqlx.Tx satisfy it, so a repository call can participate in a caller's
// transaction without knowing about it.
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}
