package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/tx"
)

const defaultTodoTxTimeout = 5 * time.Second

// todoPostgresTx runs todo and tag mutations in one database transaction.
// The Postgres stores pick the transaction up from the context.
type todoPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newTodoPostgresTx(db *sql.DB) *todoPostgresTx {
	return &todoPostgresTx{db: db}
}

func (t *todoPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTodoTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return tx.Run(ctx, t.db, fn)
}
