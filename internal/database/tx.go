package database

import (
	"context"

	"github.com/uptrace/bun"
)

type txKey struct{}

type txState struct {
	tx          bun.Tx
	afterCommit []func(context.Context)
}

// RunInTx executes fn inside a writer transaction carried by the returned context.
// Nested calls join the outer transaction; after-commit hooks fire only once the
// outermost transaction commits.
func RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	state := &txState{}
	err := db.RunInTx(ctx, nil, func(txCtx context.Context, tx bun.Tx) error {
		state.tx = tx
		return fn(context.WithValue(txCtx, txKey{}, state))
	})
	if err != nil {
		return err
	}

	for _, hook := range state.afterCommit {
		hook(ctx)
	}
	return nil
}

// Executor returns the transaction bound to ctx, falling back to db.
func Executor(ctx context.Context, db *bun.DB) bun.IDB {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return db
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// AfterCommit schedules fn to run after the transaction in ctx commits.
// Without a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		state.afterCommit = append(state.afterCommit, fn)
		return
	}
	fn(ctx)
}
