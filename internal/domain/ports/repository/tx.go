package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// NoTX is passed where a method runs outside any transaction.
var NoTX Tx

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via the repositories' `tx` argument.
//
// Use-case interfaces stay clean (no driver types leak out); repositories
// accept `Tx` and detect a live transaction implementation-side. Repositories
// MUST gracefully accept nil (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
