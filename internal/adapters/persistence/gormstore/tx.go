package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pearquote/quote-service/internal/domain"
)

type txKey struct{}

// TxRunner runs functions inside a gorm transaction carried by the context.
type TxRunner struct {
	db *gorm.DB
}

// InTx implements ports.TxRunner.
//
// Calls nested in an existing transaction become savepoints. Domain errors returned
// by fn pass through unchanged; any other failure is reported as domain.TransactionError.
func (r *TxRunner) InTx(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err == nil {
		return nil
	}

	if isDomainError(err) {
		return err
	}

	return domain.NewTransactionError(operation, err)
}

// conn returns the transaction in ctx, or the pool bound to ctx.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}

	return db.WithContext(ctx)
}

func isDomainError(err error) bool {
	for _, sentinel := range []error{
		domain.ErrNotFound,
		domain.ErrValidation,
		domain.ErrForbidden,
		domain.ErrUnavailable,
		domain.ErrTransaction,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}
