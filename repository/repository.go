package repository

import (
	"context"
	"errors"

	"certportal/apperror"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds a row lock where the dialect supports one. SQLite
// serialises writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(msg)
	}
	return apperror.Internal("database error", err)
}

func withCtx(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx)
}
