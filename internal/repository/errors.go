// Package repository provides the gorm-backed data access layer for posts, comments and reactions.
package repository

import (
	"errors"
	"strings"

	"longform/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrDuplicateReaction is returned when the unique (target_kind, target_id, user_email) index
// rejects an insert: another request created the reaction first.
var ErrDuplicateReaction = errors.New("reaction already exists for this user and target")

const pgUniqueViolation = "23505"

// isUniqueViolation recognizes unique-constraint failures from gorm's translated error,
// PostgreSQL and SQLite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translateNotFound maps gorm.ErrRecordNotFound to a NOT_FOUND AppError.
func translateNotFound(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}

// counterUpdates builds "col = col + ?" expressions for the non-zero deltas.
func counterUpdates(deltas map[string]int) map[string]any {
	updates := make(map[string]any, len(deltas))
	for column, delta := range deltas {
		if delta != 0 {
			updates[column] = gorm.Expr(column+" + ?", delta)
		}
	}
	return updates
}

// adjustCounters applies deltas to the row with the given id in one UPDATE statement.
func adjustCounters(db *gorm.DB, model any, resource string, id uint, deltas map[string]int) error {
	updates := counterUpdates(deltas)
	if len(updates) == 0 {
		return nil
	}
	result := db.Model(model).Where("id = ?", id).UpdateColumns(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError(resource, id)
	}
	return nil
}
