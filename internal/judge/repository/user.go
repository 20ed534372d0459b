package repository

import (
	"context"

	"codearena/internal/common/db"
	appErr "codearena/pkg/errors"
)

// UserRepository updates the per-user solved counter.
type UserRepository struct {
	db db.Database
}

// NewUserRepository creates a user repository.
func NewUserRepository(database db.Database) (*UserRepository, error) {
	if database == nil {
		return nil, appErr.New(appErr.DatabaseError).WithMessage("database is not initialized")
	}
	return &UserRepository{db: database}, nil
}

// IncrementSolvedCount bumps the user's solved counter with a single atomic
// update; no read-modify-write cycle.
func (r *UserRepository) IncrementSolvedCount(ctx context.Context, userID string) error {
	if userID == "" {
		return appErr.ValidationError("user_id", "required")
	}

	const query = `UPDATE users SET solved_count = solved_count + 1 WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "increment solved count failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "read affected rows failed")
	}
	if affected == 0 {
		return appErr.New(appErr.RecordNotFound).WithMessagef("user %s not found", userID)
	}
	return nil
}
