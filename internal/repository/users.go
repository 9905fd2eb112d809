package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"anonbox/internal/models"
)

// UserRepository is the durable user directory. Profiles are created on
// first contact and only ever grow: empty fields in an upsert never
// overwrite data seen earlier.
type UserRepository interface {
	Upsert(id int64, username, firstName, lastName string) (*models.Profile, error)
	GetByID(id int64) (*models.Profile, error)
	CountJoinedOn(day string) (int, error)
	CountTotal() (int, error)
}

type userRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sqlx.DB, logger *zap.Logger) UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

func (r *userRepository) Upsert(id int64, username, firstName, lastName string) (*models.Profile, error) {
	now := time.Now()
	query := `
		INSERT INTO users (id, username, first_name, last_name, first_seen, last_seen, joined_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_seen  = excluded.last_seen,
			username   = CASE WHEN excluded.username   != '' THEN excluded.username   ELSE users.username   END,
			first_name = CASE WHEN excluded.first_name != '' THEN excluded.first_name ELSE users.first_name END,
			last_name  = CASE WHEN excluded.last_name  != '' THEN excluded.last_name  ELSE users.last_name  END
	`

	_, err := r.db.Exec(query, id, username, firstName, lastName, now, now, now.Format(models.DateLayout))
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}

	return r.GetByID(id)
}

func (r *userRepository) GetByID(id int64) (*models.Profile, error) {
	var profile models.Profile
	query := `
		SELECT id, username, first_name, last_name, first_seen, last_seen, joined_date
		FROM users
		WHERE id = ?
	`

	err := r.db.Get(&profile, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get user by ID", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}

	return &profile, nil
}

func (r *userRepository) CountJoinedOn(day string) (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM users WHERE joined_date = ?`, day)
	if err != nil {
		r.logger.Error("Failed to count users by joined date", zap.String("day", day), zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *userRepository) CountTotal() (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM users`)
	if err != nil {
		r.logger.Error("Failed to count users", zap.Error(err))
		return 0, err
	}
	return count, nil
}
