package repository

import (
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"anonbox/internal/apperrors"
	"anonbox/internal/models"
)

// BlockRepository is the durable block list plus an in-memory
// block/unblock action log. The action log backs same-day statistics
// only and is intentionally lost on restart.
type BlockRepository interface {
	Block(rec *models.BlockRecord) error
	Unblock(userID, adminID int64) (bool, error)
	Get(userID int64) (*models.BlockRecord, error)
	IsBlocked(userID int64) (bool, error)
	List() ([]*models.BlockRecord, error)
	CountActionsToday(action string) int
	CountTotal() (int, error)
}

type blockRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
	admins map[int64]bool

	mu      sync.Mutex
	actions []models.BlockAction
}

// NewBlockRepository creates a new block repository. Administrator IDs
// can never be blocked.
func NewBlockRepository(db *sqlx.DB, adminIDs []int64, logger *zap.Logger) BlockRepository {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &blockRepository{
		db:     db,
		logger: logger,
		admins: admins,
	}
}

func (r *blockRepository) Block(rec *models.BlockRecord) error {
	if r.admins[rec.UserID] {
		return apperrors.ErrInvalidBlockTarget
	}

	if rec.BlockedAt.IsZero() {
		rec.BlockedAt = time.Now()
	}

	// The action log entry must reflect the store state at the same
	// logical instant, so both happen under one lock.
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO blocked_users (user_id, username, first_name, last_name, blocked_at, blocked_by, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username   = excluded.username,
			first_name = excluded.first_name,
			last_name  = excluded.last_name,
			blocked_at = excluded.blocked_at,
			blocked_by = excluded.blocked_by,
			reason     = excluded.reason
	`

	_, err := r.db.Exec(query,
		rec.UserID, rec.Username, rec.FirstName, rec.LastName,
		rec.BlockedAt, rec.BlockedBy, rec.Reason,
	)
	if err != nil {
		r.logger.Error("Failed to block user", zap.Int64("user_id", rec.UserID), zap.Error(err))
		return err
	}

	r.actions = append(r.actions, models.BlockAction{
		UserID:    rec.UserID,
		Action:    models.ActionBlock,
		AdminID:   rec.BlockedBy,
		Timestamp: time.Now(),
	})

	return nil
}

func (r *blockRepository) Unblock(userID, adminID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.Exec(`DELETE FROM blocked_users WHERE user_id = ?`, userID)
	if err != nil {
		r.logger.Error("Failed to unblock user", zap.Int64("user_id", userID), zap.Error(err))
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	r.actions = append(r.actions, models.BlockAction{
		UserID:    userID,
		Action:    models.ActionUnblock,
		AdminID:   adminID,
		Timestamp: time.Now(),
	})

	return true, nil
}

func (r *blockRepository) Get(userID int64) (*models.BlockRecord, error) {
	var rec models.BlockRecord
	query := `
		SELECT user_id, username, first_name, last_name, blocked_at, blocked_by, reason
		FROM blocked_users
		WHERE user_id = ?
	`

	err := r.db.Get(&rec, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get block record", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &rec, nil
}

func (r *blockRepository) IsBlocked(userID int64) (bool, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM blocked_users WHERE user_id = ?`, userID)
	if err != nil {
		r.logger.Error("Failed to check block state", zap.Int64("user_id", userID), zap.Error(err))
		return false, err
	}
	return count > 0, nil
}

func (r *blockRepository) List() ([]*models.BlockRecord, error) {
	var records []*models.BlockRecord
	query := `
		SELECT user_id, username, first_name, last_name, blocked_at, blocked_by, reason
		FROM blocked_users
	`

	err := r.db.Select(&records, query)
	if err != nil {
		r.logger.Error("Failed to list blocked users", zap.Error(err))
		return nil, err
	}

	return records, nil
}

func (r *blockRepository) CountActionsToday(action string) int {
	today := time.Now().Format(models.DateLayout)

	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.actions {
		if a.Action == action && a.Timestamp.Format(models.DateLayout) == today {
			count++
		}
	}
	return count
}

func (r *blockRepository) CountTotal() (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM blocked_users`)
	if err != nil {
		r.logger.Error("Failed to count blocked users", zap.Error(err))
		return 0, err
	}
	return count, nil
}
