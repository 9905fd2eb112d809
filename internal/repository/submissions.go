package repository

import (
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"anonbox/internal/models"
)

// SubmissionRepository is the capped relay log. Append trims the log to
// the newest maxEntries rows; this is a bounded-memory guard, not a
// retention policy.
type SubmissionRepository interface {
	Append(rec *models.Submission) error
	CountToday() (int, error)
	LatestBySender(userID int64) (*models.Submission, error)
	ListRecent(limit int) ([]*models.Submission, error)
	CountTotal() (int, error)
}

type submissionRepository struct {
	db         *sqlx.DB
	logger     *zap.Logger
	maxEntries int

	mu sync.Mutex // serializes append+trim
}

// NewSubmissionRepository creates a new submission repository keeping at
// most maxEntries records.
func NewSubmissionRepository(db *sqlx.DB, maxEntries int, logger *zap.Logger) SubmissionRepository {
	return &submissionRepository{
		db:         db,
		logger:     logger,
		maxEntries: maxEntries,
	}
}

func (r *submissionRepository) Append(rec *models.Submission) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Day = rec.Timestamp.Format(models.DateLayout)

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO submissions (user_id, username, first_name, last_name, content, media_type, day, timestamp, message_id, chat_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		rec.UserID, rec.Username, rec.FirstName, rec.LastName,
		rec.Content, rec.MediaType, rec.Day, rec.Timestamp,
		rec.MessageID, rec.ChatID,
	)
	if err != nil {
		r.logger.Error("Failed to append submission", zap.Int64("user_id", rec.UserID), zap.Error(err))
		return err
	}

	rec.ID, err = result.LastInsertId()
	if err != nil {
		return err
	}

	// Strict FIFO eviction: only the newest maxEntries rows survive.
	_, err = tx.Exec(`
		DELETE FROM submissions
		WHERE id NOT IN (SELECT id FROM submissions ORDER BY id DESC LIMIT ?)
	`, r.maxEntries)
	if err != nil {
		r.logger.Error("Failed to trim submission log", zap.Error(err))
		return err
	}

	return tx.Commit()
}

func (r *submissionRepository) CountToday() (int, error) {
	var count int
	today := time.Now().Format(models.DateLayout)
	err := r.db.Get(&count, `SELECT COUNT(*) FROM submissions WHERE day = ?`, today)
	if err != nil {
		r.logger.Error("Failed to count today's submissions", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *submissionRepository) LatestBySender(userID int64) (*models.Submission, error) {
	var rec models.Submission
	query := `
		SELECT id, user_id, username, first_name, last_name, content, media_type, day, timestamp, message_id, chat_id
		FROM submissions
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	err := r.db.Get(&rec, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get latest submission", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &rec, nil
}

func (r *submissionRepository) ListRecent(limit int) ([]*models.Submission, error) {
	var records []*models.Submission
	query := `
		SELECT id, user_id, username, first_name, last_name, content, media_type, day, timestamp, message_id, chat_id
		FROM submissions
		ORDER BY id DESC
		LIMIT ?
	`

	err := r.db.Select(&records, query, limit)
	if err != nil {
		r.logger.Error("Failed to list submissions", zap.Error(err))
		return nil, err
	}

	return records, nil
}

func (r *submissionRepository) CountTotal() (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM submissions`)
	if err != nil {
		r.logger.Error("Failed to count submissions", zap.Error(err))
		return 0, err
	}
	return count, nil
}
