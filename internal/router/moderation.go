package router

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"anonbox/internal/apperrors"
	"anonbox/internal/models"
)

// Block creates a block record for target. The name snapshot comes from
// the directory, falling back to the submission log; known reports
// whether any snapshot was found. The blocked user is notified on a
// best-effort basis.
func (r *Router) Block(target, adminID int64, reason string) (*models.BlockRecord, bool, error) {
	if r.IsAdmin(target) {
		return nil, false, apperrors.ErrInvalidBlockTarget
	}

	blocked, err := r.blocks.IsBlocked(target)
	if err != nil {
		return nil, false, fmt.Errorf("check block state: %w", err)
	}
	if blocked {
		return nil, false, apperrors.ErrAlreadyBlocked
	}

	rec := &models.BlockRecord{
		UserID:    target,
		BlockedAt: time.Now(),
		BlockedBy: adminID,
		Reason:    reason,
	}

	known := false
	if profile, err := r.users.GetByID(target); err != nil {
		return nil, false, fmt.Errorf("look up profile: %w", err)
	} else if profile != nil {
		known = true
		rec.Username = profile.Username
		rec.FirstName = profile.FirstName
		rec.LastName = profile.LastName
	} else if latest, err := r.subs.LatestBySender(target); err != nil {
		return nil, false, fmt.Errorf("look up latest submission: %w", err)
	} else if latest != nil {
		known = true
		rec.Username = latest.Username
		rec.FirstName = latest.FirstName
		rec.LastName = latest.LastName
	}

	if err := r.blocks.Block(rec); err != nil {
		return nil, false, err
	}

	r.logger.Info("User blocked",
		zap.Int64("user_id", target),
		zap.Int64("admin_id", adminID),
		zap.String("reason", reason),
	)

	r.notify(target, blockedNotice(reason))
	return rec, known, nil
}

// Unblock removes the block record for target, returning the removed
// record for display. The user is notified on a best-effort basis.
func (r *Router) Unblock(target, adminID int64) (*models.BlockRecord, error) {
	rec, err := r.blocks.Get(target)
	if err != nil {
		return nil, fmt.Errorf("look up block record: %w", err)
	}

	ok, err := r.blocks.Unblock(target, adminID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrNotBlocked
	}

	r.logger.Info("User unblocked",
		zap.Int64("user_id", target),
		zap.Int64("admin_id", adminID),
	)

	r.notify(target, unblockedNotice)
	return rec, nil
}

// BlockedList returns all current block records.
func (r *Router) BlockedList() ([]*models.BlockRecord, error) {
	return r.blocks.List()
}
