package router

import (
	"time"

	"anonbox/internal/models"
)

// Stats aggregates the same-day and total counters shown to
// administrators. Same-day block/unblock counts come from the
// in-memory action log and reset on restart.
type Stats struct {
	NewUsersToday    int       `json:"new_users_today"`
	BlockedToday     int       `json:"blocked_today"`
	UnblockedToday   int       `json:"unblocked_today"`
	SubmissionsToday int       `json:"submissions_today"`
	TotalUsers       int       `json:"total_users"`
	TotalBlocked     int       `json:"total_blocked"`
	TotalSubmissions int       `json:"total_submissions"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Stats collects the current statistics snapshot.
func (r *Router) Stats() (*Stats, error) {
	now := time.Now()
	s := &Stats{
		BlockedToday:   r.blocks.CountActionsToday(models.ActionBlock),
		UnblockedToday: r.blocks.CountActionsToday(models.ActionUnblock),
		GeneratedAt:    now,
	}

	var err error
	if s.NewUsersToday, err = r.users.CountJoinedOn(now.Format(models.DateLayout)); err != nil {
		return nil, err
	}
	if s.SubmissionsToday, err = r.subs.CountToday(); err != nil {
		return nil, err
	}
	if s.TotalUsers, err = r.users.CountTotal(); err != nil {
		return nil, err
	}
	if s.TotalBlocked, err = r.blocks.CountTotal(); err != nil {
		return nil, err
	}
	if s.TotalSubmissions, err = r.subs.CountTotal(); err != nil {
		return nil, err
	}

	return s, nil
}
