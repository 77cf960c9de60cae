// Package ledger implement the idempotency claims that guard every side
// effect of the onboarding engine. A claim is won by inserting a row whose
// primary key is the claim key; the database uniqueness constraint decides
// the winner between overlapping invocations.
package ledger

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/database"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/model"
)

// DefaultReclaimAfter is how long a processing claim may sit untouched
// before another claimant is allowed to take it over. Covers the case of a
// process dying between claim and complete/fail.
const DefaultReclaimAfter = 15 * time.Minute

// Ledger wraps the idempotency record table.
type Ledger struct {
	DB *database.DBinstanceStruct

	// ReclaimAfter overrides DefaultReclaimAfter when positive
	ReclaimAfter time.Duration
}

// New constructs a Ledger with the default reclaim window.
func New(db *database.DBinstanceStruct) *Ledger {
	return &Ledger{DB: db, ReclaimAfter: DefaultReclaimAfter}
}

func (l *Ledger) reclaimAfter() time.Duration {
	if l.ReclaimAfter > 0 {
		return l.ReclaimAfter
	}
	return DefaultReclaimAfter
}

// uniqueViolation reports whether err is a duplicate-key error. GORM maps
// some driver errors itself, so check both its sentinel and SQLSTATE 23505.
func uniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Claim tries to win the claim for key. It returns true when the caller is
// the first claimant and may perform the side effect. A duplicate key is an
// expected outcome and returns (false, nil); only real store errors are
// returned as errors.
func (l *Ledger) Claim(key string) (bool, error) {
	record := model.IdempotencyRecord{
		Key:    key,
		Status: model.ClaimStatusProcessing,
	}

	err := l.DB.Create(&record).Error
	if err == nil {
		return true, nil
	}
	if !uniqueViolation(err) {
		return false, err
	}

	// The key already exists. A row stuck in processing past the reclaim
	// window (crashed claimant) or explicitly expired may be taken over.
	cutoff := time.Now().Add(-l.reclaimAfter())
	res := l.DB.Model(&model.IdempotencyRecord{}).
		Where("key = ? AND (status = ? OR (status = ? AND updated_at < ?))",
			key, model.ClaimStatusExpired, model.ClaimStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":     model.ClaimStatusProcessing,
			"error":      "",
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// Complete marks a held claim as finished. It only transitions rows still in
// processing, so a claimant that lost the race can never overwrite the
// winner's terminal state.
func (l *Ledger) Complete(key string, result string) error {
	now := time.Now()
	return l.DB.Model(&model.IdempotencyRecord{}).
		Where("key = ? AND status = ?", key, model.ClaimStatusProcessing).
		Updates(map[string]interface{}{
			"status":       model.ClaimStatusCompleted,
			"result":       result,
			"completed_at": &now,
		}).Error
}

// Fail marks a held claim as failed with the given error message. Same
// processing-only guard as Complete.
func (l *Ledger) Fail(key string, errMsg string) error {
	now := time.Now()
	return l.DB.Model(&model.IdempotencyRecord{}).
		Where("key = ? AND status = ?", key, model.ClaimStatusProcessing).
		Updates(map[string]interface{}{
			"status":       model.ClaimStatusFailed,
			"error":        errMsg,
			"completed_at": &now,
		}).Error
}

// ExpireStale flips processing claims older than age to expired so they can
// be reclaimed immediately. Returns the number of rows changed.
func (l *Ledger) ExpireStale(age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	res := l.DB.Model(&model.IdempotencyRecord{}).
		Where("status = ? AND updated_at < ?", model.ClaimStatusProcessing, cutoff).
		Update("status", model.ClaimStatusExpired)
	return res.RowsAffected, res.Error
}
