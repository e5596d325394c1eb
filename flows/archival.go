package flows

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	archivalLockKey   = "stockbot:archival"
	archivalLockTTL   = 10 * time.Minute
	archivalActorName = "System"
)

// Archive is the persistence surface of the period close. models.ArchiveStore
// is the production implementation; tests use an in-memory fake.
type Archive interface {
	SnapshotExists(periodLabel string) (bool, error)
	LedgerRows() ([]models.LedgerRecord, error)
	CloseOut(periodLabel string, rows, openingRows []models.LedgerRecord) error
}

// ArchivalJob closes one accounting period: it snapshots the full ledger into
// the archive tables, truncates the live ledger, and seeds the new period with
// opening-balance rows. Idempotency comes from the snapshot's unique period
// label; mutual exclusion across replicas from an advisory Redis lock.
type ArchivalJob struct {
	Store    Archive
	Logger   *logrus.Logger
	Settings *config.Settings
}

func NewArchivalJob(db *gorm.DB, logger *logrus.Logger, settings *config.Settings) *ArchivalJob {
	return &ArchivalJob{Store: models.NewArchiveStore(db, logger), Logger: logger, Settings: settings}
}

// PeriodLabel names the period being closed: the calendar month before now in
// the configured timezone, formatted YYYY-MM. Running the close on the 1st at
// 02:00 therefore labels the month that just ended.
func PeriodLabel(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	firstOfMonth := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return firstOfMonth.AddDate(0, 0, -1).Format("2006-01")
}

// NextArchiveTime returns the first day/hour/minute occurrence strictly after
// the given instant. Day is capped at 28 by configuration, so every month has
// the scheduled day.
func NextArchiveTime(after time.Time, day, hour, minute int, loc *time.Location) time.Time {
	local := after.In(loc)
	next := time.Date(local.Year(), local.Month(), day, hour, minute, 0, 0, loc)
	for !next.After(after) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}

// Run blocks until ctx is cancelled, firing the close at each scheduled
// instant. Disabled schedules return immediately.
func (j *ArchivalJob) Run(ctx context.Context) {
	if !j.Settings.ArchiveEnabled {
		return
	}
	for {
		next := NextArchiveTime(time.Now(), j.Settings.ArchiveDay, j.Settings.ArchiveHour, j.Settings.ArchiveMinute, j.Settings.Timezone)
		j.Logger.WithFields(logrus.Fields{
			"module": "flows",
			"nextAt": next.Format(time.RFC3339),
		}).Info("archival job scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := j.RunOnce(ctx); err != nil {
			config.LogError(j.Logger, "flows", "Run", "running monthly archival", nil, err)
		}
	}
}

// RunOnce performs one close attempt. It is safe to call repeatedly: a second
// run in the same period finds the snapshot and does nothing, and concurrent
// runs across replicas serialize on the advisory lock.
func (j *ArchivalJob) RunOnce(ctx context.Context) error {
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, archivalLockKey, archivalLockTTL, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				j.Logger.WithField("module", "flows").Info("archival lock held elsewhere; skipping")
				return nil
			}
			return err
		}
		defer lock.Release(ctx)
	}

	label := PeriodLabel(time.Now(), j.Settings.Timezone)

	exists, err := j.Store.SnapshotExists(label)
	if err != nil {
		return err
	}
	if exists {
		j.Logger.WithFields(logrus.Fields{"module": "flows", "period": label}).
			Info("period already archived; skipping")
		return nil
	}

	rows, err := j.Store.LedgerRows()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		j.Logger.WithFields(logrus.Fields{"module": "flows", "period": label}).
			Info("ledger empty; nothing to archive")
		return nil
	}

	openingRows := models.OpeningRows(rows, archivalActorName)
	// Opening rows are inserted directly by the close transaction, bypassing
	// Append's timestamp defaulting.
	openedAt := time.Now()
	for i := range openingRows {
		openingRows[i].Timestamp = openedAt
	}

	if err := j.Store.CloseOut(label, rows, openingRows); err != nil {
		return err
	}

	j.Logger.WithFields(logrus.Fields{
		"module":       "flows",
		"period":       label,
		"archivedRows": len(rows),
		"openingRows":  len(openingRows),
	}).Info("period closed")
	return nil
}
