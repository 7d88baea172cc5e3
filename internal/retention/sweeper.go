// Package retention implements the periodic deletion of aged
// bulletins and messages. The last successful run is persisted in the
// maintenance_runs table, not process memory, so restarts never cause
// double sweeps and tests can drive the schedule with a fake clock.
package retention

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const jobName = "retention"

// Sweeper deletes rows past their retention age. Now is injectable
// for tests and defaults to time.Now.
type Sweeper struct {
	DB             *sql.DB
	Now            func() time.Time
	BulletinMaxAge time.Duration
	MessageMaxAge  time.Duration
	MinInterval    time.Duration
}

// New returns a Sweeper with the standard once-per-24h cadence.
func New(db *sql.DB, bulletinMaxAge, messageMaxAge time.Duration) *Sweeper {
	return &Sweeper{
		DB:             db,
		Now:            time.Now,
		BulletinMaxAge: bulletinMaxAge,
		MessageMaxAge:  messageMaxAge,
		MinInterval:    24 * time.Hour,
	}
}

// RunIfDue sweeps when the persisted last run is older than
// MinInterval (or absent) and reports whether a sweep happened.
func (s *Sweeper) RunIfDue(ctx context.Context) (bool, error) {
	now := s.Now().UTC()
	var lastRun time.Time
	err := s.DB.QueryRowContext(ctx,
		`SELECT last_run FROM maintenance_runs WHERE job = ?`, jobName).Scan(&lastRun)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	if err == nil && now.Sub(lastRun) < s.MinInterval {
		return false, nil
	}
	if err := s.Sweep(ctx); err != nil {
		return false, err
	}
	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO maintenance_runs (job, last_run) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE last_run = VALUES(last_run)`, jobName, now); err != nil {
		return false, err
	}
	return true, nil
}

// Sweep deletes bulletins and messages past their retention age, then
// thread-participant rows whose threads no longer hold any message.
// Attachment rows and read markers fall to the FK cascades; blob
// files are left for operators to prune since metadata is gone.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.Now().UTC()

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM bulletins WHERE created_at < ?`, now.Add(-s.BulletinMaxAge))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("retention: deleted %d aged bulletins", n)
	}

	res, err = s.DB.ExecContext(ctx,
		`DELETE FROM messages WHERE created_at < ?`, now.Add(-s.MessageMaxAge))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("retention: deleted %d aged messages", n)
	}

	// Threads whose every message aged out leave orphaned audience
	// rows behind; deleting a conversation only removes participants,
	// so this is also where fully-abandoned threads finally disappear.
	res, err = s.DB.ExecContext(ctx,
		`DELETE FROM thread_participants
		 WHERE thread_id NOT IN (SELECT DISTINCT thread_id FROM messages WHERE thread_id IS NOT NULL)`)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("retention: removed %d orphaned thread participants", n)
	}
	return nil
}

// Start checks the schedule every six hours; RunIfDue keeps the
// effective cadence at one sweep per day. An immediate check runs at
// startup before the cron takes over.
func (s *Sweeper) Start() *cron.Cron {
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		ran, err := s.RunIfDue(ctx)
		if err != nil {
			log.Printf("retention: sweep failed: %v", err)
			return
		}
		if ran {
			log.Printf("retention: sweep completed")
		}
	}
	run()
	c := cron.New()
	c.AddFunc("@every 6h", run)
	c.Start()
	return c
}
