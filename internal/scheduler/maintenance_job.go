package scheduler

import (
	"context"
	"time"

	"github.com/aristath/navreturns/internal/database"
	"github.com/rs/zerolog"
)

// walFrameThreshold is the WAL size (in frames) above which a TRUNCATE checkpoint is forced
const walFrameThreshold = 1000

// MaintenanceJob checks database health and keeps WAL files bounded
type MaintenanceJob struct {
	databases []*database.DB
	timeout   time.Duration
	log       zerolog.Logger
}

// NewMaintenanceJob creates a maintenance job over the given databases. Nil entries are skipped.
func NewMaintenanceJob(log zerolog.Logger, databases ...*database.DB) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		timeout:   30 * time.Second,
		log:       log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run checks every database. A failing database is logged and does not stop the others;
// the first failure is returned.
func (j *MaintenanceJob) Run() error {
	var firstErr error
	checked := 0

	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := j.check(db); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Database maintenance failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		checked++
	}

	j.log.Info().Int("checked", checked).Msg("Database maintenance completed")
	return firstErr
}

func (j *MaintenanceJob) check(db *database.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		return err
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	if err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed); err != nil {
		return err
	}

	if frames > walFrameThreshold {
		j.log.Warn().
			Str("database", db.Name()).
			Int("wal_frames", frames).
			Int("checkpointed", checkpointed).
			Msg("WAL file is large, forcing checkpoint")
		return db.WALCheckpoint("TRUNCATE")
	}

	j.log.Debug().
		Str("database", db.Name()).
		Int("wal_frames", frames).
		Msg("WAL checkpoint status OK")
	return nil
}
