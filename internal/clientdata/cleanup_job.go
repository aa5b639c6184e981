package clientdata

import (
	"github.com/rs/zerolog"
)

// CleanupJob drops expired NAV histories so the cache only holds what a
// refresh in prefer mode could still serve.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates the cache cleanup job
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}

// Run deletes expired rows from every cache table and logs what is left
func (j *CleanupJob) Run() error {
	deleted, err := j.repo.DeleteAllExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired cache entries")
		return err
	}

	for _, table := range AllTables {
		remaining, err := j.repo.Count(table)
		if err != nil {
			j.log.Warn().Err(err).Str("table", table).Msg("Failed to count cache entries")
			continue
		}
		event := j.log.Debug()
		if deleted[table] > 0 {
			event = j.log.Info()
		}
		event.
			Str("table", table).
			Int64("deleted", deleted[table]).
			Int64("remaining", remaining).
			Msg("Cache cleanup")
	}

	return nil
}
