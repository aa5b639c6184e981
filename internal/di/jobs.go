// Package di provides dependency injection for scheduler jobs.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/navreturns/internal/clientdata"
	"github.com/aristath/navreturns/internal/config"
	"github.com/aristath/navreturns/internal/scheduler"
	"github.com/rs/zerolog"
)

// JobInstances holds the registered jobs for scheduling and manual triggering
type JobInstances struct {
	Refresh     *scheduler.RefreshJob
	Cleanup     *clientdata.CleanupJob
	Maintenance *scheduler.MaintenanceJob
}

// RegisterJobs creates all jobs from the container's services. Scheduled
// refreshes run in ctx.
func RegisterJobs(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{}

	// Job 1: Refresh - full batch, export, store and publish
	instances.Refresh = scheduler.NewRefreshJob(
		container.Runner,
		container.ResultsRepo,
		container.Publisher,
		scheduler.RefreshJobConfig{
			SchemesFile:    cfg.ResolvePath(cfg.SchemesFile),
			OutputFile:     cfg.ResolvePath(cfg.OutputFile),
			OutputJSONFile: cfg.ResolvePath(cfg.OutputJSONFile),
			Publish:        cfg.Publish.Enabled(),
		},
		container.EventHub,
		log,
	).WithContext(ctx)

	// Job 2: Cleanup - expired NAV histories
	instances.Cleanup = clientdata.NewCleanupJob(container.CacheRepo, log)

	// Job 3: Maintenance - health check and WAL checkpoints
	instances.Maintenance = scheduler.NewMaintenanceJob(log, container.Databases()...)

	log.Info().Int("jobs", 3).Msg("Jobs registered")
	return instances, nil
}

// ScheduleJobs adds every job to the scheduler on its configured schedule
func ScheduleJobs(sched *scheduler.Scheduler, jobs *JobInstances, cfg *config.Config) error {
	entries := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.RefreshSchedule, jobs.Refresh},
		{cfg.CleanupSchedule, jobs.Cleanup},
		{cfg.MaintenanceSchedule, jobs.Maintenance},
	}

	for _, e := range entries {
		if err := sched.AddJob(e.schedule, e.job); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", e.job.Name(), err)
		}
	}
	return nil
}
