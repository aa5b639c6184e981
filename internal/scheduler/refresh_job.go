package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/internal/events"
	"github.com/aristath/navreturns/internal/modules/funds"
	"github.com/aristath/navreturns/internal/work/batch"
	"github.com/rs/zerolog"
)

// Publisher uploads exported files
type Publisher interface {
	Enabled() bool
	UploadFile(ctx context.Context, path string) error
}

// ResultStore persists batch results
type ResultStore interface {
	Upsert(runID string, results []domain.FundReturns) error
	RecordRun(run funds.Run) error
}

// RefreshJobConfig holds the files a refresh reads and writes
type RefreshJobConfig struct {
	SchemesFile    string
	OutputFile     string
	OutputJSONFile string // Optional
	Publish        bool
}

// RefreshJob recomputes every scheme in the scheme list: batch run, CSV/JSON
// export, result storage and optional publishing.
type RefreshJob struct {
	runner    *batch.Runner
	store     ResultStore
	publisher Publisher
	cfg       RefreshJobConfig
	hub       *events.Hub
	log       zerolog.Logger
	ctx       context.Context
}

// NewRefreshJob creates a refresh job. store, publisher and hub may be nil.
func NewRefreshJob(
	runner *batch.Runner,
	store ResultStore,
	publisher Publisher,
	cfg RefreshJobConfig,
	hub *events.Hub,
	log zerolog.Logger,
) *RefreshJob {
	return &RefreshJob{
		runner:    runner,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		hub:       hub,
		log:       log.With().Str("job", "refresh_returns").Logger(),
		ctx:       context.Background(),
	}
}

// WithContext sets the context scheduled runs execute in. Cancelling it
// interrupts a running refresh.
func (j *RefreshJob) WithContext(ctx context.Context) *RefreshJob {
	j.ctx = ctx
	return j
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "refresh_returns"
}

// Run executes a full refresh in the job context
func (j *RefreshJob) Run() error {
	_, err := j.Execute(j.ctx)
	return err
}

// Execute runs the refresh and returns the batch report. An interrupted run
// stores nothing and exports nothing. Progress is streamed on the hub.
func (j *RefreshJob) Execute(ctx context.Context) (*batch.RunReport, error) {
	report, err := j.execute(ctx)
	if err != nil {
		failed := &events.BatchFailedData{Error: err.Error()}
		if report != nil {
			failed.RunID = report.ID
		}
		j.hub.Emit(failed)
		return report, err
	}

	j.hub.Emit(&events.BatchFinishedData{
		RunID:      report.ID,
		Total:      report.Total,
		Succeeded:  report.Succeeded,
		Failed:     report.Failed,
		DurationMS: float64(report.Duration().Milliseconds()),
	})
	return report, nil
}

func (j *RefreshJob) execute(ctx context.Context) (*batch.RunReport, error) {
	list, err := j.readSchemes()
	if err != nil {
		return nil, err
	}

	j.hub.Emit(&events.BatchStartedData{Total: len(list), Methodology: string(j.runner.Methodology())})
	progress := events.NewProgressReporter(j.hub, events.DefaultProgressInterval)

	report, err := j.runner.Run(ctx, list, progress.Report)
	if err != nil {
		return report, err
	}

	if err := writeAtomic(j.cfg.OutputFile, func(w io.Writer) error {
		return funds.WriteCSV(w, report.Results)
	}); err != nil {
		return report, fmt.Errorf("failed to export CSV: %w", err)
	}
	if j.cfg.OutputJSONFile != "" {
		if err := writeAtomic(j.cfg.OutputJSONFile, func(w io.Writer) error {
			return funds.WriteJSON(w, report.Results)
		}); err != nil {
			return report, fmt.Errorf("failed to export JSON: %w", err)
		}
	}
	j.log.Info().
		Str("run_id", report.ID).
		Str("output", j.cfg.OutputFile).
		Int("rows", len(report.Results)).
		Msg("Results exported")

	if j.store != nil {
		if err := j.store.Upsert(report.ID, report.Results); err != nil {
			return report, fmt.Errorf("failed to store results: %w", err)
		}
		if err := j.store.RecordRun(report.Record(j.cfg.OutputFile)); err != nil {
			return report, err
		}
	}

	if j.cfg.Publish && j.publisher != nil && j.publisher.Enabled() {
		if err := j.publish(ctx); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (j *RefreshJob) readSchemes() ([]domain.Fund, error) {
	f, err := os.Open(j.cfg.SchemesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open scheme list: %w", err)
	}
	defer f.Close()

	list, err := funds.ReadSchemes(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read scheme list %s: %w", j.cfg.SchemesFile, err)
	}
	return list, nil
}

func (j *RefreshJob) publish(ctx context.Context) error {
	files := []string{j.cfg.OutputFile}
	if j.cfg.OutputJSONFile != "" {
		files = append(files, j.cfg.OutputJSONFile)
	}

	var errs []error
	for _, file := range files {
		if err := j.publisher.UploadFile(ctx, file); err != nil {
			j.log.Error().Err(err).Str("file", file).Msg("Failed to publish export")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeAtomic writes through a temporary file in the target directory and
// renames it into place, so readers never see a partial export
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
