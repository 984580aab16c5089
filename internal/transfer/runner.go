package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpattn/dropfeed/internal/domain"

	"golang.org/x/sync/errgroup"
)

// EntityPipeline runs the transfer for a single entity.
type EntityPipeline interface {
	Run(ctx context.Context, entity domain.Entity) (EntityReport, error)
}

// RunReport collects the entity reports of one runner invocation, in input order.
type RunReport struct {
	Entities   []EntityReport `json:"entities"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// HasFailures reports whether any entity run or file branch failed.
func (r RunReport) HasFailures() bool {
	for _, entity := range r.Entities {
		if entity.HasFailures() {
			return true
		}
	}
	return false
}

// Runner fans one pipeline run out per entity. Entity runs share nothing and a failure
// or panic in one does not stop the others.
type Runner struct {
	pipeline EntityPipeline
	workers  int
	logger   *slog.Logger
	now      func() time.Time
}

type RunnerOption func(*Runner)

// WithEntityWorkers bounds how many entities run at once.
func WithEntityWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner over pipeline.
func NewRunner(pipeline EntityPipeline, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipeline: pipeline,
		workers:  1,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run invokes the pipeline once for every distinct entity.
func (r *Runner) Run(ctx context.Context, entities []domain.Entity) RunReport {
	names := make([]string, len(entities))
	for i, entity := range entities {
		names[i] = entity.Name
	}
	unique := domain.NewEntities(names)

	report := RunReport{
		Entities:  make([]EntityReport, len(unique)),
		StartedAt: r.now(),
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, entity := range unique {
		i, entity := i, entity
		g.Go(func() error {
			report.Entities[i] = r.runEntity(ctx, entity)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = r.now()
	r.logger.Info("transfer run finished",
		slog.Int("entities", len(unique)),
		slog.Bool("failures", report.HasFailures()),
		slog.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report
}

func (r *Runner) runEntity(ctx context.Context, entity domain.Entity) (report EntityReport) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("entity pipeline panicked", slog.String("entity", entity.Name), slog.Any("panic", rec))
			report = EntityReport{Entity: entity, Err: fmt.Errorf("pipeline panic: %v", rec)}
		}
	}()

	report, err := r.pipeline.Run(ctx, entity)
	if err != nil {
		report.Err = err
	}
	report.Entity = entity
	return report
}
