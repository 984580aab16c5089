// Package schedule triggers entity transfers from cron and from manual requests,
// allowing at most one run per entity at a time.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rpattn/dropfeed/internal/domain"
	"github.com/rpattn/dropfeed/internal/transfer"
)

var (
	ErrUnknownEntity  = errors.New("unknown entity")
	ErrAlreadyRunning = errors.New("entity transfer already running")
)

// EntityRunner executes transfers for a set of entities.
type EntityRunner interface {
	Run(ctx context.Context, entities []domain.Entity) transfer.RunReport
}

// Scheduler owns one cron job per entity. Cron jobs and manual triggers share a
// per-entity lock; a trigger that finds the entity busy is skipped, not queued.
type Scheduler struct {
	runner   EntityRunner
	spec     string
	entities []domain.Entity
	locks    map[string]*sync.Mutex
	cron     *cron.Cron
	onReport func(transfer.RunReport)

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

type Option func(*Scheduler)

// WithReportHook is called with the report of every completed run.
func WithReportHook(fn func(transfer.RunReport)) Option {
	return func(s *Scheduler) {
		s.onReport = fn
	}
}

// New validates spec and registers one job per entity. Jobs do not fire until Start.
func New(runner EntityRunner, spec string, entities []domain.Entity, opts ...Option) (*Scheduler, error) {
	names := make([]string, len(entities))
	for i, entity := range entities {
		names[i] = entity.Name
	}
	unique := domain.NewEntities(names)
	if len(unique) == 0 {
		return nil, errors.New("scheduler needs at least one entity")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:   runner,
		spec:     spec,
		entities: unique,
		locks:    make(map[string]*sync.Mutex, len(unique)),
		cron: cron.New(
			cron.WithChain(
				cron.SkipIfStillRunning(cron.DefaultLogger),
				cron.Recover(cron.DefaultLogger),
			),
		),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, entity := range unique {
		s.locks[entity.Name] = &sync.Mutex{}
		entryID, err := s.cron.AddFunc(spec, func() {
			if _, err := s.trigger(entity); err != nil {
				log.Printf("[scheduler] skipped scheduled run for %s: %v", entity.Name, err)
			}
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to schedule %s with %q: %w", entity.Name, spec, err)
		}
		log.Printf("[scheduler] scheduled %s (entry %d, %q)", entity.Name, entryID, spec)
	}
	return s, nil
}

// Entities returns the scheduled entities in configuration order.
func (s *Scheduler) Entities() []domain.Entity {
	return append([]domain.Entity(nil), s.entities...)
}

// Start begins firing cron jobs. Runs use ctx as their parent until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("[scheduler] started with %d entities", len(s.entities))
}

// Stop halts cron and waits for in-flight runs, scheduled or manual, up to ctx.
// In-flight runs are cancelled if ctx expires first.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] stopped")
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		s.cancel()
		s.mu.Unlock()
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

// TriggerEntity runs one entity now, failing fast when it is already running.
func (s *Scheduler) TriggerEntity(name string) (transfer.RunReport, error) {
	for _, entity := range s.entities {
		if entity.Name == name {
			return s.trigger(entity)
		}
	}
	return transfer.RunReport{}, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
}

// TriggerAll runs every entity that is not already running, concurrently through the
// runner. Busy entities are returned in skipped.
func (s *Scheduler) TriggerAll() (transfer.RunReport, []string) {
	var (
		acquired []domain.Entity
		skipped  []string
	)
	for _, entity := range s.entities {
		if s.locks[entity.Name].TryLock() {
			acquired = append(acquired, entity)
		} else {
			skipped = append(skipped, entity.Name)
		}
	}
	defer func() {
		for _, entity := range acquired {
			s.locks[entity.Name].Unlock()
		}
	}()

	if len(acquired) == 0 {
		now := time.Now()
		return transfer.RunReport{StartedAt: now, FinishedAt: now}, skipped
	}
	return s.run(acquired), skipped
}

func (s *Scheduler) trigger(entity domain.Entity) (transfer.RunReport, error) {
	lock := s.locks[entity.Name]
	if !lock.TryLock() {
		return transfer.RunReport{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, entity.Name)
	}
	defer lock.Unlock()
	return s.run([]domain.Entity{entity}), nil
}

func (s *Scheduler) run(entities []domain.Entity) transfer.RunReport {
	s.inflight.Add(1)
	defer s.inflight.Done()

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	report := s.runner.Run(ctx, entities)
	if s.onReport != nil {
		s.onReport(report)
	}
	return report
}
