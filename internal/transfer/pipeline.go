// Package transfer moves one entity's drop files from the remote source to the
// partitioned destination: retrieve, sanitize, publish, audit, then delete the source.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/rpattn/dropfeed/internal/domain"
	"github.com/rpattn/dropfeed/internal/partition"
	"github.com/rpattn/dropfeed/internal/sanitize"
	"github.com/rpattn/dropfeed/internal/transport"

	"golang.org/x/sync/errgroup"
)

// Auditor appends transfer outcomes to the durable log. Implementations must not block
// the pipeline on store failures.
type Auditor interface {
	Record(ctx context.Context, subject, status string)
}

// Stage is a step of the per-file chain.
type Stage string

const (
	StageRetrieve     Stage = "retrieve"
	StageSanitize     Stage = "sanitize"
	StagePublish      Stage = "publish"
	StageSourceDelete Stage = "source_delete"
	StageDone         Stage = "done"
)

// FileResult is the outcome of one remote entry. Stage is the step that failed, or
// StageDone; a source delete failure still counts as published.
type FileResult struct {
	Remote      string `json:"remote"`
	Local       string `json:"local,omitempty"`
	Cleaned     string `json:"cleaned,omitempty"`
	Destination string `json:"destination,omitempty"`
	Published   bool   `json:"published"`
	Stage       Stage  `json:"stage"`
	Err         error  `json:"-"`
}

// EntityReport collects every outcome of one entity run.
type EntityReport struct {
	Entity  domain.Entity `json:"entity"`
	NoFiles bool          `json:"noFiles"`
	Files   []FileResult  `json:"files"`
	Err     error         `json:"-"`
}

// Failures returns the file results that carry an error.
func (r EntityReport) Failures() []FileResult {
	var failed []FileResult
	for _, file := range r.Files {
		if file.Err != nil {
			failed = append(failed, file)
		}
	}
	return failed
}

// HasFailures reports whether the entity-level run or any file branch failed.
func (r EntityReport) HasFailures() bool {
	return r.Err != nil || len(r.Failures()) > 0
}

// Config locates the entity folders on each side of the transfer.
type Config struct {
	// SourceRoot holds one folder per entity: {SourceRoot}/{entity}/.
	SourceRoot string
	// DestinationRoot is the partition root passed to the namer.
	DestinationRoot string
	// WorkDir holds the entity-scoped local working folders.
	WorkDir string
}

// Pipeline runs the transfer for one entity at a time. It holds no per-run state, so
// different entities may run through the same Pipeline concurrently.
type Pipeline struct {
	source      transport.Source
	destination transport.Destination
	auditor     Auditor
	cfg         Config

	namer       *partition.Namer
	sanitize    func(string) (string, error)
	fileWorkers int
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Pipeline)

// WithFileWorkers bounds how many files of one entity are processed at once.
func WithFileWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.fileWorkers = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithSanitizer replaces the file sanitizer.
func WithSanitizer(fn func(string) (string, error)) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.sanitize = fn
		}
	}
}

// NewPipeline wires a pipeline over the given transports and audit log.
func NewPipeline(source transport.Source, destination transport.Destination, auditor Auditor, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:      source,
		destination: destination,
		auditor:     auditor,
		cfg:         cfg,
		namer:       partition.NewNamer(cfg.DestinationRoot),
		sanitize:    sanitize.Sanitize,
		fileWorkers: 1,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the transfer for entity. The returned error is set only when discovery
// fails; file-level failures are reported in EntityReport.Files.
func (p *Pipeline) Run(ctx context.Context, entity domain.Entity) (EntityReport, error) {
	report := EntityReport{Entity: entity}
	logger := p.logger.With(slog.String("entity", entity.Name))

	remoteDir := path.Join(p.cfg.SourceRoot, entity.Name)
	entries, err := p.source.List(ctx, remoteDir)
	if err != nil {
		report.Err = &Error{Kind: KindDiscovery, Entity: entity.Name, Path: remoteDir, Err: err}
		logger.Error("discovery failed", slog.String("dir", remoteDir), slog.String("error", err.Error()))
		p.auditor.Record(ctx, entity.Name, domain.StatusDiscoveryFailed(entity.Name))
		return report, report.Err
	}

	matches := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entity.Owns(entry) {
			matches = append(matches, entry)
		} else {
			logger.Debug("skipping entry", slog.String("remote", entry))
		}
	}
	sort.Strings(matches)

	if len(matches) == 0 {
		report.NoFiles = true
		logger.Info("no files found", slog.String("dir", remoteDir))
		p.auditor.Record(ctx, entity.Name, domain.StatusNoFilesFound(entity.Name))
		return report, nil
	}

	logger.Info("files found", slog.Int("count", len(matches)))
	localDir := filepath.Join(p.cfg.WorkDir, entity.Name)
	dirErr := os.MkdirAll(localDir, 0o755)

	report.Files = make([]FileResult, len(matches))
	var g errgroup.Group
	g.SetLimit(p.fileWorkers)
	for i, remote := range matches {
		i, remote := i, remote
		g.Go(func() error {
			file := domain.SourceFile{Entity: entity, RemotePath: remote}
			if dirErr != nil {
				report.Files[i] = p.retrievalFailed(ctx, logger, file, fmt.Errorf("failed to create %s: %w", localDir, dirErr))
				return nil
			}
			file.LocalPath = filepath.Join(localDir, file.Name())
			report.Files[i] = p.transferFile(ctx, logger, file)
			return nil
		})
	}
	_ = g.Wait()

	return report, nil
}

// transferFile runs the linear chain for one file. Each step starts only after the
// previous one succeeded; the source is deleted only after an acknowledged publish.
func (p *Pipeline) transferFile(ctx context.Context, logger *slog.Logger, file domain.SourceFile) FileResult {
	entity := file.Entity.Name
	result := FileResult{Remote: file.RemotePath, Stage: StageRetrieve}
	logger = logger.With(slog.String("file", file.Name()))

	if err := ctx.Err(); err != nil {
		return p.cancelled(ctx, logger, file, result, err)
	}
	if err := p.source.Fetch(ctx, file.RemotePath, file.LocalPath); err != nil {
		return p.retrievalFailed(ctx, logger, file, err)
	}
	result.Local = file.LocalPath
	logger.Info("retrieved", slog.String("local", file.LocalPath))
	p.auditor.Record(ctx, file.Name(), domain.StatusRetrieved(p.source.Kind(), entity))

	result.Stage = StageSanitize
	if err := ctx.Err(); err != nil {
		return p.cancelled(ctx, logger, file, result, err)
	}
	cleaned, err := p.sanitize(file.LocalPath)
	if err != nil {
		result.Err = &Error{Kind: KindMalformedInput, Entity: entity, Path: file.LocalPath, Err: err}
		var malformed *sanitize.MalformedInputError
		if errors.As(err, &malformed) {
			logger.Error("file could not be parsed, left for inspection", slog.String("local", file.LocalPath), slog.String("error", err.Error()))
		} else {
			logger.Error("sanitize failed", slog.String("local", file.LocalPath), slog.String("error", err.Error()))
		}
		p.auditor.Record(ctx, file.Name(), domain.StatusSanitizeFailed(entity))
		return result
	}
	sanitized := domain.SanitizedFile{Path: cleaned, Source: file}
	result.Cleaned = sanitized.Path

	result.Stage = StagePublish
	if err := ctx.Err(); err != nil {
		return p.cancelled(ctx, logger, file, result, err)
	}
	destination := p.namer.Next(entity, p.now())
	if err := p.destination.Publish(ctx, sanitized.Path, destination, true); err != nil {
		result.Err = &Error{Kind: KindPublish, Entity: entity, Path: sanitized.Path, Err: err}
		logger.Error("publish failed, sanitized copy retained",
			slog.String("local", sanitized.Path),
			slog.String("destination", destination),
			slog.String("error", err.Error()),
		)
		p.auditor.Record(ctx, file.Name(), domain.StatusUploadFailed(entity))
		return result
	}
	result.Destination = destination
	result.Published = true
	logger.Info("published", slog.String("destination", destination))

	if err := os.Remove(sanitized.Path); err != nil {
		logger.Warn("failed to remove sanitized copy", slog.String("local", sanitized.Path), slog.String("error", err.Error()))
	}
	p.auditor.Record(ctx, file.Name(), domain.StatusUploaded(p.destination.Kind(), entity, destination))

	result.Stage = StageSourceDelete
	if err := p.source.Delete(ctx, file.RemotePath); err != nil {
		result.Err = &Error{Kind: KindSourceDelete, Entity: entity, Path: file.RemotePath, Err: err}
		logger.Warn("source delete failed, file may be published again on a later run",
			slog.String("remote", file.RemotePath),
			slog.String("error", err.Error()),
		)
		p.auditor.Record(ctx, file.Name(), domain.StatusSourceDeleteFailed(entity))
		return result
	}
	logger.Info("source deleted", slog.String("remote", file.RemotePath))

	result.Stage = StageDone
	return result
}

func (p *Pipeline) retrievalFailed(ctx context.Context, logger *slog.Logger, file domain.SourceFile, err error) FileResult {
	logger.Error("retrieve failed", slog.String("remote", file.RemotePath), slog.String("error", err.Error()))
	p.auditor.Record(ctx, file.Name(), domain.StatusRetrieveFailed(file.Entity.Name))
	return FileResult{
		Remote: file.RemotePath,
		Stage:  StageRetrieve,
		Err:    &Error{Kind: KindRetrieval, Entity: file.Entity.Name, Path: file.RemotePath, Err: err},
	}
}

// cancelled stops the chain before result.Stage runs. Nothing downstream has executed,
// so the remote entry is untouched and will be picked up by the next run.
func (p *Pipeline) cancelled(ctx context.Context, logger *slog.Logger, file domain.SourceFile, result FileResult, err error) FileResult {
	result.Err = fmt.Errorf("run cancelled before %s: %w", result.Stage, err)
	logger.Warn("run cancelled", slog.String("stage", string(result.Stage)), slog.String("remote", file.RemotePath))
	p.auditor.Record(ctx, file.Name(), domain.StatusCancelled(file.Entity.Name))
	return result
}
