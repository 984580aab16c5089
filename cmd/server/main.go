package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rpattn/dropfeed/internal/audit"
	"github.com/rpattn/dropfeed/internal/config"
	"github.com/rpattn/dropfeed/internal/db"
	"github.com/rpattn/dropfeed/internal/domain"
	"github.com/rpattn/dropfeed/internal/middleware"
	"github.com/rpattn/dropfeed/internal/repository"
	"github.com/rpattn/dropfeed/internal/schedule"
	"github.com/rpattn/dropfeed/internal/transfer"
	"github.com/rpattn/dropfeed/internal/transport"
	"github.com/rpattn/dropfeed/internal/transport/ftp"
	"github.com/rpattn/dropfeed/internal/transport/localfs"
	"github.com/rpattn/dropfeed/internal/transport/objectstore"
	"github.com/rpattn/dropfeed/internal/transport/webhdfs"

	"github.com/rs/cors"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	once := flag.Bool("once", false, "run every entity once and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Audit store
	auditRepo, closeAudit, err := openAuditRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open audit store: %v", err)
	}
	closeAudit = sync.OnceFunc(closeAudit)
	defer closeAudit()

	auditLogger := audit.NewLogger(auditRepo,
		audit.WithLogger(logger),
		audit.WithErrorHook(func(record domain.AuditRecord, err error) {
			log.Printf("[audit] %v", transfer.NewAuditError(record.Subject, err))
		}),
	)

	// Transports
	source, sourceRoot := newSource(cfg.Source)
	destination, err := newDestination(cfg.Destination)
	if err != nil {
		log.Fatalf("Failed to create destination: %v", err)
	}

	pipeline := transfer.NewPipeline(source, destination, auditLogger, transfer.Config{
		SourceRoot:      sourceRoot,
		DestinationRoot: cfg.Destination.Root,
		WorkDir:         cfg.WorkDir,
	},
		transfer.WithFileWorkers(cfg.Transfer.FileWorkers),
		transfer.WithLogger(logger),
	)
	runner := transfer.NewRunner(pipeline,
		transfer.WithEntityWorkers(cfg.Transfer.EntityWorkers),
		transfer.WithRunnerLogger(logger),
	)
	entities := domain.NewEntities(cfg.Entities)

	if *once {
		if code := runOnce(ctx, runner, entities, closeAudit); code != 0 {
			os.Exit(code)
		}
		return
	}

	scheduler, err := schedule.New(runner, cfg.Schedule, entities, schedule.WithReportHook(logReport))
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	// In-flight runs outlive the signal until Stop gives up on them.
	scheduler.Start(context.WithoutCancel(ctx))

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	runHandler := schedule.NewHTTPHandler(scheduler)
	mux := http.NewServeMux()
	mux.Handle("/audit", audit.NewHTTPHandler(auditRepo))
	mux.Handle("/run", runHandler)
	mux.Handle("/run/", runHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Manual runs hold the request open for the whole transfer.
	server := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     corsHandler.Handler(middleware.Logging(logger)(mux)),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Starting dropfeed on %s", cfg.HTTPAddr)
		log.Printf("Scheduled %d entities with %q", len(entities), cfg.Schedule)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	stop()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Printf("Scheduler forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runOnce runs every entity a single time and closes the audit store before the exit
// code is returned, since os.Exit skips deferred calls.
func runOnce(ctx context.Context, runner schedule.EntityRunner, entities []domain.Entity, closeAudit func()) int {
	report := runner.Run(ctx, entities)
	logReport(report)
	closeAudit()
	if report.HasFailures() {
		return 1
	}
	return 0
}

func openAuditRepository(ctx context.Context, cfg config.Config) (repository.AuditRepository, func(), error) {
	if cfg.Audit.Backend == config.AuditHBase {
		log.Printf("[audit] writing to hbase table %s via %s", cfg.Audit.Table, cfg.Audit.ZKQuorum)
		return repository.NewHBaseAuditRepository(cfg.Audit.ZKQuorum, cfg.Audit.Table), func() {}, nil
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(cfg.Database); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return repository.NewAuditRepository(conn.Pool), conn.Close, nil
}

// newSource returns the configured source and the root its entity folders live under.
func newSource(cfg config.SourceConfig) (transport.Source, string) {
	if cfg.Type == config.SourceLocal {
		return localfs.NewOSSource(cfg.Root), ""
	}
	return ftp.NewSource(ftp.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	}), cfg.Root
}

func newDestination(cfg config.DestinationConfig) (transport.Destination, error) {
	if cfg.Type == config.DestinationS3 {
		return objectstore.NewDestination(objectstore.Config{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
		})
	}
	return webhdfs.NewDestination(webhdfs.Config{
		BaseURL: cfg.URL,
		User:    cfg.User,
		Timeout: cfg.Timeout,
	}), nil
}

func logReport(report transfer.RunReport) {
	for _, entity := range report.Entities {
		switch {
		case entity.Err != nil:
			log.Printf("[run] %s: %v", entity.Entity.Name, entity.Err)
		case entity.NoFiles:
			log.Printf("[run] %s: no files", entity.Entity.Name)
		default:
			failed := entity.Failures()
			log.Printf("[run] %s: %d files, %d failed", entity.Entity.Name, len(entity.Files), len(failed))
			for _, file := range failed {
				log.Printf("[run] %s: %v", entity.Entity.Name, file.Err)
			}
		}
	}
}
