package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/logsift/internal/api"
	apianalysis "github.com/ahrav/logsift/internal/api/analysis"
	"github.com/ahrav/logsift/internal/api/health"
	"github.com/ahrav/logsift/internal/app/analysis"
	"github.com/ahrav/logsift/internal/app/orchestration/handlers"
	"github.com/ahrav/logsift/internal/config"
	"github.com/ahrav/logsift/internal/config/fileloader"
	"github.com/ahrav/logsift/internal/domain/events"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/internal/infra/analyzer/httpclient"
	"github.com/ahrav/logsift/internal/infra/event_dispatcher"
	"github.com/ahrav/logsift/internal/infra/eventbus/kafka"
	memorybus "github.com/ahrav/logsift/internal/infra/eventbus/memory"
	"github.com/ahrav/logsift/internal/infra/storage"
	"github.com/ahrav/logsift/internal/infra/storage/reporting/memory"
	pgstore "github.com/ahrav/logsift/internal/infra/storage/reporting/postgres"
	"github.com/ahrav/logsift/pkg/common/logger"
	"github.com/ahrav/logsift/pkg/common/otel"
)

const serviceName = "logsift"

var build = "develop"

func main() {
	_, _ = maxprocs.Set()

	configPath := flag.String("config", "", "path to the logsift config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to get hostname: %v", err)
	}

	log := newLogger(cfg, hostname)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, hostname, log); err != nil {
		log.Error(ctx, "logsift stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config, hostname string) *logger.Logger {
	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string { return otel.GetTraceID(ctx) }

	metadata := map[string]string{
		"service":  serviceName,
		"hostname": hostname,
		"build":    build,
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logger.LevelInfo
	}

	log := logger.NewWithMetadata(os.Stdout, level, serviceName, traceIDFn, logEvents, metadata)
	if cfg.Telemetry.Enabled {
		log = log.WithOTelBridge(serviceName)
	}
	return log
}

// repositories groups the reporting ports the coordinators read from.
type repositories struct {
	projects reporting.ProjectRepository
	runs     reporting.RunRepository
	results  reporting.ResultRepository
	logs     reporting.LogRepository
	patterns reporting.PatternRepository
	filters  reporting.FilterRepository

	ping  health.Pinger
	close func()
}

func openRepositories(
	ctx context.Context,
	cfg config.DatabaseConfig,
	log *logger.Logger,
	tracer trace.Tracer,
) (*repositories, error) {
	if cfg.URL == "" {
		log.Warn(ctx, "no database url configured, using in-memory reporting store")
		store := memory.NewStore()
		return &repositories{
			projects: store.Projects(),
			runs:     store.Runs(),
			results:  store.Results(),
			logs:     store.Logs(),
			patterns: store.Patterns(),
			filters:  store.Filters(),
			close:    func() {},
		}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := storage.Migrate(pool, cfg.MigrationsPath); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info(ctx, "migrations applied successfully")

	return &repositories{
		projects: pgstore.NewProjectStore(pool, tracer),
		runs:     pgstore.NewRunStore(pool, tracer),
		results:  pgstore.NewResultStore(pool, tracer),
		logs:     pgstore.NewLogStore(pool, tracer),
		patterns: pgstore.NewPatternStore(pool, tracer),
		filters:  pgstore.NewFilterStore(pool, tracer),
		ping:     health.PingFunc(pool.Ping),
		close:    pool.Close,
	}, nil
}

func connectEventBus(
	ctx context.Context,
	cfg config.KafkaConfig,
	metrics kafka.EventBusMetrics,
	log *logger.Logger,
	tracer trace.Tracer,
) (events.EventBus, error) {
	if !cfg.Enabled() {
		log.Warn(ctx, "no kafka brokers configured, using in-process event bus")
		return memorybus.NewBus(log), nil
	}

	client, err := kafka.NewClient(&kafka.ClientConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		ClientID: cfg.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	bus, err := kafka.ConnectEventBus(&kafka.EventBusConfig{
		AnalysisEventsTopic: cfg.AnalysisEventsTopic,
		RunLifecycleTopic:   cfg.RunLifecycleTopic,
		GroupID:             cfg.GroupID,
		ClientID:            cfg.ClientID,
	}, client, log, metrics, tracer)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect event bus: %w", err)
	}
	return bus, nil
}

func run(ctx context.Context, cfg *config.Config, hostname string, log *logger.Logger) error {
	log.Info(ctx, "starting logsift", "build", build)

	tp, mp, telemetryTeardown, err := otel.InitTelemetry(log, otel.Config{
		Enabled:          cfg.Telemetry.Enabled,
		ServiceName:      serviceName,
		ExporterEndpoint: cfg.Telemetry.Endpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/health":    {},
			"/v1/readiness": {},
		},
		Probability: cfg.Telemetry.SamplingRatio,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"host.name":        hostname,
		},
		InsecureExporter: cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer telemetryTeardown(context.WithoutCancel(ctx))

	tracer := tp.Tracer(serviceName)

	repos, err := openRepositories(ctx, cfg.Database, log, tracer)
	if err != nil {
		return err
	}
	defer repos.close()

	busMetrics, err := kafka.NewEventBusMetrics(mp)
	if err != nil {
		return fmt.Errorf("failed to create event bus metrics: %w", err)
	}
	bus, err := connectEventBus(ctx, cfg.Kafka, busMetrics, log, tracer)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Error(ctx, "failed to close event bus", "error", err)
		}
	}()
	publisher := kafka.NewDomainEventPublisher(bus)

	registry, err := fileloader.NewFileLoader(cfg.Analyzers.InstancesFile).Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load analyzer registry: %w", err)
	}
	instances, err := httpclient.InstancesFromRegistry(registry)
	if err != nil {
		return fmt.Errorf("invalid analyzer registry: %w", err)
	}
	pool, err := httpclient.NewPool(instances, nil, log, tracer)
	if err != nil {
		return fmt.Errorf("failed to create analyzer pool: %w", err)
	}
	log.Info(ctx, "analyzer pool ready", "instances", pool.Names())

	tracker := analysis.NewStatusTracker(log)
	go tracker.StartJanitor(ctx, cfg.Analysis.JanitorInterval)

	metrics, err := analysis.NewAnalysisMetrics(mp, tracker.InProgress)
	if err != nil {
		return fmt.Errorf("failed to create analysis metrics: %w", err)
	}

	minLevel := cfg.MinLogLevel()
	batchSize := cfg.Analysis.BatchSize

	builder := analysis.NewBatchBuilder(repos.logs, minLevel, log, tracer)
	orchestrator := analysis.NewOrchestrator(
		tracker, builder, pool, repos.runs, repos.results, publisher, metrics, batchSize, log, tracer,
	)
	indexer := analysis.NewIndexCoordinator(
		tracker, builder, pool, repos.runs, repos.results, metrics, batchSize, log, tracer,
	)
	patterns := analysis.NewPatternAnalyzer(
		tracker, repos.results, repos.logs, repos.patterns, batchSize, log, tracer,
	)
	access := analysis.ProjectAccessValidator{}
	searcher := analysis.NewSearchOrchestrator(
		analysis.SearchRepositories{
			Projects: repos.projects,
			Runs:     repos.runs,
			Results:  repos.results,
			Logs:     repos.logs,
			Patterns: repos.patterns,
			Filters:  repos.filters,
		},
		pool, metrics, cfg.Analysis.AncestorMaxDepth, log, tracer,
	)
	suggester := analysis.NewSuggestionOrchestrator(
		repos.projects, repos.runs, repos.results, repos.logs, builder, access, pool, minLevel, log, tracer,
	)

	dispatcher := eventdispatcher.New(tracer, log)
	runFinished := handlers.NewRunFinishedHandler(
		repos.projects, repos.runs, repos.results, patterns, orchestrator, indexer, log, tracer,
	)
	if err := dispatcher.RegisterHandler(ctx, runFinished); err != nil {
		return fmt.Errorf("failed to register run finished handler: %w", err)
	}
	if err := bus.Subscribe(ctx, dispatcher.EventTypes(), dispatcher.Dispatch); err != nil {
		return fmt.Errorf("failed to subscribe to run lifecycle events: %w", err)
	}

	svc := apianalysis.NewService(apianalysis.Dependencies{
		Projects:   repos.projects,
		Runs:       repos.runs,
		Results:    repos.results,
		Access:     access,
		Searcher:   searcher,
		Suggester:  suggester,
		Classifier: orchestrator,
		Indexer:    indexer,
		Status:     tracker,
	}, log, tracer)

	checks := map[string]health.Pinger{}
	if repos.ping != nil {
		checks["database"] = repos.ping
	}
	checks["analyzers"] = health.PingFunc(func(context.Context) error {
		if !pool.HasAvailableInstances() {
			return fmt.Errorf("no analyze capable instance registered")
		}
		return nil
	})

	server := api.NewServer(api.Config{
		Addr:            cfg.Server.Addr,
		Build:           build,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, svc, checks, log, tracer)

	serveErr := server.Start(ctx)

	log.Info(ctx, "shutting down, waiting for in-flight analysis")
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := svc.Wait(drainCtx); err != nil {
		log.Warn(drainCtx, "manual analysis did not finish before shutdown", "error", err)
	}
	if err := indexer.Drain(drainCtx); err != nil {
		log.Warn(drainCtx, "index requests did not finish before shutdown", "error", err)
	}

	return serveErr
}
