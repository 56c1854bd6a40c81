package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"MeetingPrep/internal/api"
	"MeetingPrep/internal/config"
	"MeetingPrep/internal/infrastructure/composio"
	"MeetingPrep/internal/infrastructure/llm"
	"MeetingPrep/internal/infrastructure/scheduler"
	"MeetingPrep/internal/infrastructure/search"
	"MeetingPrep/internal/infrastructure/storage"
	"MeetingPrep/internal/ports"
	"MeetingPrep/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	db     *storage.DB

	Pipeline *usecase.Pipeline
	Meetings *usecase.MeetingService
	Steering *usecase.SteeringService
}

// New opens storage and builds every collaborator. Missing credentials only
// disable the matching collaborator.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	meetings := storage.NewMeetingRepository(db)
	steering := usecase.NewSteeringService(storage.NewSteeringRepository(db), logger)

	if cfg.Search.APIKey == "" {
		logger.Warn("YOUCOM_API_KEY not configured; enrichment queries will report errors")
	}
	searchClient := search.NewYouClient(cfg.Search)

	runner, err := llm.NewRunner(cfg.Synthesis)
	if errors.Is(err, llm.ErrNotConfigured) {
		logger.Warn("synthesis provider not configured", "provider", cfg.Synthesis.Provider, "error", err)
		runner = nil
	} else if err != nil {
		_ = db.Close()
		return nil, err
	}

	var (
		calendar ports.CalendarSource
		notes    ports.NotesStore
		mail     ports.MailDrafter
	)
	gateway := composio.NewClient(cfg.Composio)
	if gateway.Configured() {
		calendar = composio.NewCalendar(gateway)
		mail = composio.NewMail(gateway)
		if cfg.Composio.NotionDatabaseID != "" {
			notes = composio.NewNotes(gateway, cfg.Composio.NotionDatabaseID)
		} else {
			logger.Warn("NOTION_DATABASE_ID not configured; notes sync disabled")
		}
	} else {
		logger.Warn("COMPOSIO_API_KEY or COMPOSIO_USER_ID not configured; calendar, notes and drafts disabled")
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Ingest:             usecase.NewCalendarIngest(calendar, meetings, cfg.Calendar.MaxResults, logger),
		Enricher:           usecase.NewEnricher(searchClient, cfg.Search.ResultCount, cfg.Search.QueryTimeout, logger),
		Synthesizer:        usecase.NewSynthesizer(runner, cfg.Pipeline.SynthesisTimeout, logger),
		Publisher:          usecase.NewPublisher(notes, mail, logger),
		Steering:           steering,
		Meetings:           meetings,
		CalendarID:         cfg.Calendar.CalendarID,
		LookaheadDays:      cfg.Calendar.LookaheadDays,
		StaleAfter:         cfg.Pipeline.StaleAfter,
		PublicationTimeout: cfg.Pipeline.PublicationTimeout,
		Logger:             logger,
	})

	return &Application{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		Pipeline: pipeline,
		Meetings: usecase.NewMeetingService(meetings, steering, pipeline, logger),
		Steering: steering,
	}, nil
}

// RunOnce executes one trigger invocation: poll, then process New meetings.
func (a *Application) RunOnce(ctx context.Context) (usecase.RunResult, error) {
	return a.Pipeline.RunOnce(ctx, true)
}

// Serve runs the HTTP API, plus the interval scheduler when enabled, until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	handlers := api.NewHandlers(a.Meetings, a.Steering, a.Pipeline, a.db, a.logger)
	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.NewRouter(handlers, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sched *usecase.Scheduler
	if a.cfg.Scheduler.Enabled {
		driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Location())
		sched = usecase.NewScheduler(driver, a.Pipeline, a.logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// Close releases the database.
func (a *Application) Close() error {
	return a.db.Close()
}
