package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/analysis"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/api"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/config"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/logging"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/metrics"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/service"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("VOC_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Logging.Format, logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	aliases := analysis.DefaultAliases()
	if cfg.Analysis.AliasFile != "" {
		var err error
		if aliases, err = analysis.LoadAliases(cfg.Analysis.AliasFile); err != nil {
			return err
		}
	}

	collector := metrics.New()
	cache := state.NewCache(collector)

	source, err := openSource(ctx, cfg, cache)
	if err != nil {
		return err
	}
	defer source.Close()

	analytics := service.NewAnalyticsService(source, analysis.NewCSVService(aliases), cache, service.Options{
		MaxConcurrent: cfg.Analysis.MaxConcurrent,
		Timeout:       cfg.Analysis.Timeout,
		HistogramBins: cfg.Analysis.HistogramBins,
		Metrics:       collector,
	})
	handler := api.NewHandler(analytics)

	// Router Setup
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(collector))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("VOC analytics server is running"))
	})
	r.Method(http.MethodGet, "/metrics", collector.Handler())
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "source", cfg.Data.Source,
			"origins", cfg.Server.AllowedOrigins, "sensors", len(aliases.Sensors))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openSource builds the configured data source. For the files source with
// watching enabled, a watcher goroutine evicts cache entries until ctx ends.
func openSource(ctx context.Context, cfg *config.Config, cache *state.Cache) (service.DataSource, error) {
	switch cfg.Data.Source {
	case config.SourcePostgres:
		pg := cfg.Postgres
		db, err := service.ConnectPostgres(ctx, service.DataSourceConfig{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			DBName:   pg.DBName,
			SSLMode:  pg.SSLMode,
			Schema:   pg.Schema,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("serving postgres tables", "host", pg.Host, "dbname", pg.DBName, "schema", pg.Schema)
		return db, nil
	default:
		fs, err := service.NewFileSource(cfg.Data.Directory)
		if err != nil {
			return nil, err
		}
		if cfg.Data.Watch {
			w, err := state.NewWatcher(fs.Dir(), cache)
			if err != nil {
				return nil, err
			}
			go func() {
				defer w.Close()
				if err := w.Run(ctx); err != nil {
					slog.Warn("file watcher stopped", "err", err)
				}
			}()
		}
		slog.Info("serving csv files", "dir", fs.Dir(), "watch", cfg.Data.Watch)
		return fs, nil
	}
}
