package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fxquant/fx-engine/internal/config"
	"github.com/fxquant/fx-engine/internal/engine"
	"github.com/fxquant/fx-engine/internal/execution"
	"github.com/fxquant/fx-engine/internal/feed"
	"github.com/fxquant/fx-engine/internal/metrics"
	"github.com/fxquant/fx-engine/internal/portfolio"
	"github.com/fxquant/fx-engine/internal/result"
	"github.com/fxquant/fx-engine/internal/risk"
	"github.com/fxquant/fx-engine/internal/store"
	"github.com/fxquant/fx-engine/internal/strategy"
	"github.com/fxquant/fx-engine/internal/ticker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	slog.Info("engine run starting", "run_id", runID,
		"pairs", cfg.Pairs, "home", cfg.HomeCurrency, "backtest", cfg.Backtest)

	// --- Run store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Result sinks ---
	fileSink, err := result.NewFileResultHandler(cfg.Pairs, cfg.OutputDir)
	if err != nil {
		slog.Error("unable to open result files", "err", err, "dir", cfg.OutputDir)
		os.Exit(1)
	}
	sinks := []result.Sink{fileSink, store.NewResultSink(st, runID)}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		sinks = append(sinks, result.NewRedisPublisher(rdb))
		slog.Info("Redis result publishing enabled")
	}

	var wsHub *result.WSHub
	if !cfg.Backtest {
		wsHub = result.NewWSHub()
		go wsHub.Run()
		sinks = append(sinks, wsHub)
	}

	// --- Pipeline ---
	queues := engine.NewQueues(cfg.QueueSize)
	tk := ticker.New(cfg.Pairs)

	var limiter *risk.Limiter
	if cfg.MaxUnitsPerPair.Sign() > 0 || cfg.MaxCorrelatedUnits.Sign() > 0 {
		limiter = risk.NewLimiter(cfg.MaxUnitsPerPair, cfg.MaxCorrelatedUnits)
	}

	pf, err := portfolio.New(tk, queues.Event, queues.Result,
		cfg.HomeCurrency, cfg.Pairs, cfg.Equity, limiter)
	if err != nil {
		slog.Error("portfolio setup failed", "err", err)
		os.Exit(1)
	}

	var strat strategy.Strategy
	switch cfg.Strategy {
	case "macross":
		strat = strategy.NewMovingAverageCrossStrategy(
			cfg.Pairs, queues.Event, cfg.SignalUnits, cfg.ShortWindow, cfg.LongWindow)
	default:
		strat = strategy.NewDummyStrategy(
			cfg.Pairs[0], queues.Event, cfg.SignalUnits, cfg.SignalInterval)
	}

	var feeder feed.DataFeeder
	switch cfg.FeedKind {
	case "websocket":
		feeder = feed.NewWebSocketDataFeeder(cfg.Pairs, queues.Feed, cfg.FeedWSURL)
	default:
		feeder, err = feed.NewHistoricCSVDataFeeder(cfg.Pairs, queues.Feed, cfg.CSVDir)
		if err != nil {
			slog.Error("unable to open tick data", "err", err, "dir", cfg.CSVDir)
			os.Exit(1)
		}
	}

	exec := execution.NewSimulatedExecution(queues.Exec, queues.Event, cfg.ExecLatency)
	results := result.NewWorker(queues.Result, sinks...)

	eng := engine.New(engine.Config{
		Backtest:  cfg.Backtest,
		Heartbeat: cfg.Heartbeat,
		MaxIters:  cfg.MaxIters,
		QueueSize: cfg.QueueSize,
	}, queues, tk, pf, strat, feeder, exec, results)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- HTTP server (live mode) ---
	if !cfg.Backtest {
		srv := newServer(cfg.HTTPAddr, tk, pf, st, runID, wsHub)
		go func() {
			slog.Info("http server listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server error", "err", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutCtx); err != nil {
				slog.Error("http shutdown error", "err", err)
			}
		}()
	}

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine stopped with error", "err", err, "run_id", runID)
		os.Exit(1)
	}
	slog.Info("engine run complete", "run_id", runID)
}

// newServer builds the live-mode HTTP surface: health, metrics, the
// result stream and read-only account views.
func newServer(addr string, tk *ticker.Ticker, pf *portfolio.Portfolio, st store.Store, runID string, wsHub *result.WSHub) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"fx-engine"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if wsHub != nil {
			r.Get("/ws", wsHub.HandleWS)
		}

		r.Get("/portfolio", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, pf.Snapshot())
		})

		r.Get("/prices", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, tk.Snapshot())
		})

		r.Get("/equity", func(w http.ResponseWriter, req *http.Request) {
			curve, err := st.EquityCurve(req.Context(), runID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, curve)
		})

		r.Get("/executions", func(w http.ResponseWriter, req *http.Request) {
			execs, err := st.Executions(req.Context(), runID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, execs)
		})
	})

	return &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encoding failed", "err", err)
	}
}
