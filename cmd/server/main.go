package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/example/guildsync/internal/channels"
	"github.com/example/guildsync/internal/config"
	"github.com/example/guildsync/internal/db"
	"github.com/example/guildsync/internal/discord"
	"github.com/example/guildsync/internal/metrics"
	"github.com/example/guildsync/internal/models"
	"github.com/example/guildsync/internal/reconcile"
	"github.com/example/guildsync/internal/scheduler"
	"github.com/example/guildsync/internal/search"
	"github.com/example/guildsync/internal/services"
	"github.com/example/guildsync/internal/sessions"
	"github.com/example/guildsync/internal/workers"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		logger.Error("postgres connect failed", "err", err)
		os.Exit(1)
	}
	if err := db.Migrate(pg); err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}
	if err := db.Seed(pg); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var indexer *search.Indexer
	if cfg.ElasticURL != "" {
		es, err := search.Connect(cfg.ElasticURL)
		if err != nil {
			logger.Error("elasticsearch connect failed", "err", err)
			os.Exit(1)
		}
		if err := search.EnsureIndex(ctx, es); err != nil {
			logger.Error("ensure search index failed", "err", err)
			os.Exit(1)
		}
		indexer = &search.Indexer{ES: es}
	}

	client := discord.NewRESTClient(cfg.DiscordToken, cfg.DiscordGuildID)

	resolver := &channels.Resolver{
		DB:                    pg,
		DefaultChannelID:      cfg.DefaultChannelID,
		DefaultVoiceChannelID: cfg.DefaultVoiceChannelID,
	}
	reconciler := &reconcile.Reconciler{
		DB:       pg,
		Discord:  client,
		Resolver: resolver,
		Settings: cfg,
		Search:   indexer,
		Log:      logger,
	}
	queue := &workers.Queue{DB: pg, Debounce: cfg.DebounceWindow, Log: logger}
	worker := &workers.SyncWorker{DB: pg, Processor: reconciler, Log: logger}
	tracker := &sessions.Tracker{DB: pg, Log: logger}
	svc := &services.Service{DB: pg, Queue: queue, Reconciler: reconciler, Tracker: tracker, Log: logger}

	go worker.Run(ctx)
	go worker.RetryDeadLetters(ctx, 10*time.Minute)

	poster := &scheduler.DeferredPoster{
		DB:       pg,
		Poster:   reconciler,
		LeadTime: cfg.DefaultLeadTime,
		Location: cfg.Location(),
		Log:      logger,
	}
	sweeps := scheduler.Start(ctx, poster, reconciler)
	defer sweeps.Stop()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		var events []models.Event
		pg.Order("start_at asc").Limit(100).Find(&events)
		writeJSON(w, events)
	})

	mux.HandleFunc("GET /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		var jobs []models.SyncJob
		pg.Order("id desc").Limit(100).Find(&jobs)
		writeJSON(w, jobs)
	})

	mux.HandleFunc("GET /api/deadletters", func(w http.ResponseWriter, r *http.Request) {
		var letters []models.DeadLetter
		pg.Order("id desc").Limit(100).Find(&letters)
		writeJSON(w, letters)
	})

	mux.HandleFunc("POST /api/events/{id}/sync", func(w http.ResponseWriter, r *http.Request) {
		eventID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid event id", http.StatusBadRequest)
			return
		}
		if err := queue.Enqueue(r.Context(), eventID, "manual"); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "enqueued"})
	})

	mux.HandleFunc("POST /api/deadletters/{id}/retry", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		var dl models.DeadLetter
		if err := pg.First(&dl, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := reconciler.Process(r.Context(), dl.EventID, dl.Reason); err != nil {
			http.Error(w, "retry failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		now := time.Now()
		pg.Model(&models.DeadLetter{}).Where("id = ?", id).
			Updates(map[string]any{"resolved": true, "retried_at": &now})
		writeJSON(w, map[string]string{"status": "retried"})
	})

	mux.HandleFunc("POST /api/events/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		eventID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid event id", http.StatusBadRequest)
			return
		}
		if err := svc.Cancel(r.Context(), eventID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "cancelled"})
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: corsMiddleware.Handler(mux)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("guildsync running", "addr", cfg.ListenAddr, "guild_id", cfg.DiscordGuildID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("admin listener failed", "err", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
