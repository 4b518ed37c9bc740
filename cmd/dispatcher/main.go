// cmd/dispatcher/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"whatsapp-dispatch/internal/common/config"
	"whatsapp-dispatch/internal/common/database"
	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/common/logger"
	"whatsapp-dispatch/internal/common/observability"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/notification"
	"whatsapp-dispatch/internal/notification/attachment"
	"whatsapp-dispatch/internal/notification/dispatch"
	"whatsapp-dispatch/internal/notification/printfmt"
	"whatsapp-dispatch/internal/notification/rulecache"
	"whatsapp-dispatch/internal/notification/scheduler"
	"whatsapp-dispatch/internal/notification/schema"
	"whatsapp-dispatch/internal/notification/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification dispatcher...")

	obs := observability.New("whatsapp-dispatch")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional log mirror) ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Wire the dispatch pipeline ---
	registry := schema.NewRegistry(pg.DB)
	ruleCache := rulecache.New(redis.Client, 10*time.Minute)

	ruleStore := store.NewRuleStore(pg.DB, registry, ruleCache, log)
	templateStore := store.NewTemplateStore(pg.DB)
	settingsStore := store.NewSettingsStore(pg.DB)
	documentStore := store.NewDocumentStore(pg.DB, registry)

	var indexer store.LogIndexer
	if esClient != nil {
		indexer = esClient
	}
	recorder := store.NewRecorder(pg.DB, registry, indexer, cfg.Database.Elasticsearch.LogIndex, log)

	printClient := printfmt.NewClient(cfg.Print.BaseURL,
		time.Duration(cfg.Print.TimeoutSeconds)*time.Second)
	shareKeys := attachment.NewShareKeys(cfg.ShareKey.Secret,
		time.Duration(cfg.ShareKey.TTLMinutes)*time.Minute)
	resolver := attachment.NewResolver(printClient, documentStore, shareKeys, cfg.App.BaseURL)

	gatewayTimeout := time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second
	evolutionClient := dispatch.NewEvolutionClient(gatewayTimeout, log)
	metaClient := dispatch.NewMetaClient(gatewayTimeout, log)

	service := notification.NewService(documentStore, templateStore, settingsStore,
		resolver, evolutionClient, metaClient, recorder, obs,
		cfg.Gateway.DefaultSender, log)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		zapLog.Fatal("invalid scheduler timezone", zap.Error(err))
	}
	sched := scheduler.New(ruleStore, ruleCache, documentStore, service, location, log)

	if cfg.Scheduler.Enabled {
		go sched.Run(ctx, cfg.Scheduler.TickHour)
	}

	// --- HTTP surface ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := sched.TriggerNow(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "completed"})
	})
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Template   string   `json:"template"`
			Recipients []string `json:"recipients"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Template == "" || len(req.Recipients) == 0 {
			http.Error(w, "template and recipients are required", http.StatusBadRequest)
			return
		}
		if err := service.SendSimpleTemplate(r.Context(), req.Template, req.Recipients); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
	})

	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var rule models.Rule
			if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if rule.ID == "" {
				http.Error(w, "rule id is required", http.StatusBadRequest)
				return
			}
			if err := ruleStore.Save(r.Context(), &rule); err != nil {
				status := http.StatusInternalServerError
				if stderrors.IsConfigurationError(err) {
					status = http.StatusUnprocessableEntity
				}
				http.Error(w, err.Error(), status)
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"id": rule.ID})
		case http.MethodDelete:
			id := r.URL.Query().Get("id")
			if id == "" {
				http.Error(w, "rule id is required", http.StatusBadRequest)
				return
			}
			if err := ruleStore.Delete(r.Context(), id); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Dispatcher stopped")
}
