// cmd/notification-worker/main.go
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

	"message-notifier/internal/channels"
	"message-notifier/internal/common/camunda"
	"message-notifier/internal/common/config"
	"message-notifier/internal/common/database"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/common/observability"
	"message-notifier/internal/dispatch"
	"message-notifier/internal/store"

	bn "message-notifier/internal/workers/notification/broadcast-notification"
	dn "message-notifier/internal/workers/notification/dispatch-notification"
)

const (
	dispatchWorkerName  = config.DispatchWorkerName
	broadcastWorkerName = "broadcast-notification"
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

	zapLog.Info("Starting notification worker...", zap.String("environment", cfg.App.Environment))

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel exporter unavailable, job instruments disabled", zap.Error(err))
	}
	defer obs.Shutdown(context.Background())

	ctx := context.Background()

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

	// --- Init Redis (optional) ---
	var locker dn.Locker
	if cfg.Database.Redis.Address != "" {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		locker = rdb
		zapLog.Info("Redis connected successfully, dispatch lock enabled")
	} else {
		zapLog.Info("Redis not configured, dispatch lock disabled")
	}

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Domain services ---
	notifications := store.NewPostgresStore(pg)
	registry := channels.NewRegistryFromConfig(ctx, cfg, log)

	policy, err := dispatch.PolicyFromConfig(cfg.Dispatch)
	if err != nil {
		zapLog.Fatal("invalid dispatch policy", zap.Error(err))
	}
	dispatcher, err := dispatch.NewService(policy, notifications, registry, log)
	if err != nil {
		zapLog.Fatal("failed to create dispatch service", zap.Error(err))
	}

	// --- Job workers ---
	var workers []*camunda.CamundaWorker

	if wcfg := config.GetWorkerConfig(cfg, dispatchWorkerName); wcfg.Enabled {
		handler := dn.NewHandler(
			&dn.Config{
				Timeout: config.GetDuration(wcfg.Timeout),
				LockTTL: config.GetDuration(cfg.Dispatch.LockTTL),
			},
			dispatcher, locker, obs, log,
		)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), dn.TaskType,
			wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), handler, log))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", dn.TaskType))
	}

	if wcfg := config.GetWorkerConfig(cfg, broadcastWorkerName); wcfg.Enabled {
		handler := bn.NewHandler(
			&bn.Config{
				Timeout:         config.GetDuration(wcfg.Timeout),
				DefaultChannels: policy.ChannelOrder,
			},
			notifications, registry, obs, log,
		)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), bn.TaskType,
			wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), handler, log))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", bn.TaskType))
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		readyCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pg.Ping(readyCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		if err := zeebe.HealthCheck(readyCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "workflow engine unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Server.Address, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Notification worker stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
