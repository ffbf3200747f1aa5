// FinValue Worker 入口
// 启动 Temporal Worker 处理分析工作流和活动
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/finvalue-ai/finvalue/internal/activity"
	"github.com/finvalue-ai/finvalue/internal/datasource"
	"github.com/finvalue-ai/finvalue/internal/workflow"
	"github.com/finvalue-ai/finvalue/pkg/cache"
	"github.com/finvalue-ai/finvalue/pkg/config"
	"github.com/finvalue-ai/finvalue/pkg/logging"
	"github.com/finvalue-ai/finvalue/pkg/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	// .env 可选
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Observability.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Config loaded",
		zap.Any("data_source", logging.SanitizeForLog(map[string]interface{}{
			"provider": cfg.DataSource.Provider,
			"base_url": cfg.DataSource.Tushare.BaseURL,
			"token":    cfg.DataSource.Tushare.Token,
		})),
		zap.Bool("cache_enabled", cfg.Storage.Redis.Enabled),
	)

	// 初始化 Tracing
	if cfg.Observability.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Observability.Tracing, cfg.System)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	// 创建 Temporal 客户端
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalLogger(logger),
		ConnectionOptions: client.ConnectionOptions{
			DialOptions: []grpc.DialOption{
				grpc.WithChainUnaryInterceptor(logging.UnaryClientInterceptor(logger)),
			},
		},
	})
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	// 创建 Activity 依赖
	policy := activity.ClassificationPolicy(cfg.Analysis.Classification)
	source, err := datasource.New(cfg.DataSource, policy, logger)
	if err != nil {
		logger.Fatal("Failed to create data source", zap.Error(err))
	}

	statementCache, err := cache.New(cfg.Storage.Redis)
	if err != nil {
		logger.Warn("Statement cache unavailable, continuing without cache", zap.Error(err))
		statementCache = cache.NopCache{}
	}

	activities := activity.NewActivities(cfg, source, statementCache, logger)
	defer activities.Close()

	// 启动运维 HTTP 服务
	if cfg.Observability.Metrics.Enabled {
		srv := newOpsServer(cfg.Observability.Metrics, c, statementCache, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Ops server failed", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.System.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	// 创建 Worker
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.Temporal.Worker.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.Temporal.Worker.MaxConcurrentWorkflows,
		WorkerStopTimeout:                      cfg.System.ShutdownTimeout,
	})

	w.RegisterWorkflow(workflow.AnalysisWorkflow)
	w.RegisterWorkflow(workflow.SensitivityWorkflow)
	w.RegisterActivity(activities)

	logger.Info("Starting FinValue Worker",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("namespace", cfg.Temporal.Namespace),
		zap.String("data_source", source.Name()),
	)

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("Worker failed", zap.Error(err))
	}

	logger.Info("Worker stopped")
}

// newOpsServer /metrics、/healthz、/readyz
func newOpsServer(cfg config.MetricsConfig, c client.Client, statementCache cache.Cache, logger *zap.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle(cfg.Path, promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, err := c.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
			http.Error(w, "temporal unavailable", http.StatusServiceUnavailable)
			return
		}
		if rc, ok := statementCache.(*cache.RedisCache); ok {
			if err := rc.Ping(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting ops server", zap.String("addr", addr), zap.String("metrics_path", cfg.Path))
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}
