package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"PQ-Bitcoin/internal/api"
	"PQ-Bitcoin/internal/config"
	xerrors "PQ-Bitcoin/internal/errors"
	"PQ-Bitcoin/internal/host"
	"PQ-Bitcoin/internal/observability/alerting"
	"PQ-Bitcoin/internal/observability/metrics"
	"PQ-Bitcoin/internal/task"
	"PQ-Bitcoin/internal/witness"
	"PQ-Bitcoin/internal/zkvm/guest"
	"PQ-Bitcoin/internal/zkvm/prover"
	"PQ-Bitcoin/pkg/logger"
)

// main 是证明守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("pqclaimd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
		Service:     "pqclaimd",
		Audit: logger.AuditConfig{
			Enabled:    cfg.Log.Audit.Enabled,
			Path:       cfg.Log.Audit.Path,
			MaxSizeMB:  cfg.Log.Audit.MaxSizeMB,
			MaxBackups: cfg.Log.Audit.MaxBackups,
			MaxAgeDays: cfg.Log.Audit.MaxAgeDays,
			Compress:   cfg.Log.Audit.Compress,
		},
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	taskStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := taskStore.Close(); err != nil {
			logger.L().Warn("关闭任务存储失败", slog.Any("error", err))
		}
	}()

	taskQueue, err := buildQueue(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := taskQueue.Close(); err != nil {
			logger.L().Warn("关闭任务队列失败", slog.Any("error", err))
		}
	}()

	client, err := buildProver(cfg)
	if err != nil {
		return err
	}
	logger.L().Info("证明客户端就绪", slog.String("attester", client.Attester().Hex()))

	collector := metrics.New()
	registry := guest.Registry()
	runner := host.NewRunner(registry, client, host.WithClaimObserver(collector))

	taskService := task.NewService(taskStore, taskQueue, cfg.TaskQueue.MaxRetries, task.WithCatalog(registry))
	processor := task.NewProcessor(runner, taskStore, taskQueue, taskQueue,
		task.WithWorkerCount(cfg.TaskQueue.Workers),
		task.WithProcessorLogger(logger.Named("processor")),
		task.WithAlertDispatcher(buildAlerter(cfg)),
		task.WithObserver(collector),
	)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()

	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("任务处理器异常退出", slog.Any("error", err))
		}
	}()

	serverOpts := []api.Option{
		api.WithPrograms(runner),
		api.WithAuthToken(cfg.AuthToken()),
		api.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
	}
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Address != "" {
			serverOpts = append(serverOpts, api.WithMetrics(collector, ""))
			go func() {
				if err := collector.StartServer(ctx, cfg.Metrics.Address, cfg.Metrics.Path); err != nil && !errors.Is(err, context.Canceled) {
					logger.L().Error("指标服务异常退出", slog.Any("error", err))
				}
			}()
		} else {
			serverOpts = append(serverOpts, api.WithMetrics(collector, cfg.Metrics.Path))
		}
	}

	server := api.NewServer(cfg.Server.Address, taskService, serverOpts...)
	logger.L().Info("API 服务启动",
		slog.String("address", cfg.Server.Address),
		slog.String("task_store", cfg.Storage.TaskStore.Driver),
		slog.String("task_queue", cfg.TaskQueue.Driver),
		slog.Any("programs", runner.Programs()),
	)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.L().Info("pqclaimd 已退出")
	return nil
}

func buildStore(ctx context.Context, cfg *config.Config) (task.Store, error) {
	sc := cfg.Storage.TaskStore
	switch sc.Driver {
	case "memory":
		return task.NewMemoryStore(), nil
	case "mysql":
		return task.NewMySQLStore(ctx, task.MySQLConfig{
			DSN:             cfg.TaskStoreDSN(),
			MaxOpenConns:    sc.MaxOpenConns,
			MaxIdleConns:    sc.MaxIdleConns,
			ConnMaxLifetime: sc.ConnMaxLifetime,
			ConnMaxIdleTime: sc.ConnMaxIdleTime,
		})
	}
	return nil, fmt.Errorf("未知的任务存储驱动: %s", cfg.Storage.TaskStore.Driver)
}

func buildQueue(cfg *config.Config) (task.Queue, error) {
	qc := cfg.TaskQueue
	switch qc.Driver {
	case "memory":
		return task.NewMemoryQueue(qc.Buffer), nil
	case "redis":
		return task.NewRedisQueue(task.RedisQueueConfig{
			Address:   qc.Redis.Address,
			Password:  cfg.RedisPassword(),
			DB:        qc.Redis.DB,
			Queue:     qc.Redis.Queue,
			BlockWait: qc.Redis.BlockWait,
		})
	case "rabbitmq":
		return task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:        cfg.RabbitMQURL(),
			Queue:      qc.RabbitMQ.Queue,
			Prefetch:   qc.RabbitMQ.Prefetch,
			Durable:    qc.RabbitMQ.Durable,
			AutoDelete: qc.RabbitMQ.AutoDelete,
		})
	}
	return nil, fmt.Errorf("未知的队列驱动: %s", qc.Driver)
}

func buildProver(cfg *config.Config) (*prover.Client, error) {
	raw := cfg.AttestationKey()
	if raw == "" {
		logger.L().Warn("未配置证明签名密钥，使用临时密钥；重启后验证密钥将变化")
		return prover.NewClient()
	}
	key, err := witness.ParseSecretKey(raw)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "解析证明签名密钥失败")
	}
	return prover.NewClient(prover.WithAttestationKey(key))
}

func buildAlerter(cfg *config.Config) alerting.Dispatcher {
	var notifiers []alerting.Notifier
	if cfg.Alerting.Audit {
		notifiers = append(notifiers, &alerting.AuditNotifier{Logger: logger.Audit()})
	}
	if hook := cfg.Alerting.Webhook; hook.URL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{
			URL:     hook.URL,
			Headers: hook.Headers,
			Client:  &http.Client{Timeout: hook.Timeout},
		})
	}
	return alerting.NewFanout(notifiers, alerting.WithMinimumSeverity(xerrors.Severity(cfg.Alerting.MinimumSeverity)))
}
