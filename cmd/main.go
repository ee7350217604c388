package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/restaurant-platform/internal/config"
	"github.com/Leganyst/restaurant-platform/internal/db"
	"github.com/Leganyst/restaurant-platform/internal/events"
	"github.com/Leganyst/restaurant-platform/internal/lock"
	"github.com/Leganyst/restaurant-platform/internal/logger"
	"github.com/Leganyst/restaurant-platform/internal/model"
	"github.com/Leganyst/restaurant-platform/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "restaurant-core: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Конфиг из .env и окружения.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. БД и миграции.
	gormDB, err := db.NewGormDB(cfg.DB)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("sql DB: %w", err)
	}
	defer sqlDB.Close()

	// 3. Блокировки столов: в памяти процесса или в Redis для нескольких реплик.
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Engine.LockBackend == config.LockBackendRedis {
		client, err := lock.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, cfg.Engine.LockTTL)
	}

	// 4. События в RabbitMQ, если он настроен.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQP.URL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer amqpPub.Close()
		publisher = amqpPub
	}

	engine := service.NewEngine(gormDB, service.Options{
		Locker:             locker,
		Publisher:          publisher,
		Logger:             log,
		Location:           cfg.Location(),
		DefaultDurationMin: cfg.Engine.DefaultDurationMin,
	})
	if _, err := engine.Tables.ListTables(ctx, service.TableFilter{}); err != nil {
		return fmt.Errorf("engine self-check: %w", err)
	}

	// 5. gRPC-сервер: пока только health и reflection. Перехватчик переводит
	// ошибки движка в статусы для будущих RPC.
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(service.UnaryErrorInterceptor(log)))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(lis)
	}()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	log.Info("startup", "core gRPC server listening",
		slog.String("addr", cfg.GRPCAddr),
		slog.String("db_driver", cfg.DB.Driver),
		slog.String("lock_backend", cfg.Engine.LockBackend),
		slog.String("timezone", cfg.Engine.TimeZone),
	)

	// 6. Грейсфул-шатдаун по сигналу.
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown", "shutting down gRPC server")
	healthSrv.Shutdown()

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		grpcServer.Stop()
	}
	return nil
}
