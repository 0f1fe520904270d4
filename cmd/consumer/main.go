// Command consumer reads audit events from Redis streams and hands them to
// the audit store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do"
	"github.com/serroba/doclinks/internal/container"
	"github.com/serroba/doclinks/internal/messaging"
	"go.uber.org/zap"
)

func main() {
	injector := do.New()
	do.ProvideValue(injector, &container.Options{
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	})
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.ConsumerGroupPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)
	group := do.MustInvoke[*messaging.ConsumerGroup](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := group.Start(ctx); err != nil {
		logger.Fatal("failed to start audit consumers", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("shutting down")

	// Consumers stop before the Redis client they read from.
	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return defaultValue
}
