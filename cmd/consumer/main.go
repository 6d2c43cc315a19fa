package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arcadehub/users-service/config"
	"github.com/arcadehub/users-service/internal/consumer"
	pginfra "github.com/arcadehub/users-service/internal/infrastructure/postgres"
	"github.com/arcadehub/users-service/pkg/helpers"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-consumer", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := pginfra.NewAccountRepository(pool)
	worker := consumer.NewWorker(cfg.RabbitMQURL, cfg.RabbitMQUsersQueue, repo, logger)

	if len(cfg.ESAddrs()) > 0 {
		es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			log.Fatalf("failed to init elasticsearch client: %v", err)
		}
		worker.Search = &consumer.ESIndexer{Client: es, IndexName: cfg.ESAccountsIndex}
	}

	if cfg.MailSendEnabled {
		mailQueue, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			log.Fatalf("failed to open email queue: %v", err)
		}
		defer mailQueue.Close()
		worker.Mail = mailQueue
	}

	if err := worker.Start(ctx); err != nil {
		log.Fatalf("worker start: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")
	cancel()

	ctxStop, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	if err := worker.Stop(ctxStop); err != nil {
		logger.WithError(err).Warn("worker stop")
	}
}
