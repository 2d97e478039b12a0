package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avoronin/bankaccounts/internal/api"
	"github.com/avoronin/bankaccounts/internal/config"
	"github.com/avoronin/bankaccounts/internal/infrastructure/kafka"
	"github.com/avoronin/bankaccounts/internal/infrastructure/redis"
	"github.com/avoronin/bankaccounts/internal/observability"
	core "github.com/avoronin/bankaccounts/internal/repository/postgres"
	service "github.com/avoronin/bankaccounts/internal/services"
)

func main() {
	cfg := config.Load()

	shutdown, _ := observability.Setup("bank-accounts", cfg.LogLevel)
	defer shutdown(context.Background())

	db, err := core.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	accountRepo := core.NewPostgresAccountRepository(db)
	ledgerRepo := core.NewPostgresLedgerRepository(db)
	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()
	producer := kafka.NewProducer(cfg.KafkaBrokers, service.EventsTopic)
	defer producer.Close()

	svc := service.NewAccountService(accountRepo, ledgerRepo, redisClient, producer, cfg.JWTSecret, cfg.BalanceUpdateMode)

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, service.EventsTopic, "bank-accounts-ledger", ledgerRepo)
	go consumer.Consume(consumerCtx)
	defer consumer.Close()
	defer cancelConsumer()

	router := api.SetupRouter(svc, redisClient, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
