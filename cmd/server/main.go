package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/config"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/db"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/httpapi"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/store/rabbitmq"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rds, err := redisstore.New(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit: %v", err)
	}

	router := httpapi.NewRouter(gdb, cfg, rds, pub)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
		// Triage turns block on the LLM backend, so the write timeout
		// is generous.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("server starting on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	if err := pub.Close(); err != nil {
		log.Printf("rabbit close: %v", err)
	}
	if err := rds.Close(); err != nil {
		log.Printf("redis close: %v", err)
	}

	log.Println("server exited")
}
