package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"entrylog/internal/audit"
	"entrylog/internal/config"
	"entrylog/internal/queue"
	"entrylog/internal/store"
)

// Standalone audit consumer. Run it alongside the API when the queue
// backend is redis so audit writes survive API restarts.
func main() {
	cfg := config.Load()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db not ready: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	q := queue.NewRedisQueue(redisClient.Client, "entrylog:audit")
	repo := audit.NewRepository(db.Client)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down worker...")
		cancel()
	}()

	log.Println("Audit worker started")
	if err := audit.Consume(ctx, q, repo); err != nil && err != context.Canceled {
		log.Printf("consumer stopped: %v", err)
	}
	log.Println("Worker exited")
}
