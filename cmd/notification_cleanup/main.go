package main

import (
	"context"
	"flag"
	"log"
	"time"

	"assistantportal/internal/config"
	"assistantportal/internal/database"
	"assistantportal/internal/domain/notification"
)

func main() {
	retention := flag.Duration("retention", 30*24*time.Hour, "keep delivered notifications this long")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	cutoff := time.Now().Add(-*retention)
	n, err := notification.NewRepository(db).DeleteBefore(context.Background(), cutoff)
	if err != nil {
		log.Fatalf("cleanup received_notifications failed: %v", err)
	}

	log.Printf("notification cleanup completed: received_notifications=%d cutoff=%s", n, cutoff.Format(time.RFC3339))
}
