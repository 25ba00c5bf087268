package main

import (
	"context"
	"flag"
	"log"
	"os"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/migrate"

	"github.com/joho/godotenv"
)

func main() {
	var (
		down  bool
		steps int
	)
	flag.BoolVar(&down, "down", false, "Roll migrations back instead of applying them")
	flag.IntVar(&steps, "steps", 1, "Number of migrations to roll back with -down (0 means all)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if down {
		if err := migrate.Rollback(ctx, pool, steps); err != nil {
			logger.Fatalf("rollback migrations: %v", err)
		}
		logger.Println("migrations rolled back")
		return
	}

	if err := migrate.Apply(ctx, pool); err != nil {
		logger.Fatalf("apply migrations: %v", err)
	}
	version, _, err := migrate.Version(ctx, pool)
	if err != nil {
		logger.Fatalf("read version: %v", err)
	}
	logger.Printf("migrations applied, schema version %d", version)
}
