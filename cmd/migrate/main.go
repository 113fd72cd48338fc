// Package main runs schema migrations against DATABASE_URL.
// Usage: migrate up
//        migrate down
//        migrate status
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"fireblue/internal/config"
	"fireblue/internal/infrastructure/storage/postgres"
)

const migrationsDir = "db/migrations"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "up", "down", "status", "redo":
		run(os.Args[1], os.Args[2:]...)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Fire Blue migration CLI

Usage:
  migrate <command>

Commands:
  up      Apply all pending migrations
  down    Roll back the latest migration
  redo    Roll back and reapply the latest migration
  status  Show applied and pending migrations
  help    Show this help

Environment Variables:
  DATABASE_URL   PostgreSQL connection string (required)

The goose binary must be on PATH:
  go install github.com/pressly/goose/v3/cmd/goose@latest`)
}

func run(command string, extra ...string) {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Fail fast with a readable message before goose prints its own.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database, cfg.App.Location))
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	pool.Close()

	args := append([]string{"-dir", migrationsDir, "postgres", cfg.Database.URL, command}, extra...)
	cmd := exec.Command("goose", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("Running goose %s on %s\n", command, migrationsDir)
	if err := cmd.Run(); err != nil {
		fmt.Printf("  ✗ Failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("  ✓ Done")
}
