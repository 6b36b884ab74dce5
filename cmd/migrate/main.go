package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"anime-watchlist/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	flag.Usage = func() {
		log.Printf("usage: migrate [-database-url URL] <up|down|status|version|redo|reset> [args]")
	}
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if *databaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	command := "up"
	var args []string
	if flag.NArg() > 0 {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	if err := db.RunMigrations(context.Background(), *databaseURL, command, args...); err != nil {
		logger.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}
	logger.Info("migration finished", zap.String("command", command))
}
