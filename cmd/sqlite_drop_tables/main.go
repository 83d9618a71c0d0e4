package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/hetulpatel/arbwatch/internal/logging"
	"github.com/hetulpatel/arbwatch/internal/storage/sqlite"
)

func main() {
	_ = godotenv.Load()
	path := os.Getenv("SQLITE_PATH")
	store, err := sqlite.Open(path)
	if err != nil {
		logging.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	if err := store.DropTables(context.Background()); err != nil {
		logging.Fatalf("drop tables: %v", err)
	}
	logging.Infof("SQLite tables dropped at %s", store.Path())
}
