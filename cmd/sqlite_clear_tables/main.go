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

	if err := store.ClearTables(context.Background()); err != nil {
		logging.Fatalf("clear tables: %v", err)
	}
	logging.Infof("SQLite tables cleared at %s", store.Path())
}
