package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"spellingbee/internal/db"
	"spellingbee/internal/logger"
	"spellingbee/internal/repository"
)

func main() {
	apply := flag.Bool("apply", false, "apply migration")
	sqlitePath := flag.String("sqlite", "", "create the sqlite schema in this file instead of migrating postgres")
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"), false)
	ctx := context.Background()

	if *sqlitePath != "" {
		sqlDB, err := db.OpenSQLite(*sqlitePath)
		if err != nil {
			logger.Fatal("open sqlite", "error", err)
		}
		defer sqlDB.Close()

		if err := repository.MigrateSQLite(ctx, sqlDB); err != nil {
			logger.Fatal("migrate sqlite", "error", err)
		}
		fmt.Printf("sqlite schema ready in %s\n", *sqlitePath)
		return
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	migDir := filepath.Join("internal", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		logger.Fatal("read migrations dir", "error", err)
	}
	for _, f := range files {
		name := f.Name()
		if !*apply {
			fmt.Println(name)
			continue
		}
		b, err := os.ReadFile(filepath.Join(migDir, name))
		if err != nil {
			logger.Fatal("read migration", "file", name, "error", err)
		}
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			logger.Fatal("apply migration", "file", name, "error", err)
		}
		fmt.Printf("applied %s\n", name)
	}
}
