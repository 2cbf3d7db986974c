package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"spellingbee/internal/db"
	"spellingbee/internal/identity"
	"spellingbee/internal/logger"
	"spellingbee/internal/repository"
	"spellingbee/internal/service"
)

// create_test_user registers a login in the configured credential store and
// prints a token for it. Uses DATABASE_URL, or SQLITE_PATH when unset.
func main() {
	username := flag.String("username", "tester", "display name")
	email := flag.String("email", "tester@example.com", "login email")
	password := flag.String("password", "correct-horse", "password")
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"), false)
	ctx := context.Background()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}
	service.InitJWT(secret, 0)

	var creds repository.CredentialStore
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pool := db.Connect(dsn)
		defer pool.Close()
		creds = repository.NewCredentialRepository(pool)
	} else {
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "spellingbee.db"
		}
		sqlDB, err := db.OpenSQLite(path)
		if err != nil {
			logger.Fatal("open sqlite", "error", err)
		}
		defer sqlDB.Close()
		if err := repository.MigrateSQLite(ctx, sqlDB); err != nil {
			logger.Fatal("migrate sqlite", "error", err)
		}
		creds = repository.NewSQLiteCredentials(sqlDB)
	}

	gw := identity.NewGateway(creds, identity.NewMemRevoker())

	p, err := gw.Register(ctx, *username, *email, *password)
	if errors.Is(err, identity.ErrEmailTaken) {
		logger.Info("user already exists, logging in", "email", *email)
		p, err = gw.Login(ctx, *email, *password)
	}
	if err != nil {
		logger.Fatal("create user failed", "error", err)
	}

	token, err := service.GenerateJWT(p.ID)
	if err != nil {
		logger.Fatal("failed to generate token", "error", err)
	}

	logger.Info("user ready", "id", p.ID, "display_name", p.DisplayName, "email", p.Email)
	fmt.Println(token)
}
