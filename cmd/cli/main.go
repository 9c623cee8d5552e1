package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alextreichler/mayajewelry/internal/auth"
	"github.com/alextreichler/mayajewelry/internal/config"
	"github.com/alextreichler/mayajewelry/internal/store"
)

const usage = "expected 'add-user', 'migrate' or 'ping' subcommand"

func main() {
	addUserCmd := flag.NewFlagSet("add-user", flag.ExitOnError)
	username := addUserCmd.String("username", "", "Username for the new user")
	password := addUserCmd.String("password", "", "Password for the new user")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Storage != store.BackendSQL {
		log.Fatalf("STORAGE=%s keeps no data between runs; the cli needs STORAGE=sql", cfg.Storage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "add-user":
		addUserCmd.Parse(os.Args[2:])
		if *username == "" || *password == "" {
			fmt.Println("username and password are required")
			addUserCmd.PrintDefaults()
			os.Exit(1)
		}
		createUser(ctx, cfg, *username, *password)
	case "migrate":
		db := openDB(ctx, cfg)
		defer db.Close()
		fmt.Println("Migrations applied.")
	case "ping":
		db := openDB(ctx, cfg)
		defer db.Close()
		now, err := db.Now(ctx)
		if err != nil {
			log.Fatalf("Database reachable but query failed: %v", err)
		}
		fmt.Printf("OK (%s): database time %s\n", cfg.DBDriver, now)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

// openDB connects and brings the schema up to date, so every subcommand
// works before the server has ever run.
func openDB(ctx context.Context, cfg *config.Config) *store.SQLStore {
	db, err := store.NewSQLStore(ctx, cfg.DBDriver, cfg.DatabaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		log.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func createUser(ctx context.Context, cfg *config.Config, username, password string) {
	db := openDB(ctx, cfg)
	defer db.Close()

	verifier, err := auth.NewVerifier(cfg.PasswordScheme)
	if err != nil {
		log.Fatalf("Invalid password scheme: %v", err)
	}
	credential, err := verifier.Hash(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	if _, err := db.CreateUser(ctx, username, credential); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			log.Fatalf("User '%s' already exists", username)
		}
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("User '%s' created successfully.\n", username)
}
