// Command migrate applies and inspects the database schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"longform/internal/config"
	"longform/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <auto|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "auto":
		if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("automigrations applied")
		if missing := database.GetSchemaStatus(ctx, db).Missing(); len(missing) > 0 {
			return fmt.Errorf("schema still incomplete after migrate: %v", missing)
		}
	case "status":
		status := database.GetSchemaStatus(ctx, db)
		log.Printf("env=%s driver=%s ready=%t", cfg.Env, cfg.DBDriver, status.Ready())
		for _, o := range status.Objects {
			log.Printf("%s %s present=%t", o.Kind, o.Name, o.Present)
		}
		if !status.Ready() {
			return fmt.Errorf("schema incomplete, run: go run ./cmd/migrate auto")
		}
	default:
		return usage()
	}

	return nil
}
