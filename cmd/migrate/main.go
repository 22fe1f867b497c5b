package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/config"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/kv"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		driver = flag.String("driver", envOr("CAPWA_STORAGE_DRIVER", config.DriverPostgres), "postgres or sqlite")
		dsn    = flag.String("dsn", os.Getenv("CAPWA_PG_DSN"), "PostgreSQL DSN")
		path   = flag.String("sqlite", envOr("CAPWA_SQLITE_PATH", "data/capwa.db"), "SQLite database file")
	)
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [-driver postgres|sqlite] [up|down|status]")
	}

	var (
		store *kv.SQLStore
		err   error
	)
	switch *driver {
	case config.DriverPostgres:
		if *dsn == "" {
			log.Fatal("missing DSN: provide via -dsn or CAPWA_PG_DSN")
		}
		store, err = kv.OpenPostgres(*dsn)
	case config.DriverSQLite:
		store, err = kv.OpenSQLite(*path)
	default:
		log.Fatalf("unsupported driver %q", *driver)
	}
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mgr := migrate.NewManager(store.DB(), nil, migrate.WithDialect(store.Dialect()))

	switch flag.Arg(0) {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		for _, name := range applied {
			fmt.Println("applied", name)
		}
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			fmt.Println("nothing to roll back")
			err = nil
		} else if err == nil {
			fmt.Println("rolled back", name)
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
