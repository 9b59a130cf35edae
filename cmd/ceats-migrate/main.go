// Schema migration tool. Kept separate from the service binary so deploys
// can gate rollout on a successful migration.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/CesarCrz/cEatsv2-sub000/internal/common/config"
)

var (
	dir     = flag.String("dir", "migrations", "directory with migration files")
	cfgPath = flag.String("config", "", "path to YAML config")
	command = flag.String("command", "up", "goose command: up | down | status")
)

func main() {
	flag.Parse()

	path := *cfgPath
	if path == "" {
		var err error
		if path, err = config.FindConfig(); err != nil {
			log.Fatal("no config file found; pass --config")
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Pass,
		cfg.Database.Name, cfg.Database.SSLMode)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	switch *command {
	case "up":
		err = goose.Up(db, *dir)
	case "down":
		err = goose.Down(db, *dir)
	case "status":
		err = goose.Status(db, *dir)
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", *command)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
}
