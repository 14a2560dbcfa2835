// Package main applies the round archive schema migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/cory-johannsen/impostor/internal/config"
	"github.com/cory-johannsen/impostor/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	direction := flag.String("direction", "up", "migration direction: up, down, or check")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	migrationsDir := flag.String("migrations", "migrations", "path to the round archive migrations")
	flag.Parse()

	v := config.NewViper()
	v.SetConfigFile(*configPath)
	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("reading config: %v", err)
	}

	var dbCfg config.DatabaseConfig
	if err := v.UnmarshalKey("database", &dbCfg); err != nil {
		log.Fatalf("parsing database config: %v", err)
	}
	if !dbCfg.Enabled {
		log.Printf("database.enabled is false in %s; migrating anyway", *configPath)
	}

	m, err := migrate.New("file://"+*migrationsDir, dbCfg.DSN())
	if err != nil {
		log.Fatalf("creating migrator: %v", err)
	}
	defer m.Close()

	switch *direction {
	case "check":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			log.Fatalf("reading version: %v", verr)
		}
		if err := postgres.CheckSchema(version, dirty); err != nil {
			log.Fatalf("round archive not ready: %v", err)
		}
		fmt.Fprintf(os.Stdout, "round archive schema ok (version=%d) [%s]\n", version, time.Since(start))
		return
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	default:
		log.Fatalf("invalid direction %q: must be 'up', 'down', or 'check'", *direction)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration failed: %v", err)
	}

	version, dirty, _ := m.Version()
	elapsed := time.Since(start)
	if *direction == "up" {
		if serr := postgres.CheckSchema(version, dirty); serr != nil {
			log.Printf("warning: %v; the game server will not start with the archive enabled", serr)
		}
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintf(os.Stdout, "no changes (version=%d dirty=%v) [%s]\n", version, dirty, elapsed)
	} else {
		fmt.Fprintf(os.Stdout, "migrated %s to version=%d dirty=%v [%s]\n", *direction, version, dirty, elapsed)
	}
}
