package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"mobooking/internal/config"
	"mobooking/internal/database/migrations"
	"mobooking/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

const usage = `usage: migrate [-dir ./migrations] <command>

commands:
  up            apply schema migrations only
  seed          apply schema and demo data migrations
  down          roll back every migration
  to <version>  migrate up or down to version
  version       print the applied version
`

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger, err := logger.New(logger.Options{
		Level: logger.ParseLevel(cfg.Log.Level),
		Dir:   cfg.Log.Dir,
		Color: cfg.Log.Color,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if envErr != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}

	dir := flag.String("dir", cfg.Database.MigrationsDir, "directory holding the migration files")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}

	cmd := flag.Arg(0)
	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{
		MigrationsDir: *dir,
		SeedData:      cmd == "seed",
	}, logger)
	defer runner.Close()

	switch cmd {
	case "up", "seed":
		err = runner.RunMigrations()
	case "down":
		err = runner.MigrateDown()
	case "to":
		if flag.NArg() < 2 {
			flag.Usage()
			os.Exit(2)
		}
		var version uint64
		version, err = strconv.ParseUint(flag.Arg(1), 10, 32)
		if err == nil {
			err = runner.MigrateTo(uint(version))
		}
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = runner.Version()
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("migrate %s failed: %v", cmd, err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ migrate %s complete", cmd))
}
