package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/linemk/shop-bot/internal/app"
	"github.com/linemk/shop-bot/internal/config"
)

const migrationTableName = "migrations"

// buildMigrateDSN добавляет к DSN таблицу версий мигратора
func buildMigrateDSN(dbCfg config.DatabaseConfig, migrationTable string) string {
	return app.DSN(dbCfg) + "&x-migrations-table=" + url.QueryEscape(migrationTable)
}

func main() {
	// флаги регистрируются до MustLoad: он сам вызывает flag.Parse
	migrationsPathFlag := flag.String("migrations-path", "", "path to migration files")
	down := flag.Bool("down", false, "roll back the last migration")

	cfg := config.MustLoad()

	migrationsPath := cfg.Migrations.Path
	if *migrationsPathFlag != "" {
		migrationsPath = *migrationsPathFlag
	}
	if cfg.Database.Password == "" {
		log.Fatal("DB_PASSWORD environment variable is required")
	}

	log.Printf("migrating %s@%s:%d/%s from %s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name, migrationsPath)

	// Создаем объект мигратора
	m, err := migrate.New(
		"file://"+migrationsPath,
		buildMigrateDSN(cfg.Database, migrationTableName),
	)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No migrations to apply")
		} else {
			log.Fatalf("migration failed: %v", err)
		}
	} else {
		log.Println("Migrations applied successfully")
	}

	db, err := sql.Open("postgres", app.DSN(cfg.Database))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name
	`)
	if err != nil {
		log.Fatalf("failed to query tables: %v", err)
	}
	defer rows.Close()

	fmt.Println("Current tables in the database:")
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			log.Fatalf("failed to scan row: %v", err)
		}
		fmt.Println(" -", tableName)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("error reading rows: %v", err)
	}
}
