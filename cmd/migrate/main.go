// Command migrate applies migrations/schema.sql to the configured
// database. Statements are idempotent (CREATE TABLE IF NOT EXISTS) so
// re-running is safe.
package main

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"vendingstore/internal/config"
	"vendingstore/internal/database"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	content, err := os.ReadFile("migrations/schema.sql")
	if err != nil {
		log.Fatalf("read schema: %v", err)
	}

	// The MySQL driver runs one statement per Exec, so split on the
	// statement terminator.
	count := 0
	for _, stmt := range strings.Split(string(content), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("execute statement %d: %v\n%s", count+1, err, stmt)
		}
		count++
	}
	log.Printf("applied %d statement(s)", count)
}
