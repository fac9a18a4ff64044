package common

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// InitializeDatabase establishes a PostgreSQL connection pool with optional
// schema initialization from a SQL file.
//
// The pool is configured for high-concurrency request handling; callers may
// tighten the limits afterwards from configuration.
func InitializeDatabase(dsn string, schemaFilePath string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(500)
	db.SetMaxIdleConns(500)
	db.SetConnMaxLifetime(time.Minute * 5)

	if err := db.Ping(); err != nil {
		return nil, err
	}
	if schemaFilePath == "" {
		fmt.Println("No SQL Schema passed - skipping schema loading.")
		return db, nil
	}
	queryString, fileError := os.ReadFile(schemaFilePath)
	if fileError != nil {
		return nil, fileError
	}

	if _, dbError := db.Exec(string(queryString)); dbError != nil {
		return nil, dbError
	}
	return db, nil
}
