// Package database opens the local SQLite database that backs users and
// profile documents.
package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"billing/internal/logger"
)

// connectionPragmas are set by the driver on every connection it opens.
const connectionPragmas = "_busy_timeout=5000&_foreign_keys=on"

// Open connects to the SQLite database at path. Use
// "file:name?mode=memory&cache=shared" for a throwaway database.
func Open(path string, debug bool) (*gorm.DB, error) {
	const op = "Open"

	log := logger.WithComponent("database")

	level := gormlogger.Silent
	if debug {
		level = gormlogger.Info
	}
	db, err := gorm.Open(sqlite.Open(withPragmas(path)), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open %s: %w", op, path, err)
	}

	log.Debug().Str("path", path).Msg("Database opened")
	return db, nil
}

func withPragmas(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + connectionPragmas
	}
	return path + "?" + connectionPragmas
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
