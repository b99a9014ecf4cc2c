package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalogsync/internal/models"
)

type Database struct {
	DB *gorm.DB
}

// New opens the run history database. "sqlite://path" selects SQLite, any
// other URL is handed to the Postgres driver.
func New(databaseURL string, debug bool) (*Database, error) {
	var db *gorm.DB
	var err error

	logMode := logger.Warn
	if debug {
		logMode = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	}

	if strings.HasPrefix(databaseURL, "sqlite://") {
		// SQLite for development
		dbPath := strings.TrimPrefix(databaseURL, "sqlite://")
		db, err = gorm.Open(sqlite.Open(dbPath), gormConfig)
	} else {
		// PostgreSQL for production
		db, err = gorm.Open(postgres.Open(databaseURL), gormConfig)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d := &Database{DB: db}
	if err := db.AutoMigrate(&models.SyncRun{}, &models.SyncItem{}); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return d, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
