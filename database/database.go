package database

import (
	"fmt"
	"log/slog"

	"certportal/config"
	"certportal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDb opens the configured database, sets up pooling and runs migrations.
// The returned handle is owned by the caller and closed with Close.
func ConnectDb(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{}
	if !cfg.IsProduction() {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DBDriver, err)
	}

	// Set up connection pooling
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(0)

	if err := RunMigrations(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

// Dialector picks the gorm driver for DB_DRIVER.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "postgres":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = fmt.Sprintf(
				"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
				cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
			)
		}
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
			)
		}
		return mysql.Open(dsn), nil
	case "sqlite":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = cfg.DBName
		}
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
}

// RunMigrations performs database migrations
func RunMigrations(db *gorm.DB, log *slog.Logger) error {
	log.Info("running migrations")

	if err := db.AutoMigrate(
		&models.User{},
		&models.CertificateRequest{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("migrations completed")
	return nil
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
