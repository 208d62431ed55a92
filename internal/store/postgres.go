package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresConfig configures the connection to the backing database.
// PoolSize defaults to 16 per spec.md §5 ("Database connection pool:
// bounded (default 16), shared by all request tasks").
type PostgresConfig struct {
	Host     string
	Port     int
	DBName   string
	User     string
	Password string
	PoolSize int
}

// NewPostgresGateway opens a GORM connection to Postgres and runs the
// schema migration, following the same Init-then-AutoMigrate sequence as
// claworc's database.Init.
func NewPostgresGateway(cfg PostgresConfig) (*GormGateway, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 16
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.DBName, cfg.User, cfg.Password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetMaxIdleConns(poolSize)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return NewGormGateway(db)
}
