package db

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"exam-server-go/config"
	"exam-server-go/models"
)

// Open connects to PostgreSQL and checks the connection.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle unavailable: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("Connected to PostgreSQL")
	return gdb, nil
}

// AllModels lists every persisted type in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.Branch{},
		&models.User{},
		&models.Student{},
		&models.Parent{},
		&models.StudentParent{},
		&models.Clazz{},
		&models.StudentClass{},
		&models.Exam{},
		&models.ExamDistribution{},
		&models.DistributionStudent{},
		&models.ExamAttempt{},
		&models.AIReport{},
	}
}

// Migrate creates or updates the schema.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}
