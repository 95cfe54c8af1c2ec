package db

import (
	"log/slog"
	"time"

	"agriloan/internal/domain/actor"
	"agriloan/internal/domain/application"
	"agriloan/internal/domain/prediction"
	"agriloan/internal/domain/reference"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func OpenGorm(dsn string) (*gorm.DB, error) {
	return OpenGormWithDialector(mysql.Open(dsn))
}

// OpenGormWithDialector lets tests hand in a dialector backed by sqlmock.
func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "gorm open")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "gorm sql handle")
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, errors.Wrap(err, "gorm ping")
	}
	slog.Info("gorm: connected")
	return db, nil
}

// Models lists every table owned by this service, parents first.
func Models() []any {
	return []any{
		&reference.District{},
		&reference.CropType{},
		&actor.User{},
		&actor.SupervisorAssignment{},
		&application.LoanApplication{},
		&application.ApplicationReview{},
		&application.YieldHistory{},
		&prediction.Record{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return errors.Wrap(db.AutoMigrate(Models()...), "auto-migrate")
}
