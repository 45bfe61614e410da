package database

import (
	"fmt"

	"docchat_go_backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	Driver   string
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	// SQLitePath is used when Driver is "sqlite". In-memory DSNs such as
	// "file:test?mode=memory&cache=shared" are accepted.
	SQLitePath string
	LogLevel   logger.LogLevel
}

func InitDB(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			opts.Host,
			opts.User,
			opts.Password,
			opts.Name,
			opts.Port,
		)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers; one connection also keeps in-memory databases shared.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&models.User{}, &models.ChatSession{}, &models.Message{}, &models.UploadedFile{})
	if err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}
