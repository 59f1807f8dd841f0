package repositories

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"

	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/config"
	"github.com/rohits-web03/softvault/internal/models"
)

const sqlitePrefix = "sqlite://"

// Open connects to dsn. "sqlite://<file>" selects the embedded driver,
// anything else is handed to postgres.
func Open(dsn string, log zerolog.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger: logger.New(&log, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	if file, ok := strings.CutPrefix(dsn, sqlitePrefix); ok {
		sep := "?"
		if strings.Contains(file, "?") {
			sep = "&"
		}
		db, err := gorm.Open(sqlite.Open(file+sep+"_pragma=busy_timeout(5000)"), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database %s: %w", file, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite has a single writer, so do we
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	db, err := gorm.Open(postgres.Open(dsn), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Connect opens cfg.DBURL, runs migrations and seeds the built-in accounts.
func Connect(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := Open(cfg.DBURL, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, cfg.Admin); err != nil {
		return nil, err
	}
	log.Info().Msg("successfully connected to database")
	return db, nil
}

var defaultConfigs = []models.ConfigEntry{
	{Key: "ai_auto_review_enabled", Value: "false", Description: "Run the model review on every new request"},
	{Key: "ai_base_url", Value: "", Description: "Base URL of the OpenAI-compatible API"},
	{Key: "ai_api_key", Value: "", Description: "API key for the model endpoint"},
	{Key: "ai_model_name", Value: "gpt-3.5-turbo", Description: "Model used for auto-review"},
}

// Migrate creates the schema and the rows the application relies on: the
// system identity, the first admin and the default config keys. It is safe
// to run repeatedly.
func Migrate(db *gorm.DB, admin config.AdminConfig) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Software{},
		&models.SoftwareVersion{},
		&models.SoftwareRequest{},
		&models.DownloadLog{},
		&models.ConfigEntry{},
		&models.Category{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	system := models.User{
		ID:       models.SystemUserID,
		Username: models.SystemUsername,
		Role:     models.RoleAdmin,
		IsActive: false,
	}
	if err := db.Where(models.User{ID: models.SystemUserID}).FirstOrCreate(&system).Error; err != nil {
		return fmt.Errorf("cannot seed system user: %w", err)
	}

	if admin.Username != "" && admin.Password != "" {
		var count int64
		if err := db.Model(&models.User{}).Where("username = ?", admin.Username).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			u := models.User{Username: admin.Username, Password: string(hash), Role: models.RoleAdmin, IsActive: true}
			if admin.Email != "" {
				u.Email = &admin.Email
			}
			if err := db.Create(&u).Error; err != nil {
				return fmt.Errorf("cannot seed admin user: %w", err)
			}
		}
	}

	for _, c := range defaultConfigs {
		entry := c
		if err := db.Where(models.ConfigEntry{Key: c.Key}).Attrs(entry).FirstOrCreate(&entry).Error; err != nil {
			return fmt.Errorf("cannot seed config %s: %w", c.Key, err)
		}
	}
	return nil
}

// notFound turns gorm's missing-row error into apperr.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return err
}

// IsUniqueViolation reports whether err was caused by a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}

func page(skip, limit, def, max int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return skip, limit
}
