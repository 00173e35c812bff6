package storage

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vision-gateway/internal/appdirs"
	"vision-gateway/internal/types"
	"vision-gateway/log"
)

var DB *gorm.DB
var appDirsResolver = appdirs.Resolve

// InitDB opens the history database under the resolved cache directory.
func InitDB() error {
	dbPath, err := resolveDBPath()
	if err != nil {
		return err
	}
	return InitDBAt(dbPath)
}

// InitDBAt opens (creating if needed) the history database at dbPath and
// migrates the schema.
func InitDBAt(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.GetLogger().Error("failed to create database directory", zap.String("dir", dir), zap.Error(err))
		return err
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.GetLogger().Error("failed to connect database", zap.Error(err))
		return err
	}

	if err := db.AutoMigrate(&types.JobHistory{}); err != nil {
		log.GetLogger().Error("failed to migrate database", zap.Error(err))
		return err
	}

	DB = db
	log.GetLogger().Info("Database initialized successfully", zap.String("path", dbPath))
	return nil
}

func resolveDBPath() (string, error) {
	dirs, err := appDirsResolver()
	if err != nil {
		return "", err
	}
	return appdirs.DBPathFor(dirs), nil
}
