// Package config loads cardledger settings from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/spf13/viper"
)

// Viper keys.
const (
	KeyDatabasePath    = "database.path"
	KeyLogLevel        = "logging.level"
	KeyLogFormat       = "logging.format"
	KeyClassifyWorkers = "classify.workers"
	KeyReviewDir       = "review.dir"
	KeyOFXMinorDigits  = "ingest.ofx_minor_digits"
)

// Config holds the resolved application settings.
type Config struct {
	DatabasePath   string
	LogLevel       string
	LogFormat      string
	ReviewDir      string
	Workers        int
	OFXMinorDigits int
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabasePath, "$HOME/.local/share/cardledger/cardledger.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyClassifyWorkers, 4)
	v.SetDefault(KeyReviewDir, "$HOME/.local/share/cardledger/pending")
	v.SetDefault(KeyOFXMinorDigits, 0)
}

// Load reads the typed configuration out of v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DatabasePath:   ExpandPath(v.GetString(KeyDatabasePath)),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      v.GetString(KeyLogFormat),
		ReviewDir:      ExpandPath(v.GetString(KeyReviewDir)),
		Workers:        v.GetInt(KeyClassifyWorkers),
		OFXMinorDigits: v.GetInt(KeyOFXMinorDigits),
	}

	if cfg.DatabasePath == "" {
		return Config{}, fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyDatabasePath)
	}
	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("%w: %s must be positive, got %d", common.ErrInvalidConfig, KeyClassifyWorkers, cfg.Workers)
	}
	if cfg.OFXMinorDigits < 0 || cfg.OFXMinorDigits > 4 {
		return Config{}, fmt.Errorf("%w: %s must be between 0 and 4", common.ErrInvalidConfig, KeyOFXMinorDigits)
	}

	return cfg, nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	return os.ExpandEnv(path)
}
