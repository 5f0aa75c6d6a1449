package config

import (
	"fmt"
	"strings"

	"mediakit/internal/codec"
	"mediakit/internal/jpeg"
)

// Validate checks the configuration and fills derived defaults.
func Validate(cfg *Config) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not text or json", cfg.Logging.Format)
	}

	if _, err := codec.ParseCriterion(cfg.Selection.Criterion); err != nil {
		return fmt.Errorf("selection.criterion: %w", err)
	}

	if cfg.JPEG.Quality < 1 || cfg.JPEG.Quality > 100 {
		return fmt.Errorf("jpeg.quality must be 1..100, got %d", cfg.JPEG.Quality)
	}
	if cfg.JPEG.RestartInterval < 0 || cfg.JPEG.RestartInterval > 0xFFFF {
		return fmt.Errorf("jpeg.restart_interval must be 0..65535, got %d", cfg.JPEG.RestartInterval)
	}
	switch strings.ToLower(cfg.JPEG.Dialect) {
	case "", "jfif", "avid":
	default:
		return fmt.Errorf("jpeg.dialect %q is not jfif or avid", cfg.JPEG.Dialect)
	}
	if _, err := jpeg.ParseSubsampling(cfg.JPEG.Subsampling); err != nil {
		return fmt.Errorf("jpeg.subsampling: %w", err)
	}
	if err := validateLevels(cfg.JPEG.CCIR); err != nil {
		return fmt.Errorf("jpeg.ccir: %w", err)
	}

	switch strings.ToLower(cfg.TIFF.ByteOrder) {
	case "", "little", "big":
	default:
		return fmt.Errorf("tiff.byte_order %q is not little or big", cfg.TIFF.ByteOrder)
	}
	switch strings.ToLower(cfg.TIFF.Compression) {
	case "", "none", "jpeg":
	default:
		return fmt.Errorf("tiff.compression %q is not none or jpeg", cfg.TIFF.Compression)
	}

	if cfg.Batch.Workers <= 0 {
		cfg.Batch.Workers = 4
	}
	return nil
}

func validateLevels(l LevelsConfig) error {
	if l == (LevelsConfig{}) {
		return nil
	}
	if l.Black < 0 || l.White > 255 || l.Black >= l.White {
		return fmt.Errorf("black %d and white %d must satisfy 0 <= black < white <= 255", l.Black, l.White)
	}
	if l.Range <= 0 || l.Range > 255 {
		return fmt.Errorf("range must be 1..255, got %d", l.Range)
	}
	return nil
}
