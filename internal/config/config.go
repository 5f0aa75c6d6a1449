// Package config loads the YAML configuration shared by the mediakit
// commands.
package config

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mediakit/internal/codec"
	"mediakit/internal/jpeg"
	"mediakit/internal/jpegcodec"
	"mediakit/internal/tiffcodec"
)

// Config is the complete configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Selection SelectionConfig `yaml:"selection"`
	JPEG      JPEGConfig      `yaml:"jpeg"`
	TIFF      TIFFConfig      `yaml:"tiff"`
	Batch     BatchConfig     `yaml:"batch"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SelectionConfig controls codec selection.
type SelectionConfig struct {
	Criterion string `yaml:"criterion"` // fastest, best-fidelity, smallest
}

// JPEGConfig holds JPEG encoder defaults.
type JPEGConfig struct {
	Quality         int          `yaml:"quality"`
	RestartInterval int          `yaml:"restart_interval"`
	Dialect         string       `yaml:"dialect"` // jfif, avid
	Subsampling     string       `yaml:"subsampling"`
	CCIR            LevelsConfig `yaml:"ccir"`
}

// LevelsConfig are the video reference levels stored with new channels. All
// zero means full range.
type LevelsConfig struct {
	Black int `yaml:"black"`
	White int `yaml:"white"`
	Range int `yaml:"range"`
}

// TIFFConfig holds TIFF writer defaults.
type TIFFConfig struct {
	ByteOrder   string `yaml:"byte_order"`  // little, big
	Compression string `yaml:"compression"` // none, jpeg
}

// BatchConfig controls concurrent transcodes.
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Selection: SelectionConfig{Criterion: "fastest"},
		JPEG:      JPEGConfig{Quality: 75, Dialect: "jfif", Subsampling: "4:2:2"},
		TIFF:      TIFFConfig{ByteOrder: "little", Compression: "none"},
		Batch:     BatchConfig{Workers: 4},
	}
}

// Load reads and parses a YAML configuration file. Missing keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Logger builds a logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Logging.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Criterion returns the configured selection criterion.
func (c *Config) Criterion() codec.Criterion {
	cr, _ := codec.ParseCriterion(c.Selection.Criterion)
	return cr
}

// ByteOrder returns the configured TIFF byte order.
func (c *Config) ByteOrder() binary.ByteOrder {
	if strings.ToLower(c.TIFF.ByteOrder) == "big" {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// TIFFCompression returns the compression tag new TIFF channels use.
func (c *Config) TIFFCompression() string {
	if strings.ToLower(c.TIFF.Compression) == "jpeg" {
		return codec.CompressionJPEG
	}
	return codec.CompressionNone
}

// JPEGCodec returns the JPEG codec identity the configured dialect selects.
func (c *Config) JPEGCodec() codec.ID {
	if strings.ToLower(c.JPEG.Dialect) == "avid" {
		return jpegcodec.AvidID
	}
	return jpegcodec.ID
}

// Levels returns the configured video levels, or full range.
func (c *Config) Levels() jpeg.Levels {
	l := c.JPEG.CCIR
	if l == (LevelsConfig{}) {
		return jpeg.FullRange
	}
	return jpeg.Levels{Black: l.Black, White: l.White, Range: l.Range}
}

// Registry builds a codec registry with every codec mediakit ships.
func (c *Config) Registry(logger *slog.Logger) (*codec.Registry, error) {
	sub, _ := jpeg.ParseSubsampling(c.JPEG.Subsampling)
	jc := jpegcodec.Config{Quality: c.JPEG.Quality, RestartInterval: c.JPEG.RestartInterval, Subsampling: sub}
	reg := codec.NewRegistry(logger)
	for _, cd := range []codec.Codec{
		tiffcodec.New(tiffcodec.Config{ByteOrder: c.ByteOrder(), Quality: c.JPEG.Quality, RestartInterval: c.JPEG.RestartInterval}),
		jpegcodec.New(jc),
		jpegcodec.NewAvid(jc),
	} {
		if err := reg.Register(cd); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
