// Package config holds converter settings.
package config

import (
	"fmt"

	"github.com/binzume/rdbconv/scene"
)

type Config struct {
	Export  ExportConfig  `yaml:"export" toml:"export"`
	Import  ImportConfig  `yaml:"import" toml:"import"`
	Store   StoreConfig   `yaml:"store" toml:"store"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

type ExportConfig struct {
	Format                 string  `yaml:"format" toml:"format"` // glb or gltf
	Mirror                 string  `yaml:"mirror" toml:"mirror"` // e.g. "x", "xz"
	TextureScale           float32 `yaml:"texture_scale" toml:"texture_scale"`
	TextureResolutionLimit int     `yaml:"texture_resolution_limit" toml:"texture_resolution_limit"`
	TextureReCompress      bool    `yaml:"texture_recompress" toml:"texture_recompress"`
	SkipOversizedMeshes    bool    `yaml:"skip_oversized_meshes" toml:"skip_oversized_meshes"`
	Generator              string  `yaml:"generator" toml:"generator"`
}

type ImportConfig struct {
	ImageIDBase uint32 `yaml:"image_id_base" toml:"image_id_base"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite
	Path   string `yaml:"path" toml:"path"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Format:       "glb",
			TextureScale: 1.0,
			Generator:    "rdbconv",
		},
		Import: ImportConfig{
			ImageIDBase: 0x10000,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "resources.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

func (c *Config) Validate() error {
	switch c.Export.Format {
	case "glb", "gltf":
	default:
		return fmt.Errorf("unknown export format %q", c.Export.Format)
	}
	if _, err := scene.ParseAxis(c.Export.Mirror); err != nil {
		return err
	}
	if c.Export.TextureScale <= 0 {
		return fmt.Errorf("texture_scale must be positive: %v", c.Export.TextureScale)
	}
	if c.Export.TextureResolutionLimit < 0 {
		return fmt.Errorf("texture_resolution_limit must not be negative")
	}
	switch c.Store.Driver {
	case "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// MirrorAxis returns the parsed Export.Mirror.
func (c *Config) MirrorAxis() scene.Axis {
	a, _ := scene.ParseAxis(c.Export.Mirror)
	return a
}
