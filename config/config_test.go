package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/binzume/rdbconv/scene"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Export.Format != "glb" {
		t.Errorf("expected format glb, got %s", cfg.Export.Format)
	}
	if cfg.Export.TextureScale != 1 {
		t.Errorf("expected texture scale 1, got %v", cfg.Export.TextureScale)
	}
	if cfg.MirrorAxis() != 0 {
		t.Errorf("expected no mirror, got %v", cfg.MirrorAxis())
	}
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	for _, c := range []struct {
		name string
		body string
	}{
		{"config.yaml", "export:\n  format: gltf\n  mirror: xz\nlogging:\n  level: debug\n"},
		{"config.toml", "[export]\nformat = 'gltf'\nmirror = 'xz'\n\n[logging]\nlevel = 'debug'\n"},
	} {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(dir, c.name)
			if err := os.WriteFile(path, []byte(c.body), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Export.Format != "gltf" || cfg.Logging.Level != "debug" {
				t.Errorf("unexpected config: %+v", cfg)
			}
			if cfg.MirrorAxis() != scene.AxisX|scene.AxisZ {
				t.Errorf("mirror: %v", cfg.MirrorAxis())
			}
			// untouched values keep their defaults
			if cfg.Store.Driver != "sqlite" || cfg.Export.TextureScale != 1 {
				t.Errorf("defaults lost: %+v", cfg)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	for _, c := range []struct {
		name string
		body string
	}{
		{"bad_format.yaml", "export:\n  format: fbx\n"},
		{"bad_mirror.yaml", "export:\n  mirror: w\n"},
		{"unknown_key.yaml", "exports:\n  format: glb\n"},
		{"memory_driver.yaml", "store:\n  driver: memory\n"},
		{"config.ini", "format=glb\n"},
	} {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(dir, c.name)
			os.WriteFile(path, []byte(c.body), 0644)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	for _, name := range []string{"out/config.yaml", "out/config.toml"} {
		path := filepath.Join(t.TempDir(), name)
		cfg := Default()
		cfg.Export.Mirror = "x"
		cfg.Import.ImageIDBase = 500
		if err := cfg.SaveTo(path); err != nil {
			t.Fatal(err)
		}
		cfg2, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if *cfg2 != *cfg {
			t.Errorf("%s: reloaded config differs: %+v", name, cfg2)
		}
	}
}

func TestFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	if err := fs.Parse([]string{"-format", "gltf", "-texscale", "0.5", "-loglevel", "warn"}); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	cfg.Export.Mirror = "y"
	f.Apply(cfg)
	if cfg.Export.Format != "gltf" || cfg.Export.TextureScale != 0.5 || cfg.Logging.Level != "warn" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Export.Mirror != "y" {
		t.Error("unset flag overrode config")
	}
}
