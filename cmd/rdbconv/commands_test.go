package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/binzume/rdbconv/config"
	"github.com/binzume/rdbconv/rdb"
	"github.com/binzume/rdbconv/scene"
)

func TestParseArgs(t *testing.T) {
	if id, err := parseID("0x10"); err != nil || id != 16 {
		t.Errorf("parseID = %v, %v", id, err)
	}
	if _, err := parseID("-1"); err == nil {
		t.Error("negative id accepted")
	}
	if k, err := parseKind("actor"); err != nil || k != rdb.KindActor {
		t.Errorf("parseKind = %v, %v", k, err)
	}
	if _, err := parseKind("sound"); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestExportOption(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Mirror = "xz"
	opt := exportOption(cfg)
	if opt.Mirror != scene.AxisX|scene.AxisZ || opt.TextureScale != 1 || opt.Generator != "rdbconv" {
		t.Errorf("option %+v", opt)
	}
	if p := outputPath(cfg, "model", 12, nil); p != "model_12.glb" {
		t.Errorf("output path %q", p)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, "game.db")

	db, err := rdb.OpenSQLiteStore(cfg.Store.Path)
	if err != nil {
		t.Fatal(err)
	}
	err = rdb.SaveModel(db, 3, &rdb.Model{Name: "tri", Records: []rdb.Record{
		&rdb.MeshInstance{Name: "tri", Transform: rdb.IdentityTransform, MeshData: 1, Bounds: rdb.NoRef, AnimTrack: rdb.NoRef},
		&rdb.MeshData{Name: "tri", SubMeshes: []int{2}},
		&rdb.SubMesh{Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, Indices: []uint32{0, 1, 2}, Material: 3},
		&rdb.Material{Name: "flat", Diffuse: [4]float32{1, 1, 1, 1},
			DiffuseTexture: rdb.NoRef, NormalTexture: rdb.NoRef, EmissiveTexture: rdb.NoRef},
	}})
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	if err := run(cfg, "model", nil); !errors.Is(err, errUsage) {
		t.Errorf("missing id: %v", err)
	}
	if err := run(cfg, "model", []string{"4", filepath.Join(dir, "x.glb")}); !errors.Is(err, rdb.ErrNotFound) {
		t.Errorf("missing model: %v", err)
	}
	out := filepath.Join(dir, "tri.glb")
	if err := run(cfg, "model", []string{"3", out}); err != nil {
		t.Fatal(err)
	}
	if err := run(cfg, "import", []string{out, "9"}); err != nil {
		t.Fatal(err)
	}
	if err := run(cfg, "list", []string{"model"}); err != nil {
		t.Error(err)
	}
	if err := run(cfg, "explode", nil); err == nil {
		t.Error("unknown command accepted")
	}

	db, err = rdb.OpenSQLiteStore(cfg.Store.Path)
	if err != nil {
		t.Fatal(err)
	}
	ids, err := db.IDs(rdb.KindModel)
	db.Close()
	if err != nil || len(ids) != 2 {
		t.Errorf("stored models %v, %v", ids, err)
	}

	cfgOut := filepath.Join(dir, "cfg.toml")
	if err := run(cfg, "config", []string{cfgOut}); err != nil {
		t.Fatal(err)
	}
	if loaded, err := config.Load(cfgOut); err != nil || loaded.Store.Path != cfg.Store.Path {
		t.Errorf("reloaded %+v, %v", loaded, err)
	}
}
