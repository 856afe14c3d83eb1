package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/binzume/rdbconv/config"
	"github.com/binzume/rdbconv/converter"
	"github.com/binzume/rdbconv/logger"
	"github.com/binzume/rdbconv/rdb"
	"go.uber.org/zap"
)

var errUsage = errors.New("bad arguments, see -help")

func openStore(cfg *config.StoreConfig) (*rdb.SQLiteStore, error) {
	if cfg.Driver != "sqlite" {
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	return rdb.OpenSQLiteStore(cfg.Path)
}

func exportOption(cfg *config.Config) *converter.ExportOption {
	return &converter.ExportOption{
		Mirror:                 cfg.MirrorAxis(),
		TextureReCompress:      cfg.Export.TextureReCompress,
		TextureResolutionLimit: cfg.Export.TextureResolutionLimit,
		TextureScale:           cfg.Export.TextureScale,
		SkipOversizedMeshes:    cfg.Export.SkipOversizedMeshes,
		Generator:              cfg.Export.Generator,
	}
}

func parseID(s string) (rdb.ID, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad id %q: %w", s, err)
	}
	return rdb.ID(v), nil
}

func parseKind(s string) (rdb.Kind, error) {
	for _, k := range []rdb.Kind{rdb.KindModel, rdb.KindActor, rdb.KindAnimation, rdb.KindImage} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown record kind %q", s)
}

func outputPath(cfg *config.Config, kind string, id rdb.ID, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fmt.Sprintf("%s_%d.%s", kind, id, cfg.Export.Format)
}

func run(cfg *config.Config, cmd string, args []string) error {
	if cmd == "config" {
		if len(args) != 1 {
			return errUsage
		}
		return cfg.SaveTo(args[0])
	}

	s, err := openStore(&cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	switch cmd {
	case "model", "actor":
		if len(args) < 1 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		out := outputPath(cfg, cmd, id, args[1:])
		logger.Info("exporting", zap.String("kind", cmd), zap.Uint32("id", uint32(id)), zap.String("out", out))
		if cmd == "model" {
			return converter.ExportModel(s, id, out, exportOption(cfg))
		}
		return converter.ExportActor(s, id, out, exportOption(cfg))
	case "import":
		if len(args) != 2 {
			return errUsage
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		_, err = converter.ImportModel(s, args[0], id, &converter.ImportOption{ImageIDBase: rdb.ID(cfg.Import.ImageIDBase)})
		return err
	case "list":
		if len(args) != 1 {
			return errUsage
		}
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		ids, err := s.IDs(kind)
		if err != nil {
			return err
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}
