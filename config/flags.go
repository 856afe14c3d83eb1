package config

import "flag"

// Flags are command line overrides for a Config.
type Flags struct {
	fs *flag.FlagSet

	ConfigPath string
	format     string
	mirror     string
	texScale   float64
	texLimit   int
	recompress bool
	skipLarge  bool
	storePath  string
	logLevel   string
	logFile    string
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "config file (.yaml or .toml)")
	fs.StringVar(&f.format, "format", "", "output format: glb or gltf")
	fs.StringVar(&f.mirror, "mirror", "", "mirror axes, e.g. x or xz")
	fs.Float64Var(&f.texScale, "texscale", 0, "texture scale")
	fs.IntVar(&f.texLimit, "texlimit", 0, "texture resolution limit")
	fs.BoolVar(&f.recompress, "texrecompress", false, "always re-encode textures")
	fs.BoolVar(&f.skipLarge, "skiplarge", false, "skip meshes that exceed 16-bit indices")
	fs.StringVar(&f.storePath, "store", "", "resource database path")
	fs.StringVar(&f.logLevel, "loglevel", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFile, "logfile", "", "log file path")
	return f
}

// Apply copies explicitly set flags into cfg.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "format":
			cfg.Export.Format = f.format
		case "mirror":
			cfg.Export.Mirror = f.mirror
		case "texscale":
			cfg.Export.TextureScale = float32(f.texScale)
		case "texlimit":
			cfg.Export.TextureResolutionLimit = f.texLimit
		case "texrecompress":
			cfg.Export.TextureReCompress = f.recompress
		case "skiplarge":
			cfg.Export.SkipOversizedMeshes = f.skipLarge
		case "store":
			cfg.Store.Path = f.storePath
		case "loglevel":
			cfg.Logging.Level = f.logLevel
		case "logfile":
			cfg.Logging.File = f.logFile
		}
	})
}
