package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/binzume/rdbconv/config"
	"github.com/binzume/rdbconv/logger"
	"go.uber.org/zap"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] command args...\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  model ID [output]     export a model record")
	fmt.Fprintln(os.Stderr, "  actor ID [output]     export an actor with its animations")
	fmt.Fprintln(os.Stderr, "  import input ID       import a .glb/.gltf file as model ID")
	fmt.Fprintln(os.Stderr, "  list KIND             list ids of model, actor, animation or image records")
	fmt.Fprintln(os.Stderr, "  config output         write the effective config (.yaml or .toml)")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fileCfg := logger.FileConfig{}
	if cfg.Logging.File != "" {
		fileCfg = logger.DefaultFileConfig(cfg.Logging.File)
		fileCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
		fileCfg.MaxBackups = cfg.Logging.MaxBackups
		fileCfg.MaxAgeDays = cfg.Logging.MaxAgeDays
	}
	if err := logger.InitWithFileConfig(cfg.Logging.Level, fileCfg, true); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error("failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
