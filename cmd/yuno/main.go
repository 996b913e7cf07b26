// Command yuno runs a tree of GObjs.
//
// The TOML configuration (see Config) names the tree, the script
// GClasses, the storage and the couplings of C_IOGATE instances.
// Flags override the file.  The operations endpoint, if enabled,
// serves /ops over WebSocket.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/Comcast/gobj/logging"
)

func main() {

	var (
		configFile = flag.String("c", "", "TOML configuration file")
		name       = flag.String("n", "", "yuno name")
		treeFile   = flag.String("t", "", "tree file (YAML or JSON)")
		opsAddr    = flag.String("o", "", "operations endpoint address (e.g. ':8090')")
		storeKind  = flag.String("s", "", "storage kind: bolt, json, mem or none")
		storePath  = flag.String("p", "", "storage filename")
		level      = flag.String("l", "", "log level")
		trace      = flag.Bool("trace", false, "log every dispatch and publication")
	)

	flag.Parse()

	cfg, err := LoadConfig(*configFile)
	if err != nil {
		panic(err)
	}
	if *name != "" {
		cfg.Name = *name
	}
	if *treeFile != "" {
		cfg.Tree = *treeFile
	}
	if *opsAddr != "" {
		cfg.Ops = *opsAddr
	}
	if *storeKind != "" {
		cfg.Storage.Kind = *storeKind
	}
	if *storePath != "" {
		cfg.Storage.Path = *storePath
	}
	if *level != "" {
		cfg.LogLevel = *level
	}

	lcfg := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		lcfg.Level = lvl
	}
	lcfg.JSON = cfg.LogJSON
	logging.ApplyEnv(&lcfg)
	logger := logging.New(lcfg).With().Str("yuno", cfg.Name).Logger()
	zerolog.SetGlobalLevel(lcfg.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The yuno outlives ctx so that Stop can shut it down.
	lctx, lcancel := context.WithCancel(context.Background())
	defer lcancel()

	d, err := NewDaemon(lctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration")
	}
	d.Yuno.TraceMachine = *trace

	if err = d.Start(lctx); err != nil {
		logger.Fatal().Err(err).Msg("start")
	}

	if cfg.Ops != "" {
		go func() {
			if err := d.ServeOps(ctx); err != nil {
				logger.Error().Err(err).Msg("ops")
				cancel()
			}
		}()
	}

	logger.Info().Msg("running")
	<-ctx.Done()

	if err = d.Stop(lctx); err != nil {
		logger.Error().Err(err).Msg("stop")
	}
	logger.Info().Msg("main terminating")
}
