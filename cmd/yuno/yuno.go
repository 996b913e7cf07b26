package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/gclasses/timer"
	"github.com/Comcast/gobj/interpreters"
	"github.com/Comcast/gobj/loop"
	"github.com/Comcast/gobj/sio"
	"github.com/Comcast/gobj/storage"
	"github.com/Comcast/gobj/timers"
	"github.com/Comcast/gobj/value"
)

// RootGClass is the GClass of the root GObj.  It accepts any event,
// so it can subscribe to anything and log what arrives.
const RootGClass = "C_YUNO"

// Daemon is a yuno with its loop, timers, storage and couplings.
type Daemon struct {
	Config *Config
	Logger zerolog.Logger

	Loop   *loop.Loop
	Timers *timers.Timers
	Yuno   *core.Yuno
	Store  storage.Storage
}

func rootGClass() *core.GClass {
	return &core.GClass{
		Name:   RootGClass,
		Doc:    "The root of the tree.  Logs the events it receives.",
		States: []core.State{{Name: "ST_IDLE"}},
		Flag:   core.NoCheckOutputEvents | core.Singleton,
		Methods: core.Methods{
			InjectEvent: func(g *core.GObj, event string, kw *value.Value, src *core.GObj) int {
				lg := g.Logger().Info().Str("event", event).RawJSON("kw", []byte(kw.String()))
				if src != nil {
					lg = lg.Str("src", src.FullName())
				}
				lg.Msg("received")
				return 0
			},
		},
	}
}

// NewDaemon registers the GClasses and opens the storage.  Start
// builds and plays the tree.
func NewDaemon(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Daemon, error) {
	d := &Daemon{
		Config: cfg,
		Logger: logger,
		Loop:   loop.NewLoop(1024),
		Timers: timers.NewTimers(cfg.MaxTimers),
	}
	d.Loop.Logger = logger
	d.Timers.Logger = logger

	reg := core.NewRegistry()
	if err := reg.Register(rootGClass()); err != nil {
		return nil, err
	}
	if err := timer.Register(reg, &timer.Env{Loop: d.Loop, Timers: d.Timers}); err != nil {
		return nil, err
	}

	couplings := make(map[string]sio.Couplings, len(cfg.Couplings))
	for name, cc := range cfg.Couplings {
		c, err := cc.NewCouplings()
		if err != nil {
			return nil, fmt.Errorf("couplings %s: %w", name, err)
		}
		couplings[name] = c
	}
	if err := sio.Register(reg, &sio.Env{Loop: d.Loop, Couplings: couplings}); err != nil {
		return nil, err
	}

	interps := interpreters.Standard()
	for _, filename := range cfg.GClasses {
		src, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		spec, err := core.ParseGClassSpec(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		if _, err = spec.Register(ctx, reg, interps); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		logger.Info().Str("gclass", spec.Name).Str("file", filename).Msg("registered")
	}
	reg.Seal()

	bucket := cfg.Storage.Bucket
	if bucket == "" {
		bucket = cfg.Name
	}
	store, err := storage.New(cfg.Storage.Kind, cfg.Storage.Path, bucket)
	if err != nil {
		return nil, err
	}
	if err = store.Open(ctx); err != nil {
		return nil, err
	}
	d.Store = store

	y := core.NewYuno(reg)
	y.Logger = logger
	y.Ctx = ctx
	y.Store = store
	d.Yuno = y

	return d, nil
}

// ReadTree reads a YAML or JSON tree description.
func ReadTree(filename string) (*value.Value, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return value.Parse(src)
	default:
		return value.FromYAML(src)
	}
}

// Start runs the loop and the timers, then builds the tree and plays
// the services.
func (d *Daemon) Start(ctx context.Context) error {
	go d.Loop.Run(ctx)
	go d.Timers.Run(ctx)
	if !d.Loop.Wait(timeout) || !d.Timers.Wait(timeout) {
		return fmt.Errorf("loop or timers not running")
	}

	var tree *value.Value
	if d.Config.Tree != "" {
		var err error
		if tree, err = ReadTree(d.Config.Tree); err != nil {
			return err
		}
	}

	return d.Loop.Do(ctx, func() error {
		if _, err := d.Yuno.CreateRoot(d.Config.Name, RootGClass, nil); err != nil {
			tree.Decref()
			return err
		}
		if tree != nil {
			if tree.IsArray() {
				var err error
				tree.EachItem(func(_ int, x *value.Value) bool {
					_, err = d.Yuno.CreateTree(nil, x.Incref())
					return err == nil
				})
				tree.Decref()
				if err != nil {
					return err
				}
			} else if _, err := d.Yuno.CreateTree(nil, tree); err != nil {
				return err
			}
		}
		if err := d.Yuno.StartServices(); err != nil {
			return err
		}
		return d.Yuno.PlayServices()
	})
}

// Stop shuts the yuno down and closes the storage.  The loop must
// still be running.
func (d *Daemon) Stop(ctx context.Context) error {
	err := d.Loop.Do(ctx, func() error {
		d.Yuno.Shutdown()
		return nil
	})
	if err != nil {
		d.Logger.Error().Err(err).Msg("shutdown")
	}
	return d.Store.Close(ctx)
}
