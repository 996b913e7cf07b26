// Command gdoc writes documentation for GClasses: a Graphviz file, a
// Mermaid file, and an HTML page for each, plus an index.
//
// The built-in GClasses (C_TIMER, C_IOGATE) are always documented.
// Script GClass specs given as arguments are compiled without running
// anything, so their actions do not matter.
//
//	gdoc -d docs door.yaml turnstile.json
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/gclasses/timer"
	"github.com/Comcast/gobj/logging"
	"github.com/Comcast/gobj/sio"
	"github.com/Comcast/gobj/tools"
)

func main() {

	var (
		dir      = flag.String("d", ".", "output directory")
		css      = flag.String("css", "", "CSS file for the HTML pages")
		graph    = flag.Bool("g", true, "include the Mermaid graph in HTML pages")
		png      = flag.Bool("png", false, "also render PNGs (requires Graphviz)")
		builtins = flag.Bool("b", true, "document the built-in GClasses")
	)

	flag.Parse()

	logging.ConfigureRuntime()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg, err := Load(ctx, *builtins, flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("load")
	}

	var cssFiles []string
	if *css != "" {
		cssFiles = []string{*css}
	}
	if err = Write(reg, *dir, cssFiles, *graph, *png); err != nil {
		log.Fatal().Err(err).Msg("write")
	}
}

// Load registers the built-in GClasses (if asked) and the given
// specs.
func Load(ctx context.Context, builtins bool, filenames []string) (*core.Registry, error) {
	reg := core.NewRegistry()
	if builtins {
		// Documentation never runs these, so they need no loop.
		if err := timer.Register(reg, &timer.Env{}); err != nil {
			return nil, err
		}
		if err := sio.Register(reg, &sio.Env{}); err != nil {
			return nil, err
		}
	}
	for _, filename := range filenames {
		gc, err := tools.ReadGClassSpec(ctx, filename, reg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("gclass", gc.Name).Str("file", filename).Msg("loaded")
	}
	return reg, nil
}

// Write renders every GClass of reg into dir.
func Write(reg *core.Registry, dir string, cssFiles []string, graph, png bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	create := func(name string, render func(f *os.File) error) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err = render(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	for _, name := range reg.Names() {
		gc, err := reg.Get(name)
		if err != nil {
			return err
		}
		if len(gc.StateNames()) == 0 {
			log.Warn().Str("gclass", name).Msg("no states to draw")
		} else {
			err = create(name+".dot", func(f *os.File) error {
				return tools.Dot(gc, f, "", "")
			})
			if err != nil {
				return err
			}
			err = create(name+".mermaid", func(f *os.File) error {
				return tools.Mermaid(gc, f, nil, "", "")
			})
			if err != nil {
				return err
			}
			if png {
				if _, err = tools.PNG(gc, filepath.Join(dir, name), "", ""); err != nil {
					return err
				}
			}
		}
		err = create(name+".html", func(f *os.File) error {
			return tools.RenderGClassPage(gc, f, cssFiles, graph && len(gc.StateNames()) > 0)
		})
		if err != nil {
			return err
		}
		log.Info().Str("gclass", name).Msg("documented")
	}

	return create("index.html", func(f *os.File) error {
		return tools.Index(reg, f)
	})
}
