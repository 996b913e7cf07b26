package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/interpreters"
	"github.com/Comcast/gobj/interpreters/noop"

	md "github.com/russross/blackfriday/v2"
)

// RenderGClassHTML writes the documentation of a GClass as an HTML
// fragment.  Docs are Markdown.
func RenderGClassHTML(gc *core.GClass, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="gclassDoc doc">%s</div>`, md.Run([]byte(gc.Doc)))
	if gc.Base != nil {
		f(`<div class="base">base: <code>%s</code></div>`, escape(gc.Base.Name))
	}
	if names := gc.Flag.Names(); 0 < len(names) {
		f(`<div class="flags">`)
		for _, name := range names {
			f(`<code>%s</code>`, name)
		}
		f(`</div>`)
	}

	schema := gc.Schema()
	if schema == nil {
		schema = gc.Attrs
	}
	if 0 < len(schema) { // Attributes
		f(`<div class="attrs"><table>`)
		f(`<tr><th>name</th><th>type</th><th>flag</th><th>default</th><th>description</th></tr>`)
		for _, d := range schema {
			f(`<tr class="attr"><td><code>%s</code></td><td>%s</td><td>%s</td><td><code>%s</code></td><td>%s</td></tr>`,
				escape(d.Name), d.Type, escape(d.Flag.String()), escape(d.Default), md.Run([]byte(d.Description)))
		}
		f(`</table></div>`)
	}

	edges, err := Edges(gc)
	if err != nil && err != ErrNoStates {
		return err
	}
	initial := gc.Initial()
	{ // States
		f(`<div class="states"><table>`)
		for _, state := range gc.StateNames() {
			class := "state"
			if state == initial {
				class += " initial"
			}
			f(`<tr class="%s"><td><span id="%s" class="stateName">%s</span></td><td>`, class, state, state)
			f(`<table>`)
			for _, e := range edges {
				if e.From != state {
					continue
				}
				f(`<tr><td><code>%s</code></td>`, escape(e.Event))
				if e.Loop() {
					f(`<td></td>`)
				} else {
					f(`<td><a href="#%s"><code>%s</code></a></td>`, e.To, e.To)
				}
				var notes string
				if e.Global {
					notes = "global"
				}
				if e.Owner != gc.Name {
					if notes != "" {
						notes += ", "
					}
					notes += "from " + e.Owner
				}
				if !e.Action {
					if notes != "" {
						notes += ", "
					}
					notes += "no action"
				}
				f(`<td class="notes">%s</td></tr>`, escape(notes))
			}
			f(`</table>`)
			f(`</td></tr>`)
		}
		f(`</table></div>`)
	}

	{ // Events
		f(`<div class="events"><table>`)
		for c := gc; c != nil; c = c.Base {
			for _, et := range c.Events {
				f(`<tr class="event"><td><code>%s</code></td><td>%s</td><td>%s</td></tr>`,
					escape(et.Name), escape(strings.Join(et.Flag.Names(), "|")), md.Run([]byte(et.Description)))
			}
		}
		f(`</table></div>`)
	}

	if 0 < len(gc.Commands) {
		f(`<div class="commands"><table>`)
		for _, cmd := range gc.Commands {
			f(`<tr class="command"><td><code>%s</code></td><td>%s</td></tr>`,
				escape(cmd.Name), md.Run([]byte(cmd.Description)))
		}
		f(`</table></div>`)
	}

	return nil
}

// RenderGClassPage writes a complete HTML page.  With includeGraph,
// the page draws the Mermaid graph of the FSM.
func RenderGClassPage(gc *core.GClass, out io.Writer, cssFiles []string, includeGraph bool) error {

	if cssFiles == nil {
		cssFiles = []string{"/static/gclass-html.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, gc.Name)

	if includeGraph {
		fmt.Fprintf(out, `
  <script src="https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"></script>
  <script>mermaid.initialize({startOnLoad: true});</script>
`)
	}

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, gc.Name)

	if includeGraph {
		var graph bytes.Buffer
		if err := Mermaid(gc, &graph, nil, "", ""); err != nil {
			return err
		}
		fmt.Fprintf(out, "<div class=\"mermaid\">\n%s</div>\n", graph.String())
	}

	if err := RenderGClassHTML(gc, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// ReadGClassSpec parses and compiles a GClass spec without real
// interpreters, which is enough for documentation.  The spec's Base,
// if any, must be in reg.
func ReadGClassSpec(ctx context.Context, filename string, reg *core.Registry) (*core.GClass, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	spec, err := core.ParseGClassSpec(src)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		reg = core.NewRegistry()
	}
	interps := noop.NewInterpreters().For(interpreters.Names(spec)...)
	// Registering resolves the inherited schema.
	return spec.Register(ctx, reg, interps)
}

func ReadAndRenderGClassPage(filename string, cssFiles []string, out io.Writer, includeGraph bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gc, err := ReadGClassSpec(ctx, filename, nil)
	if err != nil {
		return err
	}

	return RenderGClassPage(gc, out, cssFiles, includeGraph)
}

// Index writes a page linking to the documents of the registered
// GClasses, which are expected at NAME.html.
func Index(reg *core.Registry, out io.Writer) error {
	names := reg.Names()
	sort.Strings(names)
	fmt.Fprintf(out, "<!DOCTYPE html>\n<meta charset=\"utf-8\">\n<html>\n  <head><title>GClasses</title></head>\n  <body>\n    <ul>\n")
	for _, name := range names {
		gc, _ := reg.Find(name)
		doc := ""
		if gc != nil {
			doc = firstSentence(gc.Doc)
		}
		fmt.Fprintf(out, "      <li><a href=\"%s.html\">%s</a> %s</li>\n", name, name, escape(doc))
	}
	fmt.Fprintf(out, "    </ul>\n  </body>\n</html>\n")
	return nil
}
