/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/Comcast/gobj/core"
)

// Dot writes a Graphviz dot file for the FSM of the given GClass.
//
// Each state is a node listing the events it handles without
// changing state.  Each binding with a next state is an edge labeled
// with its event.  The optional fromState and toState can be names
// of states during a transition.  If not empty, then the toState
// will be red and so will the edge between them.
func Dot(gc *core.GClass, w io.Writer, fromState, toState string) error {
	edges, err := Edges(gc)
	if err != nil {
		return err
	}
	initial := gc.Initial()

	loops := make(map[string][]string)
	for _, e := range edges {
		if e.Loop() {
			loops[e.From] = append(loops[e.From], e.Event)
		}
	}

	fmt.Fprintf(w, "digraph %q {\n", gc.Name)
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	label := gc.Name
	if gc.Doc != "" {
		label += "<BR/><FONT POINT-SIZE='8'>" + escape(firstSentence(gc.Doc)) + "</FONT>"
	}
	if defaults, err := AttrDefaults(gc); err != nil {
		return err
	} else if defaults != "" {
		label += `<FONT POINT-SIZE="6"><BR/>` +
			strings.Replace(escape(defaults), "\n", `<BR ALIGN="LEFT"/>`, -1) +
			`</FONT>`
	}
	fmt.Fprintf(w, "  %q [shape=\"note\", style=\"filled\", fillcolor=\"#eeeeee\", label=<%s> ]\n",
		"__gclass__", label)

	for _, state := range gc.StateNames() {
		label := state
		if evs := loops[state]; 0 < len(evs) {
			label += `<FONT POINT-SIZE="8">`
			for _, ev := range evs {
				label += `<BR ALIGN="LEFT"/>` + escape(ev)
			}
			label += `<BR ALIGN="LEFT"/></FONT>`
		}
		color := "black"
		fillcolor := "#99ddc8"
		style := "rounded,filled"
		if state == initial {
			style += ",bold"
		}
		if state == toState {
			color = "red"
			fillcolor = "#f98b8b"
		}
		fmt.Fprintf(w, "  %q [style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
			state, style, color, fillcolor, label)
	}

	for _, e := range edges {
		if e.Loop() {
			continue
		}
		color := "black"
		if e.From == fromState && e.To == toState {
			color = "red"
		}
		style := "solid"
		if e.Global {
			style = "dashed"
		}
		label := escape(e.Event)
		if e.Owner != gc.Name {
			label += `<BR/><FONT POINT-SIZE="8">` + escape(e.Owner) + `</FONT>`
		}
		fmt.Fprintf(w, "  %q -> %q [ color=\"%s\" style=\"%s\" label = <%s> ]\n",
			e.From, e.To, color, style, label)
	}

	fmt.Fprintf(w, "}\n")
	return nil
}

// PNG generates a PNG image based on output from Dot.
//
// This function with write two files: basename.dot and basename.png,
// where the basename is the given string.  The "dot" program must be
// installed.
func PNG(gc *core.GClass, basename string, fromState, toState string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err := Dot(gc, dotfile, fromState, toState); err != nil {
		dotfile.Close()
		return pngname, err
	}
	if err := dotfile.Close(); err != nil {
		return pngname, err
	}
	if err := exec.Command("dot", "-Tpng", "-Gstart=1", "-o", pngname, dotname).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}
