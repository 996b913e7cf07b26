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

import (
	"fmt"
	"io"
	"strings"

	"github.com/Comcast/gobj/core"
)

type MermaidOpts struct {
	// ShowLoops adds an edge for each binding that keeps the
	// state.
	ShowLoops bool `json:"showLoops"`

	// ActionFill is the fill color for states that have bindings
	// with actions.  Does not apply if ActionClass is set.
	ActionFill string `json:"actionFill,omitempty"`

	// ActionClass will be the CSS class for such states.
	ActionClass string `json:"actionClass,omitempty"`

	// ActiveFill is the fill color of the toState.
	ActiveFill string `json:"activeFill,omitempty"`
}

// DefaultMermaidOpts is used when Mermaid gets nil options.
var DefaultMermaidOpts = MermaidOpts{
	ActionFill: "#bcf2db",
	ActiveFill: "#f98b8b",
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the FSM of the given GClass.
func Mermaid(gc *core.GClass, w io.Writer, opts *MermaidOpts, fromState, toState string) error {

	if opts == nil {
		opts = &DefaultMermaidOpts
	}

	edges, err := Edges(gc)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "graph TB\n")

	sids := make(map[string]string)
	actions := make(map[string]bool)
	for _, e := range edges {
		if e.Action {
			actions[e.From] = true
		}
	}

	initial := gc.Initial()
	for i, state := range gc.StateNames() {
		sid := fmt.Sprintf("s%d", i+1)
		sids[state] = sid
		if state == initial {
			fmt.Fprintf(w, "  %s([\"%s\"])\n", sid, state)
		} else {
			fmt.Fprintf(w, "  %s(\"%s\")\n", sid, state)
		}
		switch {
		case state == toState && opts.ActiveFill != "":
			fmt.Fprintf(w, "  style %s fill:%s\n", sid, opts.ActiveFill)
		case !actions[state]:
		case opts.ActionClass != "":
			fmt.Fprintf(w, "  class %s %s\n", sid, opts.ActionClass)
		case opts.ActionFill != "":
			fmt.Fprintf(w, "  style %s fill:%s\n", sid, opts.ActionFill)
		}
	}

	n := 0
	for _, e := range edges {
		to := e.To
		if e.Loop() {
			if !opts.ShowLoops {
				continue
			}
			to = e.From
		}
		arrow := "-->"
		if e.Global {
			arrow = "-.->"
		}
		label := strings.Replace(e.Event, `"`, `'`, -1)
		fmt.Fprintf(w, "  %s %s|\"%s\"| %s\n", sids[e.From], arrow, label, sids[to])
		if e.From == fromState && e.To == toState {
			fmt.Fprintf(w, "  linkStyle %d stroke:red\n", n)
		}
		n++
	}

	fmt.Fprintf(w, "\n")

	return nil
}
