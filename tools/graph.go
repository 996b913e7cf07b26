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

// Package tools renders GClasses as Graphviz, Mermaid, and HTML
// documents.
package tools

import (
	"errors"
	"strings"

	"github.com/Comcast/gobj/core"

	"gopkg.in/yaml.v2"
)

var ErrNoStates = errors.New("gclass has no states")

// Edge is a binding as dispatch resolves it for a state.
type Edge struct {
	From  string
	Event string
	To    string

	// Action reports whether the binding runs an action.
	Action bool

	// Global reports that the binding came from a global table.
	Global bool

	// Owner is the GClass (possibly a Base) that has the binding.
	Owner string
}

// Loop reports whether the binding keeps the state.
func (e *Edge) Loop() bool {
	return e.To == "" || e.To == e.From
}

// Edges resolves every input event in every state, so inherited and
// global bindings appear where they apply.
func Edges(gc *core.GClass) ([]*Edge, error) {
	states := gc.StateNames()
	if len(states) == 0 {
		return nil, ErrNoStates
	}
	events := gc.InputEvents()
	acc := make([]*Edge, 0, len(states)*len(events))
	for _, state := range states {
		for _, event := range events {
			ea, owner := gc.FindAction(state, event)
			if ea == nil {
				continue
			}
			acc = append(acc, &Edge{
				From:   state,
				Event:  event,
				To:     ea.NextState,
				Action: ea.Action != nil,
				Global: !bound(owner, state, event),
				Owner:  owner.Name,
			})
		}
	}
	return acc, nil
}

func bound(gc *core.GClass, state, event string) bool {
	for _, st := range gc.States {
		if st.Name != state {
			continue
		}
		for _, ea := range st.Actions {
			if ea.Event == event {
				return true
			}
		}
	}
	return false
}

// AttrDefaults renders the attributes and their defaults as YAML, in
// schema order.
func AttrDefaults(gc *core.GClass) (string, error) {
	schema := gc.Schema()
	if schema == nil {
		// Not registered.
		schema = gc.Attrs
	}
	m := make(yaml.MapSlice, 0, len(schema))
	for _, d := range schema {
		m = append(m, yaml.MapItem{Key: d.Name, Value: d.Default})
	}
	if len(m) == 0 {
		return "", nil
	}
	bs, err := yaml.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

// firstSentence shortens long docs for labels.
func firstSentence(doc string) string {
	if 40 < len(doc) {
		if period := strings.Index(doc, ". "); 0 < period {
			doc = doc[0 : period+1]
		}
	}
	return doc
}

func escape(s string) string {
	s = strings.Replace(s, "&", `&amp;`, -1)
	s = strings.Replace(s, "<", `&lt;`, -1)
	s = strings.Replace(s, ">", `&gt;`, -1)
	return s
}
