package interpreters

import (
	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/interpreters/goja"
	"github.com/Comcast/gobj/interpreters/noop"
)

// Standard returns the interpreters a yuno offers to gclass specs.
func Standard() map[string]core.Interpreter {
	is := make(map[string]core.Interpreter, 4)

	g := goja.NewInterpreter()
	is["goja"] = g
	is["ecmascript"] = g

	is["noop"] = noop.NewInterpreter()

	return is
}

// Names returns the interpreter names of a spec's actions.
func Names(spec *core.GClassSpec) []string {
	seen := make(map[string]bool)
	acc := make([]string, 0, 2)
	add := func(as *core.ActionSource) {
		if as != nil && !seen[as.Interpreter] {
			seen[as.Interpreter] = true
			acc = append(acc, as.Interpreter)
		}
	}
	for _, s := range spec.States {
		for _, a := range s.Actions {
			add(a.Action)
		}
	}
	for _, a := range spec.Global {
		add(a.Action)
	}
	for _, as := range spec.Lifecycle {
		add(as)
	}
	return acc
}
