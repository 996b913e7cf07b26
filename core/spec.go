package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jsccast/yaml"

	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/value"
)

// GClassSpec is a GClass written as data, with Actions given as
// ActionSources.  Compile turns it into a GClass.
//
// The YAML form:
//
//	name: C_COUNTER
//	attrs:
//	  - {name: count, type: integer, flag: RD|WR|STATS}
//	states:
//	  - name: ST_IDLE
//	    actions:
//	      - event: EV_INC
//	        action:
//	          interpreter: goja
//	          source: |
//	            _.write("count", _.read("count") + 1);
//	            return 0;
//	events:
//	  - {name: EV_COUNT, flag: output_event}
type GClassSpec struct {
	Name string `json:"name" yaml:"name"`

	// Base is the name of a registered GClass.
	Base string `json:"base,omitempty" yaml:",omitempty"`

	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	Attrs sdata.Schema `json:"attrs,omitempty" yaml:",omitempty"`

	States []StateSpec `json:"states,omitempty" yaml:",omitempty"`

	Global []EvActionSpec `json:"global,omitempty" yaml:",omitempty"`

	Events []EventSpec `json:"events,omitempty" yaml:",omitempty"`

	// Flag is parsed with ParseGClassFlag.
	Flag string `json:"flag,omitempty" yaml:",omitempty"`

	InitialState string `json:"initialState,omitempty" yaml:"initialState,omitempty"`

	// Lifecycle binds "create", "destroy", "start", "stop", "play"
	// and "pause" to ActionSources.  They run with the event name
	// "__create__" and so on.  A negative status fails start, stop,
	// play and pause.
	Lifecycle map[string]*ActionSource `json:"lifecycle,omitempty" yaml:",omitempty"`
}

// StateSpec is the data form of State.
type StateSpec struct {
	Name    string         `json:"name" yaml:"name"`
	Actions []EvActionSpec `json:"actions,omitempty" yaml:",omitempty"`
}

// EvActionSpec is the data form of EvAction.
type EvActionSpec struct {
	Event     string        `json:"event" yaml:"event"`
	Action    *ActionSource `json:"action,omitempty" yaml:",omitempty"`
	NextState string        `json:"next,omitempty" yaml:"next,omitempty"`
}

// EventSpec is the data form of EventType.
type EventSpec struct {
	Name        string `json:"name" yaml:"name"`
	Flag        string `json:"flag,omitempty" yaml:",omitempty"`
	Description string `json:"doc,omitempty" yaml:"doc,omitempty"`
}

// ParseGClassSpec reads a GClassSpec in JSON or YAML.
func ParseGClassSpec(bs []byte) (*GClassSpec, error) {
	var spec GClassSpec
	trimmed := strings.TrimSpace(string(bs))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(bs, &spec); err != nil {
			return nil, err
		}
		return &spec, nil
	}
	if err := yaml.Unmarshal(bs, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (spec *GClassSpec) compileActions(ctx context.Context, interpreters map[string]Interpreter, specs []EvActionSpec) ([]EvAction, error) {
	acc := make([]EvAction, 0, len(specs))
	for _, s := range specs {
		ea := EvAction{
			Event:     s.Event,
			NextState: s.NextState,
		}
		if s.Action != nil {
			action, err := s.Action.Compile(ctx, interpreters)
			if err != nil {
				return nil, errors.New(err.Error() + ": gclass: " + spec.Name + " event: " + s.Event)
			}
			ea.Action = action
		}
		acc = append(acc, ea)
	}
	return acc, nil
}

// Compile makes a GClass from the spec.  The Base, if any, is looked
// up in reg.  The GClass is not registered.
func (spec *GClassSpec) Compile(ctx context.Context, reg *Registry, interpreters map[string]Interpreter) (*GClass, error) {
	gc := &GClass{
		Name:         spec.Name,
		Doc:          spec.Doc,
		Attrs:        spec.Attrs,
		InitialState: spec.InitialState,
	}

	if spec.Base != "" {
		base, have := reg.Find(spec.Base)
		if !have {
			return nil, &BadGClass{GClass: spec.Name, Reason: "base " + spec.Base + " not registered"}
		}
		gc.Base = base
	}

	flag, err := ParseGClassFlag(spec.Flag)
	if err != nil {
		return nil, err
	}
	gc.Flag = flag

	for _, s := range spec.States {
		actions, err := spec.compileActions(ctx, interpreters, s.Actions)
		if err != nil {
			return nil, err
		}
		gc.States = append(gc.States, State{Name: s.Name, Actions: actions})
	}

	if gc.Global, err = spec.compileActions(ctx, interpreters, spec.Global); err != nil {
		return nil, err
	}

	for _, e := range spec.Events {
		f, err := ParseEventFlag(e.Flag)
		if err != nil {
			return nil, err
		}
		gc.Events = append(gc.Events, EventType{Name: e.Name, Flag: f, Description: e.Description})
	}

	for name, src := range spec.Lifecycle {
		action, err := src.Compile(ctx, interpreters)
		if err != nil {
			return nil, errors.New(err.Error() + ": gclass: " + spec.Name + " lifecycle: " + name)
		}
		if err := gc.Methods.bind(name, action); err != nil {
			return nil, &BadGClass{GClass: spec.Name, Reason: err.Error()}
		}
	}

	return gc, nil
}

// Register compiles the spec and registers the result.
func (spec *GClassSpec) Register(ctx context.Context, reg *Registry, interpreters map[string]Interpreter) (*GClass, error) {
	gc, err := spec.Compile(ctx, reg, interpreters)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(gc); err != nil {
		return nil, err
	}
	return gc, nil
}

func runHook(g *GObj, name string, action Action) int {
	kw := value.NewObject()
	defer kw.Decref()
	return g.run(action, "__"+name+"__", kw, nil)
}

func hookErr(g *GObj, name string, action Action) error {
	if runHook(g, name, action) < 0 {
		return errors.New(name + " failed")
	}
	return nil
}

// bind sets a lifecycle method from an Action.
func (m *Methods) bind(name string, action Action) error {
	switch name {
	case "create":
		m.Create = func(g *GObj) { runHook(g, name, action) }
	case "destroy":
		m.Destroy = func(g *GObj) { runHook(g, name, action) }
	case "start":
		m.Start = func(g *GObj) error { return hookErr(g, name, action) }
	case "stop":
		m.Stop = func(g *GObj) error { return hookErr(g, name, action) }
	case "play":
		m.Play = func(g *GObj) error { return hookErr(g, name, action) }
	case "pause":
		m.Pause = func(g *GObj) error { return hookErr(g, name, action) }
	default:
		return errors.New("unknown lifecycle method " + name)
	}
	return nil
}
