package core

import (
	"context"
	"errors"

	"github.com/Comcast/gobj/value"
)

var (
	// InterpreterNotFound occurs when you try to Compile an
	// ActionSource, and the required interpreter isn't in the
	// given map of interpreters.
	InterpreterNotFound = errors.New("interpreter not found")

	// DefaultInterpreters will be used in ActionSource.Compile if
	// the given nil interpreters.
	DefaultInterpreters = make(map[string]Interpreter)
)

// ActionEnv is what interpreted code sees when it runs as an Action.
// Kw is borrowed.
type ActionEnv struct {
	GObj  *GObj
	Event string
	Kw    *value.Value
	Src   *GObj
}

// Interpreter can optionally compile and execute code for Actions.
type Interpreter interface {
	// Compile can make something that helps when Exec()ing the
	// code later.
	Compile(ctx context.Context, code interface{}) (interface{}, error)

	// Exec executes the code and returns the Action status.  The
	// result of a previous Compile() might be provided.
	Exec(ctx context.Context, env *ActionEnv, code interface{}, compiled interface{}) (int, error)
}

// ActionSource can be compiled to an Action.
type ActionSource struct {
	Interpreter string      `json:"interpreter,omitempty" yaml:",omitempty"`
	Source      interface{} `json:"source"`
}

// Copy makes a shallow copy.
func (a *ActionSource) Copy() *ActionSource {
	if a == nil {
		return nil
	}
	return &ActionSource{
		Interpreter: a.Interpreter,
		Source:      a.Source,
	}
}

// Compile attempts to compile the ActionSource into an Action using
// the given interpreters, which defaults to DefaultInterpreters.
//
// An execution error is logged and reported as -1.
func (a *ActionSource) Compile(ctx context.Context, interpreters map[string]Interpreter) (Action, error) {
	if interpreters == nil {
		interpreters = DefaultInterpreters
	}

	interpreter, have := interpreters[a.Interpreter]
	if !have {
		return nil, InterpreterNotFound
	}

	x, err := interpreter.Compile(ctx, a.Source)
	if err != nil {
		return nil, err
	}

	return func(g *GObj, event string, kw *value.Value, src *GObj) int {
		env := &ActionEnv{
			GObj:  g,
			Event: event,
			Kw:    kw,
			Src:   src,
		}
		ret, err := interpreter.Exec(g.yuno.ctx(), env, a.Source, x)
		if err != nil {
			g.Logger().Error().
				Err(err).
				Str("event", event).
				Str("state", g.state).
				Str("interpreter", a.Interpreter).
				Msg("action")
			return -1
		}
		return ret
	}, nil
}
