// Package noop is a core.Interpreter that compiles anything and runs
// nothing.  gdoc uses it to load gclass specs without executing
// their actions.
package noop

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Comcast/gobj/core"
)

// Interpreter returns Status for every action.
type Interpreter struct {
	// Silent, if true, suppresses warning log messages.
	Silent bool

	Status int
}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

func (i *Interpreter) Compile(ctx context.Context, code interface{}) (interface{}, error) {
	if !i.Silent {
		log.Warn().Msg("using the noop interpreter for compilation")
	}
	return nil, nil
}

func (i *Interpreter) Exec(ctx context.Context, env *core.ActionEnv, code interface{}, compiled interface{}) (int, error) {
	if !i.Silent {
		log.Warn().Str("event", env.Event).Msg("using the noop interpreter for execution")
	}
	return i.Status, nil
}

// Interpreters answers every interpreter name with the same
// Interpreter.
type Interpreters struct {
	I *Interpreter
}

func NewInterpreters() *Interpreters {
	return &Interpreters{
		I: &Interpreter{Silent: true},
	}
}

// For returns a map that binds the given names to the Interpreter.
func (i *Interpreters) For(names ...string) map[string]core.Interpreter {
	acc := make(map[string]core.Interpreter, len(names))
	for _, name := range names {
		acc[name] = i.I
	}
	return acc
}
