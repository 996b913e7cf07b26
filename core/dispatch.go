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

package core

import (
	"fmt"
	"strings"

	"github.com/Comcast/gobj/value"
)

// SendEvent delivers an event to g and returns the status of the
// Action: 0 or positive for success, negative for failure or when no
// Action handles the event.  kw is owned.
func (g *GObj) SendEvent(event string, kw *value.Value, src *GObj) int {
	ret, _ := g.Dispatch(event, kw, src)
	return ret
}

// Dispatch is SendEvent also reporting why an event was refused:
// ErrNilGObj, ErrDestroyed, ErrDestroying or ErrEventNotHandled.  An
// Action that runs and fails returns a negative status with a nil
// error.
//
// The binding is looked up in the current state, then in the global
// table, then the same in each Base.  A binding's NextState is entered
// before its Action runs.  Events no table binds go to the
// InjectEvent method when there is one.
func (g *GObj) Dispatch(event string, kw *value.Value, src *GObj) (int, error) {
	if kw == nil {
		kw = value.NewObject()
	}
	defer kw.Decref()

	if err := g.usable("send "+event, false); err != nil {
		return -1, err
	}

	y := g.yuno
	ea, _ := g.gclass.FindAction(g.state, event)
	if ea == nil {
		if m := g.gclass.methods(); m.InjectEvent != nil {
			if y.TraceMachine {
				y.trace(g, "inject", event, src)
			}
			return g.run(m.InjectEvent, event, kw, src), nil
		}
		g.Logger().WithLevel(EventNotHandledLevel).
			Str("event", event).
			Str("state", g.state).
			Msg("Event NOT DEFINED in state")
		return -1, ErrEventNotHandled
	}

	if y.TraceMachine {
		y.trace(g, "dispatch", event, src)
	}

	if ea.NextState != "" {
		g.changeState(ea.NextState)
	}
	if ea.Action == nil {
		return 0, nil
	}
	return g.run(ea.Action, event, kw, src), nil
}

// run calls an Action inside a dispatch frame.  A panic is logged and
// reported as -1.
func (g *GObj) run(action Action, event string, kw *value.Value, src *GObj) (ret int) {
	g.enter()
	defer func() {
		g.leave()
		if r := recover(); r != nil {
			g.Logger().Error().
				Str("event", event).
				Str("state", g.state).
				Str("panic", fmt.Sprint(r)).
				Msg("action panicked")
			ret = -1
		}
	}()
	return action(g, event, kw, src)
}

func (y *Yuno) trace(g *GObj, what, event string, src *GObj) {
	var from string
	if src != nil {
		from = src.ShortName()
	}
	g.Logger().Debug().
		Str("event", event).
		Str("state", g.state).
		Str("src", from).
		Msg(strings.Repeat("  ", y.depth) + what)
}

// SendEventToParent sends an event from g to its parent.  kw is
// owned.
func (g *GObj) SendEventToParent(event string, kw *value.Value) int {
	if g == nil {
		kw.Decref()
		return -1
	}
	parent := g.Parent()
	if parent == nil {
		g.Logger().Error().Str("event", event).Msg("gobj without parent")
		kw.Decref()
		return -1
	}
	return parent.SendEvent(event, kw, g)
}

// ChangeState moves g to another state.  It is legal only while an
// Action or a lifecycle method of g is running.  The result reports
// whether the state changed.
//
// Unless the GClass has a StateChanged method, the change is
// published as EV_STATE_CHANGED.
func (g *GObj) ChangeState(state string) bool {
	if g.usable("change state "+state, false) != nil {
		return false
	}
	if g.busy <= 0 {
		g.Logger().Error().
			Str("state", g.state).
			Str("new_state", state).
			Msg(ErrNotInDispatch.Error())
		return false
	}
	return g.changeState(state)
}

func (g *GObj) changeState(state string) bool {
	if g.state == state {
		return false
	}
	if !g.gclass.HasState(state) {
		g.Logger().Error().Err(&UnknownState{GClass: g.gclass.Name, State: state}).Msg("change state")
		return false
	}
	g.lastState = g.state
	g.state = state

	if g.yuno.TraceMachine {
		g.Logger().Debug().
			Str("previous_state", g.lastState).
			Str("state", state).
			Msg(strings.Repeat("  ", g.yuno.depth) + "state")
	}

	kw := value.Obj(
		"previous_state", g.lastState,
		"current_state", state,
	)
	if m := g.gclass.methods(); m.StateChanged != nil {
		g.enter()
		m.StateChanged(g, EvStateChanged, kw)
		g.leave()
		kw.Decref()
	} else {
		g.Publish(EvStateChanged, kw)
	}
	return true
}
