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
	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/value"
)

func strings2value(ss []string) *value.Value {
	acc := value.NewArray()
	for _, s := range ss {
		acc.Append(value.NewString(s))
	}
	return acc
}

// ToValue describes the GClass: attributes, states with their
// bindings, events, commands, authorizations and flags.
func (gc *GClass) ToValue() *value.Value {
	var base string
	if gc.Base != nil {
		base = gc.Base.Name
	}

	states := value.NewObject()
	for c := gc; c != nil; c = c.Base {
		for _, st := range c.States {
			if states.Has(st.Name) {
				continue
			}
			acc := value.NewArray()
			for _, ea := range st.Actions {
				acc.Append(value.Obj(
					"event", ea.Event,
					"action", ea.Action != nil,
					"next_state", ea.NextState,
				))
			}
			states.Set(st.Name, acc)
		}
	}

	events := value.NewArray()
	for c := gc; c != nil; c = c.Base {
		for _, et := range c.Events {
			events.Append(value.Obj(
				"id", et.Name,
				"flag", strings2value(et.Flag.Names()),
				"description", et.Description,
			))
		}
	}

	commands := value.NewArray()
	for c := gc; c != nil; c = c.Base {
		for _, cmd := range c.Commands {
			commands.Append(value.Obj(
				"command", cmd.Name,
				"alias", strings2value(cmd.Alias),
				"description", cmd.Description,
			))
		}
	}

	authzs := value.NewArray()
	for c := gc; c != nil; c = c.Base {
		for _, a := range c.Authzs {
			authzs.Append(value.Obj("id", a.Name, "description", a.Description))
		}
	}

	return value.Obj(
		"id", gc.Name,
		"base", base,
		"description", gc.Doc,
		"attrs", gc.schema.ToValue(),
		"states", states,
		"initial_state", gc.initialState(),
		"input_events", strings2value(gc.InputEvents()),
		"output_events", strings2value(gc.OutputEvents()),
		"events", events,
		"commands", commands,
		"authzs", authzs,
		"gclass_flag", strings2value(gc.Flag.Names()),
		"instances", gc.instances,
	)
}

// ToValue describes g, including the attributes readable by the
// kernel.
func (g *GObj) ToValue() *value.Value {
	acc := value.Obj(
		"name", g.name,
		"gclass", g.gclass.Name,
		"fullname", g.FullName(),
		"state", g.state,
		"last_state", g.lastState,
		"running", g.running,
		"playing", g.playing,
		"disabled", g.disabled,
		"gobj_flag", strings2value(g.flag.Names()),
		"children", len(g.children),
		"subscriptions", len(g.subscriptions),
		"subscribings", len(g.subscribings),
		"attrs", g.attrs.ReadAttrs(sdata.Internal, 0),
	)
	if b := g.Bottom(); b != nil {
		acc.Set("bottom", value.NewString(b.ShortName()))
	}
	return acc
}

// ViewTree describes the subtree rooted at g.  Volatil GObjs are
// omitted.
func (g *GObj) ViewTree() *value.Value {
	children := value.NewArray()
	for _, c := range g.Children() {
		if c.IsVolatil() {
			continue
		}
		children.Append(c.ViewTree())
	}
	return value.Obj(
		"name", g.name,
		"gclass", g.gclass.Name,
		"state", g.state,
		"running", g.running,
		"playing", g.playing,
		"service", g.IsService(),
		"children", children,
	)
}

// AttrsSchema describes the attributes of g with their current
// values.
func (g *GObj) AttrsSchema() *value.Value {
	acc := value.NewArray()
	for i := range g.gclass.schema {
		d := &g.gclass.schema[i]
		x := d.ToValue()
		if v := g.attrs.Get(d.Name); v != nil {
			x.SetBorrowed("value", v)
		}
		acc.Append(x)
	}
	return acc
}

// SubscriptionsValue describes the subscriptions to g's events and
// those g has made.
func (g *GObj) SubscriptionsValue() *value.Value {
	subs := value.NewArray()
	for _, s := range g.subscriptions {
		subs.Append(s.ToValue(g.yuno))
	}
	subing := value.NewArray()
	for _, s := range g.subscribings {
		subing.Append(s.ToValue(g.yuno))
	}
	return value.Obj(
		"subscriptions", subs,
		"subscribings", subing,
	)
}

// Stats returns the statistics of g.  The Stats method, if any,
// answers; otherwise the stats attributes the caller can read.  kw is
// owned.
func (g *GObj) Stats(authz sdata.Authz, stats string, kw *value.Value, src *GObj) *value.Value {
	defer kw.Decref()
	if err := g.usable("stats "+stats, false); err != nil {
		return response(-1, err.Error(), nil)
	}
	if !authz.Has(sdata.GrantStats) {
		g.Logger().Warn().Str("stats", stats).Msg(ErrUnauthorized.Error())
		return response(-1, ErrUnauthorized.Error(), nil)
	}
	if m := g.gclass.methods(); m.Stats != nil {
		g.enter()
		data := m.Stats(g, stats, kw, src)
		g.leave()
		return response(0, "", data)
	}
	return response(0, "", g.attrs.Stats(authz))
}
