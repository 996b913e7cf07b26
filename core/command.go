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

// response builds the {"result", "comment", "data"} envelope of
// command and stats answers.  data is owned and may be nil.
func response(result int, comment string, data *value.Value) *value.Value {
	if data == nil {
		data = value.NewNull()
	}
	return value.Obj(
		"result", result,
		"comment", comment,
		"data", data,
	)
}

// Command runs a command of g's GClass and returns the response
// envelope.  kw is owned.
//
// "help" lists the commands.  A command missing from the table goes
// to the Command method when there is one.
func (g *GObj) Command(authz sdata.Authz, cmd string, kw *value.Value, src *GObj) *value.Value {
	defer kw.Decref()
	if err := g.usable("command "+cmd, false); err != nil {
		return response(-1, err.Error(), nil)
	}
	lg := g.Logger().With().Str("command", cmd).Logger()

	c, have := g.gclass.FindCommand(cmd)
	if !have {
		if cmd == "help" {
			return response(0, "", g.help())
		}
		if m := g.gclass.methods(); m.Command != nil {
			g.enter()
			defer g.leave()
			return ensureResponse(m.Command(g, cmd, kw, src))
		}
		err := &UnknownCommand{GClass: g.gclass.Name, Command: cmd}
		lg.Warn().Err(err).Msg("command")
		return response(-1, err.Error(), nil)
	}
	if c.Authz != 0 && !authz.Has(c.Authz) {
		lg.Warn().Msg(ErrUnauthorized.Error())
		return response(-1, ErrUnauthorized.Error(), nil)
	}

	g.enter()
	defer g.leave()
	return ensureResponse(c.Handler(g, cmd, kw, src))
}

// ensureResponse wraps a handler result that is not an envelope.
func ensureResponse(v *value.Value) *value.Value {
	if v.IsObject() && v.Has("result") {
		return v
	}
	return response(0, "", v)
}

func (g *GObj) help() *value.Value {
	acc := value.NewArray()
	for c := g.gclass; c != nil; c = c.Base {
		for _, cmd := range c.Commands {
			acc.Append(value.Obj(
				"command", cmd.Name,
				"alias", strings2value(cmd.Alias),
				"description", cmd.Description,
			))
		}
	}
	acc.Append(value.Obj(
		"command", "help",
		"alias", value.NewArray(),
		"description", "List the commands",
	))
	return acc
}

// CreateResource asks the GClass to create a resource.  kw is owned.
// The result is owned by the caller.
func (g *GObj) CreateResource(resource string, kw *value.Value) (*value.Value, error) {
	defer kw.Decref()
	if err := g.usable("create resource", false); err != nil {
		return nil, err
	}
	m := g.gclass.methods()
	if m.CreateResource == nil {
		return nil, ErrNotSupported
	}
	return m.CreateResource(g, resource, kw)
}

// ListResources returns the resources matching filter (owned).
func (g *GObj) ListResources(resource string, filter *value.Value) (*value.Value, error) {
	defer filter.Decref()
	if err := g.usable("list resources", false); err != nil {
		return nil, err
	}
	m := g.gclass.methods()
	if m.ListResources == nil {
		return nil, ErrNotSupported
	}
	return m.ListResources(g, resource, filter)
}

// DeleteResource deletes a resource.  record is owned.
func (g *GObj) DeleteResource(resource string, record *value.Value) error {
	defer record.Decref()
	if err := g.usable("delete resource", false); err != nil {
		return err
	}
	m := g.gclass.methods()
	if m.DeleteResource == nil {
		return ErrNotSupported
	}
	return m.DeleteResource(g, resource, record)
}

// GetResource returns one resource by id.
func (g *GObj) GetResource(resource, id string) (*value.Value, error) {
	if err := g.usable("get resource", false); err != nil {
		return nil, err
	}
	m := g.gclass.methods()
	if m.GetResource == nil {
		return nil, ErrNotSupported
	}
	return m.GetResource(g, resource, id)
}
