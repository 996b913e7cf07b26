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

	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/value"
)

// Create makes a GObj of the named GClass under parent.  kw (owned)
// holds initial attribute values written over the defaults.
//
// A nil parent attaches the GObj to the root, if there is one.
func (y *Yuno) Create(name, gclass string, kw *value.Value, parent *GObj) (*GObj, error) {
	return y.CreateWithFlags(name, gclass, kw, parent, 0)
}

// CreateService is Create registering the GObj as a service.
func (y *Yuno) CreateService(name, gclass string, kw *value.Value, parent *GObj) (*GObj, error) {
	return y.CreateWithFlags(name, gclass, kw, parent, FlagService)
}

// CreateDefaultService creates the service started by
// Yuno.StartServices.
func (y *Yuno) CreateDefaultService(name, gclass string, kw *value.Value, parent *GObj) (*GObj, error) {
	return y.CreateWithFlags(name, gclass, kw, parent, FlagDefaultService|FlagService)
}

func (y *Yuno) CreateVolatil(name, gclass string, kw *value.Value, parent *GObj) (*GObj, error) {
	return y.CreateWithFlags(name, gclass, kw, parent, FlagVolatil)
}

func (y *Yuno) CreatePureChild(name, gclass string, kw *value.Value, parent *GObj) (*GObj, error) {
	return y.CreateWithFlags(name, gclass, kw, parent, FlagPureChild)
}

// CreateRoot creates the root GObj of the arena.
func (y *Yuno) CreateRoot(name, gclass string, kw *value.Value) (*GObj, error) {
	return y.CreateWithFlags(name, gclass, kw, nil, FlagYuno)
}

// CreateWithFlags is the general form of Create.
func (y *Yuno) CreateWithFlags(name, gclass string, kw *value.Value, parent *GObj, flag GObjFlag) (*GObj, error) {
	defer kw.Decref()

	lg := y.Logger.With().Str("gclass", gclass).Str("name", name).Logger()

	gc, have := y.Registry.Find(gclass)
	if !have {
		lg.Error().Msg("gclass not found")
		return nil, fmt.Errorf("%w: %s", ErrGClassNotFound, gclass)
	}
	if strings.ContainsAny(name, "`^") {
		lg.Error().Msg("invalid name")
		return nil, ErrBadName
	}
	if gc.Flag&Singleton != 0 && 0 < gc.instances {
		lg.Error().Msg("singleton gclass already instantiated")
		return nil, ErrSingleton
	}
	if flag&FlagDefaultService != 0 {
		flag |= FlagService
		if y.defaultService != 0 {
			lg.Error().Msg("default service already created")
			return nil, ErrServiceExists
		}
	}
	if flag&FlagYuno != 0 && y.root != 0 {
		lg.Error().Msg("root already created")
		return nil, ErrRootExists
	}
	if flag&FlagService != 0 {
		if name == "" {
			lg.Error().Msg("service without name")
			return nil, ErrBadName
		}
		if _, have := y.services[name]; have {
			lg.Error().Msg("service already registered")
			return nil, ErrServiceExists
		}
	}
	if parent != nil && !parent.live() {
		lg.Error().Msg("parent destroyed")
		return nil, ErrDestroying
	}
	if parent == nil && flag&FlagYuno == 0 {
		parent = y.Root()
	}

	attrs, err := sdata.NewStore(gc.schema)
	if err != nil {
		lg.Error().Err(err).Msg("attributes")
		return nil, err
	}

	y.Registry.Seal()
	y.next++
	g := &GObj{
		yuno:   y,
		handle: y.next,
		name:   name,
		gclass: gc,
		attrs:  attrs,
		flag:   flag,
		state:  gc.initialState(),
	}
	y.objs[g.handle] = g
	if parent != nil {
		g.parent = parent.handle
		parent.children = append(parent.children, g.handle)
	}
	if flag&FlagYuno != 0 {
		y.root = g.handle
	}
	if flag&FlagService != 0 {
		y.services[name] = g.handle
	}
	if flag&FlagDefaultService != 0 {
		y.defaultService = g.handle
	}
	gc.instances++

	if kw != nil {
		_, unknown, err := attrs.WriteAttrs(sdata.Internal, kw, 0)
		if 0 < len(unknown) && gc.Flag&IgnoreUnknownAttrs == 0 {
			g.Logger().Warn().Strs("attrs", unknown).Msg("attributes not declared")
		}
		if err != nil {
			g.Logger().Error().Err(err).Msg("initial attributes")
		}
	}

	if g.IsService() && y.Store != nil {
		if err := g.LoadAttrs(); err != nil {
			g.Logger().Warn().Err(err).Msg("load persistent attributes")
		}
	}

	if m := gc.methods(); m.Create != nil {
		g.enter()
		m.Create(g)
		g.leave()
	}
	if parent != nil {
		if m := parent.gclass.methods(); m.ChildAdded != nil {
			parent.enter()
			m.ChildAdded(parent, g)
			parent.leave()
		}
	}

	if y.TraceMachine {
		g.Logger().Debug().Str("state", g.state).Msg("created")
	}

	return g, nil
}

// CreateTree builds a GObj and its descendants from a description
// (owned):
//
//	{"gclass": "C_X", "name": "x", "kw": {...}, "flag": "service",
//	 "bottom": "child-name", "zchilds": [ ... ]}
//
// "children" is accepted for "zchilds".
func (y *Yuno) CreateTree(parent *GObj, tree *value.Value) (*GObj, error) {
	defer tree.Decref()
	return y.createTree(parent, tree)
}

func (y *Yuno) createTree(parent *GObj, tree *value.Value) (*GObj, error) {
	if !tree.IsObject() {
		return nil, &BadGClass{Reason: "tree node is not an object"}
	}
	flag, err := ParseGObjFlag(tree.GetStr("flag", ""))
	if err != nil {
		return nil, err
	}
	if tree.GetBool("default_service", false) {
		flag |= FlagDefaultService
	}
	if tree.GetBool("service", false) {
		flag |= FlagService
	}
	if tree.GetBool("autostart", false) {
		flag |= FlagAutostart
	}
	if tree.GetBool("autoplay", false) {
		flag |= FlagAutoplay
	}

	kw := tree.Get("kw").Clone()
	g, err := y.CreateWithFlags(tree.GetStr("name", ""), tree.GetStr("gclass", ""), kw, parent, flag)
	if err != nil {
		return nil, err
	}
	if tree.GetBool("disabled", false) {
		g.disabled = true
	}

	children := tree.Get("zchilds")
	if children == nil {
		children = tree.Get("children")
	}
	children.EachItem(func(_ int, child *value.Value) bool {
		if _, err = y.createTree(g, child); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		g.Destroy()
		return nil, err
	}

	if b := tree.GetStr("bottom", ""); b != "" {
		if err := g.SetBottom(g.ChildByName(b)); err != nil {
			g.Logger().Error().Err(err).Str("bottom", b).Msg("set bottom")
		}
	}

	return g, nil
}

func (g *GObj) enter() {
	g.busy++
	g.yuno.depth++
}

func (g *GObj) leave() {
	g.busy--
	g.yuno.depth--
}

// Destroy tears down g and its subtree.  The second call is a
// logged no-op.
func (g *GObj) Destroy() {
	if g == nil {
		return
	}
	if g.destroyed || g.destroying {
		g.Logger().Warn().Msg("gobj already destroyed")
		return
	}
	y := g.yuno
	g.destroying = true

	parent := g.Parent()
	if parent != nil {
		if m := parent.gclass.methods(); m.ChildRemoved != nil {
			parent.enter()
			m.ChildRemoved(parent, g)
			parent.leave()
		}
	}

	if g.IsService() && y.services[g.name] == g.handle {
		delete(y.services, g.name)
	}
	if y.defaultService == g.handle {
		y.defaultService = 0
	}
	if y.root == g.handle {
		y.root = 0
	}

	if g.playing {
		g.Pause()
	}
	if g.running {
		g.Stop()
	}

	g.UnsubscribeList(g.Subscriptions(), true)
	g.UnsubscribeList(g.Subscribings(), true)

	if parent != nil {
		parent.removeChild(g.handle)
	}

	children := make([]Handle, len(g.children))
	copy(children, g.children)
	for _, h := range children {
		if c := y.Get(h); c != nil && !c.destroying {
			c.Destroy()
		}
	}

	if m := g.gclass.methods(); m.Destroy != nil {
		g.enter()
		m.Destroy(g)
		g.leave()
	}

	if y.TraceMachine {
		g.Logger().Debug().Msg("destroyed")
	}

	g.destroyed = true
	delete(y.objs, g.handle)
	g.attrs.Release()
	g.children = nil
	g.bottom = 0
	g.gclass.instances--
}

func (g *GObj) removeChild(h Handle) {
	for i, c := range g.children {
		if c == h {
			g.children = append(g.children[:i], g.children[i+1:]...)
			return
		}
	}
}

// Start sets the running flag and calls the Start method.  Required
// attributes must have values.  A restart resets the volatile and
// the resettable stats attributes.
func (g *GObj) Start() error {
	if err := g.usable("start", false); err != nil {
		return err
	}
	if g.running {
		g.Logger().Warn().Msg("gobj already running")
		return ErrAlreadyRunning
	}
	if g.disabled {
		g.Logger().Warn().Msg("gobj disabled")
		return ErrDisabled
	}
	if missing := g.attrs.Missing(); 0 < len(missing) {
		g.Logger().Error().Strs("attrs", missing).Msg(ErrRequiredAttrs.Error())
		return ErrRequiredAttrs
	}
	if 0 < g.started {
		g.attrs.ResetVolatile()
		g.attrs.ResetStats()
	}
	g.running = true
	g.started++
	if m := g.gclass.methods(); m.Start != nil {
		g.enter()
		err := m.Start(g)
		g.leave()
		if err != nil {
			g.running = false
			g.Logger().Error().Err(err).Msg("start")
			return err
		}
	}
	return nil
}

// Stop pauses g if needed, clears the running flag and calls the
// Stop method.
func (g *GObj) Stop() error {
	if err := g.usable("stop", true); err != nil {
		return err
	}
	if !g.running {
		g.Logger().Warn().Msg("gobj not running")
		return ErrNotRunning
	}
	if g.playing {
		g.Pause()
	}
	g.running = false
	if m := g.gclass.methods(); m.Stop != nil {
		g.enter()
		err := m.Stop(g)
		g.leave()
		if err != nil {
			g.Logger().Error().Err(err).Msg("stop")
			return err
		}
	}
	return nil
}

// Play sets the playing flag and calls the Play method.  A stopped
// GObj is started first unless its GClass has RequiredStartToPlay.
func (g *GObj) Play() error {
	if err := g.usable("play", false); err != nil {
		return err
	}
	if g.playing {
		g.Logger().Warn().Msg("gobj already playing")
		return ErrAlreadyPlaying
	}
	if g.disabled {
		g.Logger().Warn().Msg("gobj disabled")
		return ErrDisabled
	}
	if !g.running {
		if g.gclass.Flag&RequiredStartToPlay != 0 {
			g.Logger().Error().Msg("cannot play a stopped gobj")
			return ErrNotRunning
		}
		if err := g.Start(); err != nil {
			return err
		}
	}
	g.playing = true
	if m := g.gclass.methods(); m.Play != nil {
		g.enter()
		err := m.Play(g)
		g.leave()
		if err != nil {
			g.playing = false
			g.Logger().Error().Err(err).Msg("play")
			return err
		}
	}
	return nil
}

// Pause clears the playing flag and calls the Pause method.
func (g *GObj) Pause() error {
	if err := g.usable("pause", true); err != nil {
		return err
	}
	if !g.playing {
		g.Logger().Warn().Msg("gobj not playing")
		return ErrNotPlaying
	}
	g.playing = false
	if m := g.gclass.methods(); m.Pause != nil {
		g.enter()
		err := m.Pause(g)
		g.leave()
		if err != nil {
			g.Logger().Error().Err(err).Msg("pause")
			return err
		}
	}
	return nil
}

// StartTree starts g and then its descendants, parents first.
// Subtrees rooted at a disabled GObj or a ManualStart GClass are
// skipped.
func (g *GObj) StartTree() error {
	if !g.running {
		if err := g.Start(); err != nil {
			return err
		}
	}
	var errs []error
	for _, c := range g.Children() {
		if c.disabled || c.gclass.Flag&ManualStart != 0 {
			continue
		}
		if err := c.StartTree(); err != nil {
			errs = append(errs, err)
		}
	}
	return first(errs)
}

// StopTree stops the descendants of g and then g, children first.
func (g *GObj) StopTree() error {
	var errs []error
	for _, c := range g.Children() {
		if err := c.StopTree(); err != nil {
			errs = append(errs, err)
		}
	}
	if g.running {
		if err := g.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return first(errs)
}

// StartChildren starts the direct children that are neither running,
// disabled nor ManualStart.
func (g *GObj) StartChildren() error {
	var errs []error
	for _, c := range g.Children() {
		if c.running || c.disabled || c.gclass.Flag&ManualStart != 0 {
			continue
		}
		if err := c.Start(); err != nil {
			errs = append(errs, err)
		}
	}
	return first(errs)
}

// StopChildren stops the running direct children.
func (g *GObj) StopChildren() error {
	var errs []error
	for _, c := range g.Children() {
		if !c.running {
			continue
		}
		if err := c.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return first(errs)
}

// Disable stops the subtree of g and keeps StartTree away from it.
func (g *GObj) Disable() error {
	if err := g.usable("disable", false); err != nil {
		return err
	}
	if g.disabled {
		return nil
	}
	err := g.StopTree()
	g.disabled = true
	return err
}

// Enable clears the disabled flag and starts the subtree.
func (g *GObj) Enable() error {
	if err := g.usable("enable", false); err != nil {
		return err
	}
	if !g.disabled {
		return nil
	}
	g.disabled = false
	return g.StartTree()
}
