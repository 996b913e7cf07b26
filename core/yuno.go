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
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Comcast/gobj/value"
)

// EventNotHandledLevel is the severity of the log entry written when
// no table binds an event.
var EventNotHandledLevel = zerolog.ErrorLevel

// Handle identifies a GObj within its Yuno.  Handles are never
// reused.  Zero is no GObj.
type Handle uint64

// Yuno is the arena of GObjs of one process.
type Yuno struct {
	Registry *Registry

	// Logger receives every kernel log entry.
	Logger zerolog.Logger

	// Store, if not nil, holds the persistent attributes of
	// services.
	Store AttrStore

	// Ctx is given to the Store and to the couplings of IO gates.
	Ctx context.Context

	// TraceMachine logs every dispatch and publication at debug
	// level.
	TraceMachine bool

	next           Handle
	objs           map[Handle]*GObj
	root           Handle
	defaultService Handle
	services       map[string]Handle
	shutdowning    bool
	depth          int
}

// NewYuno makes an empty arena over the Registry.
func NewYuno(reg *Registry) *Yuno {
	return &Yuno{
		Registry: reg,
		Logger:   log.Logger,
		Ctx:      context.Background(),
		objs:     make(map[Handle]*GObj, 64),
		services: make(map[string]Handle, 8),
	}
}

// Get resolves a Handle.  A destroyed GObj resolves to nil.
func (y *Yuno) Get(h Handle) *GObj {
	if h == 0 {
		return nil
	}
	return y.objs[h]
}

// Root returns the GObj created with the Yuno flag.
func (y *Yuno) Root() *GObj {
	return y.Get(y.root)
}

// DefaultService returns the GObj created with the DefaultService
// flag.
func (y *Yuno) DefaultService() *GObj {
	return y.Get(y.defaultService)
}

// Len returns the number of live GObjs.
func (y *Yuno) Len() int {
	return len(y.objs)
}

// Instances returns the live GObjs of a GClass, or of every GClass
// if name is empty, in creation order.
func (y *Yuno) Instances(name string) []*GObj {
	acc := make([]*GObj, 0, 8)
	for _, g := range y.objs {
		if name == "" || g.gclass.Name == name {
			acc = append(acc, g)
		}
	}
	sort.Slice(acc, func(i, j int) bool {
		return acc[i].handle < acc[j].handle
	})
	return acc
}

// Services returns the service names, sorted.
func (y *Yuno) Services() []string {
	acc := make([]string, 0, len(y.services))
	for name := range y.services {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// FindService returns the service registered under name.  The names
// "__default_service__" and "__yuno__" are recognized too.
func (y *Yuno) FindService(name string) *GObj {
	switch name {
	case "__default_service__":
		return y.DefaultService()
	case "__yuno__", "__root__":
		return y.Root()
	}
	return y.Get(y.services[name])
}

// FindGObj resolves a path: a service name (or the root's name)
// followed by "`"-separated child names.  A segment may be "name" or
// "gclass^name".
func (y *Yuno) FindGObj(path string) *GObj {
	if path == "" {
		return nil
	}
	segs := strings.Split(path, "`")
	var g *GObj
	first := segs[0]
	if i := strings.IndexByte(first, '^'); i >= 0 {
		first = first[i+1:]
	}
	if root := y.Root(); root != nil && (root.name == first || segs[0] == root.ShortName()) {
		g = root
	} else {
		g = y.FindService(first)
	}
	for _, seg := range segs[1:] {
		if g == nil {
			return nil
		}
		g = g.ChildByName(seg)
	}
	return g
}

// StartServices starts the default service and every service
// created with the Autostart flag.
func (y *Yuno) StartServices() error {
	var errs []error
	for _, g := range y.serviceList() {
		if g.flag&(FlagAutostart|FlagDefaultService) == 0 || g.running || g.disabled {
			continue
		}
		if err := g.StartTree(); err != nil {
			errs = append(errs, err)
		}
	}
	return first(errs)
}

// PlayServices plays the default service and every service created
// with the Autoplay flag.
func (y *Yuno) PlayServices() error {
	var errs []error
	for _, g := range y.serviceList() {
		if g.flag&(FlagAutoplay|FlagDefaultService) == 0 || g.playing || g.disabled {
			continue
		}
		if err := g.Play(); err != nil {
			errs = append(errs, err)
		}
	}
	return first(errs)
}

// Shutdown pauses and stops every service, then destroys the root
// (or every top-level GObj when there is no root).
func (y *Yuno) Shutdown() {
	y.shutdowning = true
	for _, g := range y.serviceList() {
		if g.playing {
			g.Pause()
		}
	}
	for _, g := range y.serviceList() {
		if g.running {
			g.StopTree()
		}
	}
	if root := y.Root(); root != nil {
		if root.playing {
			root.Pause()
		}
		if root.running {
			root.StopTree()
		}
		root.Destroy()
	}
	for _, g := range y.Instances("") {
		if g.parent == 0 && !g.destroying {
			g.Destroy()
		}
	}
}

// IsShutdowning reports whether Shutdown has been called.
func (y *Yuno) IsShutdowning() bool {
	return y.shutdowning
}

func (y *Yuno) serviceList() []*GObj {
	acc := make([]*GObj, 0, len(y.services))
	for _, h := range y.services {
		if g := y.Get(h); g != nil {
			acc = append(acc, g)
		}
	}
	sort.Slice(acc, func(i, j int) bool {
		return acc[i].handle < acc[j].handle
	})
	return acc
}

// ServicesValue lists the services for introspection.
func (y *Yuno) ServicesValue() *value.Value {
	acc := value.NewArray()
	for _, g := range y.serviceList() {
		acc.Append(value.Obj(
			"service", g.name,
			"gclass", g.gclass.Name,
			"running", g.running,
			"playing", g.playing,
			"state", g.state,
		))
	}
	return acc
}

func (y *Yuno) ctx() context.Context {
	if y.Ctx == nil {
		return context.Background()
	}
	return y.Ctx
}

func first(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
