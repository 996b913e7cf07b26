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
	"strings"

	"github.com/Comcast/gobj/value"
)

// ChildByName returns the direct child called name.  name may be
// "gclass^name".
func (g *GObj) ChildByName(name string) *GObj {
	gclass := ""
	if i := strings.IndexByte(name, '^'); i >= 0 {
		gclass, name = name[:i], name[i+1:]
	}
	for _, c := range g.Children() {
		if c.name == name && (gclass == "" || c.gclass.Name == gclass) {
			return c
		}
	}
	return nil
}

// Matches reports whether g passes filter (borrowed).  Keys are
// attribute names, compared with value.CompareSimple, or one of
//
//	__gclass_name__  the GClass or one of its bases
//	__gobj_name__    the name
//	__state__        the current state
//	__running__, __playing__, __service__, __disabled__
//
// A nil or empty filter matches every GObj.
func (g *GObj) Matches(filter *value.Value) bool {
	ok := true
	filter.Each(func(k string, want *value.Value) bool {
		switch k {
		case "__gclass_name__":
			ok = g.gclass.IsA(want.Str())
		case "__gobj_name__":
			ok = g.name == want.Str()
		case "__state__":
			ok = g.state == want.Str()
		case "__running__":
			ok = g.running == want.Truthy()
		case "__playing__":
			ok = g.playing == want.Truthy()
		case "__service__":
			ok = g.IsService() == want.Truthy()
		case "__disabled__":
			ok = g.disabled == want.Truthy()
		default:
			have := g.attrs.Get(k)
			ok = have != nil && value.CompareSimple(have, want) == 0
		}
		return ok
	})
	return ok
}

// FindChildren returns the direct children matching filter
// (borrowed).
func (g *GObj) FindChildren(filter *value.Value) []*GObj {
	var acc []*GObj
	for _, c := range g.Children() {
		if c.Matches(filter) {
			acc = append(acc, c)
		}
	}
	return acc
}

// FindChild returns the first direct child matching filter
// (borrowed).
func (g *GObj) FindChild(filter *value.Value) *GObj {
	for _, c := range g.Children() {
		if c.Matches(filter) {
			return c
		}
	}
	return nil
}

// Search returns the descendants of g matching filter (borrowed),
// top to bottom.
func (g *GObj) Search(filter *value.Value) []*GObj {
	var acc []*GObj
	g.Walk(TopToBottom, func(x *GObj) int {
		if x.Matches(filter) {
			acc = append(acc, x)
		}
		return 0
	})
	return acc
}

// WalkType is the order of a Walk.
type WalkType int

const (
	// TopToBottom visits the descendants, each parent before its
	// children.
	TopToBottom WalkType = iota

	// BottomToTop visits the descendants, children before their
	// parent.
	BottomToTop

	// ByLevel visits the descendants level by level.
	ByLevel

	// FirstToLast visits the direct children in order.
	FirstToLast

	// LastToFirst visits the direct children in reverse order.
	LastToFirst
)

// Walk calls fn for the GObjs selected by wt.  g itself is not
// visited.  A negative result from fn stops the walk and is
// returned.
func (g *GObj) Walk(wt WalkType, fn func(*GObj) int) int {
	switch wt {
	case FirstToLast:
		for _, c := range g.Children() {
			if r := fn(c); r < 0 {
				return r
			}
		}
	case LastToFirst:
		children := g.Children()
		for i := len(children) - 1; i >= 0; i-- {
			if r := fn(children[i]); r < 0 {
				return r
			}
		}
	case TopToBottom:
		for _, c := range g.Children() {
			if r := fn(c); r < 0 {
				return r
			}
			if r := c.Walk(TopToBottom, fn); r < 0 {
				return r
			}
		}
	case BottomToTop:
		for _, c := range g.Children() {
			if r := c.Walk(BottomToTop, fn); r < 0 {
				return r
			}
			if r := fn(c); r < 0 {
				return r
			}
		}
	case ByLevel:
		level := g.Children()
		for len(level) > 0 {
			var next []*GObj
			for _, c := range level {
				if r := fn(c); r < 0 {
					return r
				}
				next = append(next, c.Children()...)
			}
			level = next
		}
	}
	return 0
}
