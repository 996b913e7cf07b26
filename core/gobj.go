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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/value"
)

// GObjFlag qualifies a GObj at creation.
type GObjFlag uint32

const (
	// FlagYuno marks the root of the arena.
	FlagYuno GObjFlag = 1 << iota

	// FlagDefaultService marks the service started and played by
	// Yuno.StartServices and Yuno.PlayServices.
	FlagDefaultService

	// FlagService registers the GObj by name.
	FlagService

	// FlagVolatil GObjs are not shown by ViewTree.
	FlagVolatil

	// FlagPureChild GObjs deliver their publications to their
	// parent.
	FlagPureChild

	FlagAutostart
	FlagAutoplay
)

var gobjFlagNames = []struct {
	f    GObjFlag
	name string
}{
	{FlagYuno, "yuno"},
	{FlagDefaultService, "default_service"},
	{FlagService, "service"},
	{FlagVolatil, "volatil"},
	{FlagPureChild, "pure_child"},
	{FlagAutostart, "autostart"},
	{FlagAutoplay, "autoplay"},
}

func (f GObjFlag) Names() []string {
	acc := make([]string, 0, 2)
	for _, x := range gobjFlagNames {
		if f&x.f != 0 {
			acc = append(acc, x.name)
		}
	}
	return acc
}

// ParseGObjFlag reads names like "service|autostart".
func ParseGObjFlag(s string) (GObjFlag, error) {
	var f GObjFlag
	for _, name := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	}) {
		name = strings.TrimPrefix(strings.ToLower(name), "gobj_flag_")
		found := false
		for _, x := range gobjFlagNames {
			if x.name == name {
				f |= x.f
				found = true
			}
		}
		if !found {
			return 0, &BadGClass{Reason: "unknown gobj flag " + name}
		}
	}
	return f, nil
}

// GObj is an instance of a GClass living in a Yuno.
//
// A *GObj stays valid as a Go pointer after destruction, but every
// entry point refuses to work on it.  Keep Handles, not pointers,
// across events when the target may go away.
type GObj struct {
	yuno   *Yuno
	handle Handle
	name   string
	gclass *GClass
	attrs  *sdata.Store
	flag   GObjFlag

	state     string
	lastState string

	parent   Handle
	children []Handle
	bottom   Handle

	subscriptions []*Subscription
	subscribings  []*Subscription

	running    bool
	playing    bool
	disabled   bool
	destroying bool
	destroyed  bool
	started    int

	// busy counts the dispatch frames and lifecycle callbacks
	// running for this GObj.
	busy int

	// Priv is private storage for the GClass's native state.
	Priv interface{}

	log      zerolog.Logger
	logReady bool
}

// Handle returns the arena handle of g.
func (g *GObj) Handle() Handle {
	if g == nil {
		return 0
	}
	return g.handle
}

func (g *GObj) Yuno() *Yuno {
	return g.yuno
}

func (g *GObj) Name() string {
	return g.name
}

func (g *GObj) GClass() *GClass {
	return g.gclass
}

func (g *GObj) GClassName() string {
	return g.gclass.Name
}

func (g *GObj) Flag() GObjFlag {
	return g.flag
}

// ShortName is "gclass^name".
func (g *GObj) ShortName() string {
	return g.gclass.Name + "^" + g.name
}

// FullName is the "`"-separated list of short names from the top of
// the tree down to g.
func (g *GObj) FullName() string {
	var segs []string
	for x := g; x != nil; x = x.Parent() {
		segs = append(segs, x.ShortName())
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return strings.Join(segs, "`")
}

// State returns the current state.
func (g *GObj) State() string {
	return g.state
}

// LastState returns the state before the last transition.
func (g *GObj) LastState() string {
	return g.lastState
}

func (g *GObj) IsRunning() bool    { return g.running }
func (g *GObj) IsPlaying() bool    { return g.playing }
func (g *GObj) IsDisabled() bool   { return g.disabled }
func (g *GObj) IsDestroying() bool { return g.destroying }
func (g *GObj) IsService() bool    { return g.flag&(FlagService|FlagDefaultService) != 0 }
func (g *GObj) IsVolatil() bool    { return g.flag&FlagVolatil != 0 }
func (g *GObj) IsPureChild() bool  { return g.flag&FlagPureChild != 0 }

// live reports whether g can take part in kernel operations.
func (g *GObj) live() bool {
	return g != nil && !g.destroyed && !g.destroying
}

// usable fails op on a nil or destroyed GObj, and also on one being
// destroyed unless duringDestroy.  Every refusal is logged.
func (g *GObj) usable(op string, duringDestroy bool) error {
	if g == nil {
		log.Error().Str("op", op).Msg(ErrNilGObj.Error())
		return ErrNilGObj
	}
	if g.destroyed {
		g.Logger().Error().Str("op", op).Msg(ErrDestroyed.Error())
		return ErrDestroyed
	}
	if g.destroying && !duringDestroy {
		g.Logger().Error().Str("op", op).Msg(ErrDestroying.Error())
		return ErrDestroying
	}
	return nil
}

// Logger returns a logger carrying the identity of g.
func (g *GObj) Logger() *zerolog.Logger {
	if !g.logReady {
		g.log = g.yuno.Logger.With().
			Str("gobj", g.FullName()).
			Str("gclass", g.gclass.Name).
			Logger()
		g.logReady = true
	}
	return &g.log
}

// Parent returns the parent or nil.
func (g *GObj) Parent() *GObj {
	if g == nil {
		return nil
	}
	return g.yuno.Get(g.parent)
}

// Children returns the live children in creation order.
func (g *GObj) Children() []*GObj {
	acc := make([]*GObj, 0, len(g.children))
	for _, h := range g.children {
		if c := g.yuno.Get(h); c != nil {
			acc = append(acc, c)
		}
	}
	return acc
}

// ChildCount returns the number of children.
func (g *GObj) ChildCount() int {
	return len(g.children)
}

// Bottom returns the bottom GObj or nil.
func (g *GObj) Bottom() *GObj {
	return g.yuno.Get(g.bottom)
}

// SetBottom designates b (nil to clear) as the layer beneath g.
func (g *GObj) SetBottom(b *GObj) error {
	if err := g.usable("set bottom", false); err != nil {
		return err
	}
	if b == nil {
		g.bottom = 0
		return nil
	}
	if !b.live() {
		return ErrDestroyed
	}
	for x := b; x != nil; x = x.Bottom() {
		if x == g {
			return ErrBottomCycle
		}
	}
	g.bottom = b.handle
	return nil
}

// LastBottom follows the bottom chain to its end.  A GObj without a
// bottom is its own last bottom.
func (g *GObj) LastBottom() *GObj {
	x := g
	for {
		b := x.Bottom()
		if b == nil {
			return x
		}
		x = b
	}
}

// ReadAttr returns the borrowed Value of the attribute, or nil if
// the GClass does not declare it.  Bottom GObjs are searched when g
// does not have the attribute.
func (g *GObj) ReadAttr(name string) *value.Value {
	for x := g; x != nil; x = x.Bottom() {
		if x.attrs.Has(name) {
			return x.attrs.Get(name)
		}
	}
	return nil
}

func (g *GObj) ReadStr(name string) string {
	return g.ReadAttr(name).Str()
}

func (g *GObj) ReadInt(name string) int64 {
	return value.AsInt(g.ReadAttr(name))
}

func (g *GObj) ReadReal(name string) float64 {
	return value.AsReal(g.ReadAttr(name))
}

func (g *GObj) ReadBool(name string) bool {
	return g.ReadAttr(name).Truthy()
}

// HasAttr reports whether g (not its bottom) declares the attribute.
func (g *GObj) HasAttr(name string) bool {
	return g.attrs.Has(name)
}

// ReadAttrAs reads an attribute with the authorization of a caller.
// The result is borrowed.
func (g *GObj) ReadAttrAs(authz sdata.Authz, name string) (*value.Value, error) {
	if err := g.usable("read attr", true); err != nil {
		return nil, err
	}
	v, err := g.attrs.Read(authz, name)
	if err != nil {
		g.Logger().Warn().Err(err).Str("attr", name).Msg("read rejected")
	}
	return v, err
}

// WriteAttr writes an attribute with the kernel authority.  v is
// owned.
func (g *GObj) WriteAttr(name string, v *value.Value) error {
	return g.WriteAttrAs(sdata.Internal, name, v)
}

// WriteAttrAs writes an attribute with the authorization of a
// caller.  v is owned.  A rejected write leaves the attribute
// unchanged.
func (g *GObj) WriteAttrAs(authz sdata.Authz, name string, v *value.Value) error {
	if err := g.usable("write attr", true); err != nil {
		v.Decref()
		return err
	}
	if err := g.attrs.Write(authz, name, v); err != nil {
		g.Logger().Error().Err(err).Str("attr", name).Msg("write rejected")
		return err
	}
	if m := g.gclass.methods(); m.Writing != nil {
		g.busy++
		m.Writing(g, name)
		g.busy--
	}
	return nil
}

func (g *GObj) WriteStr(name, s string) error {
	return g.WriteAttr(name, value.NewString(s))
}

func (g *GObj) WriteInt(name string, n int64) error {
	return g.WriteAttr(name, value.NewInt(n))
}

func (g *GObj) WriteReal(name string, f float64) error {
	return g.WriteAttr(name, value.NewReal(f))
}

func (g *GObj) WriteBool(name string, b bool) error {
	return g.WriteAttr(name, value.NewBool(b))
}

// ReadAttrs returns a new object with the attributes the caller can
// read whose flags intersect mask (0 for all).
func (g *GObj) ReadAttrs(authz sdata.Authz, mask sdata.Flag) *value.Value {
	return g.attrs.ReadAttrs(authz, mask)
}

// WriteAttrs writes the members of kw (owned) the caller can write.
// Unknown names are ignored.
func (g *GObj) WriteAttrs(authz sdata.Authz, kw *value.Value, mask sdata.Flag) error {
	defer kw.Decref()
	if err := g.usable("write attrs", true); err != nil {
		return err
	}
	written, _, err := g.attrs.WriteAttrs(authz, kw, mask)
	if err != nil {
		g.Logger().Error().Err(err).Msg("write rejected")
	}
	if m := g.gclass.methods(); m.Writing != nil && 0 < len(written) {
		g.busy++
		for _, name := range written {
			m.Writing(g, name)
		}
		g.busy--
	}
	return err
}

// IncrStat adds delta to a stats attribute and returns the new
// count.
func (g *GObj) IncrStat(name string, delta int64) int64 {
	n, err := g.attrs.Incr(name, delta)
	if err != nil {
		g.Logger().Error().Err(err).Str("attr", name).Msg("incr stat")
	}
	return n
}

// ResetStats zeroes the resettable stats attributes.
func (g *GObj) ResetStats() {
	g.attrs.ResetStats()
}
