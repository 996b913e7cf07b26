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

	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/value"
)

// EvStateChanged is published (with {"previous_state",
// "current_state"}) whenever a GObj changes state, unless its GClass
// has a StateChanged method.
const EvStateChanged = "EV_STATE_CHANGED"

// Action handles an event.  kw is borrowed.  A negative return
// reports failure to the sender; it does not change the state.
type Action func(g *GObj, event string, kw *value.Value, src *GObj) int

// EvAction binds an event to an Action and an optional next state.
//
// The next state, when given, is entered before the Action runs.
// Either may be omitted.
type EvAction struct {
	Event     string
	Action    Action
	NextState string
}

// State is a named set of bindings.
type State struct {
	Name    string
	Actions []EvAction
}

// EventFlag qualifies an event type.
type EventFlag uint32

const (
	// EvfNoWarnSubs suppresses the warning for a publication
	// without subscribers.
	EvfNoWarnSubs EventFlag = 1 << iota

	// EvfOutputEvent marks an event the GClass may publish.
	EvfOutputEvent

	// EvfSystemEvent marks a kernel event such as
	// EV_STATE_CHANGED.
	EvfSystemEvent

	EvfPublicEvent
)

var eventFlagNames = []struct {
	f    EventFlag
	name string
}{
	{EvfNoWarnSubs, "EVF_NO_WARN_SUBS"},
	{EvfOutputEvent, "EVF_OUTPUT_EVENT"},
	{EvfSystemEvent, "EVF_SYSTEM_EVENT"},
	{EvfPublicEvent, "EVF_PUBLIC_EVENT"},
}

func (f EventFlag) Names() []string {
	acc := make([]string, 0, 2)
	for _, x := range eventFlagNames {
		if f&x.f != 0 {
			acc = append(acc, x.name)
		}
	}
	return acc
}

// ParseEventFlag reads names like "EVF_OUTPUT_EVENT|EVF_NO_WARN_SUBS"
// ("EVF_" optional).
func ParseEventFlag(s string) (EventFlag, error) {
	var f EventFlag
	for _, name := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	}) {
		name = strings.ToUpper(name)
		if !strings.HasPrefix(name, "EVF_") {
			name = "EVF_" + name
		}
		found := false
		for _, x := range eventFlagNames {
			if x.name == name {
				f |= x.f
				found = true
			}
		}
		if !found {
			return 0, &BadGClass{Reason: "unknown event flag " + name}
		}
	}
	return f, nil
}

// EventType declares an event.
type EventType struct {
	Name        string
	Flag        EventFlag
	Description string
}

// GClassFlag qualifies a GClass.
type GClassFlag uint32

const (
	// ManualStart instances are skipped by StartTree.
	ManualStart GClassFlag = 1 << iota

	// NoCheckOutputEvents lets instances publish and accept
	// subscriptions for undeclared events.
	NoCheckOutputEvents

	// IgnoreUnknownAttrs silences the warning for creation
	// attributes the schema does not declare.
	IgnoreUnknownAttrs

	// RequiredStartToPlay makes Play fail on a stopped instance
	// instead of starting it.
	RequiredStartToPlay

	// Singleton GClasses have at most one instance.
	Singleton
)

var gclassFlagNames = []struct {
	f    GClassFlag
	name string
}{
	{ManualStart, "GCFLAG_MANUAL_START"},
	{NoCheckOutputEvents, "GCFLAG_NO_CHECK_OUTPUT_EVENTS"},
	{IgnoreUnknownAttrs, "GCFLAG_IGNORE_UNKNOWN_ATTRS"},
	{RequiredStartToPlay, "GCFLAG_REQUIRED_START_TO_PLAY"},
	{Singleton, "GCFLAG_SINGLETON"},
}

func (f GClassFlag) Names() []string {
	acc := make([]string, 0, 2)
	for _, x := range gclassFlagNames {
		if f&x.f != 0 {
			acc = append(acc, x.name)
		}
	}
	return acc
}

// ParseGClassFlag reads names like "MANUAL_START|SINGLETON".
func ParseGClassFlag(s string) (GClassFlag, error) {
	var f GClassFlag
	for _, name := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	}) {
		name = strings.ToUpper(name)
		if !strings.HasPrefix(name, "GCFLAG_") {
			name = "GCFLAG_" + name
		}
		found := false
		for _, x := range gclassFlagNames {
			if x.name == name {
				f |= x.f
				found = true
			}
		}
		if !found {
			return 0, &BadGClass{Reason: "unknown gclass flag " + name}
		}
	}
	return f, nil
}

// Command is an entry of the command table.
type Command struct {
	Name        string
	Alias       []string
	Description string

	// Authz is the grant the caller needs.  Zero means anyone.
	Authz sdata.Authz

	// Handler returns the response (owned by the caller).  kw is
	// borrowed.
	Handler func(g *GObj, cmd string, kw *value.Value, src *GObj) *value.Value
}

// AuthzDesc documents an authorization the GClass checks.
type AuthzDesc struct {
	Name        string
	Description string
}

// Methods are the optional callbacks of a GClass.  A nil method is
// looked up in the Base.
type Methods struct {
	// Create runs after the attributes are written and the
	// instance is linked to its parent.
	Create func(g *GObj)

	// Destroy runs after the children have been destroyed.
	Destroy func(g *GObj)

	Start func(g *GObj) error
	Stop  func(g *GObj) error
	Play  func(g *GObj) error
	Pause func(g *GObj) error

	// Writing runs after each successful attribute write.
	Writing func(g *GObj, attr string)

	// SubscriptionAdded can reject a subscription by returning a
	// negative number.
	SubscriptionAdded   func(g *GObj, sub *Subscription) int
	SubscriptionDeleted func(g *GObj, sub *Subscription) int

	ChildAdded   func(g *GObj, child *GObj)
	ChildRemoved func(g *GObj, child *GObj)

	// InjectEvent receives the events no table binds.  kw is
	// borrowed.
	InjectEvent func(g *GObj, event string, kw *value.Value, src *GObj) int

	// StateChanged replaces the EV_STATE_CHANGED publication.  kw
	// is borrowed.
	StateChanged func(g *GObj, event string, kw *value.Value) int

	// PublishEvent runs before any delivery.  A result <= 0 stops
	// the publication.
	PublishEvent func(g *GObj, event string, kw *value.Value) int

	// PublicationPreFilter runs for every subscription: < 0 stops
	// the publication, 0 skips the subscription.
	PublicationPreFilter func(g *GObj, sub *Subscription, event string, kw *value.Value) int

	// PublicationFilter runs for every matching subscription: < 0
	// stops the publication, 0 skips the subscriber.
	PublicationFilter func(g *GObj, event string, kw *value.Value, subscriber *GObj) int

	// Stats returns a new Value.  kw is borrowed.
	Stats func(g *GObj, stats string, kw *value.Value, src *GObj) *value.Value

	// Command handles commands missing from the command table.
	Command func(g *GObj, cmd string, kw *value.Value, src *GObj) *value.Value

	CreateResource func(g *GObj, resource string, kw *value.Value) (*value.Value, error)
	ListResources  func(g *GObj, resource string, filter *value.Value) (*value.Value, error)
	DeleteResource func(g *GObj, resource string, record *value.Value) error
	GetResource    func(g *GObj, resource string, id string) (*value.Value, error)
}

// GClass is a registered type of GObj.
//
// Fill the exported fields and call Registry.Register.  A registered
// GClass must not be modified.
type GClass struct {
	Name string
	Doc  string

	// Base, if not nil, must be registered already.
	Base *GClass

	// Attrs are added to the Base's attributes.  An attribute
	// with the same name as a Base attribute replaces it.
	Attrs sdata.Schema

	// States are consulted first for the current state.  The
	// first State is the initial one unless InitialState says
	// otherwise.
	States []State

	// Global bindings apply in any state.
	Global []EvAction

	// Events declares the events the GClass publishes (and,
	// optionally, documents inputs).  Events bound in States or
	// Global are input events whether declared or not.
	Events []EventType

	Methods  Methods
	Commands []Command
	Authzs   []AuthzDesc
	Flag     GClassFlag

	InitialState string

	registry  *Registry
	schema    sdata.Schema
	states    map[string]map[string]*EvAction
	global    map[string]*EvAction
	events    map[string]*EventType
	inputs    map[string]bool
	resolved  Methods
	instances int
}

// ValidName reports whether s can name a GClass or a GObj.
func ValidName(s string) bool {
	return s != "" && !strings.ContainsAny(s, "`^.")
}

// compile checks the definition and builds the lookup tables.
func (gc *GClass) compile() error {
	bad := func(reason string) error {
		return &BadGClass{GClass: gc.Name, Reason: reason}
	}

	if !ValidName(gc.Name) {
		return bad("invalid name")
	}

	// Attributes: base first, then ours, ours replacing.
	var schema sdata.Schema
	if gc.Base != nil {
		schema = append(schema, gc.Base.schema...)
	}
	for _, d := range gc.Attrs {
		replaced := false
		for i := range schema {
			if schema[i].Name == d.Name {
				schema[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			schema = append(schema, d)
		}
	}
	if err := gc.Attrs.Validate(); err != nil {
		return bad(err.Error())
	}
	if err := schema.Validate(); err != nil {
		return bad(err.Error())
	}
	gc.schema = schema

	gc.states = make(map[string]map[string]*EvAction, len(gc.States))
	gc.inputs = make(map[string]bool)
	for i := range gc.States {
		st := &gc.States[i]
		if st.Name == "" {
			return bad("state without name")
		}
		if _, have := gc.states[st.Name]; have {
			return bad("duplicate state " + st.Name)
		}
		table := make(map[string]*EvAction, len(st.Actions))
		for j := range st.Actions {
			ea := &st.Actions[j]
			if ea.Event == "" {
				return bad("event without name in state " + st.Name)
			}
			if _, have := table[ea.Event]; have {
				return bad("duplicate event " + ea.Event + " in state " + st.Name)
			}
			table[ea.Event] = ea
			gc.inputs[ea.Event] = true
		}
		gc.states[st.Name] = table
	}
	if len(gc.States) == 0 && gc.Base == nil {
		return bad("no states")
	}

	gc.resolved = gc.Methods
	if gc.Base != nil {
		gc.resolved.inherit(&gc.Base.resolved)
	}

	gc.global = make(map[string]*EvAction, len(gc.Global))
	for i := range gc.Global {
		ea := &gc.Global[i]
		if ea.Event == "" {
			return bad("global event without name")
		}
		if _, have := gc.global[ea.Event]; have {
			return bad("duplicate global event " + ea.Event)
		}
		gc.global[ea.Event] = ea
		gc.inputs[ea.Event] = true
	}

	check := func(next string) error {
		if next != "" && !gc.HasState(next) {
			return &UnknownState{GClass: gc.Name, State: next}
		}
		return nil
	}
	for _, st := range gc.States {
		for _, ea := range st.Actions {
			if err := check(ea.NextState); err != nil {
				return err
			}
		}
	}
	for _, ea := range gc.Global {
		if err := check(ea.NextState); err != nil {
			return err
		}
	}
	if err := check(gc.InitialState); err != nil {
		return err
	}

	gc.events = make(map[string]*EventType, len(gc.Events))
	for i := range gc.Events {
		et := &gc.Events[i]
		if et.Name == "" {
			return bad("event type without name")
		}
		if _, have := gc.events[et.Name]; have {
			return bad("duplicate event type " + et.Name)
		}
		gc.events[et.Name] = et
	}

	seen := make(map[string]bool, len(gc.Commands))
	for _, c := range gc.Commands {
		for _, name := range append([]string{c.Name}, c.Alias...) {
			if name == "" {
				return bad("command without name")
			}
			if seen[name] {
				return bad("duplicate command " + name)
			}
			seen[name] = true
		}
		if c.Handler == nil {
			return bad("command " + c.Name + " without handler")
		}
	}

	return nil
}

// Schema returns the attribute table including the Base's.
func (gc *GClass) Schema() sdata.Schema {
	return gc.schema
}

// Instances returns the number of live instances.
func (gc *GClass) Instances() int {
	return gc.instances
}

// IsA reports whether gc is name or inherits from it.
func (gc *GClass) IsA(name string) bool {
	for c := gc; c != nil; c = c.Base {
		if c.Name == name {
			return true
		}
	}
	return false
}

// HasState reports whether gc or a base declares the state.
func (gc *GClass) HasState(name string) bool {
	for c := gc; c != nil; c = c.Base {
		for _, st := range c.States {
			if st.Name == name {
				return true
			}
		}
	}
	return false
}

// StateNames lists the states, ours first.
func (gc *GClass) StateNames() []string {
	var acc []string
	seen := make(map[string]bool)
	for c := gc; c != nil; c = c.Base {
		for _, st := range c.States {
			if !seen[st.Name] {
				seen[st.Name] = true
				acc = append(acc, st.Name)
			}
		}
	}
	return acc
}

// Initial returns the state new instances enter.
func (gc *GClass) Initial() string {
	return gc.initialState()
}

func (gc *GClass) initialState() string {
	for c := gc; c != nil; c = c.Base {
		if c.InitialState != "" {
			return c.InitialState
		}
		if len(c.States) > 0 {
			return c.States[0].Name
		}
	}
	return ""
}

// FindAction resolves an event in a state: the state's table, then
// the global table, then the same in the Base.
func (gc *GClass) FindAction(state, event string) (*EvAction, *GClass) {
	for c := gc; c != nil; c = c.Base {
		if table, have := c.states[state]; have {
			if ea, have := table[event]; have {
				return ea, c
			}
		}
		if ea, have := c.global[event]; have {
			return ea, c
		}
	}
	return nil, nil
}

// EventType returns the declared event type, searching the Base.
// EV_STATE_CHANGED is a system event of every GClass.
func (gc *GClass) EventType(name string) (*EventType, bool) {
	for c := gc; c != nil; c = c.Base {
		if et, have := c.events[name]; have {
			return et, true
		}
	}
	if name == EvStateChanged {
		return stateChangedType, true
	}
	return nil, false
}

var stateChangedType = &EventType{
	Name:        EvStateChanged,
	Flag:        EvfSystemEvent | EvfNoWarnSubs,
	Description: "The state of the gobj changed",
}

// HasInputEvent reports whether some table of gc (or a base) binds
// the event.
func (gc *GClass) HasInputEvent(name string) bool {
	for c := gc; c != nil; c = c.Base {
		if c.inputs[name] {
			return true
		}
	}
	return false
}

// HasOutputEvent reports whether the event is declared as output or
// system event.
func (gc *GClass) HasOutputEvent(name string) bool {
	et, have := gc.EventType(name)
	return have && et.Flag&(EvfOutputEvent|EvfSystemEvent) != 0
}

// HasEvent reports whether the event is an input or a declared
// event.
func (gc *GClass) HasEvent(name string) bool {
	if gc.HasInputEvent(name) {
		return true
	}
	_, have := gc.EventType(name)
	return have
}

// InputEvents lists the bound events in a stable order.
func (gc *GClass) InputEvents() []string {
	var acc []string
	seen := make(map[string]bool)
	add := func(ea EvAction) {
		if !seen[ea.Event] {
			seen[ea.Event] = true
			acc = append(acc, ea.Event)
		}
	}
	for c := gc; c != nil; c = c.Base {
		for _, st := range c.States {
			for _, ea := range st.Actions {
				add(ea)
			}
		}
		for _, ea := range c.Global {
			add(ea)
		}
	}
	return acc
}

// OutputEvents lists the declared output events.
func (gc *GClass) OutputEvents() []string {
	var acc []string
	seen := make(map[string]bool)
	for c := gc; c != nil; c = c.Base {
		for _, et := range c.Events {
			if et.Flag&EvfOutputEvent != 0 && !seen[et.Name] {
				seen[et.Name] = true
				acc = append(acc, et.Name)
			}
		}
	}
	return acc
}

// FindCommand looks up a command by name or alias.
func (gc *GClass) FindCommand(name string) (*Command, bool) {
	for c := gc; c != nil; c = c.Base {
		for i := range c.Commands {
			cmd := &c.Commands[i]
			if cmd.Name == name {
				return cmd, true
			}
			for _, a := range cmd.Alias {
				if a == name {
					return cmd, true
				}
			}
		}
	}
	return nil, false
}

// methods returns the Methods with nil entries filled from the Base.
func (gc *GClass) methods() *Methods {
	return &gc.resolved
}

func (m *Methods) inherit(b *Methods) {
	if m.Create == nil {
		m.Create = b.Create
	}
	if m.Destroy == nil {
		m.Destroy = b.Destroy
	}
	if m.Start == nil {
		m.Start = b.Start
	}
	if m.Stop == nil {
		m.Stop = b.Stop
	}
	if m.Play == nil {
		m.Play = b.Play
	}
	if m.Pause == nil {
		m.Pause = b.Pause
	}
	if m.Writing == nil {
		m.Writing = b.Writing
	}
	if m.SubscriptionAdded == nil {
		m.SubscriptionAdded = b.SubscriptionAdded
	}
	if m.SubscriptionDeleted == nil {
		m.SubscriptionDeleted = b.SubscriptionDeleted
	}
	if m.ChildAdded == nil {
		m.ChildAdded = b.ChildAdded
	}
	if m.ChildRemoved == nil {
		m.ChildRemoved = b.ChildRemoved
	}
	if m.InjectEvent == nil {
		m.InjectEvent = b.InjectEvent
	}
	if m.StateChanged == nil {
		m.StateChanged = b.StateChanged
	}
	if m.PublishEvent == nil {
		m.PublishEvent = b.PublishEvent
	}
	if m.PublicationPreFilter == nil {
		m.PublicationPreFilter = b.PublicationPreFilter
	}
	if m.PublicationFilter == nil {
		m.PublicationFilter = b.PublicationFilter
	}
	if m.Stats == nil {
		m.Stats = b.Stats
	}
	if m.Command == nil {
		m.Command = b.Command
	}
	if m.CreateResource == nil {
		m.CreateResource = b.CreateResource
	}
	if m.ListResources == nil {
		m.ListResources = b.ListResources
	}
	if m.DeleteResource == nil {
		m.DeleteResource = b.DeleteResource
	}
	if m.GetResource == nil {
		m.GetResource = b.GetResource
	}
}
