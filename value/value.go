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

// Package value implements the reference-counted structured values
// that every event payload and attribute is made of.
//
// A Value is one of null, boolean, integer, real, string, array or
// object.  An object keeps its keys in insertion order.  A Value
// starts life with one reference.  Incref adds a reference and
// Decref drops one; the last Decref releases the Value and, for
// containers, one reference of every member.
//
// Ownership convention: a parameter documented as "owned" is
// consumed by the callee, which releases exactly one reference
// whether it succeeds or fails.  A "borrowed" parameter stays with
// the caller.  Values returned by accessors such as Get are borrowed.
//
// Mutators refuse to touch a Value that has more than one reference,
// or that sits anywhere inside a container with more than one
// reference (ErrShared).  Clone it first.
//
// Reference counts are not atomic.  A Value belongs to one dispatch
// thread at a time.
package value

import (
	"errors"
	"fmt"
	"sync"
)

// Kind is the type of a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Integer
	Real
	String
	Array
	Object

	// Opaque holds a native Go handle.  It serializes as null
	// unless a binary type knows how to write it.
	Opaque
)

var kindNames = []string{
	"null",
	"boolean",
	"integer",
	"real",
	"string",
	"array",
	"object",
	"opaque",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

var (
	// ErrShared is returned by mutators when the Value has more
	// than one reference.
	ErrShared = errors.New("value is shared")

	// ErrReleased is returned when a Value is used after its last
	// reference was released.
	ErrReleased = errors.New("value released")

	// ErrKind is returned when an operation does not apply to the
	// Value's kind.
	ErrKind = errors.New("wrong kind")

	// ErrIndex is returned for an out-of-range array index.
	ErrIndex = errors.New("index out of range")

	// ErrCycle is returned when a container would contain itself.
	ErrCycle = errors.New("value would contain itself")

	// ErrNil is returned when a nil Value is given.
	ErrNil = errors.New("nil value")
)

// Releaser is implemented by reference-counted native handles kept
// in Opaque values.  The Value owns one reference of the handle:
// Clone retains another and the release of the Value drops it.
type Releaser interface {
	Retain()
	Decref()
}

// Value is a reference-counted dynamic value.
type Value struct {
	kind Kind
	refs int
	dead bool

	// frozen counts the shared containers this Value is inside.
	frozen int

	b     bool
	i     int64
	f     float64
	s     string
	ptr   interface{}
	items []*Value

	// Object members in insertion order.
	keys   []string
	fields map[string]*Value

	tracked bool
}

func newValue(k Kind) *Value {
	v := &Value{
		kind: k,
		refs: 1,
	}
	born(v)
	return v
}

var interned = struct {
	sync.Mutex
	m map[string]*Value
}{m: make(map[string]*Value)}

// Intern returns a borrowed string Value that is never released.
// The auditor does not see interned Values.
func Intern(s string) *Value {
	interned.Lock()
	defer interned.Unlock()
	v, have := interned.m[s]
	if !have {
		v = &Value{kind: String, refs: 1, s: s}
		interned.m[s] = v
	}
	return v
}

// NewNull makes a null Value.
func NewNull() *Value {
	return newValue(Null)
}

// NewBool makes a boolean Value.
func NewBool(b bool) *Value {
	v := newValue(Bool)
	v.b = b
	return v
}

// NewInt makes an integer Value.
func NewInt(n int64) *Value {
	v := newValue(Integer)
	v.i = n
	return v
}

// NewReal makes a real Value.
func NewReal(f float64) *Value {
	v := newValue(Real)
	v.f = f
	return v
}

// NewString makes a string Value.
func NewString(s string) *Value {
	v := newValue(String)
	v.s = s
	return v
}

// NewArray makes an array Value holding the given (owned) items.
func NewArray(items ...*Value) *Value {
	v := newValue(Array)
	v.items = make([]*Value, 0, len(items))
	for _, x := range items {
		if x != nil {
			v.items = append(v.items, x)
		}
	}
	return v
}

// NewObject makes an empty object Value.
func NewObject() *Value {
	v := newValue(Object)
	v.fields = make(map[string]*Value)
	return v
}

// NewOpaque makes a Value holding a native handle.  If the handle
// implements Releaser, the Value takes ownership of one of its
// references.
func NewOpaque(x interface{}) *Value {
	v := newValue(Opaque)
	v.ptr = x
	return v
}

// Obj builds an object from alternating keys and owned Values.  A
// non-string key or a trailing key panics: Obj is meant for literals
// in code.
func Obj(pairs ...interface{}) *Value {
	if len(pairs)%2 != 0 {
		panic("value.Obj: odd number of arguments")
	}
	v := NewObject()
	for i := 0; i < len(pairs); i += 2 {
		k, is := pairs[i].(string)
		if !is {
			panic(fmt.Sprintf("value.Obj: key %#v is not a string", pairs[i]))
		}
		x, is := pairs[i+1].(*Value)
		if !is {
			var err error
			if x, err = FromNative(pairs[i+1]); err != nil {
				panic(err)
			}
		}
		v.put(k, x)
	}
	return v
}

// Kind returns the kind of the Value.  A nil Value is null.
func (v *Value) Kind() Kind {
	if v == nil {
		return Null
	}
	return v.kind
}

// Refs returns the current reference count.
func (v *Value) Refs() int {
	if v == nil {
		return 0
	}
	return v.refs
}

// Released reports whether the last reference has been dropped.
func (v *Value) Released() bool {
	return v != nil && v.dead
}

// Incref adds a reference and returns the Value.
func (v *Value) Incref() *Value {
	if v == nil {
		return nil
	}
	if v.dead || v.refs <= 0 {
		underflow(v, "incref")
		return v
	}
	v.refs++
	if v.refs == 2 {
		v.freezeMembers(1)
	}
	increfed(v)
	return v
}

// Decref drops a reference.  The last one releases the Value.
//
// Decrementing a released Value is a programming error.  It is
// logged and counted by the auditor.
func (v *Value) Decref() {
	if v == nil {
		return
	}
	if v.dead || v.refs <= 0 {
		underflow(v, "decref")
		return
	}
	v.refs--
	if v.refs == 1 {
		v.freezeMembers(-1)
	}
	decrefed(v)
	if v.refs == 0 {
		v.release()
	}
}

// freezeMembers adds d to the frozen count of every Value below v.
// It runs when v becomes shared (d = 1) and when it stops being
// shared (d = -1).  A shared container cannot change, so both walks
// see the same members.
func (v *Value) freezeMembers(d int) {
	switch v.kind {
	case Array:
		for _, x := range v.items {
			x.frozen += d
			x.freezeMembers(d)
		}
	case Object:
		for _, k := range v.keys {
			x := v.fields[k]
			x.frozen += d
			x.freezeMembers(d)
		}
	}
}

// Shared reports whether a mutator would refuse v: it has more than
// one reference or it is inside a container that does.
func (v *Value) Shared() bool {
	return v != nil && (1 < v.refs || 0 < v.frozen)
}

func (v *Value) release() {
	switch v.kind {
	case Array:
		for _, x := range v.items {
			x.Decref()
		}
		v.items = nil
	case Object:
		for _, k := range v.keys {
			v.fields[k].Decref()
		}
		v.keys = nil
		v.fields = nil
	case Opaque:
		if r, is := v.ptr.(Releaser); is {
			r.Decref()
		}
		v.ptr = nil
	}
	v.dead = true
	freed(v)
}

func (v *Value) writable() error {
	if v == nil {
		return ErrNil
	}
	if v.dead {
		return ErrReleased
	}
	if 1 < v.refs || 0 < v.frozen {
		return ErrShared
	}
	return nil
}

func (v *Value) IsNull() bool    { return v.Kind() == Null }
func (v *Value) IsBool() bool    { return v.Kind() == Bool }
func (v *Value) IsInteger() bool { return v.Kind() == Integer }
func (v *Value) IsReal() bool    { return v.Kind() == Real }
func (v *Value) IsNumber() bool  { return v.Kind() == Integer || v.Kind() == Real }
func (v *Value) IsString() bool  { return v.Kind() == String }
func (v *Value) IsArray() bool   { return v.Kind() == Array }
func (v *Value) IsObject() bool  { return v.Kind() == Object }
func (v *Value) IsOpaque() bool  { return v.Kind() == Opaque }

// IsScalar reports whether the Value is neither an array nor an object.
func (v *Value) IsScalar() bool {
	switch v.Kind() {
	case Array, Object:
		return false
	}
	return true
}

// Bool returns the boolean, or false for other kinds.
func (v *Value) Bool() bool {
	if v.Kind() != Bool {
		return false
	}
	return v.b
}

// Int returns the integer, or zero for other kinds.
func (v *Value) Int() int64 {
	if v.Kind() != Integer {
		return 0
	}
	return v.i
}

// Real returns the number as a float64.  Integers are converted.
func (v *Value) Real() float64 {
	switch v.Kind() {
	case Real:
		return v.f
	case Integer:
		return float64(v.i)
	}
	return 0
}

// Str returns the string, or "" for other kinds.
func (v *Value) Str() string {
	if v.Kind() != String {
		return ""
	}
	return v.s
}

// Ptr returns the native handle of an Opaque Value.
func (v *Value) Ptr() interface{} {
	if v.Kind() != Opaque {
		return nil
	}
	return v.ptr
}

// Truthy follows the usual rules: null, false, 0, "" and empty
// containers are false.
func (v *Value) Truthy() bool {
	switch v.Kind() {
	case Bool:
		return v.b
	case Integer:
		return v.i != 0
	case Real:
		return v.f != 0
	case String:
		return v.s != ""
	case Array:
		return 0 < len(v.items)
	case Object:
		return 0 < len(v.keys)
	case Opaque:
		return v.ptr != nil
	}
	return false
}

// Len is the number of members of a container, the length of a
// string, or zero.
func (v *Value) Len() int {
	switch v.Kind() {
	case Array:
		return len(v.items)
	case Object:
		return len(v.keys)
	case String:
		return len(v.s)
	}
	return 0
}

// Get returns the borrowed member of an object, or nil.
func (v *Value) Get(key string) *Value {
	if v.Kind() != Object || v.dead {
		return nil
	}
	return v.fields[key]
}

// Has reports whether an object has the key.
func (v *Value) Has(key string) bool {
	return v.Get(key) != nil
}

// At returns the borrowed item of an array, or nil.
func (v *Value) At(i int) *Value {
	if v.Kind() != Array || v.dead {
		return nil
	}
	if i < 0 || len(v.items) <= i {
		return nil
	}
	return v.items[i]
}

// Keys returns a copy of an object's keys in order.
func (v *Value) Keys() []string {
	if v.Kind() != Object {
		return nil
	}
	acc := make([]string, len(v.keys))
	copy(acc, v.keys)
	return acc
}

// Each calls f for every member of an object in order until f
// returns false.  Members are borrowed.
func (v *Value) Each(f func(key string, x *Value) bool) {
	if v.Kind() != Object {
		return
	}
	for _, k := range v.Keys() {
		x, have := v.fields[k]
		if !have {
			continue
		}
		if !f(k, x) {
			return
		}
	}
}

// EachItem calls f for every item of an array until f returns false.
func (v *Value) EachItem(f func(i int, x *Value) bool) {
	if v.Kind() != Array {
		return
	}
	items := make([]*Value, len(v.items))
	copy(items, v.items)
	for i, x := range items {
		if !f(i, x) {
			return
		}
	}
}

func (v *Value) put(key string, x *Value) {
	if old, have := v.fields[key]; have {
		v.fields[key] = x
		old.Decref()
		return
	}
	v.keys = append(v.keys, key)
	v.fields[key] = x
}

func contains(container, x *Value) bool {
	if container == x {
		return true
	}
	switch x.Kind() {
	case Array:
		for _, y := range x.items {
			if contains(container, y) {
				return true
			}
		}
	case Object:
		for _, y := range x.fields {
			if contains(container, y) {
				return true
			}
		}
	}
	return false
}

// Set stores x (owned) under key, replacing and releasing any
// previous member.
func (v *Value) Set(key string, x *Value) error {
	if x == nil {
		x = NewNull()
	}
	if err := v.writable(); err != nil {
		x.Decref()
		return err
	}
	if v.kind != Object {
		x.Decref()
		return ErrKind
	}
	if contains(v, x) {
		x.Decref()
		return ErrCycle
	}
	v.put(key, x)
	return nil
}

// SetBorrowed stores a new reference to x under key.
func (v *Value) SetBorrowed(key string, x *Value) error {
	return v.Set(key, x.Incref())
}

// Delete removes and releases an object member.  Deleting a missing
// key is not an error.
func (v *Value) Delete(key string) error {
	if err := v.writable(); err != nil {
		return err
	}
	if v.kind != Object {
		return ErrKind
	}
	old, have := v.fields[key]
	if !have {
		return nil
	}
	delete(v.fields, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			break
		}
	}
	old.Decref()
	return nil
}

// Append adds x (owned) to the end of an array.
func (v *Value) Append(x *Value) error {
	if x == nil {
		x = NewNull()
	}
	if err := v.writable(); err != nil {
		x.Decref()
		return err
	}
	if v.kind != Array {
		x.Decref()
		return ErrKind
	}
	if contains(v, x) {
		x.Decref()
		return ErrCycle
	}
	v.items = append(v.items, x)
	return nil
}

// SetAt replaces the array item at i with x (owned).
func (v *Value) SetAt(i int, x *Value) error {
	if x == nil {
		x = NewNull()
	}
	if err := v.writable(); err != nil {
		x.Decref()
		return err
	}
	if v.kind != Array {
		x.Decref()
		return ErrKind
	}
	if i < 0 || len(v.items) <= i {
		x.Decref()
		return ErrIndex
	}
	if contains(v, x) {
		x.Decref()
		return ErrCycle
	}
	old := v.items[i]
	v.items[i] = x
	old.Decref()
	return nil
}

// RemoveAt removes and releases the array item at i.
func (v *Value) RemoveAt(i int) error {
	if err := v.writable(); err != nil {
		return err
	}
	if v.kind != Array {
		return ErrKind
	}
	if i < 0 || len(v.items) <= i {
		return ErrIndex
	}
	old := v.items[i]
	v.items = append(v.items[:i], v.items[i+1:]...)
	old.Decref()
	return nil
}

// Clear empties a container.
func (v *Value) Clear() error {
	if err := v.writable(); err != nil {
		return err
	}
	switch v.kind {
	case Array:
		items := v.items
		v.items = nil
		for _, x := range items {
			x.Decref()
		}
	case Object:
		keys, fields := v.keys, v.fields
		v.keys = nil
		v.fields = make(map[string]*Value)
		for _, k := range keys {
			fields[k].Decref()
		}
	default:
		return ErrKind
	}
	return nil
}

// Update copies every member of other (borrowed) into the object,
// sharing member references.
func (v *Value) Update(other *Value) error {
	if other.Kind() != Object {
		return ErrKind
	}
	if err := v.writable(); err != nil {
		return err
	}
	if v.kind != Object {
		return ErrKind
	}
	for _, k := range other.Keys() {
		x := other.fields[k]
		if contains(v, x) {
			return ErrCycle
		}
		v.put(k, x.Incref())
	}
	return nil
}

// UpdateMissing is Update for the keys the object does not have yet.
func (v *Value) UpdateMissing(other *Value) error {
	if other.Kind() != Object {
		return ErrKind
	}
	if err := v.writable(); err != nil {
		return err
	}
	if v.kind != Object {
		return ErrKind
	}
	for _, k := range other.Keys() {
		if _, have := v.fields[k]; have {
			continue
		}
		v.put(k, other.fields[k].Incref())
	}
	return nil
}

// Clone returns a deep copy with one reference.  Opaque handles are
// shared, not copied.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	switch v.kind {
	case Bool:
		return NewBool(v.b)
	case Integer:
		return NewInt(v.i)
	case Real:
		return NewReal(v.f)
	case String:
		return NewString(v.s)
	case Array:
		c := NewArray()
		for _, x := range v.items {
			c.items = append(c.items, x.Clone())
		}
		return c
	case Object:
		c := NewObject()
		for _, k := range v.keys {
			c.put(k, v.fields[k].Clone())
		}
		return c
	case Opaque:
		if r, is := v.ptr.(Releaser); is {
			r.Retain()
		}
		return NewOpaque(v.ptr)
	}
	return NewNull()
}

// Writable returns v itself when the caller holds the only
// reference and v is not inside a shared container, otherwise a
// clone, releasing the caller's reference to v.  Use it for
// clone-on-write of an owned Value.
func Writable(v *Value) *Value {
	if v == nil {
		return nil
	}
	if v.refs == 1 && v.frozen == 0 && !v.dead {
		return v
	}
	c := v.Clone()
	v.Decref()
	return c
}
