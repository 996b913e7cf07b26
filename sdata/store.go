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

package sdata

import (
	"github.com/Comcast/gobj/value"
)

// Store holds the attribute values of one instance.
//
// Each slot owns one reference to its Value.  Reads return borrowed
// Values; writes take ownership of the Value given.
type Store struct {
	schema Schema
	index  map[string]int
	slots  []*value.Value
}

// NewStore validates the schema and fills every slot with its
// default.
func NewStore(schema Schema) (*Store, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		schema: schema,
		index:  make(map[string]int, len(schema)),
		slots:  make([]*value.Value, len(schema)),
	}
	for i := range schema {
		s.index[schema[i].Name] = i
		v, _ := schema[i].DefaultValue()
		s.slots[i] = v
	}
	return s, nil
}

// Schema returns the table the Store was built from.
func (s *Store) Schema() Schema {
	return s.schema
}

// Desc returns the descriptor for name.
func (s *Store) Desc(name string) (*Desc, bool) {
	i, have := s.index[name]
	if !have {
		return nil, false
	}
	return &s.schema[i], true
}

// Has reports whether the schema declares name.
func (s *Store) Has(name string) bool {
	_, have := s.index[name]
	return have
}

func canRead(authz Authz, d *Desc) error {
	if authz.IsInternal() {
		return nil
	}
	if d.Flag.Any(NotAccess) {
		return ErrNotAccess
	}
	if !d.Flag.Any(RD | AuthzR) {
		return ErrNotReadable
	}
	if d.Flag.Any(AuthzR) && !authz.Has(GrantRead) {
		return ErrUnauthorized
	}
	return nil
}

func canWrite(authz Authz, d *Desc) error {
	if authz.IsInternal() {
		return nil
	}
	if d.Flag.Any(NotAccess) {
		return ErrNotAccess
	}
	if !d.Flag.Any(WR | AuthzW) {
		return ErrReadOnly
	}
	if d.Flag.Any(AuthzW) && !authz.Has(GrantWrite) {
		return ErrUnauthorized
	}
	return nil
}

// Read returns the borrowed Value of name.
func (s *Store) Read(authz Authz, name string) (*value.Value, error) {
	i, have := s.index[name]
	if !have {
		return nil, &AttrError{Attr: name, Op: "read", Err: ErrUnknownAttr}
	}
	if err := canRead(authz, &s.schema[i]); err != nil {
		return nil, &AttrError{Attr: name, Op: "read", Err: err}
	}
	return s.slots[i], nil
}

// Get is Read with the kernel authority, returning nil for unknown
// names.
func (s *Store) Get(name string) *value.Value {
	v, _ := s.Read(Internal, name)
	return v
}

// Write replaces the Value of name with v (owned).  On error v is
// released and the slot keeps its previous Value.
func (s *Store) Write(authz Authz, name string, v *value.Value) error {
	i, have := s.index[name]
	if !have {
		v.Decref()
		return &AttrError{Attr: name, Op: "write", Err: ErrUnknownAttr}
	}
	d := &s.schema[i]
	if err := canWrite(authz, d); err != nil {
		v.Decref()
		return &AttrError{Attr: name, Op: "write", Err: err}
	}
	v, err := d.Coerce(v)
	if err != nil {
		return &AttrError{Attr: name, Op: "write", Err: err}
	}
	old := s.slots[i]
	s.slots[i] = v
	old.Decref()
	return nil
}

// Set is Write with the kernel authority.
func (s *Store) Set(name string, v *value.Value) error {
	return s.Write(Internal, name, v)
}

func selected(d *Desc, mask Flag) bool {
	return mask == 0 || d.Flag.Any(mask)
}

// ReadAttrs returns a new object holding every attribute the caller
// may read and whose flags intersect mask (0 selects all).
func (s *Store) ReadAttrs(authz Authz, mask Flag) *value.Value {
	acc := value.NewObject()
	for i := range s.schema {
		d := &s.schema[i]
		if !selected(d, mask) || canRead(authz, d) != nil {
			continue
		}
		acc.SetBorrowed(d.Name, s.slots[i])
	}
	return acc
}

// WriteAttrs writes the members of kw (borrowed) whose descriptors
// intersect mask and returns the names it stored.  Names the schema
// does not declare are returned rather than treated as errors.
func (s *Store) WriteAttrs(authz Authz, kw *value.Value, mask Flag) (written, unknown []string, err error) {
	var errs Errors
	kw.Each(func(name string, x *value.Value) bool {
		d, have := s.Desc(name)
		if !have {
			unknown = append(unknown, name)
			return true
		}
		if !selected(d, mask) {
			return true
		}
		if err := s.Write(authz, name, x.Incref()); err != nil {
			errs = append(errs, err)
			return true
		}
		written = append(written, name)
		return true
	})
	return written, unknown, errs.orNil()
}

// Reset returns name to its default.
func (s *Store) Reset(name string) error {
	d, have := s.Desc(name)
	if !have {
		return &AttrError{Attr: name, Op: "reset", Err: ErrUnknownAttr}
	}
	v, err := d.DefaultValue()
	if err != nil {
		return err
	}
	return s.Set(name, v)
}

func (s *Store) resetMatching(mask Flag) {
	for i := range s.schema {
		if s.schema[i].Flag.Any(mask) {
			s.Reset(s.schema[i].Name)
		}
	}
}

// ResetVolatile returns every Volatil attribute to its default.
func (s *Store) ResetVolatile() {
	s.resetMatching(Volatil)
}

// ResetStats returns Stats and RStats counters to zero.  PStats
// survive.
func (s *Store) ResetStats() {
	s.resetMatching(Stats | RStats)
}

// Incr adds delta to a stats counter and returns the new value.
func (s *Store) Incr(name string, delta int64) (int64, error) {
	i, have := s.index[name]
	if !have {
		return 0, &AttrError{Attr: name, Op: "incr", Err: ErrUnknownAttr}
	}
	d := &s.schema[i]
	if !d.Flag.Any(AnyStats) {
		return 0, &AttrError{Attr: name, Op: "incr", Err: ErrNotStats}
	}
	old := s.slots[i]
	var n int64
	if d.Type == Real {
		f := old.Real() + float64(delta)
		s.slots[i] = value.NewReal(f)
		n = int64(f)
	} else {
		n = old.Int() + delta
		s.slots[i] = value.NewInt(n)
	}
	old.Decref()
	return n, nil
}

// Stats returns the stats counters readable with GrantStats.
func (s *Store) Stats(authz Authz) *value.Value {
	acc := value.NewObject()
	if !authz.Has(GrantStats) {
		return acc
	}
	for i := range s.schema {
		d := &s.schema[i]
		if d.Flag.Any(AnyStats) && !d.Flag.Any(NotAccess) {
			acc.SetBorrowed(d.Name, s.slots[i])
		}
	}
	return acc
}

// Missing returns the Required attributes that are still empty.
func (s *Store) Missing() []string {
	var acc []string
	for i := range s.schema {
		d := &s.schema[i]
		if d.Flag.Any(Required) && d.Empty(s.slots[i]) {
			acc = append(acc, d.Name)
		}
	}
	return acc
}

// Persistent returns a new object with the Persist and PStats
// attributes.
func (s *Store) Persistent() *value.Value {
	return s.ReadAttrs(Internal, Persist|PStats)
}

// LoadPersistent restores Persist and PStats attributes from kw
// (borrowed).  Other members are ignored.
func (s *Store) LoadPersistent(kw *value.Value) error {
	_, _, err := s.WriteAttrs(Internal, kw, Persist|PStats)
	return err
}

// Release drops every slot.  The Store must not be used afterwards.
func (s *Store) Release() {
	for i, v := range s.slots {
		v.Decref()
		s.slots[i] = nil
	}
}
