/* Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package match implements the filters used by subscriptions and
// child searches.
//
// Simple is the key/value filter: every key of the filter names a
// path in the event kw whose value must compare equal (strings and
// numbers coerce).  Matcher is the richer pattern matcher with
// "?variables".
package match

import (
	"errors"
	"strings"

	"github.com/Comcast/gobj/value"
)

type Matcher struct {
	// AllowPropertyVariables enables a variable as the single key
	// of an object pattern.
	AllowPropertyVariables bool

	// Inequalities enables variables like "?<n" when the input
	// bindings hold a number for "?<n".  A fact X matches only if
	// X < n, and the output bindings then bind "?n" to X.
	Inequalities bool
}

var DefaultMatcher = &Matcher{
	AllowPropertyVariables: true,
	Inequalities:           true,
}

// Bindings maps variables (strings starting with '?') to borrowed
// Values.  The Values belong to the pattern, the fact, or the input
// bindings, so Bindings must not outlive them.
type Bindings map[string]*value.Value

func NewBindings() Bindings {
	return make(Bindings, 8)
}

// Extend adds the binding.  The Bindings are modified.
func (bs Bindings) Extend(p string, v *value.Value) Bindings {
	bs[p] = v
	return bs
}

// Copy makes a shallow copy of the Bindings.
func (bs Bindings) Copy() Bindings {
	acc := make(Bindings, len(bs))
	for k, v := range bs {
		acc[k] = v
	}
	return acc
}

// ToValue returns a new object holding the bindings.
func (bs Bindings) ToValue() *value.Value {
	acc := value.NewObject()
	for k, v := range bs {
		acc.SetBorrowed(k, v)
	}
	return acc
}

// BindingsFromValue reads bindings from an object (borrowed).
func BindingsFromValue(v *value.Value) Bindings {
	bs := NewBindings()
	v.Each(func(k string, x *value.Value) bool {
		bs[k] = x
		return true
	})
	return bs
}

// IsVariable reports if the string represents a pattern variable.
func (m *Matcher) IsVariable(s string) bool {
	return strings.HasPrefix(s, "?")
}

// IsOptionalVariable detects "??x", which may stay unbound.
func (m *Matcher) IsOptionalVariable(s string) bool {
	return strings.HasPrefix(s, "??")
}

// IsAnonymousVariable detects "?", which matches anything and is
// never bound.
func (m *Matcher) IsAnonymousVariable(s string) bool {
	return s == "?"
}

func (m *Matcher) variable(v *value.Value) (string, bool) {
	if v.IsString() && m.IsVariable(v.Str()) {
		return v.Str(), true
	}
	return "", false
}

// Matches attempts to match the fact with the pattern.  Each result
// is one consistent set of bindings; arrays are sets, so a pattern
// can match in several ways.
func (m *Matcher) Matches(pattern, fact *value.Value) ([]Bindings, error) {
	return m.Match(pattern, fact, NewBindings())
}

// Match is Matches with initial bindings, which are not modified.
func (m *Matcher) Match(pattern, fact *value.Value, bs Bindings) ([]Bindings, error) {
	if bs == nil {
		return nil, nil
	}
	return m.match(pattern, fact, bs.Copy())
}

func (m *Matcher) match(p, f *value.Value, bs Bindings) ([]Bindings, error) {
	switch p.Kind() {
	case value.Null:
		if f.IsNull() {
			return []Bindings{bs}, nil
		}
		return nil, nil

	case value.Bool:
		if f.IsBool() && f.Bool() == p.Bool() {
			return []Bindings{bs}, nil
		}
		return nil, nil

	case value.Integer, value.Real:
		if f.IsNumber() && value.AsReal(f) == value.AsReal(p) {
			return []Bindings{bs}, nil
		}
		return nil, nil

	case value.String:
		s := p.Str()
		if !m.IsVariable(s) {
			if f.IsString() && f.Str() == s {
				return []Bindings{bs}, nil
			}
			return nil, nil
		}
		return m.matchVariable(s, f, bs)

	case value.Object:
		if !f.IsObject() {
			return nil, nil
		}
		if p.Len() == 0 {
			return []Bindings{bs}, nil
		}
		return m.matchObject(p, f, bs)

	case value.Array:
		if !f.IsArray() {
			return nil, nil
		}
		return m.matchArray(p, f, bs)
	}

	return nil, &UnknownPatternType{p}
}

func (m *Matcher) matchVariable(v string, f *value.Value, bs Bindings) ([]Bindings, error) {
	if m.IsAnonymousVariable(v) {
		return []Bindings{bs}, nil
	}
	if using, bss := m.inequal(f, bs, v); using {
		return bss, nil
	}
	if bound, have := bs[v]; have {
		return m.match(bound, f, bs)
	}
	bs[v] = f
	return []Bindings{bs}, nil
}

func (m *Matcher) matchObject(p, f *value.Value, bs Bindings) ([]Bindings, error) {
	bss := []Bindings{bs}
	keys := p.Keys()
	for _, k := range keys {
		pv := p.Get(k)
		if m.IsVariable(k) {
			if !m.AllowPropertyVariables || len(keys) != 1 {
				return nil, errors.New(`can't have a variable as a key ("` + k + `") with other keys`)
			}
			var gather []Bindings
			for _, fk := range f.Keys() {
				for _, b := range bss {
					ext, err := m.matchVariableKey(k, fk, b.Copy())
					if err != nil {
						return nil, err
					}
					for _, e := range ext {
						acc, err := m.match(pv, f.Get(fk), e)
						if err != nil {
							return nil, err
						}
						gather = append(gather, acc...)
					}
				}
			}
			return gather, nil
		}

		if !f.Has(k) {
			if s, is := m.variable(pv); is && m.IsOptionalVariable(s) {
				continue
			}
			return nil, nil
		}

		var acc []Bindings
		for _, b := range bss {
			ext, err := m.match(pv, f.Get(k), b)
			if err != nil {
				return nil, err
			}
			acc = append(acc, ext...)
		}
		if len(acc) == 0 {
			return nil, nil
		}
		bss = acc
	}
	return bss, nil
}

// matchVariableKey binds a property variable to a fact key.  Keys
// are not Values, so a bound key is an interned string.
func (m *Matcher) matchVariableKey(v, key string, bs Bindings) ([]Bindings, error) {
	if m.IsAnonymousVariable(v) {
		return []Bindings{bs}, nil
	}
	if bound, have := bs[v]; have {
		if bound.IsString() && bound.Str() == key {
			return []Bindings{bs}, nil
		}
		return nil, nil
	}
	bs[v] = value.Intern(key)
	return []Bindings{bs}, nil
}

// matchArray treats both arrays as sets.  Constant and structured
// pattern elements each consume a distinct fact element; at most one
// variable element then binds to one of the remaining facts.
func (m *Matcher) matchArray(p, f *value.Value, bs Bindings) ([]Bindings, error) {
	var (
		v  string
		ps []*value.Value
	)
	for i := 0; i < p.Len(); i++ {
		x := p.At(i)
		if s, is := m.variable(x); is {
			if v != "" {
				return nil, errors.New("multiple variables not supported here")
			}
			v = s
			continue
		}
		ps = append(ps, x)
	}
	used := make([]bool, f.Len())
	return m.arraycat(ps, v, f, used, bs)
}

func (m *Matcher) arraycat(ps []*value.Value, v string, f *value.Value, used []bool, bs Bindings) ([]Bindings, error) {
	if len(ps) == 0 {
		if v == "" {
			return []Bindings{bs}, nil
		}
		var acc []Bindings
		for j := range used {
			if used[j] {
				continue
			}
			ext, err := m.matchVariable(v, f.At(j), bs.Copy())
			if err != nil {
				return nil, err
			}
			acc = append(acc, ext...)
		}
		if len(acc) == 0 && m.IsOptionalVariable(v) {
			return []Bindings{bs}, nil
		}
		return acc, nil
	}

	var acc []Bindings
	for j := range used {
		if used[j] {
			continue
		}
		ext, err := m.match(ps[0], f.At(j), bs.Copy())
		if err != nil {
			return nil, err
		}
		if len(ext) == 0 {
			continue
		}
		used[j] = true
		for _, b := range ext {
			more, err := m.arraycat(ps[1:], v, f, used, b)
			if err != nil {
				used[j] = false
				return nil, err
			}
			acc = append(acc, more...)
		}
		used[j] = false
		if ps[0].IsScalar() && len(acc) > 0 {
			// Equal scalars are interchangeable.
			break
		}
	}
	return acc, nil
}

// UnknownPatternType is an error that includes the thing that's
// causing the trouble.
type UnknownPatternType struct {
	Pattern *value.Value
}

func (e *UnknownPatternType) Error() string {
	return "unknown pattern type " + e.Pattern.Kind().String()
}

var inequalities = []string{"<=", ">=", "!=", ">", "<"}

func (m *Matcher) inequal(fact *value.Value, bs Bindings, v string) (bool, []Bindings) {
	if !m.Inequalities || len(v) < 3 {
		return false, nil
	}
	limit, have := bs[v]
	if !have || !limit.IsNumber() || !fact.IsNumber() {
		return false, nil
	}
	a, b := value.AsReal(fact), value.AsReal(limit)

	var ineq, vv string
	for _, ie := range inequalities {
		if strings.HasPrefix(v[1:], ie) {
			ineq = ie
			vv = "?" + v[1+len(ie):]
			break
		}
	}
	if vv == "" || vv == "?" {
		return false, nil
	}

	var satisfied bool
	switch ineq {
	case "<":
		satisfied = a < b
	case "<=":
		satisfied = a <= b
	case ">":
		satisfied = a > b
	case ">=":
		satisfied = a >= b
	case "!=":
		satisfied = a != b
	}
	if !satisfied {
		return true, nil
	}

	if x, given := bs[vv]; given {
		if !x.IsNumber() || value.AsReal(x) != a {
			return true, nil
		}
		return true, []Bindings{bs}
	}
	bs[vv] = fact
	return true, []Bindings{bs}
}

func Match(pattern, fact *value.Value, bs Bindings) ([]Bindings, error) {
	return DefaultMatcher.Match(pattern, fact, bs)
}
