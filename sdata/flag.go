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
	"fmt"
	"strings"
)

// Type is the data type of an attribute.
type Type int

const (
	String Type = iota + 1
	Boolean
	Integer
	Real
	List
	Dict
	JSON

	// Pointer holds a native handle (an Opaque Value).
	Pointer
)

var typeNames = map[Type]string{
	String:  "string",
	Boolean: "boolean",
	Integer: "integer",
	Real:    "real",
	List:    "list",
	Dict:    "dict",
	JSON:    "json",
	Pointer: "pointer",
}

func (t Type) String() string {
	if s, have := typeNames[t]; have {
		return s
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	switch s {
	case "str":
		return String, nil
	case "bool":
		return Boolean, nil
	case "int":
		return Integer, nil
	case "float", "double", "number":
		return Real, nil
	case "array":
		return List, nil
	case "object":
		return Dict, nil
	}
	return 0, fmt.Errorf("unknown attribute type %q", s)
}

// Flag qualifies an attribute.
type Flag uint32

const (
	// NotAccess attributes are never exposed.
	NotAccess Flag = 1 << iota

	// RD attributes are readable from outside.
	RD

	// WR attributes are writable from outside.
	WR

	// Required attributes must have a non-empty value before the
	// instance can start.
	Required

	// Persist attributes are saved and restored by the external
	// snapshot collaborator.
	Persist

	// Volatil attributes go back to their default on restart.
	Volatil

	Resource
	PKey
	WildCmd

	// Stats attributes are counters.
	Stats

	FKey

	// RStats are resettable stats.
	RStats

	// PStats are persistent stats.
	PStats

	// AuthzR requires the read grant.
	AuthzR

	// AuthzW requires the write grant.
	AuthzW

	AuthzX
	AuthzP
	AuthzS
	AuthzRS
)

const (
	// Public is readable and writable.
	Public = RD | WR

	// Writable is an alias for Public.
	Writable = RD | WR

	// AnyStats matches every kind of stats.
	AnyStats = Stats | RStats | PStats
)

var flagNames = []struct {
	f    Flag
	name string
}{
	{NotAccess, "NOTACCESS"},
	{RD, "RD"},
	{WR, "WR"},
	{Required, "REQUIRED"},
	{Persist, "PERSIST"},
	{Volatil, "VOLATIL"},
	{Resource, "RESOURCE"},
	{PKey, "PKEY"},
	{WildCmd, "WILD_CMD"},
	{Stats, "STATS"},
	{FKey, "FKEY"},
	{RStats, "RSTATS"},
	{PStats, "PSTATS"},
	{AuthzR, "AUTHZ_R"},
	{AuthzW, "AUTHZ_W"},
	{AuthzX, "AUTHZ_X"},
	{AuthzP, "AUTHZ_P"},
	{AuthzS, "AUTHZ_S"},
	{AuthzRS, "AUTHZ_RS"},
}

// Has reports whether all bits of g are set.
func (f Flag) Has(g Flag) bool {
	return f&g == g
}

// Any reports whether some bit of g is set.
func (f Flag) Any(g Flag) bool {
	return f&g != 0
}

func (f Flag) String() string {
	acc := make([]string, 0, 4)
	for _, x := range flagNames {
		if f&x.f != 0 {
			acc = append(acc, x.name)
		}
	}
	return strings.Join(acc, "|")
}

// Names returns the names of the set bits.
func (f Flag) Names() []string {
	if f == 0 {
		return []string{}
	}
	return strings.Split(f.String(), "|")
}

// ParseFlag reads "RD|WR|PERSIST" (or a comma- or space-separated
// list).  Names are case-insensitive and may start with "SDF_".
func ParseFlag(s string) (Flag, error) {
	var f Flag
	for _, name := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	}) {
		name = strings.TrimPrefix(strings.ToUpper(name), "SDF_")
		found := false
		for _, x := range flagNames {
			if x.name == name {
				f |= x.f
				found = true
				break
			}
		}
		if !found {
			switch name {
			case "PUBLIC", "WRITABLE":
				f |= Public
			default:
				return 0, fmt.Errorf("unknown attribute flag %q", name)
			}
		}
	}
	return f, nil
}

// Authz is a set of grants held by a caller.
type Authz uint32

const (
	GrantRead Authz = 1 << iota
	GrantWrite
	GrantExec
	GrantPersist
	GrantStats
	GrantResetStats

	// kernel marks the owning code itself, which may touch private
	// attributes.
	kernel
)

const (
	// Anonymous holds no grant.
	Anonymous Authz = 0

	// Admin holds every grant but is still bound by RD/WR.
	Admin = GrantRead | GrantWrite | GrantExec | GrantPersist | GrantStats | GrantResetStats

	// Internal is the authority of a gclass over its own instance.
	Internal = Admin | kernel
)

// Has reports whether all grants of g are held.
func (a Authz) Has(g Authz) bool {
	return a&g == g
}

// IsInternal reports whether a is the kernel authority.
func (a Authz) IsInternal() bool {
	return a&kernel != 0
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(bs []byte) error {
	x, err := ParseType(string(bs))
	if err != nil {
		return err
	}
	*t = x
	return nil
}

// UnmarshalYAML accepts the type name.
func (t *Type) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}

func (f Flag) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Flag) UnmarshalText(bs []byte) error {
	x, err := ParseFlag(string(bs))
	if err != nil {
		return err
	}
	*f = x
	return nil
}

// UnmarshalYAML accepts "RD|WR" or a list of flag names.
func (f *Flag) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var names []string
	if err := unmarshal(&names); err == nil {
		return f.UnmarshalText([]byte(strings.Join(names, "|")))
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return f.UnmarshalText([]byte(s))
}
