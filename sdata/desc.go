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

// Package sdata describes and stores the typed attributes of an
// instance.
//
// A Schema is an ordered table of Desc.  A Store holds one Value
// per Desc, initialized from the descriptor's textual default, and
// checks type and access on every read and write.
package sdata

import (
	"math"
	"strconv"
	"strings"

	"github.com/Comcast/gobj/value"
)

// Desc describes one attribute.
type Desc struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`
	Flag Flag   `json:"flag" yaml:"flag"`

	// Default is the textual default, parsed according to Type.
	Default string `json:"default,omitempty" yaml:"default,omitempty"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Schema is an ordered attribute table.
type Schema []Desc

// Validate checks names, types, and defaults.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for i := range s {
		d := &s[i]
		if d.Name == "" {
			return &BadSchema{Attr: strconv.Itoa(i), Reason: "empty name"}
		}
		if strings.ContainsAny(d.Name, "`") {
			return &BadSchema{Attr: d.Name, Reason: "name contains a path separator"}
		}
		if seen[d.Name] {
			return &BadSchema{Attr: d.Name, Reason: "duplicate name"}
		}
		seen[d.Name] = true
		if _, have := typeNames[d.Type]; !have {
			return &BadSchema{Attr: d.Name, Reason: "unknown type " + d.Type.String()}
		}
		if d.Flag.Any(AnyStats) && d.Type != Integer && d.Type != Real {
			return &BadSchema{Attr: d.Name, Reason: "stats must be numeric"}
		}
		if d.Flag.Any(Required) && d.Default == "" {
			return &BadSchema{Attr: d.Name, Reason: "required without a default"}
		}
		v, err := d.DefaultValue()
		if err != nil {
			return &BadSchema{Attr: d.Name, Reason: err.Error()}
		}
		v.Decref()
	}
	return nil
}

// Find returns the descriptor named name.
func (s Schema) Find(name string) (*Desc, bool) {
	for i := range s {
		if s[i].Name == name {
			return &s[i], true
		}
	}
	return nil, false
}

// Names returns the attribute names in schema order.
func (s Schema) Names() []string {
	acc := make([]string, len(s))
	for i, d := range s {
		acc[i] = d.Name
	}
	return acc
}

// ToValue renders the schema for introspection.
func (s Schema) ToValue() *value.Value {
	acc := value.NewArray()
	for _, d := range s {
		acc.Append(d.ToValue())
	}
	return acc
}

// ToValue renders the descriptor for introspection.
func (d *Desc) ToValue() *value.Value {
	flags := value.NewArray()
	for _, name := range d.Flag.Names() {
		flags.Append(value.NewString(name))
	}
	return value.Obj(
		"id", d.Name,
		"type", d.Type.String(),
		"flag", flags,
		"default_value", d.Default,
		"description", d.Description,
	)
}

// DefaultValue parses the textual default.
//
// Empty defaults give the zero of the type: "", false, 0, 0.0, [],
// {}, null.
func (d *Desc) DefaultValue() (*value.Value, error) {
	s := strings.TrimSpace(d.Default)
	switch d.Type {
	case String:
		return value.NewString(d.Default), nil
	case Boolean:
		if s == "" {
			return value.NewBool(false), nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		return value.NewBool(b), nil
	case Integer:
		if s == "" {
			return value.NewInt(0), nil
		}
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, err
		}
		return value.NewInt(n), nil
	case Real:
		if s == "" {
			return value.NewReal(0), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return value.NewReal(f), nil
	case List, Dict, JSON:
		if s == "" {
			switch d.Type {
			case List:
				return value.NewArray(), nil
			case Dict:
				return value.NewObject(), nil
			}
			return value.NewNull(), nil
		}
		v, err := value.ParseString(s)
		if err != nil {
			return nil, err
		}
		if err := d.check(v); err != nil {
			v.Decref()
			return nil, err
		}
		return v, nil
	case Pointer:
		if s != "" {
			return nil, ErrWrongType
		}
		return value.NewNull(), nil
	}
	return nil, ErrWrongType
}

// Coerce returns v (owned) converted to the descriptor's type, or an
// error after releasing v.
//
// Integers widen to reals and integral reals narrow to integers;
// nothing else is converted.
func (d *Desc) Coerce(v *value.Value) (*value.Value, error) {
	if v == nil {
		v = value.NewNull()
	}
	switch d.Type {
	case Integer:
		if v.IsReal() {
			f := v.Real()
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				v.Decref()
				return nil, ErrWrongType
			}
			v.Decref()
			return value.NewInt(int64(f)), nil
		}
	case Real:
		if v.IsInteger() {
			n := v.Int()
			v.Decref()
			return value.NewReal(float64(n)), nil
		}
	}
	if err := d.check(v); err != nil {
		v.Decref()
		return nil, err
	}
	return v, nil
}

func (d *Desc) check(v *value.Value) error {
	var ok bool
	switch d.Type {
	case String:
		ok = v.IsString()
	case Boolean:
		ok = v.IsBool()
	case Integer:
		ok = v.IsInteger()
	case Real:
		ok = v.IsReal()
	case List:
		ok = v.IsArray()
	case Dict:
		ok = v.IsObject()
	case JSON:
		ok = true
	case Pointer:
		ok = v.IsOpaque() || v.IsNull()
	}
	if !ok {
		return ErrWrongType
	}
	return nil
}

// Empty reports whether v counts as missing for a Required
// attribute.  Numbers and booleans are never empty.
func (d *Desc) Empty(v *value.Value) bool {
	switch d.Type {
	case String:
		return v.Str() == ""
	case List, Dict, JSON:
		switch v.Kind() {
		case value.Null:
			return true
		case value.Array, value.Object:
			return v.Len() == 0
		}
		return false
	case Pointer:
		return v.IsNull() || v.Ptr() == nil
	}
	return false
}
