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

package value

import (
	"strconv"
	"strings"
)

// PathSeparator separates the segments of a path.  A segment selects
// an object member or, when the container is an array, an index.
var PathSeparator = "`"

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, PathSeparator)
}

// GetPath walks the path and returns the borrowed Value found there,
// or nil.  A key that itself contains the separator is found too when
// the walk fails.
func (v *Value) GetPath(path string) *Value {
	if path == "" {
		return v
	}
	x := v
	for _, seg := range splitPath(path) {
		switch x.Kind() {
		case Object:
			x = x.Get(seg)
		case Array:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return nil
			}
			x = x.At(i)
		default:
			x = nil
		}
		if x == nil {
			break
		}
	}
	if x == nil {
		return v.Get(path)
	}
	return x
}

// GetStr returns the string at path, or def when the path is missing
// or holds another kind.
func (v *Value) GetStr(path, def string) string {
	x := v.GetPath(path)
	if x.Kind() != String {
		return def
	}
	return x.s
}

// GetInt returns the integer at path, or def.  A real with no
// fraction counts as an integer.
func (v *Value) GetInt(path string, def int64) int64 {
	x := v.GetPath(path)
	switch x.Kind() {
	case Integer:
		return x.i
	case Real:
		if x.f == float64(int64(x.f)) {
			return int64(x.f)
		}
	}
	return def
}

// GetReal returns the number at path, or def.
func (v *Value) GetReal(path string, def float64) float64 {
	x := v.GetPath(path)
	if !x.IsNumber() {
		return def
	}
	return x.Real()
}

// GetBool returns the boolean at path, or def.
func (v *Value) GetBool(path string, def bool) bool {
	x := v.GetPath(path)
	if x.Kind() != Bool {
		return def
	}
	return x.b
}

// GetDict returns the borrowed object at path, or nil.
func (v *Value) GetDict(path string) *Value {
	x := v.GetPath(path)
	if x.Kind() != Object {
		return nil
	}
	return x
}

// GetList returns the borrowed array at path, or nil.
func (v *Value) GetList(path string) *Value {
	x := v.GetPath(path)
	if x.Kind() != Array {
		return nil
	}
	return x
}

// SetPath stores x (owned) at path, creating intermediate objects.
func (v *Value) SetPath(path string, x *Value) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		x.Decref()
		return ErrKind
	}
	at := v
	for _, seg := range segs[:len(segs)-1] {
		next := at.Get(seg)
		if next == nil {
			next = NewObject()
			if err := at.Set(seg, next); err != nil {
				x.Decref()
				return err
			}
		}
		if next.Kind() != Object {
			x.Decref()
			return ErrKind
		}
		at = next
	}
	return at.Set(segs[len(segs)-1], x)
}

// DeletePath removes the member at path.  A missing path is not an
// error.
func (v *Value) DeletePath(path string) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil
	}
	at := v
	for _, seg := range segs[:len(segs)-1] {
		at = at.Get(seg)
		if at == nil {
			return nil
		}
	}
	if at.Kind() != Object {
		return nil
	}
	return at.Delete(segs[len(segs)-1])
}
