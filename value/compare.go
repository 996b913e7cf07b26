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

// Identical is exact structural equality: same kinds, same scalars,
// same array items in order and the same object members (member order
// is ignored).
func Identical(a, b *Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Integer:
		return a.i == b.i
	case Real:
		return a.f == b.f
	case String:
		return a.s == b.s
	case Opaque:
		return a.ptr == b.ptr
	case Array:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Identical(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			y, have := b.fields[k]
			if !have || !Identical(a.fields[k], y) {
				return false
			}
		}
		return true
	}
	return false
}

// CompareSimple compares two scalars with coercion, returning -1, 0
// or 1.  If either side is a real both are compared as reals; else if
// either is an integer or a boolean both are compared as integers;
// else as strings.  Containers are not compared: they match anything.
func CompareSimple(a, b *Value) int {
	if !a.IsScalar() || !b.IsScalar() {
		return 0
	}
	switch {
	case a.Kind() == Real || b.Kind() == Real:
		return cmpReal(AsReal(a), AsReal(b))
	case a.Kind() == Integer || b.Kind() == Integer,
		a.Kind() == Bool || b.Kind() == Bool:
		return cmpInt(AsInt(a), AsInt(b))
	}
	return strings.Compare(AsString(a), AsString(b))
}

// SimpleEqual is CompareSimple(a, b) == 0.
func SimpleEqual(a, b *Value) bool {
	return CompareSimple(a, b) == 0
}

func cmpReal(x, y float64) int {
	switch {
	case x < y:
		return -1
	case y < x:
		return 1
	}
	return 0
}

func cmpInt(x, y int64) int {
	switch {
	case x < y:
		return -1
	case y < x:
		return 1
	}
	return 0
}

// AsReal coerces a scalar to a float64.
func AsReal(v *Value) float64 {
	switch v.Kind() {
	case Real:
		return v.f
	case Integer:
		return float64(v.i)
	case String:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return f
	case Bool:
		if v.b {
			return 1
		}
	}
	return 0
}

// AsInt coerces a scalar to an int64.  Strings may be decimal, "0x"
// hex or "0" octal.
func AsInt(v *Value) int64 {
	switch v.Kind() {
	case Real:
		return int64(v.f)
	case Integer:
		return v.i
	case String:
		n, _ := strconv.ParseInt(strings.TrimSpace(v.s), 0, 64)
		return n
	case Bool:
		if v.b {
			return 1
		}
	}
	return 0
}

// AsString renders a scalar as text.  Containers render as their
// text form.
func AsString(v *Value) string {
	switch v.Kind() {
	case Null:
		return ""
	case String:
		return v.s
	case Bool:
		return strconv.FormatBool(v.b)
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Real:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	}
	return v.String()
}
