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

// Package testutil has small helpers for tests of packages built on
// values.  The value package itself cannot use it.
package testutil

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/Comcast/gobj/value"
)

// JS renders its argument as JSON or, if that fails, with %#v.
func JS(x interface{}) string {
	if v, ok := x.(*value.Value); ok {
		return v.String()
	}
	bs, err := json.Marshal(&x)
	if err != nil {
		log.Warn().Err(err).Msgf("testutil.JS %#v", x)
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}

// Dwim makes a new Value from JSON text (a string or bytes), from a
// Value (another reference), or from native Go data.
func Dwim(t testing.TB, x interface{}) *value.Value {
	t.Helper()
	switch vv := x.(type) {
	case *value.Value:
		return vv.Incref()
	case []byte:
		return V(t, string(vv))
	case string:
		return V(t, vv)
	default:
		v, err := value.FromNative(x)
		if err != nil {
			t.Fatalf("converting %#v: %s", x, err)
		}
		return v
	}
}

// Same fails the test unless got is identical to want, which is
// anything Dwim accepts.  got is borrowed.
func Same(t testing.TB, got *value.Value, want interface{}) {
	t.Helper()
	w := Dwim(t, want)
	defer w.Decref()
	if !value.Identical(got, w) {
		t.Fatalf("got %s, want %s", got.String(), w.String())
	}
}

// V parses JSON into a new Value or fails the test.
func V(t testing.TB, js string) *value.Value {
	t.Helper()
	v, err := value.ParseString(js)
	if err != nil {
		t.Fatalf("parsing %s: %s", js, err)
	}
	return v
}

// Audit turns the refcount auditor on and returns a function that
// turns it off and fails the test if the Values created meanwhile
// are not all released.
//
//	defer testutil.Audit(t)()
func Audit(t testing.TB) func() {
	t.Helper()
	value.EnableAudit(true)
	return func() {
		t.Helper()
		s := value.Audit()
		leaks := value.Leaks()
		value.EnableAudit(false)
		if !s.Balanced() {
			for i, v := range leaks {
				if i == 5 {
					break
				}
				t.Logf("leak: %s (%d refs)", v.String(), v.Refs())
			}
			t.Fatalf("unbalanced: %s", JS(s))
		}
	}
}
