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
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jsccast/yaml"
)

// FromNative converts ordinary Go data (what encoding/json or a YAML
// parser produces) to a Value with one reference.  Map keys are
// sorted since Go maps have no order.  A *Value is returned with a
// new reference.
func FromNative(x interface{}) (*Value, error) {
	switch vv := x.(type) {
	case nil:
		return NewNull(), nil
	case *Value:
		if vv == nil {
			return NewNull(), nil
		}
		return vv.Incref(), nil
	case bool:
		return NewBool(vv), nil
	case int:
		return NewInt(int64(vv)), nil
	case int8:
		return NewInt(int64(vv)), nil
	case int16:
		return NewInt(int64(vv)), nil
	case int32:
		return NewInt(int64(vv)), nil
	case int64:
		return NewInt(vv), nil
	case uint:
		return NewInt(int64(vv)), nil
	case uint8:
		return NewInt(int64(vv)), nil
	case uint16:
		return NewInt(int64(vv)), nil
	case uint32:
		return NewInt(int64(vv)), nil
	case uint64:
		return NewInt(int64(vv)), nil
	case float32:
		return NewReal(float64(vv)), nil
	case float64:
		return NewReal(vv), nil
	case json.Number:
		return parseNumber(string(vv))
	case string:
		return NewString(vv), nil
	case []byte:
		return NewString(string(vv)), nil
	case []string:
		a := NewArray()
		for _, s := range vv {
			a.items = append(a.items, NewString(s))
		}
		return a, nil
	case []interface{}:
		a := NewArray()
		for _, y := range vv {
			z, err := FromNative(y)
			if err != nil {
				a.Decref()
				return nil, err
			}
			a.items = append(a.items, z)
		}
		return a, nil
	case map[string]string:
		o := NewObject()
		for _, k := range sortedKeys(len(vv), func(f func(string)) {
			for k := range vv {
				f(k)
			}
		}) {
			o.put(k, NewString(vv[k]))
		}
		return o, nil
	case map[string]interface{}:
		o := NewObject()
		for _, k := range sortedKeys(len(vv), func(f func(string)) {
			for k := range vv {
				f(k)
			}
		}) {
			z, err := FromNative(vv[k])
			if err != nil {
				o.Decref()
				return nil, err
			}
			o.put(k, z)
		}
		return o, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(vv))
		for k, y := range vv {
			s, is := k.(string)
			if !is {
				s = fmt.Sprintf("%v", k)
			}
			m[s] = y
		}
		return FromNative(m)
	}

	// Last resort: a round trip through encoding/json for structs
	// and other marshalable things.
	js, err := json.Marshal(x)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %T to a value: %w", x, err)
	}
	return Parse(js)
}

func sortedKeys(n int, each func(func(string))) []string {
	keys := make([]string, 0, n)
	each(func(k string) {
		keys = append(keys, k)
	})
	sort.Strings(keys)
	return keys
}

// Export converts the Value to ordinary Go data: nil, bool, int64,
// float64, string, []interface{}, map[string]interface{} or the
// native handle of an Opaque Value.
func (v *Value) Export() interface{} {
	if v == nil || v.dead {
		return nil
	}
	switch v.kind {
	case Bool:
		return v.b
	case Integer:
		return v.i
	case Real:
		return v.f
	case String:
		return v.s
	case Array:
		acc := make([]interface{}, len(v.items))
		for i, x := range v.items {
			acc[i] = x.Export()
		}
		return acc
	case Object:
		acc := make(map[string]interface{}, len(v.keys))
		for _, k := range v.keys {
			acc[k] = v.fields[k].Export()
		}
		return acc
	case Opaque:
		return v.ptr
	}
	return nil
}

// FromYAML parses YAML (or JSON, which is YAML) into a Value.
func FromYAML(data []byte) (*Value, error) {
	var x interface{}
	if err := yaml.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	return FromNative(x)
}
