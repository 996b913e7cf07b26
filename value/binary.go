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
	"errors"
	"sync"
)

// BinaryType lets an Opaque member of an object survive the text
// form.  Serialize replaces the member named Field by a member named
// SerializedField; Deserialize does the reverse.
type BinaryType struct {
	Field           string
	SerializedField string
	Serialize       func(x interface{}) (*Value, error)
	Deserialize     func(v *Value) (interface{}, error)
}

var binaryTypes = struct {
	sync.RWMutex
	types []*BinaryType
}{}

// ErrBinaryTypeExists is returned when a field already has a binary
// type.
var ErrBinaryTypeExists = errors.New("binary type exists")

// RegisterBinaryType adds a binary type.
func RegisterBinaryType(bt *BinaryType) error {
	if bt.Field == "" || bt.SerializedField == "" || bt.Serialize == nil || bt.Deserialize == nil {
		return errors.New("incomplete binary type")
	}
	binaryTypes.Lock()
	defer binaryTypes.Unlock()
	for _, x := range binaryTypes.types {
		if x.Field == bt.Field || x.SerializedField == bt.SerializedField {
			return ErrBinaryTypeExists
		}
	}
	binaryTypes.types = append(binaryTypes.types, bt)
	return nil
}

func registeredBinaryTypes() []*BinaryType {
	binaryTypes.RLock()
	defer binaryTypes.RUnlock()
	acc := make([]*BinaryType, len(binaryTypes.types))
	copy(acc, binaryTypes.types)
	return acc
}

// Serialize returns a copy of kw (borrowed) with every binary field
// replaced by its serialized form.
func Serialize(kw *Value) (*Value, error) {
	if kw.Kind() != Object {
		return nil, ErrKind
	}
	out := kw.Clone()
	for _, bt := range registeredBinaryTypes() {
		x := out.Get(bt.Field)
		if x.Kind() != Opaque {
			continue
		}
		s, err := bt.Serialize(x.ptr)
		if err != nil {
			out.Decref()
			return nil, err
		}
		if err := out.Set(bt.SerializedField, s); err != nil {
			out.Decref()
			return nil, err
		}
		out.Delete(bt.Field)
	}
	return out, nil
}

// Deserialize returns a copy of kw (borrowed) with every serialized
// field turned back into its binary form.
func Deserialize(kw *Value) (*Value, error) {
	if kw.Kind() != Object {
		return nil, ErrKind
	}
	out := kw.Clone()
	for _, bt := range registeredBinaryTypes() {
		x := out.Get(bt.SerializedField)
		if x == nil {
			continue
		}
		native, err := bt.Deserialize(x)
		if err != nil {
			out.Decref()
			return nil, err
		}
		if err := out.Set(bt.Field, NewOpaque(native)); err != nil {
			out.Decref()
			return nil, err
		}
		out.Delete(bt.SerializedField)
	}
	return out, nil
}
