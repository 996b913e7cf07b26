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

package core

import (
	"fmt"

	"github.com/Comcast/gobj/value"
)

// Registry is the table of GClasses.
//
// Registration happens during startup.  The Registry is sealed when
// the first GObj is created, and Register fails afterwards.
type Registry struct {
	gclasses map[string]*GClass
	order    []string
	sealed   bool
}

func NewRegistry() *Registry {
	return &Registry{
		gclasses: make(map[string]*GClass, 32),
	}
}

// Register checks the GClass and adds it.
func (r *Registry) Register(gc *GClass) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if gc == nil {
		return &BadGClass{Reason: "nil gclass"}
	}
	if _, have := r.gclasses[gc.Name]; have {
		return fmt.Errorf("%w: %s", ErrDuplicateGClass, gc.Name)
	}
	if gc.Base != nil && r.gclasses[gc.Base.Name] != gc.Base {
		return &BadGClass{GClass: gc.Name, Reason: "base " + gc.Base.Name + " not registered"}
	}
	if err := gc.compile(); err != nil {
		return err
	}
	gc.registry = r
	r.gclasses[gc.Name] = gc
	r.order = append(r.order, gc.Name)
	return nil
}

// MustRegister panics if Register fails.  Use it for GClasses defined
// in code.
func (r *Registry) MustRegister(gcs ...*GClass) {
	for _, gc := range gcs {
		if err := r.Register(gc); err != nil {
			panic(err)
		}
	}
}

// Find returns the GClass with the given name.
func (r *Registry) Find(name string) (*GClass, bool) {
	gc, have := r.gclasses[name]
	return gc, have
}

// Get is Find returning ErrGClassNotFound.
func (r *Registry) Get(name string) (*GClass, error) {
	if gc, have := r.gclasses[name]; have {
		return gc, nil
	}
	return nil, ErrGClassNotFound
}

// Names lists the GClasses in registration order.
func (r *Registry) Names() []string {
	acc := make([]string, len(r.order))
	copy(acc, r.order)
	return acc
}

// Seal forbids further registration.
func (r *Registry) Seal() {
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	return r.sealed
}

// ToValue describes every GClass.
func (r *Registry) ToValue() *value.Value {
	acc := value.NewArray()
	for _, name := range r.order {
		acc.Append(r.gclasses[name].ToValue())
	}
	return acc
}
