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
	"context"

	"github.com/Comcast/gobj/value"
)

// AttrStore keeps the persistent attributes of GObjs outside the
// process.  The kernel never does I/O itself; the storage package
// has implementations.
type AttrStore interface {
	// LoadAttrs returns the attributes saved under key (a new
	// Value), or nil when there are none.
	LoadAttrs(ctx context.Context, key string) (*value.Value, error)

	// SaveAttrs replaces the attributes saved under key.  attrs
	// is borrowed.
	SaveAttrs(ctx context.Context, key string, attrs *value.Value) error

	// RemoveAttrs forgets key.
	RemoveAttrs(ctx context.Context, key string) error
}

// PersistKey is the key of g's attributes in an AttrStore.
func (g *GObj) PersistKey() string {
	return g.FullName()
}

// LoadAttrs restores the Persist and PStats attributes of g from the
// Yuno's AttrStore.
func (g *GObj) LoadAttrs() error {
	y := g.yuno
	if y.Store == nil {
		return ErrNoStore
	}
	saved, err := y.Store.LoadAttrs(y.ctx(), g.PersistKey())
	if err != nil {
		return err
	}
	if saved == nil {
		return nil
	}
	defer saved.Decref()
	return g.attrs.LoadPersistent(saved)
}

// SaveAttrs writes the Persist and PStats attributes of g to the
// Yuno's AttrStore.  With names, only those attributes are updated
// and the others keep their saved values.
func (g *GObj) SaveAttrs(names ...string) error {
	if err := g.usable("save attrs", true); err != nil {
		return err
	}
	y := g.yuno
	if y.Store == nil {
		return ErrNoStore
	}
	current := g.attrs.Persistent()
	defer current.Decref()

	if len(names) == 0 {
		return y.Store.SaveAttrs(y.ctx(), g.PersistKey(), current)
	}

	saved, err := y.Store.LoadAttrs(y.ctx(), g.PersistKey())
	if err != nil {
		return err
	}
	if saved == nil {
		saved = value.NewObject()
	} else {
		saved = value.Writable(saved)
	}
	defer saved.Decref()
	for _, name := range names {
		if v := current.Get(name); v != nil {
			saved.SetBorrowed(name, v)
		}
	}
	return y.Store.SaveAttrs(y.ctx(), g.PersistKey(), saved)
}

// RemoveAttrs deletes the saved attributes of g.
func (g *GObj) RemoveAttrs() error {
	y := g.yuno
	if y.Store == nil {
		return ErrNoStore
	}
	return y.Store.RemoveAttrs(y.ctx(), g.PersistKey())
}
