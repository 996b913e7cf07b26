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

// Package storage gathers the AttrStores that keep the persistent
// attributes of services.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/storage/bolt"
	"github.com/Comcast/gobj/storage/jsonfile"
	"github.com/Comcast/gobj/value"
)

// Storage is an AttrStore that must be opened and closed.
type Storage interface {
	core.AttrStore

	Open(ctx context.Context) error
	Close(ctx context.Context) error

	// Keys lists what is saved.
	Keys(ctx context.Context) ([]string, error)
}

// New makes a Storage of the given kind: "bolt", "json", "mem" or
// "none".  The bucket is used by bolt, which keeps several yunos in
// one file.
func New(kind, filename, bucket string) (Storage, error) {
	switch kind {
	case "bolt":
		return bolt.NewStorage(filename, bucket)
	case "json":
		return jsonfile.NewStorage(filename), nil
	case "mem":
		return NewMem(), nil
	case "", "none":
		return &Noop{}, nil
	}
	return nil, fmt.Errorf("unknown storage %q", kind)
}

// Noop saves nothing.
type Noop struct {
}

func (s *Noop) Open(ctx context.Context) error {
	return nil
}

func (s *Noop) Close(ctx context.Context) error {
	return nil
}

func (s *Noop) LoadAttrs(ctx context.Context, key string) (*value.Value, error) {
	return nil, nil
}

func (s *Noop) SaveAttrs(ctx context.Context, key string, attrs *value.Value) error {
	return nil
}

func (s *Noop) RemoveAttrs(ctx context.Context, key string) error {
	return nil
}

func (s *Noop) Keys(ctx context.Context) ([]string, error) {
	return nil, nil
}

// Mem keeps serialized attributes in memory.
type Mem struct {
	sync.Mutex
	saved map[string]string
}

func NewMem() *Mem {
	return &Mem{
		saved: make(map[string]string),
	}
}

func (s *Mem) Open(ctx context.Context) error {
	return nil
}

func (s *Mem) Close(ctx context.Context) error {
	return nil
}

func (s *Mem) LoadAttrs(ctx context.Context, key string) (*value.Value, error) {
	s.Lock()
	js, have := s.saved[key]
	s.Unlock()
	if !have {
		return nil, nil
	}
	return value.ParseString(js)
}

func (s *Mem) SaveAttrs(ctx context.Context, key string, attrs *value.Value) error {
	js, err := attrs.MarshalJSON()
	if err != nil {
		return err
	}
	s.Lock()
	s.saved[key] = string(js)
	s.Unlock()
	return nil
}

func (s *Mem) RemoveAttrs(ctx context.Context, key string) error {
	s.Lock()
	delete(s.saved, key)
	s.Unlock()
	return nil
}

func (s *Mem) Keys(ctx context.Context) ([]string, error) {
	s.Lock()
	defer s.Unlock()
	acc := make([]string, 0, len(s.saved))
	for k := range s.saved {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc, nil
}
