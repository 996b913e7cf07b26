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

// Package jsonfile is an AttrStore kept in one JSON file.
//
// Not glamorous or efficient: every save rewrites the file.
package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Comcast/gobj/value"
)

type Storage struct {
	// Indent writes a readable file.
	Indent bool

	filename string

	sync.Mutex
	state *value.Value
}

func NewStorage(filename string) *Storage {
	return &Storage{
		Indent:   true,
		filename: filename,
	}
}

// Open reads the file if it exists.
func (s *Storage) Open(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	js, err := os.ReadFile(s.filename)
	if os.IsNotExist(err) {
		s.state = value.NewObject()
		return nil
	}
	if err != nil {
		return err
	}
	state, err := value.Parse(js)
	if err != nil {
		return err
	}
	if !state.IsObject() {
		state.Decref()
		return &os.PathError{Op: "open", Path: s.filename, Err: os.ErrInvalid}
	}
	s.state = state
	return nil
}

// Close writes the file and forgets the state.
func (s *Storage) Close(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	if s.state == nil {
		return nil
	}
	err := s.write()
	s.state.Decref()
	s.state = nil
	return err
}

func (s *Storage) LoadAttrs(ctx context.Context, key string) (*value.Value, error) {
	s.Lock()
	defer s.Unlock()
	if s.state == nil {
		return nil, nil
	}
	v := s.state.Get(key)
	if v == nil {
		return nil, nil
	}
	return v.Clone(), nil
}

func (s *Storage) SaveAttrs(ctx context.Context, key string, attrs *value.Value) error {
	s.Lock()
	defer s.Unlock()
	if s.state == nil {
		s.state = value.NewObject()
	}
	s.state.Set(key, attrs.Clone())
	return s.write()
}

func (s *Storage) RemoveAttrs(ctx context.Context, key string) error {
	s.Lock()
	defer s.Unlock()
	if s.state == nil || s.state.Get(key) == nil {
		return nil
	}
	s.state.Delete(key)
	return s.write()
}

// Keys returns the saved keys in order.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	s.Lock()
	defer s.Unlock()
	if s.state == nil {
		return nil, nil
	}
	keys := s.state.Keys()
	sort.Strings(keys)
	return keys, nil
}

// write replaces the file by way of a temporary file.  It must be
// called with the lock held.
func (s *Storage) write() error {
	var js []byte
	if s.Indent {
		js = []byte(s.state.Indent())
	} else {
		js = []byte(s.state.String())
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.filename), filepath.Base(s.filename)+".*")
	if err != nil {
		return err
	}
	if _, err = tmp.Write(js); err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmp.Name(), s.filename)
	}
	if err != nil {
		os.Remove(tmp.Name())
	}
	return err
}
