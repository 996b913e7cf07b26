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

// Package bolt is a BoltDB AttrStore.
//
// Each Yuno gets a bucket.  Keys are GObj full names and values are
// the JSON of the saved attributes.
package bolt

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"

	"github.com/Comcast/gobj/value"
)

var ErrNotOpen = errors.New("bolt storage not open")

type Storage struct {
	Debug  bool
	Logger zerolog.Logger

	filename string
	bucket   []byte
	db       *bolt.DB
}

// NewStorage makes a Storage for the file and bucket.  Call Open
// before use.
func NewStorage(filename, bucket string) (*Storage, error) {
	if bucket == "" {
		return nil, errors.New("bolt storage needs a bucket")
	}
	return &Storage{
		Logger:   log.Logger,
		filename: filename,
		bucket:   []byte(bucket),
	}, nil
}

func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Storage) logf(what, key string) {
	if s.Debug {
		s.Logger.Debug().Str("bucket", string(s.bucket)).Str("key", key).Msg("bolt " + what)
	}
}

func (s *Storage) LoadAttrs(ctx context.Context, key string) (*value.Value, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	s.logf("load", key)
	var js []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if bs := b.Get([]byte(key)); bs != nil {
			// Only valid during the transaction.
			js = append([]byte(nil), bs...)
		}
		return nil
	})
	if err != nil || js == nil {
		return nil, err
	}
	return value.Parse(js)
}

func (s *Storage) SaveAttrs(ctx context.Context, key string, attrs *value.Value) error {
	if s.db == nil {
		return ErrNotOpen
	}
	s.logf("save", key)
	js, err := attrs.MarshalJSON()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), js)
	})
}

func (s *Storage) RemoveAttrs(ctx context.Context, key string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	s.logf("remove", key)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Keys returns the saved keys in order.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	acc := make([]string, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			acc = append(acc, string(k))
			return nil
		})
	})
	return acc, err
}
