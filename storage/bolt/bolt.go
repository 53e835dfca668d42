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

// Package bolt stores actor state and firing records in a BoltDB
// file.
//
// Each crew gets a bucket with two nested buckets: "state", keyed by
// member id, and "records", keyed by insertion sequence.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/util"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var (
	stateBucket   = []byte("state")
	recordsBucket = []byte("records")

	// NotOpen is returned when the Storage hasn't been opened.
	NotOpen = errors.New("storage not open")
)

type Storage struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

func NewStorage(filename string) (*Storage, error) {
	return &Storage{
		filename: filename,
	}, nil
}

func (s *Storage) Open() error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close() error {
	if s.db == nil {
		return NotOpen
	}
	return s.db.Close()
}

func (s *Storage) logf(format string, args ...interface{}) {
	if s.Debug {
		util.Log.WithField("db", s.filename).Debugf("bolt storage "+format, args...)
	}
}

// crewBucket finds or makes the nested bucket for the crew.
func crewBucket(tx *bolt.Tx, crew string, name []byte) (*bolt.Bucket, error) {
	b, err := tx.CreateBucketIfNotExists([]byte(crew))
	if err != nil {
		return nil, err
	}
	return b.CreateBucketIfNotExists(name)
}

// lookup returns the nested bucket or nil.
func lookup(tx *bolt.Tx, crew string, name []byte) *bolt.Bucket {
	b := tx.Bucket([]byte(crew))
	if b == nil {
		return nil
	}
	return b.Bucket(name)
}

// WriteState replaces the member's state.
func (s *Storage) WriteState(ctx context.Context, crew, member string, bs core.Bindings) error {
	if s.db == nil {
		return NotOpen
	}
	js, err := json.Marshal(bs)
	if err != nil {
		return err
	}
	s.logf("WriteState %s %s %s", crew, member, js)
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := crewBucket(tx, crew, stateBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(member), js)
	})
}

// GetState returns the member's state or nil if there isn't any.
func (s *Storage) GetState(ctx context.Context, crew, member string) (core.Bindings, error) {
	if s.db == nil {
		return nil, NotOpen
	}
	var bs core.Bindings
	err := s.db.View(func(tx *bolt.Tx) error {
		b := lookup(tx, crew, stateBucket)
		if b == nil {
			return nil
		}
		js := b.Get([]byte(member))
		if js == nil {
			return nil
		}
		return json.Unmarshal(js, &bs)
	})
	if err != nil {
		return nil, err
	}
	s.logf("GetState %s %s found %v", crew, member, bs != nil)
	return bs, nil
}

// AddRecord appends the record.  A record without an Id gets one.
func (s *Storage) AddRecord(ctx context.Context, crew string, r *core.FiringRecord) error {
	if s.db == nil {
		return NotOpen
	}
	if r.Id == "" {
		r.Id = uuid.New().String()
	}
	js, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := crewBucket(tx, crew, recordsBucket)
		if err != nil {
			return err
		}
		n, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, n)
		s.logf("AddRecord %s %d %s", crew, n, r.Id)
		return b.Put(key, js)
	})
}

// Records returns the crew's records in the order they were added.
func (s *Storage) Records(ctx context.Context, crew string) ([]*core.FiringRecord, error) {
	if s.db == nil {
		return nil, NotOpen
	}
	acc := make([]*core.FiringRecord, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := lookup(tx, crew, recordsBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, js := c.First(); k != nil; k, js = c.Next() {
			var r core.FiringRecord
			if err := json.Unmarshal(js, &r); err != nil {
				return err
			}
			acc = append(acc, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	util.Log.WithFields(logrus.Fields{
		"crew":    crew,
		"records": len(acc),
	}).Debug("records read")
	return acc, nil
}

// RemCrew deletes everything stored for the crew.
func (s *Storage) RemCrew(ctx context.Context, crew string) error {
	if s.db == nil {
		return NotOpen
	}
	s.logf("RemCrew %s", crew)
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(crew))
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
}
