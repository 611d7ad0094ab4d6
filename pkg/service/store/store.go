// Copyright 2025 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package store

import (
	"encoding/binary"
	"encoding/json"
	"slices"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/adom-inc/ads123x/pkg/ads123x"
)

const (
	bucketName = "samples"
)

var (
	maskAny = errors.WithStack
)

// Sample is one stored conversion result.
type Sample struct {
	Seq     uint64    `json:"seq"`
	Value   int32     `json:"value"`
	Gain    int       `json:"gain"`
	Speed   string    `json:"speed"`
	Channel string    `json:"channel"`
	Time    time.Time `json:"time"`
}

// NewSample builds a stored sample from a conversion result.
func NewSample(seq uint64, value int32, cfg ads123x.Configuration, t time.Time) Sample {
	return Sample{
		Seq:     seq,
		Value:   value,
		Gain:    cfg.Gain.Multiplier(),
		Speed:   cfg.Speed.String(),
		Channel: cfg.Channel.String(),
		Time:    t,
	}
}

// Store keeps a bounded history of samples in a bbolt database.
type Store struct {
	db        *bbolt.DB
	retention int
}

// Open the database at the given path. Retention is the maximum number of
// samples kept; 0 keeps everything.
func Open(path string, retention int) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		db.Close()
		return nil, maskAny(err)
	}
	return &Store{db: db, retention: retention}, nil
}

// Close the database.
func (s *Store) Close() error {
	return maskAny(s.db.Close())
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

// LastSeq returns the highest stored sequence number, 0 when empty.
func (s *Store) LastSeq() (uint64, error) {
	var seq uint64
	if err := s.db.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket([]byte(bucketName)).Cursor().Last()
		if k != nil {
			seq = binary.BigEndian.Uint64(k)
		}
		return nil
	}); err != nil {
		return 0, maskAny(err)
	}
	return seq, nil
}

// Append stores a sample and prunes the samples that are more than
// retention sequence numbers older.
func (s *Store) Append(sample Sample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return maskAny(err)
	}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if err := b.Put(seqKey(sample.Seq), data); err != nil {
			return err
		}
		if s.retention <= 0 {
			return nil
		}
		if sample.Seq <= uint64(s.retention) {
			return nil
		}
		cutoff := sample.Seq - uint64(s.retention)
		var expired [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k) <= cutoff; k, _ = c.Next() {
			expired = append(expired, append([]byte(nil), k...))
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return maskAny(err)
	}
	return nil
}

// Recent returns the last n samples, oldest first.
func (s *Store) Recent(n int) ([]Sample, error) {
	var result []Sample
	if err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, v := c.Last(); k != nil && len(result) < n; k, v = c.Prev() {
			var sample Sample
			if err := json.Unmarshal(v, &sample); err != nil {
				return errors.Wrapf(err, "sample %d", binary.BigEndian.Uint64(k))
			}
			result = append(result, sample)
		}
		return nil
	}); err != nil {
		return nil, maskAny(err)
	}
	slices.Reverse(result)
	return result, nil
}

// Count returns the number of stored samples.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	}); err != nil {
		return 0, maskAny(err)
	}
	return n, nil
}
