// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package spool keeps undelivered payloads on disk, bounded in entries,
// bytes and age. When full, the oldest entries are evicted first.
package spool

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"

	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// boltBucket is the name of the BoltDB bucket holding the entries, keyed by
// big endian sequence number.
const boltBucket = "payloads"

// ErrSpoolOverflow is returned when entries had to be evicted, or refused,
// to respect the spool caps.
var ErrSpoolOverflow = errors.New("spool overflow")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one spooled payload
type Entry struct {
	Sequence        uint64    `json:"sequence"`
	ContentEncoding string    `json:"content_encoding"`
	Data            []byte    `json:"data"`
	CreatedAt       time.Time `json:"created_at"`
	NotBefore       time.Time `json:"not_before"`
	Attempts        int       `json:"attempts"`
}

// Options bounds the spool
type Options struct {
	Path       string
	MaxEntries int
	MaxSize    int64
	MaxAge     time.Duration
}

type entryMeta struct {
	size      int
	createdAt time.Time
	notBefore time.Time
}

// Spool is a bounded on-disk queue ordered by sequence number. It is safe
// for concurrent use.
type Spool struct {
	m     sync.Mutex
	db    *bolt.DB
	opts  Options
	index map[uint64]entryMeta
	size  int64
	// held entries are being delivered and are never evicted
	held map[uint64]struct{}
}

// Open opens or creates the spool file at opts.Path
func Open(opts Options) (*Spool, error) {
	if opts.Path == "" {
		return nil, errors.New("spool path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create spool dir: %v", err)
	}
	db, err := bolt.Open(opts.Path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open spool: %v", err)
	}

	s := &Spool{db: db, opts: opts, index: make(map[uint64]entryMeta), held: make(map[uint64]struct{})}
	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		if err != nil {
			return fmt.Errorf("unable to create %s bucket: %v", boltBucket, err)
		}
		return bucket.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil || len(k) != 8 {
				log.Warnf("spool: dropping unreadable entry: %v", err)
				return nil
			}
			s.track(binary.BigEndian.Uint64(k), len(v), &e)
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(s.index) > 0 {
		log.Infof("spool: %d payloads (%d bytes) waiting in %s", len(s.index), s.size, opts.Path)
	}
	return s, nil
}

func (s *Spool) track(seq uint64, size int, e *Entry) {
	if old, ok := s.index[seq]; ok {
		s.size -= int64(old.size)
	}
	s.index[seq] = entryMeta{size: size, createdAt: e.CreatedAt, notBefore: e.NotBefore}
	s.size += int64(size)
}

func (s *Spool) untrack(seq uint64) {
	if old, ok := s.index[seq]; ok {
		s.size -= int64(old.size)
		delete(s.index, seq)
	}
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Put stores e, replacing any entry with the same sequence. Older entries
// that are not held are evicted to make room; it then returns the number
// evicted along with an error wrapping ErrSpoolOverflow. e itself is
// refused, and counted as evicted, when it is older than every evictable
// entry of a full spool.
func (s *Spool) Put(e *Entry) (int, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("could not encode entry %d: %w", e.Sequence, err)
	}

	s.m.Lock()
	defer s.m.Unlock()

	if s.opts.MaxSize > 0 && int64(len(value)) > s.opts.MaxSize {
		return 1, fmt.Errorf("%w: payload %d (%d bytes) is larger than the spool", ErrSpoolOverflow, e.Sequence, len(value))
	}

	key := itob(e.Sequence)
	var evicted []uint64
	stored := true
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		count := len(s.index)
		size := s.size
		if old, ok := s.index[e.Sequence]; ok {
			if err := bucket.Delete(key); err != nil {
				return err
			}
			count--
			size -= int64(old.size)
		}

		c := bucket.Cursor()
		for s.full(count, size, len(value)) {
			k, v := c.First()
			for k != nil && s.isHeld(binary.BigEndian.Uint64(k)) {
				k, v = c.Next()
			}
			if k == nil {
				break
			}
			if bytes.Compare(key, k) < 0 {
				stored = false
				return nil
			}
			if err := c.Delete(); err != nil {
				return err
			}
			evicted = append(evicted, binary.BigEndian.Uint64(k))
			count--
			size -= int64(len(v))
		}
		return bucket.Put(key, value)
	})
	if err != nil {
		return 0, fmt.Errorf("could not store entry %d: %w", e.Sequence, err)
	}

	for _, seq := range evicted {
		s.untrack(seq)
	}
	if !stored {
		s.untrack(e.Sequence)
		return 1, fmt.Errorf("%w: payload %d is older than every spooled payload", ErrSpoolOverflow, e.Sequence)
	}
	s.track(e.Sequence, len(value), e)
	if len(evicted) > 0 {
		return len(evicted), fmt.Errorf("%w: evicted %d oldest payloads (sequences %d to %d)", ErrSpoolOverflow, len(evicted), evicted[0], evicted[len(evicted)-1])
	}
	return 0, nil
}

// Hold protects the entry seq from eviction and expiry until Release or
// Delete. It returns false when the entry is no longer spooled.
func (s *Spool) Hold(seq uint64) bool {
	s.m.Lock()
	defer s.m.Unlock()
	if _, ok := s.index[seq]; !ok {
		return false
	}
	s.held[seq] = struct{}{}
	return true
}

// Release undoes Hold
func (s *Spool) Release(seq uint64) {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.held, seq)
}

// isHeld must be called with s.m held
func (s *Spool) isHeld(seq uint64) bool {
	_, ok := s.held[seq]
	return ok
}

func (s *Spool) full(count int, size int64, incoming int) bool {
	if s.opts.MaxEntries > 0 && count+1 > s.opts.MaxEntries {
		return true
	}
	return s.opts.MaxSize > 0 && size+int64(incoming) > s.opts.MaxSize
}

// Next returns the entry with the lowest sequence that is due at now
func (s *Spool) Next(now time.Time) (*Entry, error) {
	s.m.Lock()
	defer s.m.Unlock()

	var best uint64
	found := false
	for seq, meta := range s.index {
		if meta.notBefore.After(now) {
			continue
		}
		if !found || seq < best {
			best, found = seq, true
		}
	}
	if !found {
		return nil, nil
	}
	return s.get(best)
}

func (s *Spool) get(seq uint64) (*Entry, error) {
	var e *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(boltBucket)).Get(itob(seq))
		if v == nil {
			return nil
		}
		e = &Entry{}
		return json.Unmarshal(v, e)
	})
	if err != nil {
		return nil, fmt.Errorf("could not read entry %d: %w", seq, err)
	}
	return e, nil
}

// Delete removes the entry with sequence seq, if any
func (s *Spool) Delete(seq uint64) error {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.held, seq)
	if _, ok := s.index[seq]; !ok {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete(itob(seq))
	})
	if err != nil {
		return fmt.Errorf("could not delete entry %d: %w", seq, err)
	}
	s.untrack(seq)
	return nil
}

// Expire removes the entries created more than MaxAge before now and
// returns how many were removed.
func (s *Spool) Expire(now time.Time) (int, error) {
	if s.opts.MaxAge <= 0 {
		return 0, nil
	}
	s.m.Lock()
	defer s.m.Unlock()

	cutoff := now.Add(-s.opts.MaxAge)
	var expired []uint64
	for seq, meta := range s.index {
		if meta.createdAt.Before(cutoff) && !s.isHeld(seq) {
			expired = append(expired, seq)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		for _, seq := range expired {
			if err := bucket.Delete(itob(seq)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("could not expire entries: %w", err)
	}
	for _, seq := range expired {
		s.untrack(seq)
	}
	return len(expired), nil
}

// Len returns the number of spooled entries
func (s *Spool) Len() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.index)
}

// Size returns the number of bytes used by the spooled entries
func (s *Spool) Size() int64 {
	s.m.Lock()
	defer s.m.Unlock()
	return s.size
}

// MaxSequence returns the highest spooled sequence, 0 when empty
func (s *Spool) MaxSequence() uint64 {
	s.m.Lock()
	defer s.m.Unlock()
	var highest uint64
	for seq := range s.index {
		if seq > highest {
			highest = seq
		}
	}
	return highest
}

// Sequences returns the spooled sequences in increasing order
func (s *Spool) Sequences() []uint64 {
	s.m.Lock()
	defer s.m.Unlock()
	seqs := make([]uint64, 0, len(s.index))
	for seq := range s.index {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs
}

// Close closes the spool file
func (s *Spool) Close() error {
	return s.db.Close()
}
