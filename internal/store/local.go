package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vitaminmoo/blesync/internal/reading"
)

// DefaultKey is the single key holding the JSON-encoded reading log.
const DefaultKey = "bluetoothData"

var (
	// ErrStorage marks a failed read or write of the persisted log.
	ErrStorage = errors.New("storage error")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// LocalStore owns the reading log. Every append reads the whole persisted log,
// appends, and writes the whole log back. All storage access goes through one
// writer goroutine, so two appends never interleave their read-modify-write.
type LocalStore struct {
	kv     KV
	key    string
	logger *slog.Logger

	reqs      chan request
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	mirror reading.Log
}

type opKind int

const (
	opLoad opKind = iota
	opAppend
)

type request struct {
	op   opKind
	r    reading.Reading
	resp chan result
}

type result struct {
	log reading.Log
	err error
}

// NewLocalStore starts the writer goroutine over kv. The store owns kv and
// closes it on Close. An empty key uses DefaultKey.
func NewLocalStore(kv KV, key string, logger *slog.Logger) *LocalStore {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &LocalStore{
		kv:     kv,
		key:    key,
		logger: logger,
		reqs:   make(chan request),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		mirror: reading.Log{},
	}
	go s.writer()
	return s
}

// Load returns the persisted log and refreshes the in-memory mirror. Storage
// failures are logged and yield an empty log.
func (s *LocalStore) Load(ctx context.Context) reading.Log {
	log, err := s.do(ctx, request{op: opLoad})
	if err != nil {
		s.logger.Error("error loading stored data", "error", err)
		return reading.Log{}
	}
	return log
}

// Append adds r to the persisted log and returns the full log as written.
// On failure nothing is written, the mirror is unchanged and the error wraps
// ErrStorage.
func (s *LocalStore) Append(ctx context.Context, r reading.Reading) (reading.Log, error) {
	return s.do(ctx, request{op: opAppend, r: r})
}

// Snapshot returns a copy of the in-memory mirror.
func (s *LocalStore) Snapshot() reading.Log {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mirror.Clone()
}

// Len returns the number of readings in the mirror.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mirror)
}

// Close stops the writer and closes the backend.
func (s *LocalStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.done
		err = s.kv.Close()
	})
	return err
}

func (s *LocalStore) do(ctx context.Context, req request) (reading.Log, error) {
	req.resp = make(chan result, 1)

	select {
	case s.reqs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.quit:
		return nil, ErrClosed
	}

	res := <-req.resp
	return res.log, res.err
}

func (s *LocalStore) writer() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case req := <-s.reqs:
			var res result
			switch req.op {
			case opLoad:
				res.log, res.err = s.read()
			case opAppend:
				res.log, res.err = s.append(req.r)
			}
			if res.err == nil {
				s.setMirror(res.log)
			}
			req.resp <- res
		}
	}
}

func (s *LocalStore) append(r reading.Reading) (reading.Log, error) {
	current, err := s.read()
	if err != nil {
		return nil, err
	}

	next := current.Append(r)
	encoded, err := next.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: encode log: %w", ErrStorage, err)
	}
	if err := s.kv.Set(s.key, encoded); err != nil {
		return nil, fmt.Errorf("%w: write log: %w", ErrStorage, err)
	}

	s.logger.Debug("reading stored", "value", r.Value, "count", len(next))
	return next, nil
}

func (s *LocalStore) read() (reading.Log, error) {
	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: read log: %w", ErrStorage, err)
	}
	if !ok {
		return reading.Log{}, nil
	}
	log, err := reading.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrStorage, ErrCorrupt, err)
	}
	return log, nil
}

func (s *LocalStore) setMirror(l reading.Log) {
	s.mu.Lock()
	s.mirror = l.Clone()
	s.mu.Unlock()
}
