// Package memstore implements the RemoteStore and ObjectStore contracts
// in memory: a nested JSON tree with atomic multi-path writes and
// value-event subscriptions. It backs local development runs without
// Firebase credentials and the usecase tests.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"swapit/internal/domain/repository"
	"swapit/pkg/errors"
)

type subscriber struct {
	id       int
	path     string
	onChange func(json.RawMessage)
	onCancel func(error)
}

type Store struct {
	mu     sync.Mutex
	root   map[string]interface{}
	subs   map[int]*subscriber
	nextID int
	pushN  int64
}

func New() *Store {
	return &Store{
		root: make(map[string]interface{}),
		subs: make(map[int]*subscriber),
	}
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// normalize round-trips v through JSON so the tree only ever holds
// map[string]interface{}, []interface{} and scalar values.
func normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) lookup(segments []string) interface{} {
	var node interface{} = s.root
	for _, seg := range segments {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node = m[seg]
	}
	return node
}

// write sets or (for nil) deletes the node at segments, pruning branches
// emptied by the delete the way the real tree collapses them.
func (s *Store) write(segments []string, value interface{}) {
	if len(segments) == 0 {
		if value == nil {
			s.root = make(map[string]interface{})
			return
		}
		if m, ok := value.(map[string]interface{}); ok {
			s.root = m
		}
		return
	}

	if value == nil {
		s.prune(s.root, segments)
		return
	}

	node := s.root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			node[seg] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

func (s *Store) prune(node map[string]interface{}, segments []string) bool {
	if len(segments) == 1 {
		delete(node, segments[0])
		return len(node) == 0
	}
	child, ok := node[segments[0]].(map[string]interface{})
	if !ok {
		return len(node) == 0
	}
	if s.prune(child, segments[1:]) {
		delete(node, segments[0])
	}
	return len(node) == 0
}

func (s *Store) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	s.mu.Lock()
	node := s.lookup(splitPath(path))
	s.mu.Unlock()

	if node == nil {
		return false, nil
	}
	raw, err := json.Marshal(node)
	if err != nil {
		return false, errors.Internal("Failed to encode stored value", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, errors.Internal("Failed to decode stored value", err)
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, path string, value interface{}) error {
	return s.BatchWrite(ctx, map[string]interface{}{path: value})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.BatchWrite(ctx, map[string]interface{}{path: nil})
}

// BatchWrite applies every entry under one lock acquisition: values are
// normalized up front so a bad value rejects the whole batch before any
// path is touched.
func (s *Store) BatchWrite(ctx context.Context, updates map[string]interface{}) error {
	normalized := make(map[string]interface{}, len(updates))
	for path, value := range updates {
		v, err := normalize(value)
		if err != nil {
			return errors.Internal(fmt.Sprintf("Unencodable value for %s", path), err)
		}
		normalized[path] = v
	}

	s.mu.Lock()
	for path, value := range normalized {
		s.write(splitPath(path), value)
	}
	notify := s.affectedLocked(normalized)
	s.mu.Unlock()

	for _, n := range notify {
		n.sub.onChange(n.snapshot)
	}
	return nil
}

type notification struct {
	sub      *subscriber
	snapshot json.RawMessage
}

func (s *Store) affectedLocked(updates map[string]interface{}) []notification {
	var out []notification
	for _, sub := range s.subs {
		hit := false
		for path := range updates {
			if pathsOverlap(sub.path, path) {
				hit = true
				break
			}
		}
		if hit {
			out = append(out, notification{sub: sub, snapshot: s.snapshotLocked(sub.path)})
		}
	}
	return out
}

// pathsOverlap reports whether a write at b is visible to a subscriber
// at a: one path must be a segment-wise prefix of the other.
func pathsOverlap(a, b string) bool {
	as, bs := splitPath(a), splitPath(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func (s *Store) snapshotLocked(path string) json.RawMessage {
	node := s.lookup(splitPath(path))
	raw, err := json.Marshal(node)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}

// NewChildID reserves a unique, monotonic-ish child key. Nothing is
// written at the new path.
func (s *Store) NewChildID(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	s.pushN++
	id := fmt.Sprintf("-%013d%04d", time.Now().UnixMilli(), s.pushN)
	s.mu.Unlock()
	return id, nil
}

func (s *Store) Subscribe(path string, onChange func(json.RawMessage), onCancel func(error)) (repository.CancelFunc, error) {
	s.mu.Lock()
	s.nextID++
	sub := &subscriber{id: s.nextID, path: path, onChange: onChange, onCancel: onCancel}
	s.subs[sub.id] = sub
	initial := s.snapshotLocked(path)
	s.mu.Unlock()

	// Value-event semantics: the current snapshot is delivered on
	// registration, before any change.
	onChange(initial)

	id := sub.id
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}, nil
}

// Revoke cancels every subscription rooted at exactly path, simulating
// the store revoking read permission.
func (s *Store) Revoke(path string, err error) {
	s.mu.Lock()
	var cancelled []*subscriber
	for id, sub := range s.subs {
		if sub.path == path {
			cancelled = append(cancelled, sub)
			delete(s.subs, id)
		}
	}
	s.mu.Unlock()

	for _, sub := range cancelled {
		if sub.onCancel != nil {
			sub.onCancel(err)
		}
	}
}
