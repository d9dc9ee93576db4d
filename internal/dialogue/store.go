package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrStateNotFound is returned when a conversation has no dialogue state.
var ErrStateNotFound = errors.New("dialogue state not found")

// Store keeps dialogue state by conversation id.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Put(ctx context.Context, id string, st *State) error
	Delete(ctx context.Context, id string) error
}

// StoreType selects a Store implementation.
type StoreType string

const (
	// StoreMemory keeps state in process memory. It is lost on restart.
	StoreMemory StoreType = "memory"
	// StoreBadger keeps state in a BadgerDB directory.
	StoreBadger StoreType = "badger"
)

// OpenStore creates the store named by storeType. The returned closer releases
// the underlying database; it is a no-op for the memory store.
func OpenStore(storeType StoreType, path string) (Store, io.Closer, error) {
	switch storeType {
	case StoreMemory, "":
		return NewMemoryStore(), closerFunc(func() error { return nil }), nil
	case StoreBadger:
		opts := badger.DefaultOptions(path)
		opts.Logger = nil
		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger db for dialogue state: %w", err)
		}
		return NewBadgerStore(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown dialogue store %q", storeType)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// MemoryStore is a Store backed by a map. Values are stored encoded so that
// callers never share a State with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

// Get returns a copy of the state for id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*State, error) {
	s.mu.RLock()
	data, ok := s.states[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

// Put stores a copy of st.
func (s *MemoryStore) Put(ctx context.Context, id string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	s.mu.Lock()
	s.states[id] = data
	s.mu.Unlock()
	return nil
}

// Delete removes the state for id. Deleting a missing id is not an error.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.states, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored states.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

const stateKeyPrefix = "dialogue:"

// BadgerStore is a Store backed by BadgerDB, so in-flight dialogues survive restarts.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an open BadgerDB.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get retrieves the state for id.
func (s *BadgerStore) Get(ctx context.Context, id string) (*State, error) {
	var st State
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrStateNotFound
		}
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Put stores st under id.
func (s *BadgerStore) Put(ctx context.Context, id string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stateKeyPrefix+id), data)
	})
}

// Delete removes the state for id.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(stateKeyPrefix + id))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete state: %w", err)
		}
		return nil
	})
}
