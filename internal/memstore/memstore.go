// Package memstore implements the Memory Store (spec.md §4.D): a
// project-keyed K/V store with per-project write serialization and
// lock-free reads, persisted atomically under internal/store's layout.
//
// Grounded on the teacher's internal/pairing.Store (per-channel mutex,
// read-modify-write, tmp-then-rename) generalized from per-channel
// pairing records to per-project arbitrary key/value entries.
package memstore

import (
	"os"
	"sync"
	"time"

	"github.com/conductorhq/conductor/internal/store"
	"github.com/conductorhq/conductor/pkg/models"
)

// projectData is the persisted memory.json shape: key to entry.
type projectData map[string]models.MemoryEntry

// Store is a project-keyed memory store.
type Store struct {
	root *store.Root

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a Store rooted at root.
func New(root *store.Root) *Store {
	return &Store{root: root, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) lockFor(project string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[project]
	if !ok {
		l = &sync.Mutex{}
		s.locks[project] = l
	}
	return l
}

func (s *Store) load(project string) (projectData, error) {
	var data projectData
	err := store.ReadJSON(s.root.MemoryPath(project), &data)
	if os.IsNotExist(err) {
		return projectData{}, nil
	}
	if err != nil {
		return projectData{}, nil
	}
	if data == nil {
		data = projectData{}
	}
	return data, nil
}

// Save upserts key=value for project, stamping UpdatedAt with now.
func (s *Store) Save(project, key, value string) error {
	l := s.lockFor(project)
	l.Lock()
	defer l.Unlock()

	data, err := s.load(project)
	if err != nil {
		return err
	}
	data[key] = models.MemoryEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return store.WriteJSONAtomic(s.root.MemoryPath(project), data)
}

// Retrieve returns the entry for key in project, and whether it exists.
// Reads are lock-free: they read a fresh copy of the file each call.
func (s *Store) Retrieve(project, key string) (models.MemoryEntry, bool) {
	data, err := s.load(project)
	if err != nil {
		return models.MemoryEntry{}, false
	}
	e, ok := data[key]
	return e, ok
}

// Delete removes key from project, returning whether it was present.
func (s *Store) Delete(project, key string) bool {
	l := s.lockFor(project)
	l.Lock()
	defer l.Unlock()

	data, err := s.load(project)
	if err != nil {
		return false
	}
	if _, ok := data[key]; !ok {
		return false
	}
	delete(data, key)
	_ = store.WriteJSONAtomic(s.root.MemoryPath(project), data)
	return true
}

// ListKeys returns every key stored for project, in no particular order.
func (s *Store) ListKeys(project string) []string {
	data, err := s.load(project)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	return keys
}
