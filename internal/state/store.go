package state

import (
	"sync"

	"asseto/internal/domain"
)

// Store is the single shared mutable holder of State. Merges and replaces are
// serialized so a settlement cannot interleave with a generation change.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates a store for the project.
func NewStore(project domain.ProjectConfig) *Store {
	return &Store{state: New(project)}
}

// Snapshot returns the current immutable state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Generation returns the current generation token.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Generation
}

// Project returns a copy of the current project config.
func (s *Store) Project() domain.ProjectConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Project.Clone()
}

// SetProject installs a new project config. Items are left untouched.
func (s *Store) SetProject(project domain.ProjectConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	next.Project = project.Clone()
	s.state = next
}

// Begin starts a new generation for project: it bumps the token, installs
// placeholders and marks the batch as generating. The returned token must
// accompany every settlement of the batch.
func (s *Store) Begin(project domain.ProjectConfig, placeholders []domain.GeneratedImage) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	generation := s.state.Generation + 1
	next := Replace(s.state, generation, placeholders)
	next.Project = project.Clone()
	next.Status = domain.BatchStatusGenerating
	s.state = next
	return generation
}

// Apply merges a settlement if it belongs to the current generation and its
// image still exists. It returns the merged image and whether the state
// advanced.
func (s *Store) Apply(st Settlement) (domain.GeneratedImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Generation != s.state.Generation {
		return domain.GeneratedImage{}, false
	}
	if _, ok := s.state.items[st.ImageID]; !ok {
		return domain.GeneratedImage{}, false
	}
	s.state = Merge(s.state, st.ImageID, st.Patch)
	return s.state.items[st.ImageID], true
}

// Restore installs a previously persisted set of items as a new generation
// with the given batch status.
func (s *Store) Restore(project domain.ProjectConfig, items []domain.GeneratedImage, status domain.BatchStatus) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	generation := s.state.Generation + 1
	next := Replace(s.state, generation, items)
	next.Project = project.Clone()
	next.Status = status
	s.state = next
	return generation
}

// Finish records the aggregate batch status for a generation. Stale
// generations are ignored.
func (s *Store) Finish(generation uint64, status domain.BatchStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.state.Generation {
		return false
	}
	next := s.state
	next.Status = status
	s.state = next
	return true
}
