// Package state holds the generation view of the active project: an immutable
// State value, pure merge and replace functions over it, and a Store that
// serializes updates and tracks the current generation token.
package state

import (
	"time"

	"asseto/internal/domain"
)

// Patch carries the mutable part of a GeneratedImage. It is the unit a job
// settlement writes.
type Patch struct {
	Artifact  *domain.Artifact
	CreatedAt time.Time
	Status    domain.ImageStatus
	Error     string
}

// Settlement is a patch addressed to one image of one generation.
type Settlement struct {
	Generation uint64
	ImageID    string
	Patch      Patch
}

// normalize enforces that only completed patches carry an artifact, that a
// completed patch without bytes is a failure and that only failures carry an
// error message.
func (p Patch) normalize() Patch {
	switch p.Status {
	case domain.ImageStatusCompleted:
		if p.Artifact.Empty() {
			p.Status = domain.ImageStatusFailed
			p.Artifact = nil
			if p.Error == "" {
				p.Error = domain.ErrNoArtifact.Error()
			}
		}
	default:
		p.Artifact = nil
	}
	if p.Status != domain.ImageStatusFailed {
		p.Error = ""
	}
	return p
}

// State is an immutable snapshot. Functions in this package never mutate a
// State in place; they return a new value sharing nothing writable with the old.
type State struct {
	Generation uint64
	Project    domain.ProjectConfig
	Status     domain.BatchStatus

	order []string
	items map[string]domain.GeneratedImage
}

// New returns an empty state for the project.
func New(project domain.ProjectConfig) State {
	return State{
		Project: project.Clone(),
		Status:  domain.BatchStatusIdle,
		items:   map[string]domain.GeneratedImage{},
	}
}

// Len returns the number of items.
func (s State) Len() int {
	return len(s.order)
}

// Get returns the item with the given id.
func (s State) Get(id string) (domain.GeneratedImage, bool) {
	img, ok := s.items[id]
	return img, ok
}

// Images returns the items in display order (section order, then slot order).
func (s State) Images() []domain.GeneratedImage {
	out := make([]domain.GeneratedImage, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// SectionImages returns the items belonging to one section in display order.
func (s State) SectionImages(sectionID string) []domain.GeneratedImage {
	var out []domain.GeneratedImage
	for _, id := range s.order {
		if img := s.items[id]; img.SectionID == sectionID {
			out = append(out, img)
		}
	}
	return out
}

// Merge applies patch to the item with the given id. Unknown ids leave the
// state unchanged, so a merge can never resurrect an item. Merges on distinct
// ids commute and repeating a merge is a no-op.
func Merge(prev State, id string, patch Patch) State {
	current, ok := prev.items[id]
	if !ok {
		return prev
	}
	patch = patch.normalize()
	next := prev
	next.items = make(map[string]domain.GeneratedImage, len(prev.items))
	for k, v := range prev.items {
		next.items[k] = v
	}
	current.Artifact = patch.Artifact
	current.CreatedAt = patch.CreatedAt
	current.Status = patch.Status
	current.Error = patch.Error
	next.items[id] = current
	return next
}

// Replace discards every item and installs placeholders under a new
// generation token. Placeholder order is kept as display order.
func Replace(prev State, generation uint64, placeholders []domain.GeneratedImage) State {
	next := prev
	next.Generation = generation
	next.order = make([]string, 0, len(placeholders))
	next.items = make(map[string]domain.GeneratedImage, len(placeholders))
	for _, p := range placeholders {
		if _, dup := next.items[p.ID]; dup {
			continue
		}
		next.order = append(next.order, p.ID)
		next.items[p.ID] = p
	}
	return next
}

// Progress summarizes item statuses.
type Progress struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Settled reports whether no item is pending.
func (p Progress) Settled() bool {
	return p.Pending == 0
}

// ProgressOf counts items by status.
func ProgressOf(s State) Progress {
	p := Progress{Total: len(s.order)}
	for _, id := range s.order {
		switch s.items[id].Status {
		case domain.ImageStatusCompleted:
			p.Completed++
		case domain.ImageStatusFailed:
			p.Failed++
		default:
			p.Pending++
		}
	}
	return p
}
