// internal/sched/registry.go

package sched

import "iter"

// InsertResult is the outcome of Registry.Insert.
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyPresent
	RegistryFull // record was dropped; its task keeps its spawn priority
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "Inserted"
	case AlreadyPresent:
		return "AlreadyPresent"
	case RegistryFull:
		return "RegistryFull"
	default:
		return "Unknown"
	}
}

// Registry is a fixed set of slots holding the live task records.
// It is not safe for concurrent use; the scheduler goroutine owns it.
type Registry struct {
	slots []*TaskRecord
	size  int
}

// NewRegistry creates a registry with capacity slots.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultRegistryCapacity
	}
	return &Registry{slots: make([]*TaskRecord, capacity)}
}

// Insert stores rec in the first free slot.
func (r *Registry) Insert(rec *TaskRecord) InsertResult {
	free := -1
	for i, s := range r.slots {
		if s == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if s.ID == rec.ID {
			return AlreadyPresent
		}
	}
	if free < 0 {
		return RegistryFull
	}
	r.slots[free] = rec
	r.size++
	return Inserted
}

// Remove frees the slot holding a record with rec's identity.
func (r *Registry) Remove(rec *TaskRecord) bool {
	for i, s := range r.slots {
		if s != nil && s.ID == rec.ID {
			r.slots[i] = nil
			r.size--
			return true
		}
	}
	return false
}

// Contains reports whether a record with id is registered.
func (r *Registry) Contains(id RecordID) bool {
	for _, s := range r.slots {
		if s != nil && s.ID == id {
			return true
		}
	}
	return false
}

// All yields the occupied slots in slot order. Slot order says nothing
// about deadlines.
func (r *Registry) All() iter.Seq2[int, *TaskRecord] {
	return func(yield func(int, *TaskRecord) bool) {
		for i, s := range r.slots {
			if s == nil {
				continue
			}
			if !yield(i, s) {
				return
			}
		}
	}
}

func (r *Registry) Len() int { return r.size }
func (r *Registry) Cap() int { return len(r.slots) }
