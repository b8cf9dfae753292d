package sched

import (
	"github.com/google/uuid"

	"edfoverlay/internal/kernel"
)

// RecordID uniquely identifies a task record in the registry.
type RecordID = uuid.UUID

// TaskRecord is one deadline-bearing task as seen by the overlay.
// It is never modified after NewTaskRecord returns.
type TaskRecord struct {
	ID       RecordID
	Deadline kernel.Tick   // absolute; kernel.MaxTick means no deadline
	Handle   kernel.Handle // opaque identity of the kernel task
}

// NewTaskRecord creates a record with a fresh identity.
func NewTaskRecord(deadline kernel.Tick, handle kernel.Handle) *TaskRecord {
	return &TaskRecord{
		ID:       uuid.New(),
		Deadline: deadline,
		Handle:   handle,
	}
}
