// internal/sched/assigner.go

package sched

import (
	"iter"

	"edfoverlay/internal/kernel"
)

// Tier is one of the two priority levels used to approximate EDF.
type Tier int

const (
	TierWaiting Tier = iota
	TierUrgent
)

func (t Tier) String() string {
	if t == TierUrgent {
		return "urgent"
	}
	return "waiting"
}

// Placement is the tier chosen for the record in one registry slot.
type Placement struct {
	Slot   int
	Record *TaskRecord
	Tier   Tier
}

// Assignment is the tiering of every live record at one instant.
type Assignment struct {
	Earliest   kernel.Tick // kernel.MaxTick when nothing is live
	Placements []Placement // slot order
}

// Assign splits the live records into two tiers: every record whose
// deadline equals the earliest one is urgent, the rest wait. Ties all go
// urgent and are left to the kernel's round-robin.
func Assign(live iter.Seq2[int, *TaskRecord]) Assignment {
	a := Assignment{Earliest: kernel.MaxTick}
	for _, rec := range live {
		if rec.Deadline < a.Earliest {
			a.Earliest = rec.Deadline
		}
	}
	for slot, rec := range live {
		tier := TierWaiting
		if rec.Deadline == a.Earliest {
			tier = TierUrgent
		}
		a.Placements = append(a.Placements, Placement{Slot: slot, Record: rec, Tier: tier})
	}
	return a
}

// Urgent returns the IDs of the urgent records in slot order.
func (a Assignment) Urgent() []RecordID {
	var ids []RecordID
	for _, p := range a.Placements {
		if p.Tier == TierUrgent {
			ids = append(ids, p.Record.ID)
		}
	}
	return ids
}

// TierOf returns the tier of the record with id, if it was placed.
func (a Assignment) TierOf(id RecordID) (Tier, bool) {
	for _, p := range a.Placements {
		if p.Record.ID == id {
			return p.Tier, true
		}
	}
	return TierWaiting, false
}
