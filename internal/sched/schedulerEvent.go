// internal/sched/schedulerEvent.go

package sched

import (
	"time"

	"edfoverlay/internal/kernel"
)

// Outcome says what handling one lifecycle message did.
type Outcome int

const (
	OutcomeApplied       Outcome = iota // registry changed and priorities were reassigned
	OutcomeDuplicate                    // Created for a record already registered
	OutcomeRegistryFull                 // Created dropped, registry at capacity
	OutcomeNotRegistered                // Completed for a record the registry never held
	OutcomeDeleteFailed                 // kernel rejected the delete (recoverable mode)
	OutcomeIgnored                      // Running
	OutcomeUnrecognized                 // unknown status tag
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "Applied"
	case OutcomeDuplicate:
		return "Duplicate"
	case OutcomeRegistryFull:
		return "RegistryFull"
	case OutcomeNotRegistered:
		return "NotRegistered"
	case OutcomeDeleteFailed:
		return "DeleteFailed"
	case OutcomeIgnored:
		return "Ignored"
	case OutcomeUnrecognized:
		return "Unrecognized"
	default:
		return "Unknown"
	}
}

// Event is emitted after the scheduler handles each lifecycle message.
type Event struct {
	Time     time.Time
	Tick     kernel.Tick
	Status   Status
	Record   RecordID
	Deadline kernel.Tick
	Outcome  Outcome
	Live     int         // registry size after handling
	Earliest kernel.Tick // from the latest assignment
	Urgent   []RecordID  // urgent records after handling, slot order
}
