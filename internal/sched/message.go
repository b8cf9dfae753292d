package sched

// Status is the lifecycle event a worker reports about itself.
type Status int

const (
	StatusCompleted Status = iota
	StatusRunning          // accepted, no effect
	StatusCreated
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusRunning:
		return "Running"
	case StatusCreated:
		return "Created"
	default:
		return "Unknown"
	}
}

// Message is what travels over the lifecycle channel.
type Message struct {
	Status Status
	Record *TaskRecord
}
