// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"edfoverlay/internal/kernel"
)

// Scheduler is the overlay's single consumer of lifecycle messages. It owns
// the registry: nothing else mutates it, so none of its state is locked.
type Scheduler struct {
	cfg  Config
	kern kernel.Kernel
	ch   *Channel
	reg  *Registry
	last Assignment
	log  *zap.Logger
	subs []chan Event

	// trace-related
	csvFile   *os.File
	csvWriter *csv.Writer
}

// NewScheduler creates a scheduler reading from ch and driving k.
func NewScheduler(cfg Config, k kernel.Kernel, ch *Channel, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cfg:  cfg,
		kern: k,
		ch:   ch,
		reg:  NewRegistry(cfg.RegistryCapacity),
		last: Assignment{Earliest: kernel.MaxTick},
		log:  log.Named("edf"),
	}
}

// Subscribe returns a stream of handled-message events. Must be called
// before Run. Delivery blocks the scheduler, so subscribers must drain.
// The stream is closed when Run returns.
func (s *Scheduler) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	s.subs = append(s.subs, ch)
	return ch
}

// EnableCSVTrace opens the given file path for a CSV trace of handled
// messages. Must be called before Run().
func (s *Scheduler) EnableCSVTrace(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	w.Write([]string{"timestamp", "tick", "status", "record", "deadline", "outcome", "live", "earliest", "urgent"})
	w.Flush()
	s.csvFile = f
	s.csvWriter = w
	return nil
}

// Run receives and handles messages until ctx is done or a fatal error
// occurs. In production ctx never ends and neither does Run.
func (s *Scheduler) Run(ctx context.Context) error {
	defer func() {
		for _, sub := range s.subs {
			close(sub)
		}
		if s.csvFile != nil {
			s.csvWriter.Flush()
			s.csvFile.Close()
		}
	}()

	for {
		msg, err := s.ch.Receive(ctx)
		if err != nil {
			return nil
		}
		if err := s.Handle(msg); err != nil {
			return err
		}
	}
}

// Handle applies one lifecycle message. The only error it returns is a
// failed kernel delete while FatalUnknownDelete is set.
func (s *Scheduler) Handle(msg Message) error {
	rec := msg.Record
	if rec == nil && (msg.Status == StatusCreated || msg.Status == StatusCompleted) {
		s.log.Warn("lifecycle event without a record", zap.Stringer("status", msg.Status))
		s.emit(msg, OutcomeUnrecognized)
		return nil
	}

	switch msg.Status {
	case StatusCompleted:
		s.log.Debug("task completed", zap.Stringer("record", rec.ID), zap.Uint64("deadline", uint64(rec.Deadline)))
		outcome := OutcomeApplied
		if err := s.kern.Delete(rec.Handle); err != nil {
			if s.cfg.FatalUnknownDelete {
				s.log.Error("deleting completed task failed", zap.Stringer("record", rec.ID), zap.Error(err))
				s.emit(msg, OutcomeDeleteFailed)
				return fmt.Errorf("completed %s: %w", rec.ID, err)
			}
			s.log.Warn("deleting completed task failed, continuing", zap.Stringer("record", rec.ID), zap.Error(err))
			outcome = OutcomeDeleteFailed
		}
		if !s.reg.Remove(rec) && outcome == OutcomeApplied {
			outcome = OutcomeNotRegistered
		}
		s.reassign()
		s.emit(msg, outcome)

	case StatusCreated:
		s.log.Debug("task created", zap.Stringer("record", rec.ID), zap.Uint64("deadline", uint64(rec.Deadline)))
		outcome := OutcomeApplied
		switch s.reg.Insert(rec) {
		case AlreadyPresent:
			outcome = OutcomeDuplicate
		case RegistryFull:
			// the task keeps whatever priority it was spawned with
			s.log.Warn("registry full, task will not be tiered",
				zap.Stringer("record", rec.ID), zap.Int("capacity", s.reg.Cap()))
			outcome = OutcomeRegistryFull
		}
		s.reassign()
		s.emit(msg, outcome)

	case StatusRunning:
		s.emit(msg, OutcomeIgnored)

	default:
		s.log.Warn("unrecognized lifecycle event", zap.Int("status", int(msg.Status)))
		s.emit(msg, OutcomeUnrecognized)
	}
	return nil
}

// reassign recomputes the tiers from the registry and pushes them to the kernel.
func (s *Scheduler) reassign() {
	a := Assign(s.reg.All())
	for _, p := range a.Placements {
		if err := s.kern.SetPriority(p.Record.Handle, s.cfg.TierPriority(p.Tier)); err != nil {
			s.log.Warn("set priority failed", zap.Stringer("record", p.Record.ID), zap.Stringer("tier", p.Tier), zap.Error(err))
		}
	}
	s.last = a
}

func (s *Scheduler) emit(msg Message, outcome Outcome) {
	if len(s.subs) == 0 && s.csvWriter == nil {
		return
	}
	ev := Event{
		Time:     time.Now(),
		Tick:     s.kern.Now(),
		Status:   msg.Status,
		Outcome:  outcome,
		Live:     s.reg.Len(),
		Earliest: s.last.Earliest,
		Urgent:   s.last.Urgent(),
	}
	if msg.Record != nil {
		ev.Record = msg.Record.ID
		ev.Deadline = msg.Record.Deadline
	}
	for _, sub := range s.subs {
		sub <- ev
	}
	s.writeTrace(ev)
}

func (s *Scheduler) writeTrace(ev Event) {
	if s.csvWriter == nil {
		return
	}
	urgent := make([]string, len(ev.Urgent))
	for i, id := range ev.Urgent {
		urgent[i] = id.String()
	}
	rec := []string{
		ev.Time.Format(time.RFC3339Nano),
		strconv.FormatUint(uint64(ev.Tick), 10),
		ev.Status.String(),
		ev.Record.String(),
		formatTick(ev.Deadline),
		ev.Outcome.String(),
		strconv.Itoa(ev.Live),
		formatTick(ev.Earliest),
		strings.Join(urgent, " "),
	}
	s.csvWriter.Write(rec)
	s.csvWriter.Flush()
}

func formatTick(t kernel.Tick) string {
	if t == kernel.MaxTick {
		return "none"
	}
	return strconv.FormatUint(uint64(t), 10)
}
