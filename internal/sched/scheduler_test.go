package sched

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"edfoverlay/internal/kernel"
)

type fixture struct {
	cfg   Config
	k     *kernel.SimKernel
	ch    *Channel
	s     *Scheduler
	event <-chan Event
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	k := kernel.NewSim(0, zaptest.NewLogger(t))
	ch := NewChannel(cfg.ChannelCapacity)
	s := NewScheduler(cfg, k, ch, zaptest.NewLogger(t))
	return &fixture{cfg: cfg, k: k, ch: ch, s: s, event: s.Subscribe(64)}
}

// spawn registers a body-less kernel task the way the harness would.
func (f *fixture) spawn(t *testing.T, deadline kernel.Tick) *TaskRecord {
	t.Helper()
	h, err := f.k.Spawn("task", nil, f.cfg.NewTaskPriority())
	require.NoError(t, err)
	return NewTaskRecord(deadline, h)
}

func (f *fixture) handle(t *testing.T, status Status, rec *TaskRecord) Event {
	t.Helper()
	require.NoError(t, f.s.Handle(Message{Status: status, Record: rec}))
	return <-f.event
}

func (f *fixture) priority(t *testing.T, rec *TaskRecord) kernel.Priority {
	t.Helper()
	p, ok := f.k.Priority(rec.Handle)
	require.True(t, ok)
	return p
}

func TestScheduler_TwoTasksEitherOrder(t *testing.T) {
	for _, firstEarly := range []bool{true, false} {
		f := newFixture(t, DefaultConfig())
		early := f.spawn(t, 2000)
		late := f.spawn(t, 4000)

		order := []*TaskRecord{early, late}
		if !firstEarly {
			order = []*TaskRecord{late, early}
		}
		f.handle(t, StatusCreated, order[0])
		ev := f.handle(t, StatusCreated, order[1])

		assert.Equal(t, OutcomeApplied, ev.Outcome)
		assert.Equal(t, 2, ev.Live)
		assert.Equal(t, kernel.Tick(2000), ev.Earliest)
		assert.Equal(t, []RecordID{early.ID}, ev.Urgent)
		assert.Equal(t, f.cfg.UrgentPriority(), f.priority(t, early))
		assert.Equal(t, f.cfg.WaitingPriority(), f.priority(t, late))
	}
}

func TestScheduler_SurvivorBecomesUrgent(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	early := f.spawn(t, 2000)
	late := f.spawn(t, 4000)
	f.handle(t, StatusCreated, early)
	f.handle(t, StatusCreated, late)

	ev := f.handle(t, StatusCompleted, early)
	assert.Equal(t, OutcomeApplied, ev.Outcome)
	assert.Equal(t, 1, ev.Live)
	assert.Equal(t, []RecordID{late.ID}, ev.Urgent)
	assert.Equal(t, f.cfg.UrgentPriority(), f.priority(t, late))

	_, alive := f.k.Priority(early.Handle)
	assert.False(t, alive)
	assert.False(t, f.s.reg.Contains(early.ID))
}

func TestScheduler_TiedDeadlinesShareUrgentTier(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	a := f.spawn(t, 10)
	b := f.spawn(t, 10)
	c := f.spawn(t, 20)
	f.handle(t, StatusCreated, a)
	f.handle(t, StatusCreated, c)
	ev := f.handle(t, StatusCreated, b)

	assert.ElementsMatch(t, []RecordID{a.ID, b.ID}, ev.Urgent)
	assert.Equal(t, f.cfg.UrgentPriority(), f.priority(t, a))
	assert.Equal(t, f.cfg.UrgentPriority(), f.priority(t, b))
	assert.Equal(t, f.cfg.WaitingPriority(), f.priority(t, c))
	assert.ElementsMatch(t, []kernel.Handle{a.Handle, b.Handle}, f.k.Runnable())
}

func TestScheduler_RecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	for _, d := range []kernel.Tick{40, 10, 30, 10} {
		f.handle(t, StatusCreated, f.spawn(t, d))
	}
	first := f.s.last
	before := f.k.Tasks()

	f.s.reassign()
	assert.Equal(t, first, f.s.last)
	assert.Equal(t, before, f.k.Tasks())
}

func TestScheduler_RegistryFull(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	for i := 0; i < f.cfg.RegistryCapacity; i++ {
		f.handle(t, StatusCreated, f.spawn(t, kernel.Tick(100+i)))
	}

	overflow := f.spawn(t, 1)
	ev := f.handle(t, StatusCreated, overflow)
	assert.Equal(t, OutcomeRegistryFull, ev.Outcome)
	assert.Equal(t, f.cfg.RegistryCapacity, ev.Live)
	assert.Equal(t, kernel.Tick(100), ev.Earliest)
	assert.False(t, f.s.reg.Contains(overflow.ID))
	assert.Equal(t, f.cfg.NewTaskPriority(), f.priority(t, overflow))
}

func TestScheduler_DuplicateCreated(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	rec := f.spawn(t, 5)
	f.handle(t, StatusCreated, rec)
	ev := f.handle(t, StatusCreated, rec)
	assert.Equal(t, OutcomeDuplicate, ev.Outcome)
	assert.Equal(t, 1, ev.Live)
}

func TestScheduler_CompletedWithoutCreated(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	rec := f.spawn(t, 5)
	ev := f.handle(t, StatusCompleted, rec)
	assert.Equal(t, OutcomeNotRegistered, ev.Outcome)
	_, alive := f.k.Priority(rec.Handle)
	assert.False(t, alive)
}

func TestScheduler_DoubleCompletedIsFatal(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	rec := f.spawn(t, 5)
	f.handle(t, StatusCreated, rec)
	f.handle(t, StatusCompleted, rec)

	err := f.s.Handle(Message{Status: StatusCompleted, Record: rec})
	assert.ErrorIs(t, err, kernel.ErrUnknownHandle)
	assert.Equal(t, OutcomeDeleteFailed, (<-f.event).Outcome)
}

func TestScheduler_DoubleCompletedRecoverable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FatalUnknownDelete = false
	f := newFixture(t, cfg)
	rec := f.spawn(t, 5)
	other := f.spawn(t, 9)
	f.handle(t, StatusCreated, rec)
	f.handle(t, StatusCreated, other)
	f.handle(t, StatusCompleted, rec)

	ev := f.handle(t, StatusCompleted, rec)
	assert.Equal(t, OutcomeDeleteFailed, ev.Outcome)
	assert.Equal(t, []RecordID{other.ID}, ev.Urgent)
}

func TestScheduler_RunningAndUnrecognized(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := DefaultConfig()
	k := kernel.NewSim(0, nil)
	s := NewScheduler(cfg, k, NewChannel(1), zap.New(core))
	events := s.Subscribe(4)

	h, _ := k.Spawn("task", nil, cfg.NewTaskPriority())
	rec := NewTaskRecord(7, h)

	require.NoError(t, s.Handle(Message{Status: StatusRunning, Record: rec}))
	assert.Equal(t, OutcomeIgnored, (<-events).Outcome)
	assert.False(t, s.reg.Contains(rec.ID))

	require.NoError(t, s.Handle(Message{Status: Status(42), Record: rec}))
	assert.Equal(t, OutcomeUnrecognized, (<-events).Outcome)
	assert.Equal(t, 1, logs.FilterMessage("unrecognized lifecycle event").Len())

	p, _ := k.Priority(h)
	assert.Equal(t, cfg.NewTaskPriority(), p)
}

func TestScheduler_NoGhosts(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	recs := []*TaskRecord{f.spawn(t, 3), f.spawn(t, 1), f.spawn(t, 2)}
	steps := []struct {
		status Status
		rec    int
	}{
		{StatusCreated, 0},
		{StatusCreated, 1},
		{StatusCompleted, 0},
		{StatusCreated, 2},
		{StatusCompleted, 1},
	}

	live := map[RecordID]bool{}
	for _, step := range steps {
		rec := recs[step.rec]
		f.handle(t, step.status, rec)
		live[rec.ID] = step.status == StatusCreated
		for _, r := range recs {
			assert.Equal(t, live[r.ID], f.s.reg.Contains(r.ID))
		}
	}
	assert.Equal(t, []RecordID{recs[2].ID}, f.s.last.Urgent())
}

func TestScheduler_DroppedMessageLeavesRegistryUntouched(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	for i := 0; i < f.ch.Cap(); i++ {
		require.Equal(t, Delivered, f.ch.Send(Message{Status: StatusCreated, Record: f.spawn(t, kernel.Tick(50+i))}, 0))
	}

	dropped := f.spawn(t, 1)
	assert.Equal(t, DroppedTimeout, f.ch.Send(Message{Status: StatusCreated, Record: dropped}, 10*time.Millisecond))

	for f.ch.Len() > 0 {
		msg, err := f.ch.Receive(context.Background())
		require.NoError(t, err)
		require.NoError(t, f.s.Handle(msg))
		<-f.event
	}
	assert.False(t, f.s.reg.Contains(dropped.ID))
	assert.Equal(t, f.ch.Cap(), f.s.reg.Len())
	assert.Equal(t, f.cfg.NewTaskPriority(), f.priority(t, dropped))
}

func TestScheduler_RunStopsOnContextAndClosesStreams(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	rec := f.spawn(t, 100)
	require.Equal(t, Delivered, f.ch.Send(Message{Status: StatusCreated, Record: rec}, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.s.Run(ctx) }()

	ev := <-f.event
	assert.Equal(t, rec.ID, ev.Record)
	cancel()
	assert.NoError(t, <-done)
	_, open := <-f.event
	assert.False(t, open)
}

func TestScheduler_RunReturnsFatalError(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	rec := f.spawn(t, 100)
	f.ch.Send(Message{Status: StatusCompleted, Record: rec}, 0)
	f.ch.Send(Message{Status: StatusCompleted, Record: rec}, 0)

	go func() {
		for range f.event {
		}
	}()
	err := f.s.Run(context.Background())
	assert.ErrorIs(t, err, kernel.ErrUnknownHandle)
}

func TestScheduler_CSVTrace(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	path := filepath.Join(t.TempDir(), "trace.csv")
	require.NoError(t, f.s.EnableCSVTrace(path))

	rec := f.spawn(t, 12)
	f.ch.Send(Message{Status: StatusCreated, Record: rec}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.s.Run(ctx) }()
	<-f.event
	cancel()
	require.NoError(t, <-done)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "status", rows[0][2])
	assert.Equal(t, "Created", rows[1][2])
	assert.Equal(t, rec.ID.String(), rows[1][3])
	assert.Equal(t, "12", rows[1][4])
	assert.Equal(t, "Applied", rows[1][5])
	assert.Equal(t, rec.ID.String(), rows[1][8])
}

func TestScheduler_MissingRecord(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ev := f.handle(t, StatusCreated, nil)
	assert.Equal(t, OutcomeUnrecognized, ev.Outcome)
	assert.Equal(t, 0, ev.Live)
}
