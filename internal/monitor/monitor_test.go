package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Hara602/wheaSentry/internal/analysis"
	"github.com/Hara602/wheaSentry/internal/config"
	"github.com/Hara602/wheaSentry/internal/model"
	"github.com/Hara602/wheaSentry/internal/watcher"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type batch struct {
	openErr error
	records []model.EventRecord
	err     error
}

type fakeSource struct {
	mu      sync.Mutex
	batches []batch
	current batch
	block   chan struct{}
	closed  int
}

func (f *fakeSource) push(b ...batch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b...)
}

func (f *fakeSource) Open(logName, host string) (watcher.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = batch{}
	if len(f.batches) > 0 {
		f.current = f.batches[0]
		f.batches = f.batches[1:]
	}
	if f.current.openErr != nil {
		return 0, f.current.openErr
	}
	return 1, nil
}

func (f *fakeSource) Read(h watcher.Handle) ([]model.EventRecord, error) {
	f.mu.Lock()
	b, block := f.current, f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return b.records, b.err
}

func (f *fakeSource) Close(h watcher.Handle) error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

type dispatched struct {
	ev  model.AlertEvent
	cfg config.Reaction
}

type fakeDispatcher struct {
	calls chan dispatched
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, ev model.AlertEvent, cfg config.Reaction) error {
	f.calls <- dispatched{ev, cfg}
	return errors.New("display unavailable")
}

type staticConfig struct{ cfg config.Reaction }

func (s staticConfig) Current() config.Reaction { return s.cfg }

type harness struct {
	t        *testing.T
	s        *Scheduler
	src      *fakeSource
	disp     *fakeDispatcher
	ticks    chan time.Time
	reports  chan PollReport
	statuses chan model.Status
	armed    atomic.Int32
	disarmed atomic.Int32
	base     time.Time
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		src:      &fakeSource{},
		disp:     &fakeDispatcher{calls: make(chan dispatched, 16)},
		ticks:    make(chan time.Time),
		reports:  make(chan PollReport, 16),
		statuses: make(chan model.Status, 16),
		base:     time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
	all := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithClock(func() time.Time { return h.base }),
		WithTicker(func(d time.Duration) (<-chan time.Time, func()) {
			h.armed.Add(1)
			return h.ticks, func() { h.disarmed.Add(1) }
		}),
		WithPollObserver(func(r PollReport) { h.reports <- r }),
		WithStatusObserver(func(st model.Status) { h.statuses <- st }),
	}
	all = append(all, opts...)
	h.s = New(h.src, h.disp, staticConfig{config.Reaction{MessageEnabled: true}}, all...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) start(seconds int) {
	h.t.Helper()
	if _, err := h.s.Start(seconds); err != nil {
		h.t.Fatalf("Start(%d): %v", seconds, err)
	}
}

func (h *harness) tick() PollReport {
	h.t.Helper()
	select {
	case h.ticks <- time.Now():
	case <-time.After(5 * time.Second):
		h.t.Fatal("scheduler did not accept tick")
	}
	return h.nextReport()
}

func (h *harness) nextReport() PollReport {
	h.t.Helper()
	select {
	case r := <-h.reports:
		return r
	case <-time.After(5 * time.Second):
		h.t.Fatal("no poll report")
	}
	return PollReport{}
}

// whea returns n recognized records generated after the session start.
func (h *harness) whea(n int) []model.EventRecord {
	records := make([]model.EventRecord, n)
	for i := range records {
		records[i] = model.EventRecord{Identifier: 17 + uint32(i%2), GeneratedAt: h.base.Add(time.Duration(i+1) * time.Second)}
	}
	return records
}

func TestStartIntervalBounds(t *testing.T) {
	tests := []struct {
		seconds  int
		wantErr  bool
		advisory Advisory
	}{
		{0, true, ""},
		{-5, true, ""},
		{3601, true, ""},
		{1, false, AdvisoryShortInterval},
		{4, false, AdvisoryShortInterval},
		{5, false, ""},
		{3600, false, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.seconds), func(t *testing.T) {
			h := newHarness(t)
			advisory, err := h.s.Start(tt.seconds)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInterval) {
					t.Fatalf("Start(%d) err = %v, want ErrInvalidInterval", tt.seconds, err)
				}
				if h.s.Status() != model.Stopped {
					t.Errorf("Status() = %v after rejected start", h.s.Status())
				}
				return
			}
			if err != nil {
				t.Fatalf("Start(%d): %v", tt.seconds, err)
			}
			if advisory != tt.advisory {
				t.Errorf("advisory = %q, want %q", advisory, tt.advisory)
			}
			snap := h.s.Snapshot()
			if snap.Status != model.Running || snap.Interval != time.Duration(tt.seconds)*time.Second {
				t.Errorf("Snapshot() = %+v", snap)
			}
		})
	}
}

func TestSchedulerEdgeTriggering(t *testing.T) {
	h := newHarness(t)
	h.start(30)

	counts := []int{0, 0, 3, 3, 5, 0, 0, 5}
	want := []analysis.Decision{
		{Kind: analysis.NoOp},
		{Kind: analysis.NoOp},
		{Kind: analysis.Fire, Count: 3},
		{Kind: analysis.NoOp},
		{Kind: analysis.Fire, Count: 5},
		{Kind: analysis.Reset},
		{Kind: analysis.NoOp},
		{Kind: analysis.Fire, Count: 5},
	}
	for _, n := range counts {
		h.src.push(batch{records: h.whea(n)})
	}

	for i := range counts {
		r := h.tick()
		if r.Decision != want[i] {
			t.Errorf("tick %d: decision = %v, want %v", i, r.Decision, want[i])
		}
	}

	var fired []int
	for len(h.disp.calls) > 0 {
		d := <-h.disp.calls
		fired = append(fired, d.ev.MatchCount)
		if !d.cfg.MessageEnabled {
			t.Errorf("dispatch got cfg %+v, want the store's snapshot", d.cfg)
		}
	}
	if fmt.Sprint(fired) != "[3 5 5]" {
		t.Errorf("dispatched counts = %v, want [3 5 5]", fired)
	}
	if h.s.Status() != model.Running {
		t.Errorf("Status() = %v, want running", h.s.Status())
	}
}

func TestSchedulerAlertEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var alerts []model.AlertEvent
	h := newHarness(t, WithJournal(zap.New(core)), WithAlertObserver(func(ev model.AlertEvent) { alerts = append(alerts, ev) }))
	h.start(10)

	records := append(h.whea(2),
		model.EventRecord{Identifier: 0x8000002D, GeneratedAt: h.base.Add(time.Minute)},
		model.EventRecord{Identifier: 7036, GeneratedAt: h.base.Add(time.Minute)},
	)
	h.src.push(batch{records: records})
	r := h.tick()

	if r.Matched != 3 || r.Read != 4 {
		t.Fatalf("report = %+v, want 3 matched of 4", r)
	}
	d := <-h.disp.calls
	if d.ev.MatchCount != 3 || d.ev.Codes() != "17, 18, 45" {
		t.Errorf("alert = %+v (codes %q)", d.ev, d.ev.Codes())
	}
	if d.ev.SessionID != h.s.Snapshot().SessionID {
		t.Errorf("alert session %q, want %q", d.ev.SessionID, h.s.Snapshot().SessionID)
	}
	if len(alerts) != 1 {
		t.Errorf("alert observer called %d times, want 1", len(alerts))
	}
	entries := logs.FilterMessage("WHEA error found (3). Error codes: 17, 18, 45").All()
	if len(entries) != 1 {
		t.Errorf("journal entries = %v", logs.All())
	}
}

func TestSchedulerSurvivesReadFailures(t *testing.T) {
	h := newHarness(t)
	h.start(1)

	for i := 0; i < 5; i++ {
		h.src.push(batch{openErr: fmt.Errorf("%w: RPC server unavailable", watcher.ErrOpen)})
	}
	h.src.push(batch{err: fmt.Errorf("%w: handle invalid", watcher.ErrRead)})
	h.src.push(batch{records: h.whea(2)})

	for i := 0; i < 6; i++ {
		r := h.tick()
		if r.Err == nil {
			t.Fatalf("tick %d: want error report", i)
		}
		if r.Decision.Kind != analysis.NoOp {
			t.Errorf("tick %d: decision %v on failed read", i, r.Decision)
		}
	}
	if r := h.tick(); r.Decision.Kind != analysis.Fire || r.Decision.Count != 2 {
		t.Errorf("after failures decision = %v, want fire(2)", r.Decision)
	}
	if h.s.Status() != model.Running {
		t.Errorf("Status() = %v, want running", h.s.Status())
	}
}

func TestSchedulerMalformedRecordInBatch(t *testing.T) {
	h := newHarness(t)
	h.start(30)

	records := h.whea(10)
	records[3].GeneratedAt = time.Time{}
	h.src.push(batch{records: records, err: fmt.Errorf("%w: trailing bytes", watcher.ErrMalformedRecord)})

	r := h.tick()
	if r.Matched != 9 {
		t.Errorf("Matched = %d, want 9", r.Matched)
	}
	if r.Malformed != 2 {
		t.Errorf("Malformed = %d, want 2", r.Malformed)
	}
	if r.Decision.Kind != analysis.Fire || r.Decision.Count != 9 {
		t.Errorf("decision = %v, want fire(9)", r.Decision)
	}
}

func TestSchedulerIgnoresRecordsBeforeSession(t *testing.T) {
	h := newHarness(t)
	h.start(30)

	old := []model.EventRecord{
		{Identifier: 17, GeneratedAt: h.base.Add(-time.Second)},
		{Identifier: 41, GeneratedAt: h.base.Add(-24 * time.Hour)},
	}
	h.src.push(batch{records: old})
	if r := h.tick(); r.Matched != 0 || r.Decision.Kind != analysis.NoOp {
		t.Errorf("report = %+v, want nothing matched", r)
	}
	if len(h.disp.calls) != 0 {
		t.Error("dispatch called for pre-session records")
	}
}

func TestStopThenStartResets(t *testing.T) {
	h := newHarness(t, WithClock(time.Now))
	h.start(30)
	h.base = h.s.Snapshot().StartedAt

	h.src.push(batch{records: h.whea(3)})
	if r := h.tick(); r.Decision.Kind != analysis.Fire {
		t.Fatalf("decision = %v, want fire", r.Decision)
	}
	first := h.s.Snapshot()
	if first.LastMatchCount != 3 {
		t.Fatalf("LastMatchCount = %d, want 3", first.LastMatchCount)
	}

	if err := h.s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if snap := h.s.Snapshot(); snap.Status != model.Stopped || snap.LastMatchCount != 0 {
		t.Errorf("after Stop snapshot = %+v", snap)
	}
	if h.disarmed.Load() != 1 {
		t.Errorf("timer disarmed %d times, want 1", h.disarmed.Load())
	}

	before := time.Now()
	h.start(30)
	second := h.s.Snapshot()
	if second.StartedAt.Before(before) {
		t.Errorf("StartedAt %v is before the Start call at %v", second.StartedAt, before)
	}
	if second.LastMatchCount != 0 || second.SessionID == first.SessionID {
		t.Errorf("after restart snapshot = %+v", second)
	}

	h.base = second.StartedAt
	h.src.push(batch{records: h.whea(3)})
	if r := h.tick(); r.Decision.Kind != analysis.Fire || r.Decision.Count != 3 {
		t.Errorf("same count after restart: decision = %v, want fire(3)", r.Decision)
	}
}

func TestStopHonoredDuringHungRead(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.src.block = release
	h.start(30)
	h.src.push(batch{records: h.whea(4)})

	select {
	case h.ticks <- time.Now():
	case <-time.After(5 * time.Second):
		t.Fatal("tick not accepted")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- h.s.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked behind a hung read")
	}

	h.start(30)
	if r := h.tick(); !r.Skipped {
		t.Errorf("tick during stale read = %+v, want skipped", r)
	}

	close(release)
	if r := h.nextReport(); !r.Dropped {
		t.Errorf("stale result report = %+v, want dropped", r)
	}
	if len(h.disp.calls) != 0 {
		t.Error("stale result was dispatched")
	}

	h.src.push(batch{records: h.whea(1)})
	if r := h.tick(); r.Decision.Kind != analysis.Fire || r.Decision.Count != 1 {
		t.Errorf("next tick decision = %v, want fire(1)", r.Decision)
	}
}

func TestStatusObservers(t *testing.T) {
	h := newHarness(t)
	h.start(30)
	h.start(60) // restart keeps running, no duplicate notification
	if err := h.s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := h.s.Stop(); err != nil {
		t.Fatal(err)
	}

	var got []model.Status
	for len(h.statuses) > 0 {
		got = append(got, <-h.statuses)
	}
	if fmt.Sprint(got) != "[running stopped]" {
		t.Errorf("status notifications = %v, want [running stopped]", got)
	}
	if h.armed.Load() != 2 {
		t.Errorf("timer armed %d times, want 2", h.armed.Load())
	}
}

func TestCommandsAfterRunExit(t *testing.T) {
	s := New(&fakeSource{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	if _, err := s.Start(30); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	<-done

	if _, err := s.Start(30); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after exit err = %v, want ErrClosed", err)
	}
	if s.Status() != model.Stopped {
		t.Errorf("Status() after exit = %v, want stopped", s.Status())
	}
}

func TestShortIntervalAdvisoryOnlyWhenStarted(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := New(&fakeSource{}, nil, nil, WithLogger(zap.New(core)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	if advisory, err := s.Start(2); err != nil || advisory != AdvisoryShortInterval {
		t.Fatalf("Start(2) = %q, %v", advisory, err)
	}
	if n := logs.FilterMessage(string(AdvisoryShortInterval)).Len(); n != 1 {
		t.Errorf("advisory logged %d times after a start, want 1", n)
	}
	cancel()
	<-done

	advisory, err := s.Start(2)
	if !errors.Is(err, ErrClosed) || advisory != "" {
		t.Errorf("Start(2) after exit = %q, %v, want ErrClosed", advisory, err)
	}
	if n := logs.FilterMessage(string(AdvisoryShortInterval)).Len(); n != 1 {
		t.Errorf("advisory logged %d times in total, want 1 (none for the refused start)", n)
	}
}
