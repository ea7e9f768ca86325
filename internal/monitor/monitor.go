// Package monitor drives the WHEA poll cycle.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Hara602/wheaSentry/internal/analysis"
	"github.com/Hara602/wheaSentry/internal/config"
	"github.com/Hara602/wheaSentry/internal/metrics"
	"github.com/Hara602/wheaSentry/internal/model"
	"github.com/Hara602/wheaSentry/internal/watcher"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	MinInterval     = 1
	MaxInterval     = 3600
	DefaultInterval = 30

	// below this the advisory is raised
	advisoryInterval = 5
	sampleRecords    = 5
)

var (
	ErrInvalidInterval = errors.New("interval must be between 1 and 3600 seconds")
	ErrClosed          = errors.New("scheduler is not running")
)

// Advisory is a non-fatal remark about accepted input.
type Advisory string

const AdvisoryShortInterval Advisory = "interval below 5 seconds may cause high CPU load"

// Dispatcher reacts to a fired alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.AlertEvent, cfg config.Reaction) error
}

// ConfigSource yields the reaction snapshot to use for a dispatch.
type ConfigSource interface {
	Current() config.Reaction
}

// TickerFunc arms a recurring timer and returns its channel and a stop func.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func defaultTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Snapshot is a read-only copy of the scheduler state for observers.
type Snapshot struct {
	Status         model.Status
	SessionID      string
	StartedAt      time.Time
	Interval       time.Duration
	LastMatchCount int
	LastPoll       time.Time
}

// PollReport describes one tick after it has been handled.
type PollReport struct {
	SessionID   string
	Skipped     bool // a read was still in flight
	Dropped     bool // result belonged to a session that was stopped
	Err         error
	Read        int
	Matched     int
	Malformed   int
	Identifiers []model.EventID
	Decision    analysis.Decision
}

type Scheduler struct {
	src        watcher.EventSource
	dispatcher Dispatcher
	configs    ConfigSource

	log       *zap.Logger
	journal   *zap.Logger
	now       func() time.Time
	newTicker TickerFunc
	logName   string
	host      string

	statusObservers []func(model.Status)
	alertObservers  []func(model.AlertEvent)
	pollObservers   []func(PollReport)

	rawDump rate.Sometimes

	cmds    chan command
	results chan pollResult
	done    chan struct{}

	// owned by the Run goroutine
	status     model.Status
	sessionID  string
	startedAt  time.Time
	interval   time.Duration
	state      analysis.AlertState
	tickC      <-chan time.Time
	stopTicker func()
	gen        uint64
	inflight   bool

	mu   sync.RWMutex
	snap Snapshot
}

type Option func(*Scheduler)

func WithLogger(log *zap.Logger) Option { return func(s *Scheduler) { s.log = log } }

// WithJournal sets the logger that receives one line per fired alert.
func WithJournal(log *zap.Logger) Option { return func(s *Scheduler) { s.journal = log } }

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

func WithTicker(f TickerFunc) Option { return func(s *Scheduler) { s.newTicker = f } }

func WithLogSource(logName, host string) Option {
	return func(s *Scheduler) { s.logName, s.host = logName, host }
}

// WithStatusObserver registers f for Running/Stopped changes. Observers run
// on the poll loop and must not block.
func WithStatusObserver(f func(model.Status)) Option {
	return func(s *Scheduler) { s.statusObservers = append(s.statusObservers, f) }
}

// WithAlertObserver registers f for every fired alert, before dispatch.
func WithAlertObserver(f func(model.AlertEvent)) Option {
	return func(s *Scheduler) { s.alertObservers = append(s.alertObservers, f) }
}

// WithPollObserver registers f for every handled tick.
func WithPollObserver(f func(PollReport)) Option {
	return func(s *Scheduler) { s.pollObservers = append(s.pollObservers, f) }
}

func New(src watcher.EventSource, dispatcher Dispatcher, configs ConfigSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		src:        src,
		dispatcher: dispatcher,
		configs:    configs,
		log:        zap.NewNop(),
		journal:    zap.NewNop(),
		now:        time.Now,
		newTicker:  defaultTicker,
		logName:    watcher.DefaultLogName,
		host:       watcher.DefaultHost,
		rawDump:    rate.Sometimes{First: 1, Interval: time.Minute},
		cmds:       make(chan command),
		results:    make(chan pollResult, 1),
		done:       make(chan struct{}),
		status:     model.Stopped,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates the interval and begins a new session. Values below 5
// seconds are accepted with AdvisoryShortInterval.
func (s *Scheduler) Start(seconds int) (Advisory, error) {
	if seconds < MinInterval || seconds > MaxInterval {
		s.log.Warn("Monitoring not started: invalid interval", zap.Int("interval", seconds))
		return "", fmt.Errorf("%w: got %d", ErrInvalidInterval, seconds)
	}
	if err := s.send(command{kind: cmdStart, interval: time.Duration(seconds) * time.Second}); err != nil {
		return "", err
	}
	if seconds < advisoryInterval {
		s.log.Warn(string(AdvisoryShortInterval), zap.Int("interval", seconds))
		return AdvisoryShortInterval, nil
	}
	return "", nil
}

// Stop disarms the timer and clears the alert state.
func (s *Scheduler) Stop() error {
	return s.send(command{kind: cmdStop})
}

func (s *Scheduler) Status() model.Status {
	return s.Snapshot().Status
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdStop
)

type command struct {
	kind     cmdKind
	interval time.Duration
	reply    chan error
}

func (s *Scheduler) send(c command) error {
	c.reply = make(chan error, 1)
	select {
	case s.cmds <- c:
	case <-s.done:
		return ErrClosed
	}
	return <-c.reply
}

// Run owns all scheduler state: commands, ticks and poll results are handled
// one at a time on this goroutine. It returns when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	defer func() {
		s.disarm()
		s.setStatus(model.Stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-s.cmds:
			switch c.kind {
			case cmdStart:
				s.start(c.interval)
			case cmdStop:
				s.stop()
			}
			c.reply <- nil
		case <-s.tickC:
			s.tick()
		case r := <-s.results:
			s.complete(ctx, r)
		}
	}
}

func (s *Scheduler) start(interval time.Duration) {
	s.disarm()
	s.gen++
	s.state.Reset()
	s.sessionID = newSessionID()
	s.startedAt = s.now()
	s.interval = interval
	s.tickC, s.stopTicker = s.newTicker(interval)
	s.setStatus(model.Running)
	s.log.Info("WHEA monitoring started",
		zap.Duration("interval", interval),
		zap.String("session", s.sessionID))
}

func (s *Scheduler) stop() {
	s.disarm()
	s.gen++
	s.state.Reset()
	wasRunning := s.status == model.Running
	s.setStatus(model.Stopped)
	if wasRunning {
		s.log.Info("WHEA monitoring stopped", zap.String("session", s.sessionID))
	}
}

func (s *Scheduler) disarm() {
	if s.stopTicker != nil {
		s.stopTicker()
	}
	s.tickC, s.stopTicker = nil, nil
}

func (s *Scheduler) setStatus(st model.Status) {
	changed := s.status != st
	s.status = st
	s.publish()
	if st == model.Running {
		metrics.MonitorRunning.Set(1)
	} else {
		metrics.MonitorRunning.Set(0)
	}
	if changed {
		for _, f := range s.statusObservers {
			f(st)
		}
	}
}

func (s *Scheduler) publish() {
	s.mu.Lock()
	s.snap.Status = s.status
	s.snap.SessionID = s.sessionID
	s.snap.StartedAt = s.startedAt
	s.snap.Interval = s.interval
	s.snap.LastMatchCount = s.state.LastCount()
	s.mu.Unlock()
}

func (s *Scheduler) report(r PollReport) {
	for _, f := range s.pollObservers {
		f(r)
	}
}
