package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hara602/wheaSentry/internal/analysis"
	"github.com/Hara602/wheaSentry/internal/config"
	"github.com/Hara602/wheaSentry/internal/metrics"
	"github.com/Hara602/wheaSentry/internal/model"
	"github.com/Hara602/wheaSentry/internal/watcher"
	"go.uber.org/zap"
)

type pollResult struct {
	gen     uint64
	records []model.EventRecord
	err     error
}

// tick starts a read on a worker goroutine unless one is still running.
// The result comes back through s.results tagged with the current generation.
func (s *Scheduler) tick() {
	if s.inflight {
		metrics.PollsTotal.WithLabelValues("skipped").Inc()
		s.log.Debug("Previous event log read still running, tick skipped")
		s.report(PollReport{SessionID: s.sessionID, Skipped: true})
		return
	}
	s.inflight = true
	gen := s.gen
	go func() {
		records, err := s.read()
		s.results <- pollResult{gen: gen, records: records, err: err}
	}()
}

func (s *Scheduler) read() (records []model.EventRecord, err error) {
	h, err := s.src.Open(s.logName, s.host)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := s.src.Close(h); cerr != nil {
			s.log.Debug("Closing event log failed", zap.Error(cerr))
		}
	}()
	s.log.Debug("Opened Windows event log", zap.String("log", s.logName), zap.String("host", s.host))
	return s.src.Read(h)
}

// complete runs the filter and the state machine on a finished read.
func (s *Scheduler) complete(ctx context.Context, r pollResult) {
	s.inflight = false

	// 会话已经结束或重新开始, 丢弃旧结果
	if r.gen != s.gen {
		metrics.PollsTotal.WithLabelValues("dropped").Inc()
		s.log.Debug("Dropping result of a previous session")
		s.report(PollReport{Dropped: true, Err: r.err})
		return
	}

	s.mu.Lock()
	s.snap.LastPoll = s.now()
	s.mu.Unlock()

	malformed := 0
	if r.err != nil {
		if !errors.Is(r.err, watcher.ErrMalformedRecord) {
			result := "read_error"
			if errors.Is(r.err, watcher.ErrOpen) {
				result = "open_error"
			}
			metrics.PollsTotal.WithLabelValues(result).Inc()
			s.log.Error("Event log poll failed", zap.Error(r.err))
			s.report(PollReport{SessionID: s.sessionID, Err: r.err})
			return
		}
		malformed++
		s.log.Warn("Event log batch contains a malformed record", zap.Error(r.err))
	}
	metrics.PollsTotal.WithLabelValues("ok").Inc()
	metrics.RecordsReadTotal.Add(float64(len(r.records)))

	if len(r.records) == 0 {
		s.log.Debug("Event log is empty")
	} else {
		s.rawDump.Do(func() { s.dumpSample(r.records) })
	}

	res := analysis.Filter(r.records, s.startedAt, model.IsRecognized)
	malformed += res.Skipped
	metrics.RecordsMalformedTotal.Add(float64(malformed))
	metrics.RecordsMatchedTotal.Add(float64(len(res.Matched)))

	count := len(res.Matched)
	s.log.Debug("WHEA errors/warnings in session window",
		zap.Int("count", count),
		zap.Any("codes", res.Identifiers))

	decision := s.state.Evaluate(count)
	metrics.LastMatchCount.Set(float64(s.state.LastCount()))
	s.publish()

	switch decision.Kind {
	case analysis.Fire:
		s.fire(ctx, decision.Count, res.Identifiers)
	case analysis.Reset:
		s.log.Info("No WHEA errors found, error counter reset")
	}

	s.report(PollReport{
		SessionID:   s.sessionID,
		Read:        len(r.records),
		Matched:     count,
		Malformed:   malformed,
		Identifiers: res.Identifiers,
		Decision:    decision,
	})
}

func (s *Scheduler) fire(ctx context.Context, count int, ids []model.EventID) {
	ev := model.AlertEvent{
		SessionID:   s.sessionID,
		MatchCount:  count,
		Identifiers: ids,
		Timestamp:   s.now(),
	}
	metrics.AlertsFiredTotal.Inc()
	s.log.Warn(ev.Message(), zap.String("session", ev.SessionID))
	s.journal.Info(ev.Message())

	for _, f := range s.alertObservers {
		f(ev)
	}

	if s.dispatcher == nil {
		return
	}
	var cfg config.Reaction
	if s.configs != nil {
		cfg = s.configs.Current()
	}
	if err := s.dispatcher.Dispatch(ctx, ev, cfg); err != nil {
		s.log.Debug("Dispatch returned errors", zap.Error(err))
	}
}

func (s *Scheduler) dumpSample(records []model.EventRecord) {
	n := min(len(records), sampleRecords)
	sample := make([]map[string]any, 0, n)
	for _, rec := range records[:n] {
		sample = append(sample, rec.Raw)
	}
	s.log.Debug(fmt.Sprintf("First %d records read", n), zap.Any("records", sample))
}
