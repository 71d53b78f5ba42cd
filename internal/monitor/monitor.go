package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/sparrow-cli/internal/metrics"
	"github.com/khanhnv2901/sparrow-cli/internal/netstat"
	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
)

// Sink receives connection events on the process worker.
type Sink interface {
	HandleEvent(ConnectionEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ConnectionEvent)

// HandleEvent calls f(ev).
func (f SinkFunc) HandleEvent(ev ConnectionEvent) { f(ev) }

// Options tunes the monitor; zero values fall back to the package defaults.
type Options struct {
	Interval    time.Duration
	QueueSize   int
	JoinTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = consts.MonitorPollInterval
	}
	if o.QueueSize <= 0 {
		o.QueueSize = consts.MonitorQueueSize
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = consts.MonitorJoinTimeout
	}
	return o
}

// Stats counts events produced since the monitor was created.
type Stats struct {
	Total   int `json:"total"`
	TCP     int `json:"tcp"`
	UDP     int `json:"udp"`
	Dropped int `json:"dropped"`
}

// Monitor polls the connection table and reports new connections.
type Monitor struct {
	enum    netstat.Enumerator
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	captureDone chan struct{}
	processDone chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// New creates a stopped monitor.
func New(enum netstat.Enumerator, opts Options, logger *zap.Logger, m *metrics.Metrics) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Monitor{
		enum:    enum,
		opts:    opts.withDefaults(),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Start launches the capture and process workers and returns immediately.
// It returns false if the monitor is already running.
func (m *Monitor) Start(sink Sink) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	queue := newEventQueue(m.opts.QueueSize)

	m.running = true
	m.cancel = cancel
	m.captureDone = make(chan struct{})
	m.processDone = make(chan struct{})

	go m.capture(ctx, queue, m.captureDone)
	go m.process(ctx, queue, sink, m.processDone)

	m.logger.Info("connection monitor started",
		zap.Duration("interval", m.opts.Interval),
		zap.Int("queue_size", m.opts.QueueSize),
	)
	return true
}

// Stop requests termination and waits up to JoinTimeout in total for the
// capture worker and then the process worker. Workers still running at the
// deadline are abandoned. Stopping a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, captureDone, processDone := m.cancel, m.captureDone, m.processDone
	m.mu.Unlock()

	cancel()
	deadline := time.NewTimer(m.opts.JoinTimeout)
	defer deadline.Stop()

	workers := []struct {
		name string
		done chan struct{}
	}{
		{"capture", captureDone},
		{"process", processDone},
	}
	for i, w := range workers {
		select {
		case <-w.done:
		case <-deadline.C:
			for _, late := range workers[i:] {
				m.logger.Warn("monitor worker did not stop in time", zap.String("worker", late.name))
			}
			return
		}
	}
	m.logger.Info("connection monitor stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stats returns a copy of the event counters.
func (m *Monitor) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

func (m *Monitor) capture(ctx context.Context, queue *eventQueue, done chan struct{}) {
	defer close(done)

	// A fresh start reports every connection already open.
	previous := Snapshot{}
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		previous = m.poll(ctx, previous, queue)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll runs one capture cycle and returns the snapshot to diff against next time.
func (m *Monitor) poll(ctx context.Context, previous Snapshot, queue *eventQueue) Snapshot {
	m.metrics.MonitorPolls.Inc()

	pollCtx, cancel := context.WithTimeout(ctx, m.opts.Interval)
	conns, err := m.enum.Connections(pollCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			m.metrics.MonitorPollErrors.Inc()
			m.logger.Warn("connection enumeration failed", zap.Error(err))
		}
		return previous
	}

	current := make(Snapshot, len(conns))
	order := make([]ConnectionKey, 0, len(conns))
	for _, c := range conns {
		key := KeyOf(c)
		current[key] = struct{}{}
		order = append(order, key)
	}

	at := m.now().UTC()
	for _, key := range Diff(previous, order) {
		ev := newEvent(key, at)
		if !queue.offer(ev) {
			m.metrics.MonitorEventsDropped.Inc()
			m.record(ev, false)
			m.logger.Warn("connection event dropped, queue full", zap.String("connection", key.String()))
			continue
		}
		m.metrics.MonitorEvents.WithLabelValues(ev.Transport).Inc()
		m.record(ev, true)
	}
	return current
}

func (m *Monitor) record(ev ConnectionEvent, queued bool) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	if !queued {
		m.stats.Dropped++
		return
	}
	m.stats.Total++
	switch ev.Transport {
	case netstat.TransportTCP:
		m.stats.TCP++
	case netstat.TransportUDP:
		m.stats.UDP++
	}
}

func (m *Monitor) process(ctx context.Context, queue *eventQueue, sink Sink, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			if n := queue.len(); n > 0 {
				m.logger.Debug("discarding undelivered events", zap.Int("count", n))
			}
			return
		case ev := <-queue.events():
			m.deliver(sink, ev)
		}
	}
}

func (m *Monitor) deliver(sink Sink, ev ConnectionEvent) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event sink panicked", zap.Any("panic", r))
		}
	}()
	sink.HandleEvent(ev)
}
