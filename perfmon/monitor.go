package perfmon

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/martinemde/aimux/logging"
)

const (
	DefaultSlowThreshold = 5 * time.Second
	DefaultWindowSize    = 100

	recentSamples = 10
)

// RequestMetric is one tracked request. Duration is in milliseconds and is
// set when the request ends.
type RequestMetric struct {
	RequestID string    `json:"request_id"`
	Service   string    `json:"service"`
	Operation string    `json:"operation"`
	Model     string    `json:"model"`
	UserID    string    `json:"user_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration_ms,omitempty"`
	Success   bool      `json:"success"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Monitor tracks request lifecycles and aggregates latency statistics.
// It is safe for concurrent use.
type Monitor struct {
	threshold  time.Duration
	windowSize int
	now        func() time.Time
	log        *logging.Logger
	meter      metric.Meter
	inst       *instruments

	mu         sync.Mutex
	active     map[string]*RequestMetric
	stale      map[string]struct{}
	total      int64
	successful int64
	failed     int64
	slow       int64
	rejected   int64
	completed  int64
	minMs      float64
	maxMs      float64
	meanMs     float64
	byService  map[string]int64
	byModel    map[string]int64
	byError    map[string]int64
	byReject   map[string]int64
	windows    map[string]*window
	lastReset  time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSlowThreshold sets the duration above which a request counts as slow.
func WithSlowThreshold(d time.Duration) Option {
	return func(m *Monitor) {
		m.threshold = d
	}
}

// WithWindowSize sets the per-service rolling window capacity.
func WithWindowSize(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.windowSize = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Monitor) {
		m.log = l
	}
}

// WithMeter mirrors request metrics onto OpenTelemetry instruments created
// on meter.
func WithMeter(meter metric.Meter) Option {
	return func(m *Monitor) {
		m.meter = meter
	}
}

// New creates a Monitor.
func New(opts ...Option) (*Monitor, error) {
	m := &Monitor{
		threshold:  DefaultSlowThreshold,
		windowSize: DefaultWindowSize,
		now:        time.Now,
		log:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent("perfmon")
	if m.meter != nil {
		inst, err := newInstruments(m.meter)
		if err != nil {
			return nil, err
		}
		m.inst = inst
	}
	m.active = make(map[string]*RequestMetric)
	m.resetLocked()
	return m, nil
}

func (m *Monitor) resetLocked() {
	m.total, m.successful, m.failed, m.slow, m.completed, m.rejected = 0, 0, 0, 0, 0, 0
	m.minMs, m.maxMs, m.meanMs = 0, 0, 0
	m.byService = make(map[string]int64)
	m.byModel = make(map[string]int64)
	m.byError = make(map[string]int64)
	m.byReject = make(map[string]int64)
	m.windows = make(map[string]*window)
	// Requests in flight now end outside the new aggregates.
	m.stale = make(map[string]struct{}, len(m.active))
	for id := range m.active {
		m.stale[id] = struct{}{}
	}
	m.lastReset = m.now()
}

// StartRequest begins tracking a request and returns its id. Total,
// per-service and per-model counters increase immediately.
func (m *Monitor) StartRequest(service, operation, model, userID string) string {
	start := m.now()
	id := newRequestID(start)

	m.mu.Lock()
	m.active[id] = &RequestMetric{
		RequestID: id,
		Service:   service,
		Operation: operation,
		Model:     model,
		UserID:    userID,
		StartTime: start,
	}
	m.total++
	m.byService[service]++
	m.byModel[model]++
	m.mu.Unlock()

	if m.inst != nil {
		m.inst.recordStart(context.Background(), service, operation)
	}
	m.log.Debug("request started", logging.Fields(
		logging.FieldRequestID, id,
		logging.FieldService, service,
		logging.FieldOperation, operation,
		logging.FieldModel, model,
		logging.FieldUserID, userID,
	))
	return id
}

// EndRequest completes a tracked request. Ending an unknown id logs a
// warning and changes nothing.
func (m *Monitor) EndRequest(requestID string, success bool, err error) {
	end := m.now()

	m.mu.Lock()
	rm, ok := m.active[requestID]
	if !ok {
		m.mu.Unlock()
		m.log.Warn("request not found for ending", logging.Fields(logging.FieldRequestID, requestID))
		return
	}

	rm.EndTime = end
	rm.Duration = durationMillis(end.Sub(rm.StartTime))
	rm.Success = success
	if err != nil {
		rm.Error = err.Error()
	}
	if !success {
		rm.ErrorKind = errorKind(err)
	}
	delete(m.active, requestID)
	done := *rm

	if _, ok := m.stale[requestID]; ok {
		delete(m.stale, requestID)
		m.mu.Unlock()
		if m.inst != nil {
			m.inst.recordEnd(context.Background(), &done, end.Sub(rm.StartTime) > m.threshold)
		}
		m.logAPICall(&done, err)
		return
	}

	if success {
		m.successful++
	} else {
		m.failed++
		m.byError[rm.ErrorKind]++
	}

	m.completed++
	if m.completed == 1 || rm.Duration < m.minMs {
		m.minMs = rm.Duration
	}
	if rm.Duration > m.maxMs {
		m.maxMs = rm.Duration
	}
	m.meanMs = (m.meanMs*float64(m.completed-1) + rm.Duration) / float64(m.completed)

	w, ok := m.windows[rm.Service]
	if !ok {
		w = newWindow(m.windowSize)
		m.windows[rm.Service] = w
	}
	w.Add(rm.Duration)

	slow := end.Sub(rm.StartTime) > m.threshold
	if slow {
		m.slow++
	}
	m.mu.Unlock()

	if m.inst != nil {
		m.inst.recordEnd(context.Background(), &done, slow)
	}
	if slow {
		m.log.Warn("slow request detected", logging.Fields(
			logging.FieldRequestID, done.RequestID,
			logging.FieldService, done.Service,
			logging.FieldOperation, done.Operation,
			logging.FieldModel, done.Model,
			logging.FieldDuration, done.Duration,
			"threshold_ms", durationMillis(m.threshold),
		))
	}
	m.logAPICall(&done, err)
}

func (m *Monitor) logAPICall(rm *RequestMetric, err error) {
	fields := logging.Fields(
		logging.FieldType, "api_call",
		logging.FieldRequestID, rm.RequestID,
		logging.FieldService, rm.Service,
		logging.FieldOperation, rm.Operation,
		logging.FieldModel, rm.Model,
		logging.FieldDuration, rm.Duration,
		"success", rm.Success,
	)
	if rm.UserID != "" {
		fields[logging.FieldUserID] = rm.UserID
	}
	if rm.Success {
		m.log.Info("API call completed", fields)
		return
	}
	if err != nil {
		fields[logging.FieldError] = err
	}
	fields["error_kind"] = rm.ErrorKind
	m.log.Error("API call failed", fields)
}

// RejectRequest records a request refused before it reached a backend,
// such as an unknown model. Rejections are kept apart from the request
// totals and rates.
func (m *Monitor) RejectRequest(service, operation, model, kind string) {
	m.mu.Lock()
	m.rejected++
	m.byReject[kind]++
	m.mu.Unlock()

	if m.inst != nil {
		m.inst.recordRejection(context.Background(), service, operation, kind)
	}
	m.log.Debug("request rejected", logging.Fields(
		logging.FieldService, service,
		logging.FieldOperation, operation,
		logging.FieldModel, model,
		"error_kind", kind,
	))
}

// ActiveCount returns the number of started but not yet ended requests.
func (m *Monitor) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// ActiveRequests returns copies of the in-flight requests.
func (m *Monitor) ActiveRequests() []RequestMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RequestMetric, 0, len(m.active))
	for _, rm := range m.active {
		out = append(out, *rm)
	}
	return out
}

// Reset clears every aggregate. In-flight requests stay tracked, so the
// active count still returns to zero, but their completion is not counted.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	m.log.Info("performance metrics reset")
}

// newRequestID returns an opaque id of the form req_<unix ms>_<8 chars>.
func newRequestID(t time.Time) string {
	return fmt.Sprintf("req_%d_%s", t.UnixMilli(), uuid.New().String()[:8])
}

type kinded interface {
	ErrorKind() string
}

// errorKind names the failure bucket of err.
func errorKind(err error) string {
	if err == nil {
		return "unknown"
	}
	var k kinded
	if errors.As(err, &k) && k.ErrorKind() != "" {
		return k.ErrorKind()
	}
	t := reflect.TypeOf(err)
	name := strings.TrimPrefix(t.String(), "*")
	if name == "" {
		return "unknown"
	}
	return name
}
