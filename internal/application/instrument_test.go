package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedLine struct {
	msg    string
	fields map[string]any
}

type recordingLogger struct {
	mu     *sync.Mutex
	lines  *[]recordedLine
	fields []observability.Field
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, lines: &[]recordedLine{}}
}

func (l *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &recordingLogger{mu: l.mu, lines: l.lines, fields: append(append([]observability.Field{}, l.fields...), fields...)}
}
func (l *recordingLogger) Debug(msg string, fields ...observability.Field) { l.record(msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...observability.Field)  { l.record(msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...observability.Field)  { l.record(msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...observability.Field) { l.record(msg, fields) }

func (l *recordingLogger) record(msg string, fields []observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := map[string]any{}
	for _, f := range append(append([]observability.Field{}, l.fields...), fields...) {
		m[f.Key] = f.Value
	}
	*l.lines = append(*l.lines, recordedLine{msg: msg, fields: m})
}

type countingCounter struct {
	mu    sync.Mutex
	calls []map[string]string
}

func (c *countingCounter) Add(_ float64, labels ...observability.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := map[string]string{}
	for _, l := range labels {
		m[l.Key] = l.Value
	}
	c.calls = append(c.calls, m)
}
func (c *countingCounter) Bind(...observability.Label) observability.BoundCounter { return nil }

type fakeMetrics struct{ requests *countingCounter }

func (m fakeMetrics) Counter(key observability.MetricKey) observability.Counter {
	if key == observability.MUsecaseRequests {
		return m.requests
	}
	return observability.NopCounter()
}
func (fakeMetrics) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}

type fakeObservability struct {
	log     observability.Logger
	metrics observability.Metrics
}

func (f fakeObservability) Tracer() observability.Tracer   { return observability.NopTracer() }
func (f fakeObservability) Logger() observability.Logger   { return f.log }
func (f fakeObservability) Metrics() observability.Metrics { return f.metrics }

func TestExecution_RecordsOutcome(t *testing.T) {
	log := newRecordingLogger()
	requests := &countingCounter{}
	in := NewInstruments(fakeObservability{log: log, metrics: fakeMetrics{requests: requests}}, "order-service")

	_, exec := in.Begin(context.Background(), "order.create", "CreateOrder")
	exec.Add(observability.F("order_id", "o-1"))
	exec.Fail("REPO_INSERT_FAILED")
	exec.End(errors.New("boom"))

	require.Len(t, *log.lines, 1)
	line := (*log.lines)[0]
	assert.Equal(t, "use_case_done", line.msg)
	assert.Equal(t, "order-service", line.fields["service"])
	assert.Equal(t, "order.create", line.fields["use_case"])
	assert.Equal(t, "error", line.fields["outcome"])
	assert.Equal(t, "REPO_INSERT_FAILED", line.fields["status"])
	assert.Equal(t, "o-1", line.fields["order_id"])
	assert.Equal(t, "boom", line.fields["error"])

	require.Len(t, requests.calls, 1)
	assert.Equal(t, map[string]string{"use_case": "order.create", "outcome": "error"}, requests.calls[0])
}

func TestExecution_ErrorWithoutFailIsStillAnError(t *testing.T) {
	log := newRecordingLogger()
	in := NewInstruments(fakeObservability{log: log, metrics: observability.NopMetrics()}, "svc")

	_, exec := in.Begin(context.Background(), "x", "X")
	exec.End(errors.New("nope"))

	assert.Equal(t, "error", (*log.lines)[0].fields["outcome"])
	assert.Equal(t, "ERROR", (*log.lines)[0].fields["status"])
}

func TestNewInstruments_NilObservability(t *testing.T) {
	in := NewInstruments(nil, "svc")
	_, exec := in.Begin(context.Background(), "x", "X")

	assert.NotPanics(t, func() { exec.End(nil) })
}
