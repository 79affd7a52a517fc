package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logLine struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if line.level == level && line.msg == msg {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestServiceObservability(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := newTestService(t, WithLogger(logger), WithMetricsRecorder(metrics), WithTracer(tracer))

	p := registerCoffee(t, svc)
	_, err := svc.TransferToRetailer(ctx, p.ID, price("1"))
	require.Error(t, err)
	_, err = svc.TransferToDistributor(ctx, p.ID, price("150"))
	require.NoError(t, err)

	assert.True(t, metrics.has("register", true))
	assert.True(t, metrics.has("transfer_to_retailer", false))
	assert.True(t, metrics.has("transfer_to_distributor", true))
	assert.True(t, tracer.has("register", true))
	assert.True(t, tracer.has("transfer_to_retailer", false))
	assert.Equal(t, len(tracer.started), len(tracer.ended))

	assert.True(t, logger.has("info", "product registered"))
	assert.True(t, logger.has("info", "ownership transferred"))
	assert.True(t, logger.has("warn", "operation rejected"))
	assert.True(t, logger.has("debug", "operation completed"))
	assert.False(t, logger.has("error", "operation failed"))
}

func TestNilOptionsKeepDefaults(t *testing.T) {
	svc := newTestService(t, WithLogger(nil), WithMetricsRecorder(nil), WithTracer(nil), WithClock(nil))
	registerCoffee(t, svc)
	assert.IsType(t, noopLogger{}, svc.logger)
	assert.IsType(t, noopMetricsRecorder{}, svc.metrics)
	assert.IsType(t, noopTracer{}, svc.tracer)

	logger := noopLogger{}
	logger.Debug("debug", "k", "v")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	svc := newTestService(t, WithMetricsRecorder(rec))
	p := registerCoffee(t, svc)
	_, _ = svc.TransferToRetailer(context.Background(), p.ID, price("1"))
	rec.Observe(context.Background(), "", true, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.results.WithLabelValues("register", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.results.WithLabelValues("transfer_to_retailer", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(rec.results))

	expected := `
# HELP fairtrace_operations_total Service operations by outcome.
# TYPE fairtrace_operations_total counter
fairtrace_operations_total{operation="register",status="success"} 1
fairtrace_operations_total{operation="transfer_to_retailer",status="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fairtrace_operations_total"))

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err, "registering twice on one registry must fail")
}

func TestJSONTraceTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	tracer.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 2 * time.Millisecond)
	}

	_, span := tracer.Start(context.Background(), "register")
	span.End(nil)
	span.End(errors.New("ignored: spans end once"))
	_, span = tracer.Start(context.Background(), "trace")
	span.End(errors.New("broken chain"))

	entries := tracer.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "success", entries[0].Status)
	assert.Equal(t, 2.0, entries[0].DurationMS)
	assert.Equal(t, "error", entries[1].Status)
	assert.Equal(t, "broken chain", entries[1].Error)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var decoded JSONTraceEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	assert.Equal(t, "trace", decoded.Operation)

	silent := NewJSONTracer(nil)
	_, span = silent.Start(context.Background(), "ledger")
	span.End(nil)
	assert.Len(t, silent.Entries(), 1)
}
