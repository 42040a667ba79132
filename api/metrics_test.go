package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// installTracer routes spans to an in-memory exporter for the test.
func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func onlySpan(t *testing.T, exporter *tracetest.InMemoryExporter) tracetest.SpanStub {
	t.Helper()
	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("want one span, got %d", len(spans))
	}
	return spans[0]
}

func kvMap(kvs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func summaryEvent(t *testing.T, span tracetest.SpanStub) map[string]any {
	t.Helper()
	for _, ev := range span.Events {
		if ev.Name == observabilityEvent {
			return kvMap(ev.Attributes)
		}
	}
	t.Fatalf("span has no %s event: %+v", observabilityEvent, span.Events)
	return nil
}

func lastEntry(t *testing.T, hook *test.Hook) *log.Entry {
	t.Helper()
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("nothing was logged")
	}
	return entry
}

func TestRequestMetricsSummarisesSuccessfulRequest(t *testing.T) {
	exporter := installTracer(t)
	logger, hook := test.NewNullLogger()

	m, ctx := newRequestMetrics(context.Background(), logger, http.MethodGet, "/api/board")
	if !trace.SpanContextFromContext(ctx).IsValid() {
		t.Fatal("request context carries no span")
	}
	m.ObserveStore(4 * time.Millisecond)
	m.ObserveStore(6 * time.Millisecond)
	m.ObserveEncode(2 * time.Millisecond)
	m.SetTasksReturned(7)
	m.Log(http.StatusOK, nil)

	entry := lastEntry(t, hook)
	if entry.Message != observabilityEvent || entry.Level != log.InfoLevel {
		t.Fatalf("unexpected entry %q at %v", entry.Message, entry.Level)
	}
	wantFields := map[string]any{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"severity_text":   "INFO",
		"severity_number": 9,
	}
	for k, want := range wantFields {
		if got := entry.Data[k]; got != want {
			t.Errorf("field %s = %v, want %v", k, got, want)
		}
	}
	if id, _ := entry.Data["trace_id"].(string); id == "" {
		t.Error("trace_id missing from log entry")
	}

	attrs, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes field has type %T", entry.Data["attributes"])
	}
	wantAttrs := map[string]any{
		"http.route":               "/api/board",
		"http.method":              http.MethodGet,
		"http.status_code":         int64(http.StatusOK),
		"taskboard.store_ms":       10.0,
		"taskboard.encode_ms":      2.0,
		"taskboard.tasks_returned": int64(7),
	}
	for k, want := range wantAttrs {
		if got := attrs[k]; got != want {
			t.Errorf("attribute %s = %#v, want %#v", k, got, want)
		}
	}
	if _, ok := attrs["taskboard.error_stage"]; ok {
		t.Error("successful request must not carry an error stage")
	}

	span := onlySpan(t, exporter)
	if span.Name != requestSpanName || span.SpanKind != trace.SpanKindServer {
		t.Fatalf("unexpected span %s (%v)", span.Name, span.SpanKind)
	}
	if span.Status.Code != codes.Ok {
		t.Fatalf("span status = %v, want Ok", span.Status.Code)
	}
	if got := summaryEvent(t, span)["taskboard.tasks_returned"]; got != int64(7) {
		t.Fatalf("span event tasks_returned = %#v", got)
	}
}

func TestRequestMetricsMarksFailedSpan(t *testing.T) {
	exporter := installTracer(t)
	logger, hook := test.NewNullLogger()

	m, _ := newRequestMetrics(context.Background(), logger, http.MethodPost, "/api/board/moves")
	m.SetErrorStage("network")
	cause := errors.New("table unavailable")
	m.Log(http.StatusBadGateway, cause)

	entry := lastEntry(t, hook)
	if entry.Level != log.ErrorLevel || entry.Data["error"] != cause.Error() {
		t.Fatalf("unexpected entry level %v error %v", entry.Level, entry.Data["error"])
	}

	span := onlySpan(t, exporter)
	if span.Status.Code != codes.Error || span.Status.Description != cause.Error() {
		t.Fatalf("span status = %+v", span.Status)
	}
	ev := summaryEvent(t, span)
	if ev["severity_text"] != "ERROR" || ev["taskboard.error_stage"] != "network" || ev["error.message"] != cause.Error() {
		t.Fatalf("unexpected span event attributes %+v", ev)
	}
}

func TestRequestMetricsServerErrorWithoutCause(t *testing.T) {
	exporter := installTracer(t)
	logger, _ := test.NewNullLogger()

	m, _ := newRequestMetrics(context.Background(), logger, http.MethodGet, "/api/tasks")
	m.Log(http.StatusInternalServerError, nil)

	if span := onlySpan(t, exporter); span.Status.Code != codes.Error {
		t.Fatalf("5xx span status = %v, want Error", span.Status.Code)
	}
}

func TestRequestMetricsMiddlewareRecordsErrorStage(t *testing.T) {
	exporter := installTracer(t)
	logger, hook := test.NewNullLogger()

	f := newFixture(t)
	f.e = echo.New()
	Register(f.e, Deps{Sessions: f.sessions, Boards: f.registry, Settings: f.settings}, logger)

	rec := f.do(http.MethodPatch, "/api/tasks/missing", `{"title":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	entry := lastEntry(t, hook)
	if entry.Level != log.WarnLevel {
		t.Fatalf("level = %v, want warn", entry.Level)
	}
	attrs := entry.Data["attributes"].(map[string]any)
	if attrs["http.route"] != "/api/tasks/:id" || attrs["taskboard.error_stage"] != "not_found" {
		t.Fatalf("unexpected attributes %+v", attrs)
	}
	onlySpan(t, exporter)
}

func TestMetricsFromWithoutMiddlewareIsNoop(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	m := metricsFrom(c)
	m.ObserveStore(time.Second)
	m.SetErrorStage("x")
	m.SetTasksReturned(1)
	m.Log(http.StatusOK, nil)
}

func TestSeverityForStatus(t *testing.T) {
	cases := []struct {
		status int
		err    error
		text   string
		number int
		level  log.Level
	}{
		{http.StatusOK, nil, "INFO", 9, log.InfoLevel},
		{http.StatusCreated, nil, "INFO", 9, log.InfoLevel},
		{http.StatusConflict, nil, "WARN", 13, log.WarnLevel},
		{http.StatusUnauthorized, nil, "WARN", 13, log.WarnLevel},
		{http.StatusBadGateway, nil, "ERROR", 17, log.ErrorLevel},
		{http.StatusOK, errors.New("late failure"), "ERROR", 17, log.ErrorLevel},
	}
	for _, tc := range cases {
		text, number := severityForStatus(tc.status, tc.err)
		if text != tc.text || number != tc.number {
			t.Errorf("severityForStatus(%d, %v) = %s/%d, want %s/%d", tc.status, tc.err, text, number, tc.text, tc.number)
		}
		if lvl := levelForSeverity(number); lvl != tc.level {
			t.Errorf("levelForSeverity(%d) = %v, want %v", number, lvl, tc.level)
		}
	}
}
