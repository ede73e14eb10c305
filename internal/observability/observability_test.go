package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"

	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
)

func TestShutdownCoordinatorLIFO(t *testing.T) {
	var order []int
	sc := &ShutdownCoordinator{}
	for i := 1; i <= 3; i++ {
		sc.Register(fmt.Sprintf("h%d", i), func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	if err := sc.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Fatalf("expected LIFO [3,2,1], got %v", order)
	}
}

func TestShutdownCoordinatorRunsAllOnError(t *testing.T) {
	ran := 0
	sc := &ShutdownCoordinator{}
	sc.Register("first", func(context.Context) error { ran++; return nil })
	sc.Register("bad", func(context.Context) error { ran++; return errors.New("fail") })

	err := sc.Shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected error naming handler, got %v", err)
	}
	if ran != 2 {
		t.Fatalf("expected both handlers to run, ran %d", ran)
	}
}

func TestMetricsHelpers(t *testing.T) {
	m := NewMetrics()

	m.LinkEvent("opened", 3)
	m.LinkEvent("closed", 0)
	m.SetLinksOpen(3)
	m.Recovery("RESEND_QUERY", "ok")
	m.Message("out", "ok", 12)
	m.Message("out", "error", 12)
	m.Error("map", "connection_failed")

	if got := testutil.ToFloat64(m.LinkEvents.WithLabelValues("opened")); got != 3 {
		t.Fatalf("opened = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.LinksOpen); got != 3 {
		t.Fatalf("links open = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.BytesProcessed.WithLabelValues("out")); got != 12 {
		t.Fatalf("bytes = %v, want 12 (failed sends excluded)", got)
	}
	if got := testutil.ToFloat64(m.MessagesTotal.WithLabelValues("out", "error")); got != 1 {
		t.Fatalf("failed messages = %v, want 1", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.LinkEvent("opened", 1)
	m.SetLinksOpen(1)
	m.SetEndpoints(1)
	m.SetDiscoveryEntries(1)
	m.Recovery("EXACT", "ok")
	m.Message("in", "ok", 1)
	m.Error("x", "y")
	m.Command("MAP", "ok")
	m.IndexChange("announce", 1)

	op, _ := StartOperation(context.Background(), nil, "nil_metrics")
	op.End(errors.New("boom"))
}

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("info", "json", &buf)
	logger.Info("hello", "key", "val")

	var entry map[string]any
	if err := json.NewDecoder(&buf).Decode(&entry); err != nil {
		t.Fatalf("output not valid JSON: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["key"] != "val" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestSetupLoggerAutoOnPipeIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("info", "auto", &buf)
	logger.Info("piped")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("auto format on a non-terminal should be JSON: %v", err)
	}
}

func TestSetupLoggerText(t *testing.T) {
	var buf bytes.Buffer
	SetupLogger("info", "text", &buf)
	slog.Info("testmsg", "endpoint", "temp")

	out := buf.String()
	if !strings.Contains(out, "testmsg") || !strings.Contains(out, "endpoint=temp") {
		t.Fatalf("unexpected text output: %s", out)
	}
}

func TestSetupLoggerLevels(t *testing.T) {
	tests := []struct {
		level      string
		logAt      slog.Level
		shouldShow bool
	}{
		{"debug", slog.LevelDebug, true},
		{"info", slog.LevelDebug, false},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelInfo, false},
		{"error", slog.LevelWarn, false},
		{"error", slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.level, tt.logAt), func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(tt.level, "json", &buf)
			logger.Log(context.Background(), tt.logAt, "test")
			if got := buf.Len() > 0; got != tt.shouldShow {
				t.Fatalf("expected visible=%v got %v", tt.shouldShow, got)
			}
		})
	}
}

func TestPrettyHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, nil)).With("component", "rdc")
	logger.Warn("stale entry")

	out := buf.String()
	if !strings.Contains(out, "WRN") || !strings.Contains(out, "[rdc]") || strings.Contains(out, "component=") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPrettyHandlerGroupsAndQuoting(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, nil)).WithGroup("link").With("id", "l1")
	logger.Info("closed", "reason", "peer gone", slog.Group("remote", "name", "temp"))

	out := buf.String()
	for _, want := range []string{"link.id=l1", `link.reason="peer gone"`, "link.remote.name=temp"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestTraceHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	h := &TraceHandler{Handler: slog.NewJSONHandler(&buf, nil)}

	traceID, _ := trace.TraceIDFromHex("00000000000000000000000000000001")
	spanID, _ := trace.SpanIDFromHex("0000000000000001")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	slog.New(h).InfoContext(ctx, "traced")
	out := buf.String()
	if !strings.Contains(out, "trace_id") || !strings.Contains(out, "span_id") {
		t.Fatalf("expected trace ids in output: %s", out)
	}
}

func TestStartOperationRecords(t *testing.T) {
	m := NewMetrics()

	op, ctx := StartOperation(context.Background(), m, "map_indirect", attribute.String("endpoint", "temp"))
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	op.End(nil)
	op, _ = StartOperation(context.Background(), m, "map_indirect")
	op.End(errors.New("boom"))

	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("map_indirect", "ok")); got != 1 {
		t.Fatalf("ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("map_indirect", "error")); got != 1 {
		t.Fatalf("error = %v, want 1", got)
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	m := NewMetrics()
	interceptor := UnaryServerInterceptor(m)

	md := metadata.New(map[string]string{
		"traceparent": "00-00000000000000000000000000000001-0000000000000001-01",
	})
	ctx := metadata.NewIncomingContext(context.Background(), md)

	info := &grpc.UnaryServerInfo{FullMethod: "/mw.peer.v1.PeerService/Ping"}
	resp, err := interceptor(ctx, "req", info, func(ctx context.Context, req any) (any, error) {
		return "pong", nil
	})
	if err != nil || resp != "pong" {
		t.Fatalf("unexpected result %v, %v", resp, err)
	}

	info = &grpc.UnaryServerInfo{FullMethod: "/mw.peer.v1.PeerService/Map"}
	_, err = interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return nil, grpcstatus.Error(grpccodes.InvalidArgument, "bad query")
	})
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}

	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("/mw.peer.v1.PeerService/Ping", "OK")); got != 1 {
		t.Fatalf("ping OK = %v", got)
	}
	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("/mw.peer.v1.PeerService/Map", "InvalidArgument")); got != 1 {
		t.Fatalf("map InvalidArgument = %v", got)
	}
}

func TestNewObservabilityNoOTLP(t *testing.T) {
	obs, err := New(context.Background(), ObsConfig{
		LogLevel:       "info",
		LogFormat:      "json",
		ServiceName:    "test",
		ServiceVersion: "0.0.1",
	}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	switch obs.TracerProvider.(type) {
	case *tracenoop.TracerProvider, tracenoop.TracerProvider:
	default:
		t.Fatalf("expected noop tracer provider, got %T", obs.TracerProvider)
	}
	if err := obs.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestColorLevel(t *testing.T) {
	for lvl, want := range map[slog.Level]string{
		slog.LevelDebug: "DBG",
		slog.LevelInfo:  "INF",
		slog.LevelWarn:  "WRN",
		slog.LevelError: "ERR",
	} {
		if got := colorLevel(lvl); !strings.Contains(got, want) {
			t.Fatalf("colorLevel(%v) = %q, want %q", lvl, got, want)
		}
	}
}

func TestShutdownRunsOnce(t *testing.T) {
	ran := 0
	sc := &ShutdownCoordinator{}
	sc.Register("h", func(context.Context) error { ran++; return nil })
	_ = sc.Shutdown(context.Background())
	_ = sc.Shutdown(context.Background())
	sc.Register("late", func(context.Context) error { ran++; return nil })
	_ = sc.Shutdown(context.Background())
	if ran != 1 {
		t.Fatalf("handlers ran %d times, want 1", ran)
	}
}

func TestServeMetrics(t *testing.T) {
	obs, err := New(context.Background(), ObsConfig{LogLevel: "error", LogFormat: "json", ServiceName: "mw"}, io.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer obs.Close(context.Background())

	obs.Metrics.SetEndpoints(3)
	addr, err := obs.ServeMetrics(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ServeMetrics: %v", err)
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "mw_endpoints 3") {
		t.Fatalf("metrics output missing mw_endpoints:\n%s", body)
	}

	resp, err = http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestServeMetricsBadAddr(t *testing.T) {
	obs, err := New(context.Background(), ObsConfig{LogFormat: "json"}, io.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := obs.ServeMetrics(context.Background(), "not-an-addr"); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestInitTracerRejectsUnknownProtocol(t *testing.T) {
	if _, err := InitTracer(context.Background(), TracerConfig{Endpoint: "localhost:4318", Protocol: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}

func TestOperationCountsErrorKind(t *testing.T) {
	m := NewMetrics()
	op, _ := StartOperation(context.Background(), m, "node.send")
	op.End(fmt.Errorf("deliver: %w", mwerrors.ErrConnectionFailed))

	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("node.send", "connection_failed")); got != 1 {
		t.Fatalf("errors_total{connection_failed} = %v, want 1", got)
	}
}
