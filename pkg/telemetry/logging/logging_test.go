package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{"json", func(t *testing.T, out string) {
			var entry map[string]any
			if err := json.Unmarshal([]byte(out), &entry); err != nil {
				t.Fatalf("output is not JSON: %v (%q)", err, out)
			}
			if entry["msg"] != "hello" {
				t.Errorf("msg = %v", entry["msg"])
			}
		}},
		{"text", func(t *testing.T, out string) {
			if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "time=") {
				t.Errorf("unexpected text output %q", out)
			}
		}},
		{"console", func(t *testing.T, out string) {
			if strings.Contains(out, "time=") {
				t.Errorf("console output should omit time: %q", out)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(Config{Level: "info", Format: tt.format, Writer: &buf})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			logger.Info("hello", "k", "v")
			tt.check(t, buf.String())
		})
	}
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("level filtering failed: %q", buf.String())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base, _ := New(Config{Level: "info", Format: "json", Writer: &buf})

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithPolicyID(ctx, "p-orders")
	ctx = WithEntity(ctx, "sales.orders")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	FromContext(ctx, base).Info("step")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for key, want := range map[string]string{
		"run_id":    "run-1",
		"policy_id": "p-orders",
		"entity":    "sales.orders",
		"trace_id":  "0102030405060708090a0b0c0d0e0f10",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %s", key, entry[key], want)
		}
	}
}

func TestFromContext_Empty(t *testing.T) {
	var buf bytes.Buffer
	base, _ := New(Config{Format: "json", Writer: &buf})
	if got := FromContext(context.Background(), base); got != base {
		t.Error("expected the same logger for an empty context")
	}
}
