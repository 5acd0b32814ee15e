package telemetry

import (
	"bytes"
	"log"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		if got := buf.String(); got != "hello world\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := WithPrefix(WrapLogger(log.New(&buf, "", 0)), "B01")
	logger.Printf("round %d", 3)
	if got := buf.String(); got != "[B01] round 3\n" {
		t.Fatalf("unexpected log output: %q", got)
	}

	buf.Reset()
	WithPrefix(WrapLogger(log.New(&buf, "", 0)), "").Printf("plain")
	if got := buf.String(); got != "plain\n" {
		t.Fatalf("expected no prefix, got %q", got)
	}

	var nilFunc LoggerFunc
	nilFunc.Printf("ignored")
	Discard.Printf("ignored")
}
