package lockgate

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func newAuditTestEngine(t *testing.T, cfg Config, sink AuditSink) *testHarness {
	t.Helper()

	mr, rdb := newTestRedis(t)
	t.Cleanup(mr.Close)

	store := newMockCredentialStore()
	sender := &captureSender{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithCodeSender(sender).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testHarness{engine: engine, mr: mr, store: store, sender: sender}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	h := newAuditTestEngine(t, cfg, sink)
	h.seedAccount(t, "u1", "alice@example.com")

	if err := h.engine.RequestLoginCode(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestLoginCode failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if sink.count.Load() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.count.Load())
	}
}

func TestAuditEventCarriesHashNotIdentity(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true

	sink := NewChannelSink(16)
	h := newAuditTestEngine(t, cfg, sink)
	h.seedAccount(t, "u1", "alice@example.com")

	ctx := WithClientIP(context.Background(), "203.0.113.1")
	if err := h.engine.RequestLoginCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestLoginCode failed: %v", err)
	}

	select {
	case event := <-sink.Events():
		if event.EventType != auditEventCodeRequested {
			t.Fatalf("unexpected event type %q", event.EventType)
		}
		if !event.Success {
			t.Fatal("expected success event")
		}
		if event.IdentityHash != h.engine.HashIdentity("alice@example.com") {
			t.Fatalf("unexpected identity hash %q", event.IdentityHash)
		}
		if strings.Contains(event.IdentityHash, "alice") {
			t.Fatal("raw identity leaked into audit event")
		}
		if event.IP != "203.0.113.1" {
			t.Fatalf("expected client IP, got %q", event.IP)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event delivered")
	}
}

func TestAuditFailureEventHasErrorCode(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true

	sink := NewChannelSink(16)
	h := newAuditTestEngine(t, cfg, sink)
	h.seedAccount(t, "u1", "alice@example.com")

	ctx := context.Background()
	if _, err := h.engine.VerifyLoginCode(ctx, "alice@example.com", "123456"); err == nil {
		t.Fatal("expected verification failure")
	}

	select {
	case event := <-sink.Events():
		if event.EventType != auditEventCodeVerifyFailure {
			t.Fatalf("unexpected event type %q", event.EventType)
		}
		if event.Success {
			t.Fatal("expected failure event")
		}
		if event.Error == "" {
			t.Fatal("expected an error code on the failure event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event delivered")
	}
}

func TestAuditDropsWhenBufferFull(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 1
	cfg.Audit.DropIfFull = true

	sink := &gateSink{gate: make(chan struct{})}
	d := newAuditDispatcher(cfg.Audit, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventPINVerifyFailure})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}

	close(sink.gate)
	d.Close()
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventSessionUnlock,
		UserID:    "u1",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventPINLockout,
		UserID:    "u1",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if event.EventType != auditEventSessionUnlock {
		t.Fatalf("unexpected event type %q", event.EventType)
	}
}
