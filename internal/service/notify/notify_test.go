package notify

import (
	"sync"
	"testing"
	"time"

	"kiosk/internal/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Publish(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func newTestGate(interval time.Duration) (*Gate, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)}
	g := NewGate(interval)
	g.now = clock.Now
	return g, clock
}

func TestGate_WithinInterval(t *testing.T) {
	g, clock := newTestGate(3 * time.Second)

	if !g.Allow(ChannelToast) {
		t.Fatal("Expected first message to pass")
	}
	clock.Advance(2999 * time.Millisecond)
	if g.Allow(ChannelToast) {
		t.Error("Expected second message within interval to be suppressed")
	}
}

func TestGate_BeyondInterval(t *testing.T) {
	g, clock := newTestGate(3 * time.Second)

	if !g.Allow(ChannelToast) {
		t.Fatal("Expected first message to pass")
	}
	clock.Advance(3 * time.Second)
	if !g.Allow(ChannelToast) {
		t.Error("Expected message after interval to pass")
	}
}

func TestGate_SuppressedDoesNotExtendWindow(t *testing.T) {
	g, clock := newTestGate(3 * time.Second)

	g.Allow(ChannelToast)
	clock.Advance(2 * time.Second)
	g.Allow(ChannelToast)
	clock.Advance(1 * time.Second)

	if !g.Allow(ChannelToast) {
		t.Error("Expected window to be measured from the last emitted message")
	}
}

func TestGate_ChannelsIndependent(t *testing.T) {
	g, _ := newTestGate(3 * time.Second)

	if !g.Allow("a") || !g.Allow("b") {
		t.Error("Expected different channels not to throttle each other")
	}
}

func TestNotifier_ToastThrottledStatusNot(t *testing.T) {
	g, clock := newTestGate(3 * time.Second)
	rec := &recorder{}
	n := NewNotifier(g, rec, logger.NewDiscard())

	if !n.Toast(LevelSuccess, "Checked in: Alice (Morning)") {
		t.Error("Expected first toast to be emitted")
	}
	if n.Toast(LevelError, "Already checked in") {
		t.Error("Expected second toast to be suppressed regardless of content")
	}
	n.Status(LevelInfo, "Camera Started")
	n.Status(LevelInfo, "Camera Started")

	clock.Advance(4 * time.Second)
	n.Toast(LevelSuccess, "Checked in: Bob (Morning)")

	if len(rec.notes) != 4 {
		t.Fatalf("Expected 4 notifications, got %d: %+v", len(rec.notes), rec.notes)
	}
	if rec.notes[0].Message != "Checked in: Alice (Morning)" || rec.notes[0].Channel != ChannelToast {
		t.Errorf("Unexpected first notification: %+v", rec.notes[0])
	}
	if rec.notes[3].Message != "Checked in: Bob (Morning)" {
		t.Errorf("Unexpected last notification: %+v", rec.notes[3])
	}
}
