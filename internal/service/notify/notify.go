package notify

import (
	"sync"
	"time"

	"kiosk/internal/logger"
)

const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
	LevelWarning = "warning"
)

const (
	// ChannelToast is the single throttled channel used for recognition results.
	ChannelToast = "toast"
	// ChannelStatus carries session feedback and is never throttled.
	ChannelStatus = "status"
)

// Notification is a user-facing message.
type Notification struct {
	Channel   string    `json:"channel"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers notifications to whatever shows them.
type Publisher interface {
	Publish(n Notification)
}

// Gate suppresses a notification when less than the interval has passed since
// the last one emitted on the same channel. Content is not compared.
type Gate struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewGate creates a gate with the given minimum interval.
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval, now: time.Now, last: make(map[string]time.Time)}
}

// Allow reports whether a message may be emitted on channel now, and if so
// records the emission.
func (g *Gate) Allow(channel string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.last[channel]; ok && now.Sub(last) < g.interval {
		return false
	}
	g.last[channel] = now
	return true
}

// Notifier emits throttled toasts and unthrottled status messages.
type Notifier struct {
	gate      *Gate
	publisher Publisher
	logger    *logger.Logger
}

// NewNotifier creates a notifier. A nil publisher only logs.
func NewNotifier(gate *Gate, publisher Publisher, logger *logger.Logger) *Notifier {
	return &Notifier{gate: gate, publisher: publisher, logger: logger}
}

// Toast emits msg on the toast channel unless the gate is closed. It reports
// whether the message was emitted.
func (n *Notifier) Toast(level, msg string) bool {
	if !n.gate.Allow(ChannelToast) {
		return false
	}
	n.emit(Notification{Channel: ChannelToast, Level: level, Message: msg})
	return true
}

// Status emits msg without throttling.
func (n *Notifier) Status(level, msg string) {
	n.emit(Notification{Channel: ChannelStatus, Level: level, Message: msg})
}

func (n *Notifier) emit(note Notification) {
	note.Timestamp = n.gate.now()
	n.logger.Info("Notification [%s/%s]: %s", note.Channel, note.Level, note.Message)
	if n.publisher != nil {
		n.publisher.Publish(note)
	}
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Notification)

func (f PublisherFunc) Publish(n Notification) { f(n) }
