package control

import (
	"sync"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ output.StatusSink = (*Broadcaster)(nil)

const subscriberBuffer = 32

// Broadcaster fans status messages out to every connected control client.
// A client that falls behind loses messages instead of blocking the session.
type Broadcaster struct {
	logger output.LoggerPort

	mu   sync.Mutex
	subs map[chan entity.ControlMessage]struct{}
	last *entity.ControlMessage
}

func NewBroadcaster(logger output.LoggerPort) *Broadcaster {
	return &Broadcaster{
		logger: logger.WithField("component", "broadcaster"),
		subs:   make(map[chan entity.ControlMessage]struct{}),
	}
}

func (b *Broadcaster) Publish(msg entity.ControlMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Action == entity.ActionStatusUpdate {
		b.last = &msg
	}
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.logger.Warn("Dropping status for slow client", "action", msg.Action)
		}
	}
}

// Subscribe returns a channel of published messages and a cancel func that
// closes it.
func (b *Broadcaster) Subscribe() (<-chan entity.ControlMessage, func()) {
	ch := make(chan entity.ControlMessage, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// LastStatus is the most recent status_update, if any.
func (b *Broadcaster) LastStatus() (entity.ControlMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return entity.ControlMessage{}, false
	}
	return *b.last, true
}
