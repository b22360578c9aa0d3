package session

import (
	"sync"
	"time"
)

// readReceiptDelay is how long rapid mark-as-read triggers are coalesced
// before one network call goes out.
const readReceiptDelay = 500 * time.Millisecond

// readReceiptDebouncer collapses repeated mark-as-read triggers per
// conversation into a single delayed flush. At most one timer exists per
// conversation id; the latest schedule always wins.
type readReceiptDebouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
	flush  func(conversationID string)
}

func newReadReceiptDebouncer(delay time.Duration, flush func(string)) *readReceiptDebouncer {
	return &readReceiptDebouncer{
		delay:  delay,
		timers: make(map[string]*time.Timer),
		flush:  flush,
	}
}

// schedule cancels any pending flush for the conversation and arms a new one.
func (d *readReceiptDebouncer) schedule(conversationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[conversationID]; ok {
		t.Stop()
	}
	d.timers[conversationID] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, conversationID)
		d.mu.Unlock()
		d.flush(conversationID)
	})
}

// cancel drops the pending flush for one conversation, if any.
func (d *readReceiptDebouncer) cancel(conversationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[conversationID]; ok {
		t.Stop()
		delete(d.timers, conversationID)
	}
}

// cancelAll clears every pending timer, as on teardown.
func (d *readReceiptDebouncer) cancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}
