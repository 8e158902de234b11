// Package clock wraps wall-clock reads and cancellable wake-ups so the timer
// can be driven by real time in production and by a fake clock in tests.
package clock

import (
	"sync"
	"time"
)

// Token identifies a scheduled wake-up. The zero Token is never issued.
type Token uint64

// Clock is the time source consumed by the timer state machine.
//
// Schedule does not promise punctual delivery: callbacks may fire late or,
// after a long suspension, much later than requested. Consumers must
// recompute from Now() rather than count callbacks.
type Clock interface {
	Now() time.Time
	Schedule(wake time.Time, fn func()) Token
	Cancel(tok Token)
}

// Real is a Clock backed by time.AfterFunc.
type Real struct {
	mu      sync.Mutex
	next    Token
	pending map[Token]*time.Timer
}

// New returns a Clock that uses the system wall clock.
func New() *Real {
	return &Real{pending: make(map[Token]*time.Timer)}
}

func (c *Real) Now() time.Time {
	return time.Now()
}

func (c *Real) Schedule(wake time.Time, fn func()) Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	tok := c.next
	c.pending[tok] = time.AfterFunc(time.Until(wake), func() {
		c.mu.Lock()
		_, live := c.pending[tok]
		delete(c.pending, tok)
		c.mu.Unlock()
		if live {
			fn()
		}
	})
	return tok
}

func (c *Real) Cancel(tok Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.pending[tok]; ok {
		t.Stop()
		delete(c.pending, tok)
	}
}

// Pending reports how many wake-ups are scheduled and not yet fired.
func (c *Real) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
