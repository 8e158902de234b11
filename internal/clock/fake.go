package clock

import (
	"sort"
	"sync"
	"time"
)

type fakeWake struct {
	tok Token
	at  time.Time
	fn  func()
}

// Fake is a manually advanced Clock for tests. Due callbacks run on the
// goroutine calling Advance or Set, in wake-time order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	next    Token
	pending []fakeWake
}

// NewFake returns a Fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Schedule(wake time.Time, fn func()) Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	f.pending = append(f.pending, fakeWake{tok: f.next, at: wake, fn: fn})
	return f.next
}

func (f *Fake) Cancel(tok Token) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, w := range f.pending {
		if w.tok == tok {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d and fires every callback that has
// come due, including ones scheduled by callbacks fired along the way.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()
	f.Set(target)
}

// Set moves the clock to t. Moving backwards only changes Now.
func (f *Fake) Set(t time.Time) {
	for {
		f.mu.Lock()
		sort.SliceStable(f.pending, func(i, j int) bool {
			return f.pending[i].at.Before(f.pending[j].at)
		})
		if len(f.pending) == 0 || f.pending[0].at.After(t) {
			f.now = t
			f.mu.Unlock()
			return
		}
		w := f.pending[0]
		f.pending = f.pending[1:]
		if w.at.After(f.now) {
			f.now = w.at
		}
		f.mu.Unlock()
		w.fn()
	}
}

// Jump moves the clock to now+d without firing anything, simulating a
// suspended process whose timers were throttled. Call Fire to deliver the
// late callbacks afterwards.
func (f *Fake) Jump(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Fire runs every callback that is due at the current time.
func (f *Fake) Fire() {
	f.Set(f.Now())
}

// Pending reports the number of scheduled callbacks.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
