package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tigawanna/pomodoro-panda/internal/completion"
	"github.com/tigawanna/pomodoro-panda/internal/logging"
	"github.com/tigawanna/pomodoro-panda/internal/timer"
)

// pump queues messages from timer and bridge callbacks and feeds them to
// the program in order. push never blocks, so callbacks fired from inside
// Update cannot deadlock the event loop.
type pump struct {
	mu    sync.Mutex
	queue []tea.Msg
	wake  chan struct{}
}

func newPump() *pump {
	return &pump{wake: make(chan struct{}, 1)}
}

func (p *pump) push(msg tea.Msg) {
	p.mu.Lock()
	p.queue = append(p.queue, msg)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pump) drain() []tea.Msg {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.queue
	p.queue = nil
	return msgs
}

func (p *pump) run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			for _, msg := range p.drain() {
				send(msg)
			}
		}
	}
}

// attach subscribes the pump to timer state changes and completion events.
func (p *pump) attach(t *timer.Timer, b *completion.Bridge) (detach func()) {
	unsubState := t.Subscribe(func(timer.State) {
		p.push(timerChangedMsg{})
	})
	unsubEvents := b.Subscribe(func(ev completion.Event) {
		p.push(completionMsg{event: ev})
	})
	return func() {
		unsubState()
		unsubEvents()
	}
}

// Run starts the interactive program and blocks until it exits.
func Run(ctx context.Context, d Deps, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewApp(d), opts...)

	q := newPump()
	detach := q.attach(d.Timer, d.Bridge)
	defer detach()

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go q.run(pumpCtx, p.Send)

	logging.Info("tui", "starting")
	_, err := p.Run()
	logging.Info("tui", "stopped err=%v", err)
	return err
}
