package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/samaelod/callsim/types"
)

// Result is published when a replay finishes, is stopped or fails.
type Result struct {
	Name   string
	Events []types.Event
	Err    error
}

// Player runs named replays against one simulator on background
// goroutines and tracks their status. A name is typically "script" or a
// call id.
type Player struct {
	sim *Simulator

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	status  map[string]types.ReplayStatus
	results map[string]Result
	wg      sync.WaitGroup

	done chan Result
}

func NewPlayer(sim *Simulator) *Player {
	return &Player{
		sim:     sim,
		active:  make(map[string]context.CancelFunc),
		status:  make(map[string]types.ReplayStatus),
		results: make(map[string]Result),
		done:    make(chan Result, 16),
	}
}

// Start launches steps under name. It returns false if a replay with that
// name is already running.
func (p *Player) Start(ctx context.Context, name string, steps []types.ScriptedEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, running := p.active[name]; running {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.active[name] = cancel
	p.status[name] = types.ReplayRunning
	delete(p.results, name)

	p.wg.Add(1)
	go p.run(runCtx, name, steps)
	return true
}

func (p *Player) run(ctx context.Context, name string, steps []types.ScriptedEvent) {
	defer p.wg.Done()

	p.sim.log.Printf("Replay %q started (%d steps)", name, len(steps))
	events, err := p.sim.Script(ctx, steps)

	status := types.ReplayCompleted
	switch {
	case err == nil:
		p.sim.log.Printf("Replay %q finished", name)
	case errors.Is(err, context.Canceled):
		status = types.ReplayIdle
		p.sim.log.Printf("Replay %q stopped by user", name)
	default:
		status = types.ReplayError
		p.sim.log.Printf("Replay %q failed: %v", name, err)
	}

	res := Result{Name: name, Events: events, Err: err}

	p.mu.Lock()
	if cancel, ok := p.active[name]; ok {
		cancel()
		delete(p.active, name)
	}
	p.status[name] = status
	p.results[name] = res
	p.mu.Unlock()

	select {
	case p.done <- res:
	default:
	}
}

// Stop cancels a running replay. Steps already emitted stay in the log.
func (p *Player) Stop(name string) {
	p.mu.Lock()
	cancel, ok := p.active[name]
	p.mu.Unlock()

	if ok {
		cancel()
	}
}

func (p *Player) StopAll() {
	p.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(p.active))
	for _, cancel := range p.active {
		cancels = append(cancels, cancel)
	}
	p.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if len(cancels) > 0 {
		p.sim.log.Printf("All replays stopped")
	}
}

// Wait blocks until every started replay has returned.
func (p *Player) Wait() {
	p.wg.Wait()
}

func (p *Player) Status(name string) types.ReplayStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[name]
}

func (p *Player) Result(name string) (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.results[name]
	return res, ok
}

func (p *Player) IsRunning(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[name]
	return ok
}

// Running reports whether any replay is in flight.
func (p *Player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active) > 0
}

// Done delivers finished replays. Results are dropped when the channel is
// not drained.
func (p *Player) Done() <-chan Result {
	return p.done
}
