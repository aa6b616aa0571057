package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samaelod/callsim/types"
)

func TestPlayerCompletesReplay(t *testing.T) {
	sim, _ := newTestSimulator(t, Options{})
	mustConnect(t, sim)
	p := NewPlayer(sim)

	steps := sim.BuildCallFlow(types.CallFlowOptions{From: "A", To: "B", Duration: 3, WithScreenPop: true})
	if !p.Start(context.Background(), "flow", steps) {
		t.Fatal("Start() = false")
	}
	p.Wait()

	if st := p.Status("flow"); st != types.ReplayCompleted {
		t.Errorf("Status() = %v, want completed", st)
	}
	res, ok := p.Result("flow")
	if !ok || res.Err != nil || len(res.Events) != 3 {
		t.Errorf("Result() = %+v, %v", res, ok)
	}
	select {
	case got := <-p.Done():
		if got.Name != "flow" {
			t.Errorf("Done() name = %q", got.Name)
		}
	default:
		t.Error("no result on Done()")
	}
	if p.Running() {
		t.Error("Running() after completion")
	}
}

func TestPlayerStop(t *testing.T) {
	sim := NewSimulator(Options{ConnectDelay: time.Millisecond})
	defer sim.Close()
	mustConnect(t, sim)
	p := NewPlayer(sim)

	steps := []types.ScriptedEvent{
		{Type: types.EventCallStart, EventFields: types.EventFields{CallID: "c"}},
		{Type: types.EventCallEnd, EventFields: types.EventFields{CallID: "c"}, Delay: 60_000},
	}
	p.Start(context.Background(), "c", steps)
	if p.Start(context.Background(), "c", steps) {
		t.Error("second Start() of a running replay succeeded")
	}

	deadline := time.Now().Add(2 * time.Second)
	for sim.CountAllEvents() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !p.IsRunning("c") {
		t.Fatal("replay not running")
	}

	p.Stop("c")
	p.Wait()

	if st := p.Status("c"); st != types.ReplayIdle {
		t.Errorf("Status() after Stop = %v, want idle", st)
	}
	res, _ := p.Result("c")
	if !errors.Is(res.Err, context.Canceled) || len(res.Events) != 1 {
		t.Errorf("Result() = %+v", res)
	}
}

func TestPlayerStopAll(t *testing.T) {
	sim := NewSimulator(Options{ConnectDelay: time.Millisecond})
	defer sim.Close()
	mustConnect(t, sim)
	p := NewPlayer(sim)

	long := []types.ScriptedEvent{{Type: types.EventCallStart, Delay: 60_000}}
	p.Start(context.Background(), "a", long)
	p.Start(context.Background(), "b", long)

	p.StopAll()
	p.Wait()

	for _, name := range []string{"a", "b"} {
		if st := p.Status(name); st != types.ReplayIdle {
			t.Errorf("Status(%s) = %v, want idle", name, st)
		}
	}
}

func TestPlayerReportsNotConnected(t *testing.T) {
	sim, _ := newTestSimulator(t, Options{})
	p := NewPlayer(sim)

	p.Start(context.Background(), "script", []types.ScriptedEvent{{Type: types.EventCallStart}})
	p.Wait()

	if st := p.Status("script"); st != types.ReplayError {
		t.Errorf("Status() = %v, want error", st)
	}
	res, _ := p.Result("script")
	if !errors.Is(res.Err, ErrNotConnected) {
		t.Errorf("Result().Err = %v", res.Err)
	}
	if p.Status("unknown") != types.ReplayIdle {
		t.Error("unknown replay is not idle")
	}
}
