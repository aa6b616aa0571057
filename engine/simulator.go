package engine

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samaelod/callsim/types"
)

const (
	defaultConnectDelay   = 100 * time.Millisecond
	defaultReconnectDelay = time.Second
)

// Options configures a Simulator. Zero values select defaults.
type Options struct {
	// AutoReconnect and ReconnectDelay are not acted on by the simulator;
	// they are carried for callers that re-establish the connection.
	AutoReconnect  bool
	ReconnectDelay time.Duration

	MaxLogSize   int           // events retained, default 1000
	ConnectDelay time.Duration // simulated settling time of Connect

	Clock    Clock
	Registry *Registry // shared listener registry; private when nil
	Logger   *Logger   // diagnostics; in-memory when nil
}

// Simulator is an in-process telephony event source for tests. It owns the
// connection state, the bounded event log and call id generation.
type Simulator struct {
	id        string
	opts      Options
	clock     Clock
	listeners *Registry
	log       *Logger
	ownsLog   bool

	mu               sync.Mutex
	connected        bool
	connectedAt      *time.Time
	disconnectedAt   *time.Time
	eventsProcessed  int
	callCounter      uint64
	listenerFailures int
	events           *eventLog
}

// NewSimulator creates a disconnected simulator.
func NewSimulator(opts Options) *Simulator {
	if opts.MaxLogSize <= 0 {
		opts.MaxLogSize = defaultMaxLogSize
	}
	if opts.ConnectDelay <= 0 {
		opts.ConnectDelay = defaultConnectDelay
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}

	s := &Simulator{
		id:        uuid.NewString(),
		opts:      opts,
		clock:     opts.Clock,
		listeners: opts.Registry,
		log:       opts.Logger,
		events:    newEventLog(opts.MaxLogSize),
	}
	if s.listeners == nil {
		s.listeners = NewRegistry()
	}
	if s.log == nil {
		s.log = NewLogger("", defaultLogLines)
		s.ownsLog = true
	}
	s.log.withSession(s.id, s.clock)

	return s
}

func (s *Simulator) ID() string           { return s.id }
func (s *Simulator) Options() Options     { return s.opts }
func (s *Simulator) Listeners() *Registry { return s.listeners }
func (s *Simulator) Log() *Logger         { return s.log }

// Close releases the diagnostic logger when the simulator created it.
func (s *Simulator) Close() {
	if s.ownsLog {
		s.log.Close()
	}
}

// Connect waits the configured settling delay, then marks the simulator
// connected. Calling it while connected only refreshes the timestamps.
func (s *Simulator) Connect(ctx context.Context) error {
	select {
	case <-s.clock.After(s.opts.ConnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	now := s.clock.Now()
	s.connected = true
	s.connectedAt = &now
	s.disconnectedAt = nil
	status := s.statusLocked()
	s.mu.Unlock()

	s.log.Printf("Connected")
	s.report(s.listeners.NotifyLifecycle(SignalConnected, status))
	return nil
}

// Disconnect is safe to call when already disconnected.
func (s *Simulator) Disconnect() {
	s.mu.Lock()
	now := s.clock.Now()
	s.connected = false
	s.disconnectedAt = &now
	status := s.statusLocked()
	s.mu.Unlock()

	s.log.Printf("Disconnected")
	s.report(s.listeners.NotifyLifecycle(SignalDisconnected, status))
}

func (s *Simulator) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Simulator) ConnectionStatus() types.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Simulator) statusLocked() types.ConnectionStatus {
	st := types.ConnectionStatus{
		Connected:       s.connected,
		EventsProcessed: s.eventsProcessed,
	}
	if s.connectedAt != nil {
		t := *s.connectedAt
		st.ConnectedAt = &t
	}
	if s.disconnectedAt != nil {
		t := *s.disconnectedAt
		st.DisconnectedAt = &t
	}
	return st
}

// GenerateCallID returns a new id, unique within this simulator until Reset.
func (s *Simulator) GenerateCallID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextCallIDLocked()
}

func (s *Simulator) nextCallIDLocked() string {
	s.callCounter++
	return fmt.Sprintf("call-%d-%d", s.clock.Now().UnixMilli(), s.callCounter)
}

// EmitEvent records an event of type t and delivers it to listeners before
// returning. It fails with *NotConnectedError while disconnected.
func (s *Simulator) EmitEvent(t types.EventType, fields types.EventFields) (types.Event, error) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return types.Event{}, &NotConnectedError{Op: "emit " + string(t)}
	}

	if fields.CallID == "" {
		fields.CallID = s.nextCallIDLocked()
	}
	if fields.Payload != nil {
		fields.Payload = maps.Clone(fields.Payload)
	}

	ev := types.Event{
		Type:        t,
		Timestamp:   s.clock.Now(),
		EventFields: fields,
	}
	s.events.append(ev)
	s.eventsProcessed++
	s.mu.Unlock()

	s.log.Printf("Emitted %s", ev)
	s.report(s.listeners.Notify(ev))
	return ev, nil
}

func (s *Simulator) report(errs []error) {
	if len(errs) == 0 {
		return
	}
	s.mu.Lock()
	s.listenerFailures += len(errs)
	s.mu.Unlock()

	for _, err := range errs {
		s.log.Printf("Listener error: %v", err)
	}
}

// OnEvent, OnEventType and OnceEvent register on the simulator's registry.
func (s *Simulator) OnEvent(fn Listener) func() { return s.listeners.OnEvent(fn) }

func (s *Simulator) OnEventType(t types.EventType, fn Listener) func() {
	return s.listeners.OnEventType(t, fn)
}

func (s *Simulator) OnceEvent(fn Listener) func() { return s.listeners.OnceEvent(fn) }

func (s *Simulator) OnLifecycle(fn LifecycleListener) func() { return s.listeners.OnLifecycle(fn) }

// EventLog returns a copy of the retained events, oldest first.
func (s *Simulator) EventLog() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.all()
}

func (s *Simulator) EventsByType(t types.EventType) []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.filter(func(ev types.Event) bool { return ev.Type == t })
}

func (s *Simulator) EventsByCallID(callID string) []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.filter(func(ev types.Event) bool { return ev.CallID == callID })
}

func (s *Simulator) LastEvent() (types.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.lastMatching(func(types.Event) bool { return true })
}

func (s *Simulator) LastEventByType(t types.EventType) (types.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.lastMatching(func(ev types.Event) bool { return ev.Type == t })
}

func (s *Simulator) HasEvent(t types.EventType) bool {
	_, ok := s.LastEventByType(t)
	return ok
}

func (s *Simulator) CountEvents(t types.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.count(func(ev types.Event) bool { return ev.Type == t })
}

func (s *Simulator) CountAllEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.size()
}

// ClearLog empties the log. Connection state and counters are kept.
func (s *Simulator) ClearLog() {
	s.mu.Lock()
	s.events.clear()
	s.mu.Unlock()
	s.log.Printf("Event log cleared")
}

// Reset returns the simulator to its freshly constructed state: empty log,
// zeroed counters, no listeners, disconnected.
func (s *Simulator) Reset() {
	s.mu.Lock()
	s.events.clear()
	s.eventsProcessed = 0
	s.callCounter = 0
	s.listenerFailures = 0
	s.connected = false
	s.connectedAt = nil
	s.disconnectedAt = nil
	s.mu.Unlock()

	s.listeners.Clear()
	s.log.Printf("Simulator reset")
}

// Stats counts by type over the retained log, not over the lifetime.
func (s *Simulator) Stats() types.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Stats{
		EventsProcessed:  s.eventsProcessed,
		LogSize:          s.events.size(),
		EventsByType:     s.events.countByType(),
		ListenerFailures: s.listenerFailures,
	}
}
