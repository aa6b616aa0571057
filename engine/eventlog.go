package engine

import "github.com/samaelod/callsim/types"

const defaultMaxLogSize = 1000

// eventLog is the bounded emission log. Past capacity the oldest events
// are dropped. Callers hold the simulator lock.
type eventLog struct {
	r *ring[types.Event]
}

func newEventLog(capacity int) *eventLog {
	if capacity <= 0 {
		capacity = defaultMaxLogSize
	}
	return &eventLog{r: newRing[types.Event](capacity)}
}

func (l *eventLog) append(ev types.Event) { l.r.push(ev) }
func (l *eventLog) size() int             { return l.r.len() }
func (l *eventLog) clear()                { l.r.reset() }
func (l *eventLog) all() []types.Event    { return l.r.slice() }

func (l *eventLog) filter(keep func(types.Event) bool) []types.Event {
	out := []types.Event{}
	for i := 0; i < l.r.len(); i++ {
		if ev := l.r.at(i); keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// lastMatching scans from the tail.
func (l *eventLog) lastMatching(match func(types.Event) bool) (types.Event, bool) {
	for i := l.r.len() - 1; i >= 0; i-- {
		if ev := l.r.at(i); match(ev) {
			return ev, true
		}
	}
	return types.Event{}, false
}

func (l *eventLog) count(match func(types.Event) bool) int {
	n := 0
	for i := 0; i < l.r.len(); i++ {
		if match(l.r.at(i)) {
			n++
		}
	}
	return n
}

func (l *eventLog) countByType() map[types.EventType]int {
	counts := make(map[types.EventType]int)
	for i := 0; i < l.r.len(); i++ {
		counts[l.r.at(i).Type]++
	}
	return counts
}
