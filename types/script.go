package types

import "fmt"

type Script struct {
	Globals Globals         `yaml:"globals"`
	Events  []ScriptedEvent `yaml:"events"`

	CallsByID map[string][]ScriptedEvent `yaml:"-"` // Pre-indexed steps by call id
	CallOrder []string                   `yaml:"-"` // Call ids in first-appearance order
}

type Globals struct {
	Name         string `yaml:"name,omitempty"`
	Source       string `yaml:"source,omitempty"`        // "lua" | "yaml" | "pcap"
	MaxLogSize   int    `yaml:"max_log_size,omitempty"`  // 0 keeps the app default
	ConnectDelay int    `yaml:"connect_delay,omitempty"` // ms, 0 keeps the app default
}

// IndexCalls populates CallsByID and CallOrder. Steps without a call id
// are grouped under the empty id.
func (s *Script) IndexCalls() {
	s.CallsByID = make(map[string][]ScriptedEvent)
	s.CallOrder = s.CallOrder[:0]
	for _, ev := range s.Events {
		if _, seen := s.CallsByID[ev.CallID]; !seen {
			s.CallOrder = append(s.CallOrder, ev.CallID)
		}
		s.CallsByID[ev.CallID] = append(s.CallsByID[ev.CallID], ev)
	}
}

// TotalDelay returns the sum of all step delays in milliseconds.
func (s *Script) TotalDelay() int {
	total := 0
	for _, ev := range s.Events {
		if ev.Delay > 0 {
			total += ev.Delay
		}
	}
	return total
}

func (s *Script) Validate() error {
	if s.Globals.MaxLogSize < 0 {
		return fmt.Errorf("globals: negative max_log_size %d", s.Globals.MaxLogSize)
	}
	if s.Globals.ConnectDelay < 0 {
		return fmt.Errorf("globals: negative connect_delay %d", s.Globals.ConnectDelay)
	}
	for i, ev := range s.Events {
		if ev.Type == "" {
			return fmt.Errorf("event %d: missing type", i)
		}
		if ev.Delay < 0 {
			return fmt.Errorf("event %d: negative delay %d", i, ev.Delay)
		}
		if ev.Duration < 0 {
			return fmt.Errorf("event %d: negative duration %d", i, ev.Duration)
		}
	}
	return nil
}
