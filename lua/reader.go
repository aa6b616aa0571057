package lua

import (
	"fmt"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"

	"github.com/samaelod/callsim/types"
)

// Lua-side shape of a script. Keys are kept verbatim so payload tables
// reach the event unchanged.
type luaScript struct {
	Globals luaGlobals `gluamapper:"globals"`
	Events  []luaEvent `gluamapper:"events"`
}

type luaGlobals struct {
	Name         string `gluamapper:"name"`
	MaxLogSize   int    `gluamapper:"max_log_size"`
	ConnectDelay int    `gluamapper:"connect_delay"`
}

type luaEvent struct {
	Type       string                 `gluamapper:"type"`
	CallID     string                 `gluamapper:"call_id"`
	From       string                 `gluamapper:"from"`
	To         string                 `gluamapper:"to"`
	Direction  string                 `gluamapper:"direction"`
	State      string                 `gluamapper:"state"`
	Duration   int                    `gluamapper:"duration"`
	TransferTo string                 `gluamapper:"transfer_to"`
	Payload    map[string]interface{} `gluamapper:"payload"`
	Delay      int                    `gluamapper:"delay"`
}

var mapper = gluamapper.NewMapper(gluamapper.Option{
	NameFunc: func(s string) string { return s },
})

func ReadLuaScript(path string) (*types.Script, error) {
	L := lua.NewState()
	defer L.Close()

	// Execute Lua file
	if err := L.DoFile(path); err != nil {
		return nil, err
	}

	// Lua file returns script table
	lv := L.Get(-1)
	table, ok := lv.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua file did not return a table")
	}

	var raw luaScript
	if err := mapper.Map(table, &raw); err != nil {
		return nil, err
	}

	script := raw.toScript()
	if err := script.Validate(); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	script.IndexCalls()
	return script, nil
}

func (raw luaScript) toScript() *types.Script {
	s := &types.Script{
		Globals: types.Globals{
			Name:         raw.Globals.Name,
			Source:       "lua",
			MaxLogSize:   raw.Globals.MaxLogSize,
			ConnectDelay: raw.Globals.ConnectDelay,
		},
		Events: make([]types.ScriptedEvent, 0, len(raw.Events)),
	}

	for _, ev := range raw.Events {
		s.Events = append(s.Events, types.ScriptedEvent{
			Type: types.EventType(ev.Type),
			EventFields: types.EventFields{
				CallID:     ev.CallID,
				From:       ev.From,
				To:         ev.To,
				Direction:  types.Direction(ev.Direction),
				State:      types.CallState(ev.State),
				Duration:   ev.Duration,
				TransferTo: ev.TransferTo,
				Payload:    normalizePayload(ev.Payload),
			},
			Delay: ev.Delay,
		})
	}
	return s
}

// normalizePayload turns Lua numbers that hold integers back into ints and
// nested tables into string-keyed maps.
func normalizePayload(m map[string]interface{}) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) any {
	switch val := v.(type) {
	case float64:
		if val == float64(int64(val)) {
			return int(val)
		}
		return val
	case map[interface{}]interface{}:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return out
	case []interface{}:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return val
	}
}
