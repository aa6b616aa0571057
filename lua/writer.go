package lua

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/samaelod/callsim/types"
)

func WriteScript(w io.Writer, s *types.Script) error {
	bw := &errWriter{w: w}

	bw.println("local script = {}")
	bw.println()

	// Globals
	bw.println("-- GLOBALS ----------------------------------------")
	bw.println("script.globals = {")
	bw.printf("\tname = %q,\n", s.Globals.Name)
	bw.printf("\tmax_log_size = %d,\n", s.Globals.MaxLogSize)
	bw.printf("\tconnect_delay = %d,\n", s.Globals.ConnectDelay)
	bw.println("}")
	bw.println()

	// Events
	bw.println("-- EVENTS -----------------------------------------")
	bw.println("script.events = {")
	for _, ev := range s.Events {
		bw.println("\t{")
		bw.printf("\t\ttype = %q,\n", ev.Type)
		optString(bw, "call_id", ev.CallID)
		optString(bw, "from", ev.From)
		optString(bw, "to", ev.To)
		optString(bw, "direction", string(ev.Direction))
		optString(bw, "state", string(ev.State))
		if ev.Duration != 0 {
			bw.printf("\t\tduration = %d,\n", ev.Duration)
		}
		optString(bw, "transfer_to", ev.TransferTo)
		if len(ev.Payload) > 0 {
			bw.printf("\t\tpayload = %s,\n", luaValue(ev.Payload, 2))
		}
		bw.printf("\t\tdelay = %d,\n", ev.Delay)
		bw.println("\t},")
	}
	bw.println("}")
	bw.println()
	bw.println("return script")

	return bw.err
}

func optString(bw *errWriter, key, value string) {
	if value != "" {
		bw.printf("\t\t%s = %q,\n", key, value)
	}
}

// luaValue renders a payload value as a Lua literal. Map keys are sorted so
// output is stable.
func luaValue(v any, depth int) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		indent := tabs(depth + 1)
		out := "{\n"
		for _, k := range keys {
			out += fmt.Sprintf("%s[%q] = %s,\n", indent, k, luaValue(val[k], depth+1))
		}
		return out + tabs(depth) + "}"
	case []any:
		out := "{ "
		for _, inner := range val {
			out += luaValue(inner, depth+1) + ", "
		}
		return out + "}"
	default:
		return strconv.Quote(fmt.Sprint(val))
	}
}

func tabs(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "\t"
	}
	return s
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) println(args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, args...)
}
