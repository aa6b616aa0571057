package tui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/samaelod/callsim/config"
	"github.com/samaelod/callsim/engine"
	"github.com/samaelod/callsim/script"
	"github.com/samaelod/callsim/types"
)

type screen int

const (
	screenSourceSelect screen = iota
	screenFilePicker
	screenLoading
	screenViewScript
)

type sourceType int

const (
	sourceLua sourceType = iota
	sourceYAML
	sourceCapture
)

// sources are offered on the first screen in this order.
var sources = []struct {
	kind       sourceType
	label      string
	extensions []string
}{
	{sourceLua, "Lua Script", script.LuaExtensions},
	{sourceYAML, "YAML Script", script.YAMLExtensions},
	{sourceCapture, "SIP Capture", script.CaptureExtensions},
}

// wholeScript is the replay name used when every step of the script runs.
const wholeScript = "script"

const (
	panelSteps = iota
	panelCalls
)

type Model struct {
	screen screen
	source sourceType

	cfg    *config.Config
	script *types.Script
	err    error

	// fileBrowser for selecting scripts and captures
	fileBrowser FileBrowser

	// Steps of the script and the calls they belong to
	stepList        list.Model
	callList        list.Model
	activeListPanel int // panelSteps or panelCalls

	width        int
	height       int
	selectedFile string

	menuCursor int // index into sources
	activeView int // 0: Steps/Calls lists, 1: Logs Viewport

	version string

	sim         *engine.Simulator
	player      *engine.Player
	logger      *engine.Logger
	connecting  bool
	logViewport viewport.Model
	logContent  string // cached log content for editor
}

const (
	minWindowWidth   = 80
	minWindowHeight  = 20
	defaultListWidth = 34
	minListWidth     = 20
	footerHeight     = 3
)

// selectedReplay returns the replay name and steps for the focused list:
// the whole script from the Steps panel, one call from the Calls panel.
func (m Model) selectedReplay() (string, []types.ScriptedEvent, bool) {
	if m.script == nil || len(m.script.Events) == 0 {
		return "", nil, false
	}
	if m.activeListPanel == panelSteps {
		return wholeScript, m.script.Events, true
	}
	item, ok := m.callList.SelectedItem().(callItem)
	if !ok {
		return "", nil, false
	}
	return item.replayName(), m.script.CallsByID[item.id], true
}
