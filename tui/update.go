package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/samaelod/callsim/engine"
	"github.com/samaelod/callsim/lua"
	"github.com/samaelod/callsim/script"
	"github.com/samaelod/callsim/types"
)

func setupSessionLog(logsDir, loadedFilePath string) {
	baseName := filepath.Base(loadedFilePath)
	ext := filepath.Ext(baseName)
	nameWithoutExt := strings.TrimSuffix(baseName, ext)

	logFilename := fmt.Sprintf("%s.session.log", nameWithoutExt)
	logPath := filepath.Join(logsDir, logFilename)

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
		return
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		log.Printf("Failed to open log file: %v", err)
		return
	}

	log.SetOutput(f)
	log.Printf("Session started with file: %s", loadedFilePath)
}

func openLogsInEditor(logContent string) tea.Cmd {
	// Create temp file first
	f, err := os.CreateTemp("", "callsim-logs-*.log")
	if err != nil {
		return func() tea.Msg { return logErrorMsg{err} }
	}

	_, err = f.WriteString(logContent)
	if err != nil {
		return func() tea.Msg { return logErrorMsg{err} }
	}
	f.Close()
	tempPath := f.Name()

	// Open in editor using tea.ExecProcess
	c := exec.Command(editorCommand(), tempPath)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		// Clean up temp file after editor closes
		os.Remove(tempPath)
		return nil
	})
}

func editorCommand() string {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "nano"
	}
	return editor
}

// shutdown stops replays and flushes the session log.
func (m Model) shutdown() {
	if m.player != nil {
		m.player.StopAll()
		m.player.Wait()
	}
	if m.sim != nil {
		m.sim.Close()
	}
	m.logger.Close()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Width: 1/3 for lists, 2/3 for details and logs. Sync logic with View
		availWidth := msg.Width - 4
		listWidth := defaultListWidth
		if listWidth > availWidth/3 {
			listWidth = availWidth / 3
		}
		if listWidth < minListWidth {
			listWidth = minListWidth
		}

		m.fileBrowser.SetSize(listWidth-4, msg.Height-7)
		if m.screen == screenViewScript {
			listHeight := (msg.Height - 7) / 2
			m.stepList.SetSize(listWidth-3, listHeight)
			m.callList.SetSize(listWidth-3, listHeight)

			availHeight := msg.Height - 5
			var logsHeight int
			if m.activeView == 1 {
				logsHeight = int(float64(availHeight) * 0.7)
			} else {
				logsHeight = int(float64(availHeight) * 0.4)
			}
			detailsHeight := availHeight - logsHeight
			if detailsHeight < 10 {
				logsHeight = availHeight - 10
			}

			vpHeight := logsHeight - 7 // -1 (Title) - 4 (Panel Border/Pad)
			if vpHeight < 0 {
				vpHeight = 0
			}

			m.logViewport.Width = availWidth - listWidth - 4 - 2 // -2 for panel border
			m.logViewport.Height = vpHeight
		}

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	}

	// Handle global messages (like script loaded) regardless of screen
	switch msg := msg.(type) {
	case scriptLoadedMsg:
		return m.applyScript(msg)

	case errMsg:
		m.err = msg.err
		return m, nil

	case editorFinishedMsg:
		// Stop all running replays before reloading the script
		if m.player != nil {
			m.player.StopAll()
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m, loadScriptCmd(m.selectedFile, false)

	case logMsg:
		// Get all logs from the session logger (handles file I/O internally)
		if m.logger != nil {
			m.refreshLogs()
			return m, waitForLog(m.logger)
		}
		return m, nil

	case connectedMsg:
		m.connecting = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		if msg.then != nil && msg.sim == m.sim {
			m.startReplay(msg.then.name, msg.then.steps)
		}
		return m, nil

	case replayDoneMsg:
		if msg.player != m.player {
			return m, nil
		}
		if msg.result.Err != nil && !errors.Is(msg.result.Err, context.Canceled) {
			m.err = msg.result.Err
		}
		m.refreshLogs()
		return m, waitForReplay(m.player)
	}

	switch m.screen {

	case screenSourceSelect:
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch msg.String() {
			case "up", "k", "left", "h":
				m.menuCursor--
				if m.menuCursor < 0 {
					m.menuCursor = len(sources) - 1
				}
			case "down", "j", "right", "l":
				m.menuCursor++
				if m.menuCursor >= len(sources) {
					m.menuCursor = 0
				}
			case "enter":
				src := sources[m.menuCursor]
				m.source = src.kind
				m.fileBrowser = NewFileBrowser(src.extensions)

				// Resize filepicker (Height - WindowChrome(3) - PanelChrome(4) = -7)
				listWidth := m.width / 3
				m.fileBrowser.SetSize(listWidth-4, m.height-7) // Adjusted for split view
				m.screen = screenFilePicker
				return m, nil // Browser doesn't need Init cmd
			}
		}
		return m, nil

	case screenFilePicker:
		var cmd tea.Cmd
		m.fileBrowser, cmd = m.fileBrowser.Update(msg)

		// Check if a file was confirmed (Enter key on a file item)
		if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
			item := m.fileBrowser.List.SelectedItem()
			if item != nil {
				fi, ok := item.(fileItem)
				if !ok || fi.isDir {
					return m, nil
				}

				if !m.fileBrowser.allows(fi.name) {
					// Ignore selection of invalid file types
					return m, nil
				}

				path := fi.path
				m.screen = screenLoading
				m.err = nil
				log.Println("\n  You selected: " + path + "\n")
				// Captures are converted once and edited as Lua from then on
				return m, loadScriptCmd(path, m.source == sourceCapture)
			}
		}

		return m, cmd

	case screenLoading:
		if msg, ok := msg.(tea.KeyMsg); ok && m.err != nil && msg.String() == "esc" {
			m.err = nil
			m.screen = screenFilePicker
		}
		return m, nil
	}

	if m.screen == screenViewScript {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		// Custom Key Handling for the script view
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch msg.String() {
			case "tab", "shift+tab":
				m.activeView++
				if m.activeView > 1 {
					m.activeView = 0
				}
				// Simulate a resize with current dimensions so panels resize immediately
				return m, func() tea.Msg { return tea.WindowSizeMsg{Width: m.width, Height: m.height} }

			case "e":
				if m.activeView == 0 {
					c := exec.Command(editorCommand(), m.selectedFile)
					return m, tea.ExecProcess(c, func(err error) tea.Msg {
						return editorFinishedMsg{err}
					})
				}
				// Open logs in editor (Logs focused)
				return m, openLogsInEditor(m.logContent)

			case "u":
				if m.activeView == 0 {
					if m.player != nil {
						m.player.StopAll()
					}
					return m, loadScriptCmd(m.selectedFile, false)
				}

			case "c":
				if m.sim == nil || m.connecting {
					return m, nil
				}
				if m.sim.IsConnected() {
					m.sim.Disconnect()
					return m, nil
				}
				m.connecting = true
				return m, connectCmd(m.sim, 0, nil)

			case "r":
				if m.activeView == 0 && m.sim != nil {
					name, steps, ok := m.selectedReplay()
					if !ok {
						return m, nil
					}
					if m.sim.IsConnected() {
						m.startReplay(name, steps)
						return m, nil
					}
					if m.cfg.AutoReconnect && !m.connecting {
						m.connecting = true
						m.logger.Printf("Reconnecting before replay %q", name)
						delay := m.sim.Options().ReconnectDelay
						return m, connectCmd(m.sim, delay, &replayRequest{name, steps})
					}
					m.logger.Printf("Not connected, press c to connect")
				}

			case "s":
				if m.activeView == 0 && m.player != nil {
					if name, _, ok := m.selectedReplay(); ok {
						m.player.Stop(name)
					}
				}

			case "x":
				if m.sim != nil {
					m.sim.ClearLog()
				}

			case "R":
				if m.sim != nil {
					m.player.StopAll()
					m.player.Wait()
					m.sim.Reset()
					m.err = nil
				}

			case "left", "h":
				if m.activeView == 0 {
					m.activeListPanel = panelSteps
				}
			case "right", "l":
				if m.activeView == 0 {
					m.activeListPanel = panelCalls
				}
			case "g":
				if m.activeView == 1 {
					m.logViewport.GotoTop()
				}
			case "G":
				if m.activeView == 1 {
					m.logViewport.GotoBottom()
				}
			}
		}

		// Conditional Update based on Focus
		if m.activeView == 0 {
			if m.activeListPanel == panelSteps {
				m.stepList, cmd = m.stepList.Update(msg)
			} else {
				m.callList, cmd = m.callList.Update(msg)
			}
			cmds = append(cmds, cmd)
		} else {
			// Update Logs Viewport only when focused
			m.logViewport, cmd = m.logViewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// applyScript replaces the loaded script, creating a fresh simulator,
// player and session logger for it.
func (m Model) applyScript(msg scriptLoadedMsg) (tea.Model, tea.Cmd) {
	m.shutdown()

	m.script = msg.script
	m.err = nil
	if msg.path != "" {
		m.selectedFile = msg.path
		setupSessionLog(m.cfg.LogsDir, msg.path)
	}

	// Steps list
	stepItems := make([]list.Item, 0, len(m.script.Events))
	for i, step := range m.script.Events {
		stepItems = append(stepItems, stepItem{index: i, step: step})
	}
	m.stepList = list.New(stepItems, stepsDelegate{}, defaultListWidth, (m.height-7)/2)
	m.stepList.SetShowHelp(false)
	m.stepList.SetShowTitle(false)

	// Calls list
	callItems := make([]list.Item, 0, len(m.script.CallOrder))
	for _, id := range m.script.CallOrder {
		callItems = append(callItems, callItem{id: id, steps: len(m.script.CallsByID[id])})
	}
	m.callList = list.New(callItems, callsDelegate{}, defaultListWidth, (m.height-7)/2)
	m.callList.SetShowHelp(false)
	m.callList.SetShowTitle(false)

	// Default to steps panel
	m.activeListPanel = panelSteps

	logPath := ""
	if m.selectedFile != "" {
		baseName := filepath.Base(m.selectedFile)
		nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
		logPath = filepath.Join(m.cfg.LogsDir, nameWithoutExt+".log")
	}
	m.logger = engine.NewLogger(logPath, m.cfg.LogLines)

	opts := m.cfg.OptionsFor(m.script.Globals)
	opts.Logger = m.logger
	m.sim = engine.NewSimulator(opts)
	m.player = engine.NewPlayer(m.sim)
	m.connecting = false

	m.screen = screenViewScript

	// Init Viewport; actual size is set in view or resize
	m.logViewport = viewport.New(10, 10)
	m.logger.Printf("Loaded %q: %d steps, %d calls (%s)",
		m.script.Globals.Name, len(m.script.Events), len(m.script.CallOrder), m.script.Globals.Source)
	m.logger.Printf("Press c to connect, r to run")
	m.refreshLogs()

	return m, tea.Batch(
		waitForLog(m.logger),
		waitForReplay(m.player),
		func() tea.Msg { return tea.WindowSizeMsg{Width: m.width, Height: m.height} },
	)
}

func (m *Model) startReplay(name string, steps []types.ScriptedEvent) {
	if !m.player.Start(context.Background(), name, steps) {
		m.logger.Printf("Replay %q is already running", name)
	}
}

func (m *Model) refreshLogs() {
	m.logContent = m.logger.ReadAll()
	m.logViewport.SetContent(m.logContent)
	m.logViewport.GotoBottom()
}

func loadScriptCmd(path string, saveCopy bool) tea.Cmd {
	return func() tea.Msg {
		s, err := script.Load(path)
		if err != nil {
			return errMsg{err}
		}

		finalPath := path
		if saveCopy {
			newPath, err := lua.SaveToRecent(s, path)
			if err != nil {
				return errMsg{err}
			}
			finalPath = newPath
		}

		return scriptLoadedMsg{script: s, path: finalPath}
	}
}

// connectCmd connects sim after delay and optionally starts a replay.
func connectCmd(sim *engine.Simulator, delay time.Duration, then *replayRequest) tea.Cmd {
	return func() tea.Msg {
		if delay > 0 {
			time.Sleep(delay)
		}
		err := sim.Connect(context.Background())
		return connectedMsg{sim: sim, err: err, then: then}
	}
}

type scriptLoadedMsg struct {
	script *types.Script
	path   string
}

type replayRequest struct {
	name  string
	steps []types.ScriptedEvent
}

type connectedMsg struct {
	sim  *engine.Simulator
	err  error
	then *replayRequest
}

type replayDoneMsg struct {
	player *engine.Player
	result engine.Result
}

type errMsg struct{ err error }
type editorFinishedMsg struct{ err error }
type logErrorMsg struct{ err error }
type logMsg string

func waitForLog(logger *engine.Logger) tea.Cmd {
	return func() tea.Msg {
		ch := logger.Chan()
		if ch == nil {
			return nil
		}
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg(msg)
	}
}

func waitForReplay(player *engine.Player) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-player.Done()
		if !ok {
			return nil
		}
		return replayDoneMsg{player: player, result: res}
	}
}
