package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/samaelod/callsim/config"
)

func New(version string, cfg *config.Config) Model {
	if cfg == nil {
		cfg = config.Default()
	}

	var all []string
	for _, src := range sources {
		all = append(all, src.extensions...)
	}
	fb := NewFileBrowser(all)

	return Model{
		screen:      screenSourceSelect,
		cfg:         cfg,
		fileBrowser: fb,
		menuCursor:  0,
		version:     version,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func Run(version string, cfg *config.Config) error {
	p := tea.NewProgram(New(version, cfg), tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.shutdown()
	}
	return err
}
