package lua

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samaelod/callsim/config"
	"github.com/samaelod/callsim/types"
)

// SaveToRecent saves the script as a new Lua file in the recent directory,
// named after the original file with an incrementing suffix. Lua sources
// are copied verbatim, everything else is rendered with WriteScript.
// Returns the path to the newly created file.
func SaveToRecent(s *types.Script, originalPath string) (string, error) {
	appConfig, err := config.LoadDefault()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return saveToDir(s, originalPath, appConfig.RecentDir)
}

func saveToDir(s *types.Script, originalPath, recentDir string) (string, error) {
	if recentDir == "" {
		recentDir = "recent"
	}

	if err := os.MkdirAll(recentDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recent directory: %w", err)
	}

	// foo.pcap -> foo_1.lua, foo_2.lua, ...
	baseName := filepath.Base(originalPath)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))

	counter := 1
	var newPath string
	for {
		newPath = filepath.Join(recentDir, fmt.Sprintf("%s_%d.lua", nameWithoutExt, counter))
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			break
		}
		counter++
	}

	f, err := os.Create(newPath)
	if err != nil {
		return "", fmt.Errorf("failed to create script file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(originalPath, ".lua") {
		src, err := os.Open(originalPath)
		if err != nil {
			return "", fmt.Errorf("failed to open source lua file: %w", err)
		}
		defer src.Close()

		if _, err := io.Copy(f, src); err != nil {
			return "", fmt.Errorf("failed to copy lua content: %w", err)
		}
	} else {
		if err := WriteScript(f, s); err != nil {
			return "", fmt.Errorf("failed to write script to lua: %w", err)
		}
	}

	return newPath, nil
}
