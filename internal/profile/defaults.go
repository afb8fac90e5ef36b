package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/ptyhost/configs"
)

var defaultProfileFiles = []string{
	"shell.yaml",
	"python-repl.yaml",
}

// ensureDefaults seeds the profile directory with the shipped defaults
// the first time it is used. A directory that already contains any
// profile file is left alone.
func ensureDefaults(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read profiles dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			return nil
		}
	}

	for _, file := range defaultProfileFiles {
		content, err := configs.ProfileDefaults.ReadFile(filepath.Join("profiles", file))
		if err != nil {
			return fmt.Errorf("read embedded default %q: %w", file, err)
		}
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write default %q: %w", path, err)
		}
	}

	return nil
}
