package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDir reads and parses every .sql template in dir, one Template per
// file, named after the file's base name. Hidden files and non-SQL files
// are skipped. Templates are returned in name order.
func LoadDir(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	var templates []*Template
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", path, err)
		}

		tmpl, err := Parse(strings.TrimSuffix(name, ".sql"), string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		templates = append(templates, tmpl)
	}

	return templates, nil
}
