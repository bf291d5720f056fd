package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadRequest decodes a YAML or JSON file into v. The extension picks the
// decoder; other files are tried as YAML, then JSON.
func LoadRequest(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cli: read request: %w", err)
	}
	return ParseRequest(data, path, v)
}

func ParseRequest(data []byte, name string, v any) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("cli: parse %s: %w", name, err)
		}
		return nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("cli: parse %s: %w", name, err)
		}
		return nil
	}
	if yerr := yaml.Unmarshal(data, v); yerr != nil {
		if jerr := json.Unmarshal(data, v); jerr != nil {
			return fmt.Errorf("cli: parse %s: not YAML (%v) or JSON (%v)", name, yerr, jerr)
		}
	}
	return nil
}
