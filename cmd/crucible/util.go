package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "crucible")
	}
	return ".crucible"
}

func defaultArtifactsDir() string {
	return filepath.Join(defaultDataDir(), "artifacts")
}

// parseInputs merges key=value pairs and an optional JSON document
// into one input map. JSON values win over pair values.
func parseInputs(pairs []string, jsonDoc string) (map[string]interface{}, error) {
	inputs := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q, want key=value", p)
		}
		inputs[key] = value
	}
	if jsonDoc != "" {
		var extra map[string]interface{}
		if err := json.Unmarshal([]byte(jsonDoc), &extra); err != nil {
			return nil, fmt.Errorf("invalid inputs JSON: %w", err)
		}
		for k, v := range extra {
			inputs[k] = v
		}
	}
	return inputs, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
