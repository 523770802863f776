package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// readSources collects sources from an optional list file followed by args.
// The file is either a JSON array of strings or one URL per line, with blank
// lines and '#' comments ignored.
func readSources(path string, args []string) ([]string, error) {
	var sources []string
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		parsed, err := parseSourceList(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse input file %s: %w", path, err)
		}
		sources = append(sources, parsed...)
	}

	for _, arg := range args {
		if s := strings.TrimSpace(arg); s != "" {
			sources = append(sources, s)
		}
	}
	return sources, nil
}

func parseSourceList(data []byte) ([]string, error) {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "[") {
		var list []string
		if err := json.Unmarshal([]byte(text), &list); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(list))
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
