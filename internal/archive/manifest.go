package archive

import (
	"bufio"
	"bytes"
	"strings"
)

// parseJavaManifest parses the key: value lines of a META-INF/MANIFEST.MF
// file, folding continuation lines (which start with a single space) back
// onto the previous key per the jar manifest spec.
func parseJavaManifest(data []byte) map[string]string {
	result := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var lastKey string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, " ") {
			if lastKey != "" {
				result[lastKey] += strings.TrimPrefix(line, " ")
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimPrefix(value, " ")
		result[name] = value
		lastKey = name
	}
	return result
}

// firstNonEmpty returns the first non-empty string among candidates.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
