package render

import "strings"

// DefaultMaxLineLength is the longest line, in characters, kept in output.
const DefaultMaxLineLength = 150

// TruncateLines cuts every line of s to at most limit characters and joins the
// lines with "\n". A trailing newline in s is dropped. limit <= 0 disables
// truncation but still normalizes line endings.
func TruncateLines(s string, limit int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if limit > 0 {
			if r := []rune(line); len(r) > limit {
				line = string(r[:limit])
			}
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
