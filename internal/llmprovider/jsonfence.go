package llmprovider

import "strings"

// StripCodeFence removes a single leading/trailing markdown code fence
// (```json ... ``` or ``` ... ```) that LLMs routinely wrap JSON
// responses in, and trims surrounding whitespace. Text without a fence
// passes through unchanged.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}

	// Drop the opening fence line (``` or ```json).
	lines = lines[1:]

	// Drop a trailing fence line, if present.
	if last := len(lines) - 1; last >= 0 && strings.TrimSpace(lines[last]) == "```" {
		lines = lines[:last]
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
