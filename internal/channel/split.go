package channel

import (
	"strings"
	"unicode/utf8"
)

// splitMessage cuts msg into chunks of at most maxLen bytes, preferring a
// newline in the second half of the window and never splitting a rune.
func splitMessage(msg string, maxLen int) []string {
	var chunks []string
	for len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		if idx := strings.LastIndexByte(msg[:cut], '\n'); idx > maxLen/2 {
			cut = idx + 1
		}
		if cut == 0 {
			cut = maxLen
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return append(chunks, msg)
}

// textOf reports content as event text; blank content has no text.
func textOf(content string) (string, bool, error) {
	if strings.TrimSpace(content) == "" {
		return "", false, nil
	}
	return content, true, nil
}
