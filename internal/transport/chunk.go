// ABOUTME: Splits long outbound messages to fit backend length limits
// ABOUTME: Prefers newline boundaries in the second half of each chunk

package transport

import (
	"strings"
	"unicode/utf8"
)

// splitMessage breaks content into chunks of at most maxLen bytes. A chunk
// ends after a newline when one falls in its second half, and never splits
// a UTF-8 sequence.
func splitMessage(content string, maxLen int) []string {
	if maxLen <= 0 || len(content) <= maxLen {
		return []string{content}
	}

	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}

		cutAt := maxLen
		if idx := strings.LastIndexByte(content[:maxLen], '\n'); idx > maxLen/2 {
			cutAt = idx + 1
		} else {
			for cutAt > 0 && !utf8.RuneStart(content[cutAt]) {
				cutAt--
			}
			if cutAt == 0 {
				cutAt = maxLen
			}
		}
		chunks = append(chunks, content[:cutAt])
		content = content[cutAt:]
	}
	return chunks
}
