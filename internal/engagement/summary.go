package engagement

import (
	"strings"
	"unicode"
)

// Summarize returns the first maxSentences sentences of text with whitespace
// collapsed. It is the local stand-in for the hosted summarization model.
func Summarize(text string, maxSentences int) string {
	text = strings.Join(strings.Fields(text), " ")
	if maxSentences <= 0 || text == "" {
		return ""
	}

	var b strings.Builder

	sentences := 0
	runes := []rune(text)

	for i, r := range runes {
		b.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}

		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}

		sentences++
		if sentences == maxSentences {
			break
		}
	}

	return strings.TrimSpace(b.String())
}
