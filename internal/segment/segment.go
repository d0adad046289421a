// Package segment splits extracted answer-sheet text into per-question
// answer spans. Parsing is pure: no stores, no clocks, no side effects, so
// the same text can be re-segmented safely during reprocessing.
package segment

import (
	"regexp"
	"strconv"
	"strings"
)

// markerPattern recognizes question markers such as "Q1:", "Question 2.",
// "answer 3 -" or "Q4)". The token must sit on a word boundary and be
// followed by a separator so prose like "see q. below" is not treated as a
// marker.
var markerPattern = regexp.MustCompile(`(?i)\b(?:question|answer|q)\s*\.?\s*(\d{1,3})\s*[:.\-\)]`)

// Parse maps question numbers to the answer text that follows their marker.
// A segment runs from the end of its marker to the start of the next marker
// or end of input. When one number is marked more than once the last
// occurrence wins outright. Numbers whose captured segment is empty or
// whitespace-only are absent from the result.
func Parse(text string) map[int]string {
	answers := make(map[int]string)
	if text == "" {
		return answers
	}

	matches := markerPattern.FindAllStringSubmatchIndex(text, -1)
	for i, match := range matches {
		number, err := strconv.Atoi(text[match[2]:match[3]])
		if err != nil {
			continue
		}

		segmentEnd := len(text)
		if i+1 < len(matches) {
			segmentEnd = matches[i+1][0]
		}

		captured := strings.TrimSpace(text[match[1]:segmentEnd])
		if captured == "" {
			// A later empty marker still supersedes an earlier capture.
			delete(answers, number)
			continue
		}

		answers[number] = captured
	}

	return answers
}
