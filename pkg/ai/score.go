package ai

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultScale is the grading scale requested by the scored prompt.
const DefaultScale = 10

var scorePattern = regexp.MustCompile(`(?i)CALIFICACI[OÓ]N(?:\s+FINAL)?\**\s*[:：]\s*\**\s*(\d{1,3}(?:[.,]\d+)?)\s*(?:/\s*(\d{1,3}))?`)

// Score is a numeric grade parsed from feedback text.
type Score struct {
	Value float64 `json:"value"`
	OutOf float64 `json:"out_of"`
}

// ExtractScore finds the last score marker in text. Text without a marker, or
// carrying an evaluation failure, yields false.
func ExtractScore(text string) (Score, bool) {
	if strings.HasPrefix(text, ErrorPrefix) {
		return Score{}, false
	}

	matches := scorePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return Score{}, false
	}
	last := matches[len(matches)-1]

	value, err := strconv.ParseFloat(strings.ReplaceAll(last[1], ",", "."), 64)
	if err != nil {
		return Score{}, false
	}

	outOf := float64(DefaultScale)
	if last[2] != "" {
		parsed, err := strconv.ParseFloat(last[2], 64)
		if err != nil || parsed <= 0 {
			return Score{}, false
		}
		outOf = parsed
	}
	if value < 0 || value > outOf {
		return Score{}, false
	}

	return Score{Value: value, OutOf: outOf}, true
}
