package memory

import (
	"math"
	"strings"
)

// EstimateTokens approximates the token count of text as its word count
// times ratio, rounded.
func EstimateTokens(text string, ratio float64) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Round(float64(words) * ratio))
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
