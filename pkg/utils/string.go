package utils

// Truncate cuts s to at most maxLen runes and appends an ellipsis when
// anything was removed.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 0 {
		maxLen = 0
	}
	return string(r[:maxLen]) + "..."
}
