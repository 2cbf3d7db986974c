package game

import (
	"strings"
	"time"
)

const (
	MaxPoints = 100
	// TimeLimit caps the time a player has to spell one word.
	TimeLimit = 10 * time.Second

	// 10 points per second, counted in whole tenths
	penaltyStep = 100 * time.Millisecond
)

// Normalize lower-cases and trims surrounding whitespace.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func IsCorrect(input, target string) bool {
	return Normalize(input) == Normalize(target)
}

// Points returns 100 - floor(elapsed seconds * 10) for a correct answer,
// never below zero; elapsed is capped at TimeLimit. Wrong answers score 0.
func Points(elapsed time.Duration, correct bool) int {
	if !correct {
		return 0
	}
	elapsed = min(max(elapsed, 0), TimeLimit)
	return max(0, MaxPoints-int(elapsed/penaltyStep))
}
