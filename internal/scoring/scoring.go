package scoring

import "medgame/internal/content"

const (
	MaxScore = 100
	MaxStars = 3
)

// Outcome is the result of comparing a guess to the true condition
type Outcome struct {
	Correct bool
	Score   int
	Stars   int
}

// Evaluate scores a diagnosis. Scoring is all or nothing.
func Evaluate(guess, truth content.ConditionID) Outcome {
	if guess == truth && truth.Valid() {
		return Outcome{Correct: true, Score: MaxScore, Stars: MaxStars}
	}
	return Outcome{}
}

// Passed reports whether a star count unlocks the next level
func Passed(stars int) bool {
	return stars >= 1
}
