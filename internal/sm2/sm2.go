package sm2

import (
	"fmt"
	"math"
	"time"
)

// Quality is the self-reported recall quality of a review.
type Quality int

const (
	Blackout          Quality = 0 // complete blackout
	Incorrect         Quality = 1 // wrong, but remembered on seeing the answer
	IncorrectFamiliar Quality = 2 // wrong, but the answer felt close
	CorrectDifficult  Quality = 3 // correct, with serious difficulty
	CorrectHesitation Quality = 4 // correct, after some hesitation
	Perfect           Quality = 5 // perfect recall
)

const (
	// PassThreshold is the lowest quality that counts as a successful recall.
	PassThreshold = CorrectDifficult
	// MinEaseFactor is the floor applied to every computed ease factor.
	MinEaseFactor = 1.3
	// DefaultEaseFactor is the ease factor of a card that was never reviewed.
	DefaultEaseFactor = 2.5
)

var qualityNames = [...]string{
	Blackout:          "blackout",
	Incorrect:         "incorrect",
	IncorrectFamiliar: "incorrect-familiar",
	CorrectDifficult:  "correct-difficult",
	CorrectHesitation: "correct-hesitation",
	Perfect:           "perfect",
}

// IsValid reports whether q lies in 0..5.
func (q Quality) IsValid() bool {
	return q >= Blackout && q <= Perfect
}

// IsLapse reports whether q is below the pass threshold.
func (q Quality) IsLapse() bool {
	return q < PassThreshold
}

func (q Quality) String() string {
	if q.IsValid() {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// Result is the scheduling state produced by a review.
type Result struct {
	Interval    int
	EaseFactor  float64
	Repetitions int
}

// ComputeNext applies the SM-2 update rule to a card's prior state.
// It does not validate quality; callers reject out-of-range ratings first.
func ComputeNext(quality Quality, repetitions int, easeFactor float64, interval int) Result {
	if quality.IsLapse() {
		// Lapses reset the streak but leave the ease factor alone.
		return Result{
			Interval:    1,
			EaseFactor:  easeFactor,
			Repetitions: 0,
		}
	}

	var next int
	switch repetitions {
	case 0:
		next = 1
	case 1:
		next = 6
	default:
		next = int(math.Floor(float64(interval) * easeFactor))
	}
	if next < 1 {
		next = 1
	}

	return Result{
		Interval:    next,
		EaseFactor:  nextEaseFactor(quality, easeFactor),
		Repetitions: repetitions + 1,
	}
}

// nextEaseFactor is the standard SM-2 adjustment:
// EF' = EF + (0.1 - (5-q) * (0.08 + (5-q) * 0.02)), floored at 1.3.
func nextEaseFactor(quality Quality, easeFactor float64) float64 {
	d := float64(5 - quality)
	ef := easeFactor + (0.1 - d*(0.08+d*0.02))
	if ef < MinEaseFactor {
		ef = MinEaseFactor
	}
	return ef
}

// NextReview returns the time the next review falls due, interval calendar
// days after now.
func NextReview(now time.Time, interval int) time.Time {
	return now.AddDate(0, 0, interval)
}
