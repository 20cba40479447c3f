// Package mastery classifies a learner's per-concept success rates and turns
// them into a short natural-language summary for question generation.
package mastery

import (
	"fmt"
	"math"

	"github.com/anyuan-chen/manga/internal/manga"
)

// Bucket is a mastery class.
type Bucket int

const (
	Moderate Bucket = iota
	Mastered
	Weak
)

// WeakBelow is the success rate under which a concept is weak.
const WeakBelow = 0.5

func (b Bucket) String() string {
	switch b {
	case Mastered:
		return "mastered"
	case Weak:
		return "weak"
	default:
		return "moderate"
	}
}

// BucketOf classifies a success rate: exactly 1.0 is mastered, below 0.5 is
// weak, anything else (including 0.5) is moderate.
func BucketOf(rate float64) Bucket {
	switch {
	case rate == 1.0:
		return Mastered
	case rate < WeakBelow:
		return Weak
	default:
		return Moderate
	}
}

// Label is a classified concept with its rendered forms.
type Label struct {
	Concept manga.ConceptRef
	// Name is "display (secondary)".
	Name string
	// Detail is Name followed by the rounded success percentage.
	Detail string
}

// Classification partitions a Performance into the three buckets. Words come
// before grammar within each bucket and input order is preserved.
type Classification struct {
	Mastered []Label
	Weak     []Label
	Moderate []Label
}

// Classify partitions every entry of perf.
func Classify(perf *manga.Performance) Classification {
	var c Classification
	for _, cp := range perf.All() {
		l := NewLabel(cp)
		switch BucketOf(cp.SuccessRate) {
		case Mastered:
			c.Mastered = append(c.Mastered, l)
		case Weak:
			c.Weak = append(c.Weak, l)
		default:
			c.Moderate = append(c.Moderate, l)
		}
	}
	return c
}

// NewLabel renders cp.
func NewLabel(cp manga.ConceptPerformance) Label {
	name := fmt.Sprintf("%s (%s)", cp.Display, cp.Secondary)
	return Label{
		Concept: cp.Concept,
		Name:    name,
		Detail:  fmt.Sprintf("%s (%d%%)", name, Percent(cp.SuccessRate)),
	}
}

// Percent rounds rate*100 half away from zero.
func Percent(rate float64) int {
	return int(math.Round(rate * 100))
}

// AllMastered reports whether every entry has a perfect success rate and at
// least minAttempts attempts. It is vacuously true for an empty Performance;
// callers that must not treat "no history" as mastery check Empty first.
func AllMastered(perf *manga.Performance, minAttempts int) bool {
	for _, cp := range perf.All() {
		if cp.SuccessRate != 1.0 || cp.AttemptCount < minAttempts {
			return false
		}
	}
	return true
}
