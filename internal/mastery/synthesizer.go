package mastery

import (
	"context"
	"strings"

	"github.com/anyuan-chen/manga/internal/manga"
)

// PerformanceSource supplies cached performance aggregates.
type PerformanceSource interface {
	Get(ctx context.Context, learnerID, panelID string) (*manga.Performance, error)
}

// Synthesizer builds the learner-context sentence used in generation prompts.
type Synthesizer struct {
	source PerformanceSource
}

// NewSynthesizer creates a Synthesizer reading from source.
func NewSynthesizer(source PerformanceSource) *Synthesizer {
	return &Synthesizer{source: source}
}

// Synthesize returns Describe of the learner's performance on the panel.
func (s *Synthesizer) Synthesize(ctx context.Context, learnerID, panelID string) (string, error) {
	perf, err := s.source.Get(ctx, learnerID, panelID)
	if err != nil {
		return "", err
	}
	return Describe(perf), nil
}

// Describe renders up to three sentences (mastered, struggling, partial),
// skipping empty ones and joining the rest with single spaces. It returns ""
// when perf has no entries.
func Describe(perf *manga.Performance) string {
	c := Classify(perf)

	var parts []string
	if len(c.Mastered) > 0 {
		parts = append(parts, "The user has mastered: "+joinLabels(c.Mastered, false)+".")
	}
	if len(c.Weak) > 0 {
		parts = append(parts, "The user struggles with: "+joinLabels(c.Weak, true)+".")
	}
	if len(c.Moderate) > 0 {
		parts = append(parts, "The user has partial knowledge of: "+joinLabels(c.Moderate, true)+".")
	}
	return strings.Join(parts, " ")
}

func joinLabels(labels []Label, detail bool) string {
	items := make([]string, len(labels))
	for i, l := range labels {
		if detail {
			items[i] = l.Detail
		} else {
			items[i] = l.Name
		}
	}
	return strings.Join(items, ", ")
}
