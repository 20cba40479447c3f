// Package quiz decides whether a panel should be quizzed, generates the
// questions and records the learner's answers.
package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/mastery"
)

const (
	// MinTextLength is the shortest panel text worth quizzing.
	MinTextLength = 10
	// MasteryMinAttempts is how many perfect attempts count as mastery.
	MasteryMinAttempts = 2
)

// SkipReason explains why a panel is not quizzed.
type SkipReason string

const (
	SkipPanelNotFound SkipReason = "Panel not found"
	SkipShortText     SkipReason = "Insufficient text content"
	SkipNoConcepts    SkipReason = "No vocabulary or grammar concepts tagged"
	SkipAllMastered   SkipReason = "All concepts mastered (100% success with 2+ attempts)"
)

// Decision is the outcome of Gate.Decide.
type Decision struct {
	ShouldAsk  bool       `json:"shouldAsk"`
	SkipReason SkipReason `json:"skipReason,omitempty"`
}

func skip(reason SkipReason) Decision {
	return Decision{SkipReason: reason}
}

// Gate applies the quiz rules in order; the first rule that matches decides.
type Gate struct {
	panels      manga.PanelReader
	performance mastery.PerformanceSource
}

// NewGate creates a Gate.
func NewGate(panels manga.PanelReader, performance mastery.PerformanceSource) *Gate {
	return &Gate{panels: panels, performance: performance}
}

// Decide reports whether the learner should be quizzed on the panel.
func (g *Gate) Decide(ctx context.Context, panelID, learnerID string) (Decision, error) {
	if err := manga.RequireIDs(learnerID, panelID); err != nil {
		return Decision{}, err
	}

	panel, err := g.panels.GetPanel(ctx, panelID)
	if errors.Is(err, manga.ErrNotFound) {
		return skip(SkipPanelNotFound), nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("load panel %s: %w", panelID, err)
	}

	if panel.TextLength() < MinTextLength {
		return skip(SkipShortText), nil
	}
	if panel.ConceptCount() == 0 {
		return skip(SkipNoConcepts), nil
	}

	perf, err := g.performance.Get(ctx, learnerID, panelID)
	if err != nil {
		return Decision{}, fmt.Errorf("load performance: %w", err)
	}
	if !perf.Empty() && mastery.AllMastered(perf, MasteryMinAttempts) {
		return skip(SkipAllMastered), nil
	}

	return Decision{ShouldAsk: true}, nil
}
