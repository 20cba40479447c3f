package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/anyuan-chen/manga/internal/manga"
)

// Answer is a learner's response to a generated question.
type Answer struct {
	LearnerID     string            `json:"userId"`
	QuestionType  QuestionKind      `json:"questionType"`
	ConceptID     string            `json:"conceptId,omitempty"`
	ConceptType   manga.ConceptKind `json:"conceptType,omitempty"`
	Selected      int               `json:"selectedAnswer"`
	CorrectAnswer int               `json:"correctAnswer"`
	TimeSpentMS   int               `json:"timeSpent,omitempty"`
}

// Correct reports whether the selected option is the correct one.
func (a Answer) Correct() bool {
	return a.Selected == a.CorrectAnswer
}

// Recorder grades answers and appends attempts for word and grammar questions.
type Recorder struct {
	attempts manga.AttemptRecorder
	now      func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(attempts manga.AttemptRecorder) *Recorder {
	return &Recorder{attempts: attempts, now: time.Now}
}

// Record grades the answer. An attempt is stored only when the question
// tested a concept and the concept type matches the question type; reading
// comprehension answers are graded but not stored.
func (r *Recorder) Record(ctx context.Context, a Answer) (bool, error) {
	if a.LearnerID == "" || a.QuestionType == "" {
		return false, fmt.Errorf("%w: userId and questionType are required", manga.ErrInvalidInput)
	}

	correct := a.Correct()
	kind, ok := a.QuestionType.ConceptKind()
	if !ok || a.ConceptID == "" || a.ConceptType != kind {
		return correct, nil
	}

	err := r.attempts.RecordAttempt(ctx, manga.Attempt{
		LearnerID: a.LearnerID,
		Concept:   manga.ConceptRef{ID: a.ConceptID, Kind: kind},
		Correct:   correct,
		CreatedAt: r.now(),
	})
	if err != nil {
		return correct, fmt.Errorf("record attempt: %w", err)
	}
	return correct, nil
}
