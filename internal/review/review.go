// Package review surfaces a learner's recent mistakes and generates practice
// questions for them.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/anyuan-chen/manga/internal/ai"
	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/quiz"
)

const (
	// CheckExamples is how many distinct words and grammar structures Check
	// returns per kind.
	CheckExamples = 3
	// MaxItems caps the review session length.
	MaxItems = 10

	defaultConcurrency = 4
	reviewMaxTokens    = 512
)

// WordExample is a missed word shown in the review prompt.
type WordExample struct {
	Japanese string `json:"japanese"`
	Reading  string `json:"reading"`
	Meaning  string `json:"meaning"`
}

// GrammarExample is a missed grammar structure shown in the review prompt.
type GrammarExample struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// Examples lists missed concepts by kind.
type Examples struct {
	Words   []WordExample    `json:"words"`
	Grammar []GrammarExample `json:"grammar"`
}

// Summary reports whether a learner has mistakes worth reviewing.
type Summary struct {
	HasMistakes bool      `json:"hasMistakes"`
	TotalCount  int       `json:"totalCount,omitempty"`
	Examples    *Examples `json:"examples,omitempty"`
}

// Item is one review question for a missed concept.
type Item struct {
	Type          manga.ConceptKind       `json:"type"`
	ConceptID     string                  `json:"conceptId"`
	Word          *manga.Word             `json:"word,omitempty"`
	Grammar       *manga.GrammarStructure `json:"grammar,omitempty"`
	Question      string                  `json:"question"`
	Options       []string                `json:"options"`
	CorrectAnswer int                     `json:"correctAnswer"`
	MissedAt      time.Time               `json:"createdAt"`
}

// Config holds dependencies for the review service.
type Config struct {
	Mistakes    manga.MistakeReader
	AI          ai.Completer
	Model       string
	Concurrency int // parallel generations per request (default 4)
}

// Service builds review summaries and sessions.
type Service struct {
	mistakes    manga.MistakeReader
	ai          ai.Completer
	model       string
	concurrency int
}

// NewService creates a review Service.
func NewService(cfg Config) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{
		mistakes:    cfg.Mistakes,
		ai:          cfg.AI,
		model:       cfg.Model,
		concurrency: concurrency,
	}
}

// Check lists up to CheckExamples recently missed words and grammar
// structures.
func (s *Service) Check(ctx context.Context, learnerID string) (Summary, error) {
	words, grammar, err := s.recent(ctx, learnerID, CheckExamples)
	if err != nil {
		return Summary{}, err
	}
	if len(words) == 0 && len(grammar) == 0 {
		return Summary{}, nil
	}

	sum := Summary{HasMistakes: true, TotalCount: len(words) + len(grammar)}
	sum.Examples = &Examples{
		Words:   make([]WordExample, 0, len(words)),
		Grammar: make([]GrammarExample, 0, len(grammar)),
	}
	for _, m := range words {
		sum.Examples.Words = append(sum.Examples.Words, WordExample{
			Japanese: m.Word.Japanese,
			Reading:  m.Word.Reading,
			Meaning:  m.Word.Meaning,
		})
	}
	for _, m := range grammar {
		sum.Examples.Grammar = append(sum.Examples.Grammar, GrammarExample{
			Name:    m.Grammar.Name,
			Pattern: m.Grammar.Pattern,
		})
	}
	return sum, nil
}

// Items generates one question for each of the MaxItems most recent distinct
// mistakes, newest first. Any failed generation fails the session.
func (s *Service) Items(ctx context.Context, learnerID string) ([]Item, error) {
	words, grammar, err := s.recent(ctx, learnerID, MaxItems)
	if err != nil {
		return nil, err
	}

	mistakes := append(words, grammar...)
	slices.SortStableFunc(mistakes, func(a, b manga.Mistake) int {
		return b.MissedAt.Compare(a.MissedAt)
	})
	if len(mistakes) > MaxItems {
		mistakes = mistakes[:MaxItems]
	}

	items := make([]Item, len(mistakes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, m := range mistakes {
		g.Go(func() error {
			item, err := s.generate(gctx, m)
			if err != nil {
				return fmt.Errorf("review %s %s: %w", m.Concept.Kind, m.Concept.ID, err)
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("review generated", "learner_id", learnerID, "items", len(items))
	return items, nil
}

func (s *Service) recent(ctx context.Context, learnerID string, limit int) (words, grammar []manga.Mistake, err error) {
	if learnerID == "" {
		return nil, nil, fmt.Errorf("%w: learner id is required", manga.ErrInvalidInput)
	}
	if words, err = s.mistakes.RecentMistakes(ctx, learnerID, manga.KindWord, limit); err != nil {
		return nil, nil, fmt.Errorf("load word mistakes: %w", err)
	}
	if grammar, err = s.mistakes.RecentMistakes(ctx, learnerID, manga.KindGrammar, limit); err != nil {
		return nil, nil, fmt.Errorf("load grammar mistakes: %w", err)
	}
	return words, grammar, nil
}

func (s *Service) generate(ctx context.Context, m manga.Mistake) (Item, error) {
	resp, err := s.ai.Complete(ctx, ai.CompletionRequest{
		Messages:  []ai.Message{{Role: ai.RoleUser, Content: Prompt(m)}},
		Model:     s.model,
		MaxTokens: reviewMaxTokens,
		Task:      ai.TaskReview,
	})
	if err != nil {
		return Item{}, err
	}

	raw, err := quiz.ExtractJSONObject(resp.Content)
	if err != nil {
		return Item{}, err
	}
	q, err := validate(raw)
	if err != nil {
		return Item{}, err
	}

	return Item{
		Type:          m.Concept.Kind,
		ConceptID:     m.Concept.ID,
		Word:          m.Word,
		Grammar:       m.Grammar,
		Question:      q.Question,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		MissedAt:      m.MissedAt,
	}, nil
}

// Prompt renders the review question prompt for a mistake.
func Prompt(m manga.Mistake) string {
	var b strings.Builder
	switch {
	case m.Word != nil:
		fmt.Fprintf(&b, "Generate a multiple-choice question to test the Japanese word %q (%s), which means %q.\n",
			m.Word.Japanese, m.Word.Reading, m.Word.Meaning)
		b.WriteString("The question should help the learner practice this word in context.\n")
	case m.Grammar != nil:
		fmt.Fprintf(&b, "Generate a multiple-choice question to test the Japanese grammatical structure %q (pattern: %s).\n",
			m.Grammar.Name, m.Grammar.Pattern)
		fmt.Fprintf(&b, "Explanation: %s\n", m.Grammar.Explanation)
		b.WriteString("The question should help the learner practice this grammar point in context.\n")
	}
	b.WriteString(`Format your response as JSON with the following structure:
{
  "question": "the question text in English",
  "options": ["option A", "option B", "option C", "option D"],
  "correctAnswer": 0 (index of the correct option, 0-3)
}`)
	return b.String()
}

type reviewQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

var reviewSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["question", "options", "correctAnswer"],
  "properties": {
    "question": {"type": "string", "minLength": 1},
    "options": {"type": "array", "items": {"type": "string"}, "minItems": 4, "maxItems": 4},
    "correctAnswer": {"type": "integer", "minimum": 0, "maximum": 3}
  }
}`)

func validate(raw json.RawMessage) (reviewQuestion, error) {
	result, err := gojsonschema.Validate(reviewSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return reviewQuestion{}, fmt.Errorf("%w: %w", quiz.ErrGenerationParse, err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return reviewQuestion{}, fmt.Errorf("%w: %s", quiz.ErrGenerationParse, strings.Join(errs, "; "))
	}

	var wire struct {
		reviewQuestion
		CorrectAnswer json.Number `json:"correctAnswer"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return reviewQuestion{}, fmt.Errorf("%w: %w", quiz.ErrGenerationParse, err)
	}
	answer, err := quiz.AnswerIndex(wire.CorrectAnswer)
	if err != nil {
		return reviewQuestion{}, fmt.Errorf("%w: %w", quiz.ErrGenerationParse, err)
	}
	q := wire.reviewQuestion
	q.CorrectAnswer = answer
	return q, nil
}
