package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anyuan-chen/manga/internal/ai"
	"github.com/anyuan-chen/manga/internal/manga"
)

const defaultQuestionMaxTokens = 2048

// ContextSource summarizes a learner's history with a panel's concepts.
type ContextSource interface {
	Synthesize(ctx context.Context, learnerID, panelID string) (string, error)
}

// GeneratorConfig holds dependencies for the question generator.
type GeneratorConfig struct {
	Panels    manga.PanelReader
	Context   ContextSource
	AI        ai.Completer
	Model     string // optional model override
	MaxTokens int    // default 2048
}

// Generator builds question prompts and validates the generator's output.
type Generator struct {
	panels    manga.PanelReader
	context   ContextSource
	ai        ai.Completer
	model     string
	maxTokens int
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultQuestionMaxTokens
	}
	return &Generator{
		panels:    cfg.Panels,
		context:   cfg.Context,
		ai:        cfg.AI,
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

// Generate asks the generator for up to MaxQuestions questions about the
// panel. It does not apply the gate.
func (g *Generator) Generate(ctx context.Context, panelID, learnerID string) ([]GeneratedQuestion, error) {
	if err := manga.RequireIDs(learnerID, panelID); err != nil {
		return nil, err
	}

	panel, err := g.panels.GetPanel(ctx, panelID)
	if err != nil {
		return nil, fmt.Errorf("load panel %s: %w", panelID, err)
	}
	learnerContext, err := g.context.Synthesize(ctx, learnerID, panelID)
	if err != nil {
		return nil, fmt.Errorf("synthesize context: %w", err)
	}

	resp, err := g.ai.Complete(ctx, ai.CompletionRequest{
		Messages:  []ai.Message{{Role: ai.RoleUser, Content: BuildQuestionPrompt(panel, learnerContext)}},
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Task:      ai.TaskQuestions,
	})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	questions, err := ParseQuestions(resp.Content, panel)
	if err != nil {
		slog.Warn("unusable question output",
			"panel_id", panelID,
			"learner_id", learnerID,
			"model", resp.Model,
			"error", err,
		)
		return nil, err
	}

	slog.Info("questions generated",
		"panel_id", panelID,
		"learner_id", learnerID,
		"model", resp.Model,
		"count", len(questions),
		"tokens", resp.TotalTokens(),
	)
	return questions, nil
}

// ParseQuestions extracts the first JSON array from output, keeps its first
// MaxQuestions elements and drops those that fail validation. It returns
// ErrGenerationParse when there is no array or when every kept element was
// invalid.
func ParseQuestions(output string, panel *manga.Panel) ([]GeneratedQuestion, error) {
	elems, err := ExtractJSONArray(output)
	if err != nil {
		return nil, err
	}
	if len(elems) > MaxQuestions {
		elems = elems[:MaxQuestions]
	}

	questions := make([]GeneratedQuestion, 0, len(elems))
	for i, raw := range elems {
		q, err := ValidateQuestion(raw)
		if err == nil {
			err = checkConcept(&q, panel)
		}
		if err != nil {
			slog.Warn("dropping generated question", "panel_id", panel.ID, "index", i, "error", err)
			continue
		}
		questions = append(questions, q)
	}
	if len(elems) > 0 && len(questions) == 0 {
		return nil, fmt.Errorf("%w: no valid questions in %d candidates", ErrGenerationParse, len(elems))
	}
	return questions, nil
}

// BuildQuestionPrompt renders the question generation prompt for a panel.
func BuildQuestionPrompt(panel *manga.Panel, learnerContext string) string {
	if learnerContext == "" {
		learnerContext = "No previous attempts."
	}

	var b strings.Builder
	b.WriteString("You are a Japanese language learning expert creating quiz questions for a manga panel.\n\n")
	b.WriteString("PANEL TEXT:\n")
	b.WriteString(panel.Text)
	b.WriteString("\n\nUSER PERFORMANCE:\n")
	b.WriteString(learnerContext)
	b.WriteString("\n\nCONCEPTS TAGGED IN THIS PANEL (for tracking):\n")
	b.WriteString(ConceptList(panel))
	b.WriteString("\n\n")
	b.WriteString(questionInstructions)
	return b.String()
}

// ConceptList renders one line per tagged concept, words first.
func ConceptList(panel *manga.Panel) string {
	lines := make([]string, 0, panel.ConceptCount())
	for _, w := range panel.Words {
		lines = append(lines, fmt.Sprintf("- [WORD] %s (ID: %s)", w.Japanese, w.ID))
	}
	for _, g := range panel.Grammar {
		lines = append(lines, fmt.Sprintf("- [GRAMMAR] %s (ID: %s)", g.Name, g.ID))
	}
	if len(lines) == 0 {
		return "No concepts tagged"
	}
	return strings.Join(lines, "\n")
}

const questionInstructions = `INSTRUCTIONS:
Generate 2-3 multiple-choice questions. Choose question types based on the panel and user performance:

1. WORD questions: Test vocabulary meaning, reading, or usage
   - Include conceptId from the list above
   - Reference the panel's context

2. GRAMMAR questions: Test grammatical structure understanding
   - Include conceptId from the list above
   - Test usage in context

3. READING_COMPREHENSION questions: Test overall comprehension
   - Ask about meaning, implication, tone, or context
   - Do NOT include conceptId

STRATEGY:
- Focus on concepts the user struggles with or hasn't practiced
- Mix question types for variety
- Make questions specific to this panel
- Maximum 3 questions

Return as JSON array:
[
  {
    "type": "word" | "grammar" | "reading_comprehension",
    "conceptId": "id from list" (ONLY for word/grammar, OMIT for reading_comprehension),
    "conceptType": "word" | "grammar" (ONLY for word/grammar),
    "question": "Question text",
    "options": ["A", "B", "C", "D"],
    "correctAnswer": 0
  }
]`
