package quiz_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/anyuan-chen/manga/internal/ai"
	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/quiz"
)

func wordQuestion(id, text string) string {
	return fmt.Sprintf(`{"type":"word","conceptId":%q,"conceptType":"word","question":%q,"options":["a","b","c","d"],"correctAnswer":1}`, id, text)
}

func readingQuestion(text string) string {
	return fmt.Sprintf(`{"type":"reading_comprehension","question":%q,"options":["a","b","c","d"],"correctAnswer":0}`, text)
}

func quizPanel() manga.Panel {
	return manga.Panel{
		ID: "p1", Text: longText,
		Words:   []manga.Word{wNeko, wInu},
		Grammar: []manga.GrammarStructure{gTeiru},
	}
}

func newGenerator(f *fixture, provider ai.Completer) *quiz.Generator {
	return quiz.NewGenerator(quiz.GeneratorConfig{Panels: f.store, Context: f.synth, AI: provider})
}

func TestGenerator_TruncatesToThree(t *testing.T) {
	f := newFixture(t, quizPanel())
	items := make([]string, 5)
	for i := range items {
		items[i] = readingQuestion(fmt.Sprintf("Q%d", i+1))
	}
	mock := ai.NewMockProvider("Here you go:\n```json\n[" + strings.Join(items, ",") + "]\n```")

	got, err := newGenerator(f, mock).Generate(context.Background(), "p1", "u1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(got) != quiz.MaxQuestions {
		t.Fatalf("len(questions) = %d, want %d", len(got), quiz.MaxQuestions)
	}
	for i, q := range got {
		if want := fmt.Sprintf("Q%d", i+1); q.Question != want {
			t.Errorf("questions[%d] = %q, want %q", i, q.Question, want)
		}
	}
}

func TestGenerator_Prompt(t *testing.T) {
	f := newFixture(t, quizPanel())
	mock := ai.NewMockProvider("[]")
	if _, err := newGenerator(f, mock).Generate(context.Background(), "p1", "u1"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	req := mock.Last()
	if req == nil {
		t.Fatal("generator was not called")
	}
	if req.Task != ai.TaskQuestions {
		t.Errorf("Task = %v, want %v", req.Task, ai.TaskQuestions)
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	for _, want := range []string{
		longText,
		"USER PERFORMANCE:\nNo previous attempts.",
		"- [WORD] 猫 (ID: w-neko)\n- [WORD] 犬 (ID: w-inu)\n- [GRAMMAR] ている (ID: g-teiru)",
		"Return as JSON array",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// A fresh fixture, since the first call cached the empty performance.
	f = newFixture(t, quizPanel())
	record(t, f, wNeko.Ref(), 3, 10)
	if _, err := newGenerator(f, mock).Generate(context.Background(), "p1", "u1"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	prompt = mock.Last().Messages[0].Content
	if !strings.Contains(prompt, "The user struggles with: 猫 (cat) (30%).") {
		t.Errorf("prompt missing learner context:\n%s", prompt)
	}
}

func TestGenerator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		err     error
		panelID string
		want    error
	}{
		{name: "no array", output: "I cannot help with that.", want: quiz.ErrGenerationParse},
		{name: "broken array", output: `[{"type":"word",`, want: quiz.ErrGenerationParse},
		{name: "all invalid", output: `[{"type":"essay"},{"question":"?"}]`, want: quiz.ErrGenerationParse},
		{name: "provider failure", err: errors.New("upstream down"), want: nil},
		{name: "unknown panel", output: "[]", panelID: "missing", want: manga.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, quizPanel())
			mock := &ai.MockProvider{Response: tt.output, Err: tt.err}
			panelID := tt.panelID
			if panelID == "" {
				panelID = "p1"
			}

			got, err := newGenerator(f, mock).Generate(context.Background(), panelID, "u1")
			if err == nil {
				t.Fatalf("Generate() = %v, want error", got)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Generate() error = %v, want %v", err, tt.want)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Errorf("Generate() error = %v, want wrapped %v", err, tt.err)
			}
		})
	}
}

func TestGenerator_InvalidInput(t *testing.T) {
	f := newFixture(t, quizPanel())
	mock := ai.NewMockProvider("[]")
	if _, err := newGenerator(f, mock).Generate(context.Background(), "p1", ""); !errors.Is(err, manga.ErrInvalidInput) {
		t.Errorf("Generate() error = %v, want ErrInvalidInput", err)
	}
	if mock.Calls() != 0 {
		t.Errorf("generator calls = %d, want 0", mock.Calls())
	}
}

func TestValidateQuestion_IntegralFloatAnswer(t *testing.T) {
	q, err := quiz.ValidateQuestion([]byte(`{"type":"reading_comprehension","question":"q","options":["a","b","c","d"],"correctAnswer":3.0}`))
	if err != nil {
		t.Fatalf("ValidateQuestion() error = %v", err)
	}
	if q.CorrectAnswer != 3 {
		t.Errorf("CorrectAnswer = %d, want 3", q.CorrectAnswer)
	}
}

func TestParseQuestions(t *testing.T) {
	panel := quizPanel()

	tests := []struct {
		name    string
		output  string
		want    []string
		wantErr bool
	}{
		{
			name:   "empty array",
			output: "[]",
			want:   []string{},
		},
		{
			name:   "skips bracketed prose",
			output: "Note [see below]:\n[" + readingQuestion("R") + "]",
			want:   []string{"R"},
		},
		{
			name:   "ignores trailing text",
			output: "[" + wordQuestion("w-neko", "W") + "] Good luck! [x]",
			want:   []string{"W"},
		},
		{
			name:   "drops question for untagged concept",
			output: "[" + wordQuestion("w-tori", "bad") + "," + wordQuestion("w-inu", "good") + "]",
			want:   []string{"good"},
		},
		{
			name:   "drops wrong option count",
			output: `[{"type":"reading_comprehension","question":"bad","options":["a","b"],"correctAnswer":0},` + readingQuestion("ok") + "]",
			want:   []string{"ok"},
		},
		{
			name:   "drops out of range answer",
			output: `[{"type":"reading_comprehension","question":"bad","options":["a","b","c","d"],"correctAnswer":4},` + readingQuestion("ok") + "]",
			want:   []string{"ok"},
		},
		{
			name:   "drops mismatched concept type",
			output: `[{"type":"grammar","conceptId":"w-neko","conceptType":"word","question":"bad","options":["a","b","c","d"],"correctAnswer":0},` + readingQuestion("ok") + "]",
			want:   []string{"ok"},
		},
		{
			name:   "keeps integral float answer",
			output: `[{"type":"reading_comprehension","question":"float","options":["a","b","c","d"],"correctAnswer":1.0}]`,
			want:   []string{"float"},
		},
		{
			name:    "validation applies after truncation",
			output:  `[{"type":"x"},{"type":"x"},{"type":"x"},` + readingQuestion("late") + "]",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := quiz.ParseQuestions(tt.output, &panel)
			if tt.wantErr {
				if !errors.Is(err, quiz.ErrGenerationParse) {
					t.Fatalf("ParseQuestions() error = %v, want ErrGenerationParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseQuestions() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseQuestions() = %+v, want %d questions", got, len(tt.want))
			}
			for i, q := range got {
				if q.Question != tt.want[i] {
					t.Errorf("questions[%d] = %q, want %q", i, q.Question, tt.want[i])
				}
			}
		})
	}
}

func TestParseQuestions_FillsConceptType(t *testing.T) {
	panel := quizPanel()
	output := `[{"type":"grammar","conceptId":"g-teiru","question":"?","options":["a","b","c","d"],"correctAnswer":2}]`

	got, err := quiz.ParseQuestions(output, &panel)
	if err != nil {
		t.Fatalf("ParseQuestions() error = %v", err)
	}
	if got[0].ConceptType != manga.KindGrammar {
		t.Errorf("ConceptType = %q, want grammar", got[0].ConceptType)
	}
}

func TestExtractJSONObject(t *testing.T) {
	obj, err := quiz.ExtractJSONObject("Sure! {broken {\"question\":\"q\"} done")
	if err != nil {
		t.Fatalf("ExtractJSONObject() error = %v", err)
	}
	if string(obj) != `{"question":"q"}` {
		t.Errorf("ExtractJSONObject() = %s", obj)
	}
	if _, err := quiz.ExtractJSONObject("no json here"); !errors.Is(err, quiz.ErrGenerationParse) {
		t.Errorf("ExtractJSONObject() error = %v, want ErrGenerationParse", err)
	}
}
