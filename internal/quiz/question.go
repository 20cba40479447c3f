package quiz

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/anyuan-chen/manga/internal/manga"
)

// QuestionKind is the type of a generated question.
type QuestionKind string

const (
	KindWord                 QuestionKind = "word"
	KindGrammar              QuestionKind = "grammar"
	KindReadingComprehension QuestionKind = "reading_comprehension"
)

// ConceptKind returns the concept kind a word or grammar question tests.
func (k QuestionKind) ConceptKind() (manga.ConceptKind, bool) {
	switch k {
	case KindWord:
		return manga.KindWord, true
	case KindGrammar:
		return manga.KindGrammar, true
	default:
		return "", false
	}
}

// MaxQuestions caps the questions returned per panel.
const MaxQuestions = 3

// GeneratedQuestion is one multiple-choice question.
type GeneratedQuestion struct {
	Kind          QuestionKind      `json:"type"`
	ConceptID     string            `json:"conceptId,omitempty"`
	ConceptType   manga.ConceptKind `json:"conceptType,omitempty"`
	Question      string            `json:"question"`
	Options       []string          `json:"options"`
	CorrectAnswer int               `json:"correctAnswer"`
}

const questionSchemaJSON = `{
  "type": "object",
  "required": ["type", "question", "options", "correctAnswer"],
  "properties": {
    "type": {"enum": ["word", "grammar", "reading_comprehension"]},
    "conceptId": {"type": "string"},
    "conceptType": {"enum": ["word", "grammar"]},
    "question": {"type": "string", "minLength": 1},
    "options": {
      "type": "array",
      "items": {"type": "string"},
      "minItems": 4,
      "maxItems": 4
    },
    "correctAnswer": {"type": "integer", "minimum": 0, "maximum": 3}
  }
}`

var questionSchema = mustSchema(questionSchemaJSON)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile question schema: %v", err))
	}
	return schema
}

// ValidateQuestion checks raw against the question schema and decodes it.
func ValidateQuestion(raw json.RawMessage) (GeneratedQuestion, error) {
	result, err := questionSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return GeneratedQuestion{}, fmt.Errorf("validate question: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return GeneratedQuestion{}, fmt.Errorf("invalid question: %s", strings.Join(msgs, "; "))
	}

	// The schema accepts integral numbers such as 1.0, which do not decode
	// into an int directly.
	var wire struct {
		GeneratedQuestion
		CorrectAnswer json.Number `json:"correctAnswer"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return GeneratedQuestion{}, fmt.Errorf("decode question: %w", err)
	}
	answer, err := AnswerIndex(wire.CorrectAnswer)
	if err != nil {
		return GeneratedQuestion{}, err
	}
	q := wire.GeneratedQuestion
	q.CorrectAnswer = answer
	return q, nil
}

// AnswerIndex converts a schema-checked correctAnswer to an option index.
// Integral values written with a fraction, such as 1.0, are accepted.
func AnswerIndex(n json.Number) (int, error) {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("correct answer %q is not an integer", n)
	}
	return int(f), nil
}

// checkConcept verifies that a word or grammar question references a concept
// of the same kind tagged on the panel, filling in a missing concept type.
func checkConcept(q *GeneratedQuestion, panel *manga.Panel) error {
	kind, ok := q.Kind.ConceptKind()
	if !ok {
		q.ConceptID, q.ConceptType = "", ""
		return nil
	}
	if q.ConceptID == "" {
		return fmt.Errorf("%s question without concept id", q.Kind)
	}
	if q.ConceptType == "" {
		q.ConceptType = kind
	}
	if q.ConceptType != kind {
		return fmt.Errorf("%s question with concept type %s", q.Kind, q.ConceptType)
	}
	if !panel.HasConcept(manga.ConceptRef{ID: q.ConceptID, Kind: kind}) {
		return fmt.Errorf("%s %s is not tagged on panel %s", kind, q.ConceptID, panel.ID)
	}
	return nil
}
