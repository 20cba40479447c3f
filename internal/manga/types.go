// Package manga defines the reader's domain entities (chapters, panels,
// vocabulary and grammar concepts, learner attempts) and the stores that
// persist them.
package manga

import (
	"time"
	"unicode/utf8"
)

// ConceptKind distinguishes the two kinds of learnable concept.
type ConceptKind string

const (
	KindWord    ConceptKind = "word"
	KindGrammar ConceptKind = "grammar"
)

// Valid reports whether k is a known concept kind.
func (k ConceptKind) Valid() bool {
	return k == KindWord || k == KindGrammar
}

// ConceptRef identifies a word or grammar structure.
type ConceptRef struct {
	ID   string      `json:"id"`
	Kind ConceptKind `json:"kind"`
}

// Chapter is one PDF chapter of a manga.
type Chapter struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	OrderIndex int          `json:"orderIndex"`
	FilePath   string       `json:"filePath"`
	Stats      ChapterStats `json:"stats"`
}

// ChapterStats is the cached difficulty summary of a chapter. JLPT averages
// are nil when no concept in the chapter has a known level.
type ChapterStats struct {
	PredictedJLPT   *float64 `json:"predictedJlptLevel"`
	UniqueWords     int      `json:"uniqueWordCount"`
	UniqueGrammar   int      `json:"uniqueGrammarCount"`
	PanelCount      int      `json:"panelCount"`
	TotalCharacters int      `json:"totalCharacters"`
	AvgWordJLPT     *float64 `json:"avgWordJlpt"`
	AvgGrammarJLPT  *float64 `json:"avgGrammarJlpt"`
}

// Placement is the annotated region of a panel on its PDF page.
type Placement struct {
	Page   int `json:"pageNumber"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Panel is one manga panel with its source text and tagged concepts.
type Panel struct {
	ID             string             `json:"id"`
	ChapterID      string             `json:"chapterId"`
	Text           string             `json:"japaneseText"`
	Translation    string             `json:"translation"`
	OrderIndex     int                `json:"orderIndex"`
	AutoDisqualify bool               `json:"autoDisqualify"`
	Placement      *Placement         `json:"placement,omitempty"`
	Words          []Word             `json:"words"`
	Grammar        []GrammarStructure `json:"grammar"`
}

// ConceptCount is the number of tagged words plus grammar structures.
func (p *Panel) ConceptCount() int {
	return len(p.Words) + len(p.Grammar)
}

// TextLength counts the code points of the panel text as stored. Combining
// marks count on their own.
func (p *Panel) TextLength() int {
	return utf8.RuneCountInString(p.Text)
}

// HasConcept reports whether ref is tagged on the panel.
func (p *Panel) HasConcept(ref ConceptRef) bool {
	switch ref.Kind {
	case KindWord:
		for _, w := range p.Words {
			if w.ID == ref.ID {
				return true
			}
		}
	case KindGrammar:
		for _, g := range p.Grammar {
			if g.ID == ref.ID {
				return true
			}
		}
	}
	return false
}

// Word is a vocabulary item.
type Word struct {
	ID           string `json:"id"`
	Japanese     string `json:"japanese"`
	Reading      string `json:"reading"`
	Meaning      string `json:"meaning"`
	PartOfSpeech string `json:"partOfSpeech,omitempty"`
	JLPT         *int   `json:"jlptLevel,omitempty"`
}

// Ref returns the word's concept reference.
func (w Word) Ref() ConceptRef {
	return ConceptRef{ID: w.ID, Kind: KindWord}
}

// GrammarStructure is a grammar point.
type GrammarStructure struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	Explanation string `json:"explanation"`
	JLPT        *int   `json:"jlptLevel,omitempty"`
}

// Ref returns the grammar structure's concept reference.
func (g GrammarStructure) Ref() ConceptRef {
	return ConceptRef{ID: g.ID, Kind: KindGrammar}
}

// Attempt is one graded answer by a learner on a concept. Attempts are
// append-only.
type Attempt struct {
	LearnerID string
	Concept   ConceptRef
	Correct   bool
	CreatedAt time.Time
}

// ConceptPerformance is a learner's all-time record on one concept.
// Display is the word's Japanese form or the grammar name; Secondary is the
// word's meaning or the grammar pattern.
type ConceptPerformance struct {
	Concept      ConceptRef
	Display      string
	Secondary    string
	SuccessRate  float64
	AttemptCount int
}

// Performance is a learner's record on the concepts tagged on one panel.
// Only concepts with at least one attempt appear; each list is ordered by
// ascending success rate.
type Performance struct {
	Words   []ConceptPerformance
	Grammar []ConceptPerformance
}

// Empty reports whether the learner has no attempts on any tagged concept.
func (p *Performance) Empty() bool {
	return p == nil || len(p.Words)+len(p.Grammar) == 0
}

// All returns words followed by grammar.
func (p *Performance) All() []ConceptPerformance {
	if p == nil {
		return nil
	}
	out := make([]ConceptPerformance, 0, len(p.Words)+len(p.Grammar))
	out = append(out, p.Words...)
	return append(out, p.Grammar...)
}

// Mistake is the most recent incorrect attempt on a concept. Exactly one of
// Word or Grammar is set, matching Concept.Kind.
type Mistake struct {
	Concept  ConceptRef
	Word     *Word
	Grammar  *GrammarStructure
	MissedAt time.Time
}
