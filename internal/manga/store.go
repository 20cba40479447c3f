package manga

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

const dbTimeout = 5 * time.Second

// PanelReader loads a panel with its tagged concepts.
type PanelReader interface {
	GetPanel(ctx context.Context, panelID string) (*Panel, error)
}

// PerformanceReader aggregates a learner's attempts over a panel's concepts.
//
// FetchPerformance returns every tagged concept with at least one attempt by
// the learner, counted across all panels, each list ascending by success
// rate. It returns ErrNotFound when the panel does not exist and
// ErrStoreUnavailable when the backing store fails.
type PerformanceReader interface {
	FetchPerformance(ctx context.Context, learnerID, panelID string) (*Performance, error)
}

// AttemptRecorder appends graded attempts.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

// MistakeReader lists a learner's most recent distinct mistakes of one kind,
// newest first.
type MistakeReader interface {
	RecentMistakes(ctx context.Context, learnerID string, kind ConceptKind, limit int) ([]Mistake, error)
}

// ChapterStore reads chapters and persists their statistics.
type ChapterStore interface {
	ListChapters(ctx context.Context) ([]Chapter, error)
	GetChapter(ctx context.Context, chapterID string) (*Chapter, error)
	ChapterPanels(ctx context.Context, chapterID string) ([]Panel, error)
	SaveChapterStats(ctx context.Context, chapterID string, stats ChapterStats) error
}

// AnnotationStore persists panel placements.
type AnnotationStore interface {
	SetPlacement(ctx context.Context, panelID string, p Placement) error
	LabeledPanels(ctx context.Context, chapterID string) ([]Panel, error)
	UnlabeledPanels(ctx context.Context) ([]Panel, error)
}

// SeedWriter upserts content. UpsertPanel also upserts the panel's words and
// grammar and replaces its tags.
type SeedWriter interface {
	UpsertChapter(ctx context.Context, c Chapter) error
	UpsertPanel(ctx context.Context, p Panel) error
}

// Store is the full persistence surface.
type Store interface {
	PanelReader
	PerformanceReader
	AttemptRecorder
	MistakeReader
	ChapterStore
	AnnotationStore
	SeedWriter
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu           sync.RWMutex
	chapters     map[string]*Chapter
	panels       map[string]*Panel
	words        map[string]Word
	grammar      map[string]GrammarStructure
	panelWords   map[string][]string
	panelGrammar map[string][]string
	attempts     []Attempt
	now          func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chapters:     make(map[string]*Chapter),
		panels:       make(map[string]*Panel),
		words:        make(map[string]Word),
		grammar:      make(map[string]GrammarStructure),
		panelWords:   make(map[string][]string),
		panelGrammar: make(map[string][]string),
		now:          time.Now,
	}
}

func (s *MemoryStore) UpsertChapter(_ context.Context, c Chapter) error {
	if c.ID == "" {
		return fmt.Errorf("%w: chapter id is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters[c.ID] = &c
	return nil
}

func (s *MemoryStore) UpsertPanel(_ context.Context, p Panel) error {
	if p.ID == "" {
		return fmt.Errorf("%w: panel id is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wordIDs := make([]string, 0, len(p.Words))
	for _, w := range p.Words {
		s.words[w.ID] = w
		wordIDs = append(wordIDs, w.ID)
	}
	grammarIDs := make([]string, 0, len(p.Grammar))
	for _, g := range p.Grammar {
		s.grammar[g.ID] = g
		grammarIDs = append(grammarIDs, g.ID)
	}
	s.panelWords[p.ID] = wordIDs
	s.panelGrammar[p.ID] = grammarIDs

	p.Words, p.Grammar = nil, nil
	s.panels[p.ID] = &p
	return nil
}

func (s *MemoryStore) GetPanel(_ context.Context, panelID string) (*Panel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.panels[panelID]
	if !ok {
		return nil, fmt.Errorf("panel %s: %w", panelID, ErrNotFound)
	}
	return s.hydrate(p), nil
}

// hydrate copies p and attaches its concepts. Caller holds s.mu.
func (s *MemoryStore) hydrate(p *Panel) *Panel {
	out := *p
	if p.Placement != nil {
		pl := *p.Placement
		out.Placement = &pl
	}
	out.Words = make([]Word, 0, len(s.panelWords[p.ID]))
	for _, id := range s.panelWords[p.ID] {
		out.Words = append(out.Words, s.words[id])
	}
	out.Grammar = make([]GrammarStructure, 0, len(s.panelGrammar[p.ID]))
	for _, id := range s.panelGrammar[p.ID] {
		out.Grammar = append(out.Grammar, s.grammar[id])
	}
	return &out
}

func (s *MemoryStore) FetchPerformance(_ context.Context, learnerID, panelID string) (*Performance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.panels[panelID]; !ok {
		return nil, fmt.Errorf("panel %s: %w", panelID, ErrNotFound)
	}

	perf := &Performance{
		Words:   []ConceptPerformance{},
		Grammar: []ConceptPerformance{},
	}
	for _, id := range s.panelWords[panelID] {
		w := s.words[id]
		if cp, ok := s.tally(learnerID, w.Ref(), w.Japanese, w.Meaning); ok {
			perf.Words = append(perf.Words, cp)
		}
	}
	for _, id := range s.panelGrammar[panelID] {
		g := s.grammar[id]
		if cp, ok := s.tally(learnerID, g.Ref(), g.Name, g.Pattern); ok {
			perf.Grammar = append(perf.Grammar, cp)
		}
	}
	sortWeakestFirst(perf.Words)
	sortWeakestFirst(perf.Grammar)
	return perf, nil
}

// tally counts the learner's attempts on ref. Caller holds s.mu.
func (s *MemoryStore) tally(learnerID string, ref ConceptRef, display, secondary string) (ConceptPerformance, bool) {
	var total, correct int
	for _, a := range s.attempts {
		if a.LearnerID != learnerID || a.Concept != ref {
			continue
		}
		total++
		if a.Correct {
			correct++
		}
	}
	if total == 0 {
		return ConceptPerformance{}, false
	}
	return newConceptPerformance(ref, display, secondary, correct, total), true
}

func (s *MemoryStore) RecordAttempt(_ context.Context, a Attempt) error {
	if err := validateAttempt(a); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch a.Concept.Kind {
	case KindWord:
		if _, ok := s.words[a.Concept.ID]; !ok {
			return fmt.Errorf("word %s: %w", a.Concept.ID, ErrNotFound)
		}
	case KindGrammar:
		if _, ok := s.grammar[a.Concept.ID]; !ok {
			return fmt.Errorf("grammar %s: %w", a.Concept.ID, ErrNotFound)
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *MemoryStore) RecentMistakes(_ context.Context, learnerID string, kind ConceptKind, limit int) ([]Mistake, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("%w: learner id is required", ErrInvalidInput)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: concept kind %q", ErrInvalidInput, kind)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]time.Time)
	for _, a := range s.attempts {
		if a.LearnerID != learnerID || a.Concept.Kind != kind || a.Correct {
			continue
		}
		if a.CreatedAt.After(latest[a.Concept.ID]) {
			latest[a.Concept.ID] = a.CreatedAt
		}
	}

	out := make([]Mistake, 0, len(latest))
	for id, at := range latest {
		m := Mistake{Concept: ConceptRef{ID: id, Kind: kind}, MissedAt: at}
		if kind == KindWord {
			w := s.words[id]
			m.Word = &w
		} else {
			g := s.grammar[id]
			m.Grammar = &g
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Mistake) int {
		if c := b.MissedAt.Compare(a.MissedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Concept.ID, b.Concept.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListChapters(_ context.Context) ([]Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Chapter, 0, len(s.chapters))
	for _, c := range s.chapters {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b Chapter) int {
		return cmp.Or(cmp.Compare(a.OrderIndex, b.OrderIndex), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *MemoryStore) GetChapter(_ context.Context, chapterID string) (*Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chapters[chapterID]
	if !ok {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) ChapterPanels(_ context.Context, chapterID string) ([]Panel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.chapters[chapterID]; !ok {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	return s.collect(func(p *Panel) bool { return p.ChapterID == chapterID }), nil
}

func (s *MemoryStore) SaveChapterStats(_ context.Context, chapterID string, stats ChapterStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chapters[chapterID]
	if !ok {
		return fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	c.Stats = stats
	return nil
}

func (s *MemoryStore) SetPlacement(_ context.Context, panelID string, pl Placement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.panels[panelID]
	if !ok {
		return fmt.Errorf("panel %s: %w", panelID, ErrNotFound)
	}
	p.Placement = &pl
	return nil
}

func (s *MemoryStore) LabeledPanels(_ context.Context, chapterID string) ([]Panel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(p *Panel) bool {
		return p.ChapterID == chapterID && !p.AutoDisqualify && p.Placement != nil
	}), nil
}

func (s *MemoryStore) UnlabeledPanels(_ context.Context) ([]Panel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(p *Panel) bool { return p.Placement == nil }), nil
}

// collect returns hydrated panels matching keep, ordered by chapter order
// then panel order. Caller holds s.mu.
func (s *MemoryStore) collect(keep func(*Panel) bool) []Panel {
	out := []Panel{}
	for _, p := range s.panels {
		if keep(p) {
			out = append(out, *s.hydrate(p))
		}
	}
	chapterOrder := func(id string) int {
		if c, ok := s.chapters[id]; ok {
			return c.OrderIndex
		}
		return 0
	}
	slices.SortFunc(out, func(a, b Panel) int {
		return cmp.Or(
			cmp.Compare(chapterOrder(a.ChapterID), chapterOrder(b.ChapterID)),
			cmp.Compare(a.OrderIndex, b.OrderIndex),
			strings.Compare(a.ID, b.ID),
		)
	})
	return out
}

func validateAttempt(a Attempt) error {
	if a.LearnerID == "" {
		return fmt.Errorf("%w: learner id is required", ErrInvalidInput)
	}
	if a.Concept.ID == "" || !a.Concept.Kind.Valid() {
		return fmt.Errorf("%w: concept reference %+v", ErrInvalidInput, a.Concept)
	}
	return nil
}

func newConceptPerformance(ref ConceptRef, display, secondary string, correct, total int) ConceptPerformance {
	return ConceptPerformance{
		Concept:      ref,
		Display:      display,
		Secondary:    secondary,
		SuccessRate:  float64(correct) / float64(total),
		AttemptCount: total,
	}
}

// sortWeakestFirst orders by ascending success rate, ties by concept id.
func sortWeakestFirst(list []ConceptPerformance) {
	slices.SortStableFunc(list, func(a, b ConceptPerformance) int {
		return cmp.Or(cmp.Compare(a.SuccessRate, b.SuccessRate), strings.Compare(a.Concept.ID, b.Concept.ID))
	})
}
