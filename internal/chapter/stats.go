// Package chapter computes chapter statistics, manages panel annotations and
// lists the chapter PDFs served to the reader.
package chapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anyuan-chen/manga/internal/manga"
)

const (
	wordWeight    = 0.6
	grammarWeight = 0.4
)

// Stats computes and persists chapter statistics.
type Stats struct {
	store manga.ChapterStore
}

// NewStats creates a Stats.
func NewStats(store manga.ChapterStore) *Stats {
	return &Stats{store: store}
}

// Calculate derives statistics from every panel of the chapter.
func (s *Stats) Calculate(ctx context.Context, chapterID string) (manga.ChapterStats, error) {
	panels, err := s.store.ChapterPanels(ctx, chapterID)
	if err != nil {
		return manga.ChapterStats{}, fmt.Errorf("load chapter %s panels: %w", chapterID, err)
	}
	return Compute(panels), nil
}

// Compute derives statistics from a chapter's panels. Concepts tagged on
// several panels count once; averages cover concepts with a known level.
func Compute(panels []manga.Panel) manga.ChapterStats {
	stats := manga.ChapterStats{PanelCount: len(panels)}

	words := make(map[string]*int)
	grammar := make(map[string]*int)
	for _, p := range panels {
		stats.TotalCharacters += p.TextLength()
		for _, w := range p.Words {
			if _, ok := words[w.ID]; !ok {
				words[w.ID] = w.JLPT
			}
		}
		for _, g := range p.Grammar {
			if _, ok := grammar[g.ID]; !ok {
				grammar[g.ID] = g.JLPT
			}
		}
	}

	stats.UniqueWords = len(words)
	stats.UniqueGrammar = len(grammar)
	stats.AvgWordJLPT = average(words)
	stats.AvgGrammarJLPT = average(grammar)

	switch w, g := stats.AvgWordJLPT, stats.AvgGrammarJLPT; {
	case w != nil && g != nil:
		v := *w*wordWeight + *g*grammarWeight
		stats.PredictedJLPT = &v
	case w != nil:
		stats.PredictedJLPT = w
	case g != nil:
		stats.PredictedJLPT = g
	}
	return stats
}

func average(levels map[string]*int) *float64 {
	var sum, n int
	for _, l := range levels {
		if l != nil {
			sum += *l
			n++
		}
	}
	if n == 0 {
		return nil
	}
	v := float64(sum) / float64(n)
	return &v
}

// Update recalculates and stores the chapter's statistics.
func (s *Stats) Update(ctx context.Context, chapterID string) (manga.ChapterStats, error) {
	stats, err := s.Calculate(ctx, chapterID)
	if err != nil {
		return manga.ChapterStats{}, err
	}
	if err := s.store.SaveChapterStats(ctx, chapterID, stats); err != nil {
		return manga.ChapterStats{}, fmt.Errorf("save chapter %s stats: %w", chapterID, err)
	}
	return stats, nil
}

// UpdateAll updates every chapter, logging and skipping chapters that fail.
// It returns the number of chapters updated.
func (s *Stats) UpdateAll(ctx context.Context) (int, error) {
	chapters, err := s.store.ListChapters(ctx)
	if err != nil {
		return 0, fmt.Errorf("list chapters: %w", err)
	}

	slog.Info("updating chapter stats", "chapters", len(chapters))
	updated := 0
	for _, c := range chapters {
		stats, err := s.Update(ctx, c.ID)
		if err != nil {
			slog.Error("chapter stats update failed", "chapter_id", c.ID, "title", c.Title, "error", err)
			continue
		}
		updated++
		attrs := []any{
			"chapter_id", c.ID,
			"panels", stats.PanelCount,
			"words", stats.UniqueWords,
			"grammar", stats.UniqueGrammar,
		}
		if stats.PredictedJLPT != nil {
			attrs = append(attrs, "jlpt", fmt.Sprintf("%.1f", *stats.PredictedJLPT))
		}
		slog.Info("chapter stats updated", attrs...)
	}
	return updated, nil
}
