// Package mangatest provides fixtures for tests that need a populated store.
package mangatest

import (
	"context"
	"testing"
	"time"

	"github.com/anyuan-chen/manga/internal/manga"
)

// Epoch is the timestamp of the first attempt written by Record.
var Epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// Word builds a word with the given display and meaning.
func Word(id, japanese, meaning string) manga.Word {
	return manga.Word{ID: id, Japanese: japanese, Reading: japanese, Meaning: meaning}
}

// Grammar builds a grammar structure with the given name and pattern.
func Grammar(id, name, pattern string) manga.GrammarStructure {
	return manga.GrammarStructure{ID: id, Name: name, Pattern: pattern, Explanation: name + " explained"}
}

// Seed writes a chapter and its panels, failing the test on error.
func Seed(t testing.TB, store manga.SeedWriter, chapter manga.Chapter, panels ...manga.Panel) {
	t.Helper()
	ctx := context.Background()
	if err := store.UpsertChapter(ctx, chapter); err != nil {
		t.Fatalf("UpsertChapter() error = %v", err)
	}
	for _, p := range panels {
		if p.ChapterID == "" {
			p.ChapterID = chapter.ID
		}
		if err := store.UpsertPanel(ctx, p); err != nil {
			t.Fatalf("UpsertPanel(%s) error = %v", p.ID, err)
		}
	}
}

// Record writes total attempts on ref, the first correct of them correct,
// one minute apart starting at Epoch plus offset.
func Record(t testing.TB, store manga.AttemptRecorder, learnerID string, ref manga.ConceptRef, correct, total int, offset time.Duration) {
	t.Helper()
	for i := range total {
		err := store.RecordAttempt(context.Background(), manga.Attempt{
			LearnerID: learnerID,
			Concept:   ref,
			Correct:   i < correct,
			CreatedAt: Epoch.Add(offset + time.Duration(i)*time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordAttempt() error = %v", err)
		}
	}
}
