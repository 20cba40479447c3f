package quiz_test

import (
	"context"
	"testing"

	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/manga/mangatest"
	"github.com/anyuan-chen/manga/internal/mastery"
	"github.com/anyuan-chen/manga/internal/performance"
)

const longText = "今日はとても良い天気ですね。散歩に行こう" // 20 code points

var (
	wNeko  = mangatest.Word("w-neko", "猫", "cat")
	wInu   = mangatest.Word("w-inu", "犬", "dog")
	gTeiru = mangatest.Grammar("g-teiru", "ている", "Vて + いる")
)

// fixture is a memory store behind a performance cache.
type fixture struct {
	store *manga.MemoryStore
	cache *performance.Cache
	synth *mastery.Synthesizer
}

func newFixture(t *testing.T, panels ...manga.Panel) *fixture {
	t.Helper()
	store := manga.NewMemoryStore()
	mangatest.Seed(t, store, manga.Chapter{ID: "ch1", Title: "Chapter 1", OrderIndex: 1}, panels...)
	cache := performance.NewCache(store)
	return &fixture{store: store, cache: cache, synth: mastery.NewSynthesizer(cache)}
}

// countingPanels counts GetPanel calls and can fail them.
type countingPanels struct {
	manga.PanelReader
	calls int
	err   error
}

func (c *countingPanels) GetPanel(ctx context.Context, id string) (*manga.Panel, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.PanelReader.GetPanel(ctx, id)
}

type failingPerformance struct{ err error }

func (f failingPerformance) Get(context.Context, string, string) (*manga.Performance, error) {
	return nil, f.err
}

func record(t *testing.T, f *fixture, ref manga.ConceptRef, correct, total int) {
	t.Helper()
	mangatest.Record(t, f.store, "u1", ref, correct, total, 0)
}
