package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/seed"
)

const chapterOne = `
chapter:
  title: Yotsuba Chapter 1
  order: 1
  file: /data/chapters/ch01.pdf
panels:
  - order: 1
    text: 猫が好きです。とても好き。
    translation: I like cats. A lot.
    words:
      - japanese: 猫
        reading: ねこ
        meaning: cat
        part_of_speech: noun
        jlpt: 5
      - japanese: 好き
        reading: すき
        meaning: like
    grammar:
      - name: が好き
        pattern: N + が好き
        explanation: expresses liking
        jlpt: 5
  - order: 2
    text: ドーン
    auto_disqualify: true
`

const chapterTwo = `
chapter:
  id: ch-2
  title: Yotsuba Chapter 2
  order: 2
panels:
  - id: p-custom
    text: 猫がいない。
    words:
      - japanese: 猫
        reading: ねこ
        meaning: cat
`

func writeSeeds(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"02-second.yaml":      chapterTwo,
		"nested/01-first.yml": chapterOne,
		"README.md":           "# not a seed",
		"broken.yaml":         "chapter: [unclosed",
		"other.yaml":          "name: not a chapter",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	files, err := seed.Load(writeSeeds(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Load() returned %d files, want 2", len(files))
	}
	if files[0].Chapter.Title != "Yotsuba Chapter 1" || files[1].Chapter.ID != "ch-2" {
		t.Errorf("Load() order = %q, %q", files[0].Chapter.Title, files[1].Chapter.Title)
	}
	if lvl := files[0].Panels[0].Words[0].JLPT; lvl == nil || *lvl != 5 {
		t.Errorf("Words[0].JLPT = %v, want 5", lvl)
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, err := seed.Load(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("Load() should return error for missing directory")
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	files, err := seed.Load(writeSeeds(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	store := manga.NewMemoryStore()
	res, err := seed.Apply(ctx, store, files)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Chapters != 2 || res.Panels != 3 {
		t.Errorf("Apply() = %+v, want 2 chapters, 3 panels", res)
	}

	chOne := seed.DeriveID("chapter", "Yotsuba Chapter 1")
	panels, err := store.ChapterPanels(ctx, chOne)
	if err != nil {
		t.Fatalf("ChapterPanels() error = %v", err)
	}
	if len(panels) != 2 || !panels[1].AutoDisqualify {
		t.Fatalf("ChapterPanels() = %+v", panels)
	}
	first := panels[0]
	if first.ID != seed.DeriveID("panel", chOne, "1") {
		t.Errorf("panel id = %s, want derived from chapter and order", first.ID)
	}
	if len(first.Words) != 2 || len(first.Grammar) != 1 {
		t.Errorf("panel concepts = %d words, %d grammar", len(first.Words), len(first.Grammar))
	}

	custom, err := store.GetPanel(ctx, "p-custom")
	if err != nil {
		t.Fatalf("GetPanel() error = %v", err)
	}
	if custom.OrderIndex != 1 {
		t.Errorf("OrderIndex = %d, want position-based 1", custom.OrderIndex)
	}
	if custom.Words[0].ID != first.Words[0].ID || custom.Words[0].ID != seed.DeriveID("word", "猫") {
		t.Errorf("shared word ids differ: %s vs %s", custom.Words[0].ID, first.Words[0].ID)
	}

	// Re-applying is idempotent.
	if _, err := seed.Apply(ctx, store, files); err != nil {
		t.Fatalf("Apply() again error = %v", err)
	}
	chapters, _ := store.ListChapters(ctx)
	if len(chapters) != 2 {
		t.Errorf("chapters after re-apply = %d, want 2", len(chapters))
	}
}

func TestDeriveID(t *testing.T) {
	a := seed.DeriveID("word", "猫")
	if a != seed.DeriveID("word", "猫") {
		t.Error("DeriveID() is not deterministic")
	}
	if a == seed.DeriveID("grammar", "猫") {
		t.Error("DeriveID() should differ across kinds")
	}
	if seed.DeriveID("panel", "c", "12") == seed.DeriveID("panel", "c1", "2") {
		t.Error("DeriveID() should separate key parts")
	}
	if seed.DeriveID("word", "が") != seed.DeriveID("word", "か\u3099") {
		t.Error("DeriveID() should treat composed and decomposed spellings alike")
	}
}
