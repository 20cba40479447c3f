package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/platform/config"
	"github.com/anyuan-chen/manga/internal/report"
)

const chapterSeed = `
chapter:
  id: ch-1
  title: Yotsuba Chapter 1
  order: 1
panels:
  - id: p-1
    order: 1
    text: 猫が好きです。とても好き。
    words:
      - id: w-neko
        japanese: 猫
        reading: ねこ
        meaning: cat
        jlpt: 5
    grammar:
      - id: g-suki
        name: が好き
        pattern: N + が好き
        jlpt: 4
`

type memBackend struct {
	*manga.MemoryStore
	migrations int
	releases   int
}

func (m *memBackend) Migrate(context.Context) error {
	m.migrations++
	return nil
}

func (m *memBackend) opener() opener {
	return func(context.Context, *config.Config) (backend, func(), error) {
		return m, func() { m.releases++ }, nil
	}
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(open)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ch1.yaml"), []byte(chapterSeed), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return dir
}

func TestMigrate(t *testing.T) {
	m := &memBackend{MemoryStore: manga.NewMemoryStore()}

	out, err := execute(t, m.opener(), "migrate")
	if err != nil {
		t.Fatalf("migrate error = %v", err)
	}
	if m.migrations != 1 || m.releases != 1 {
		t.Errorf("migrations = %d, releases = %d, want 1 and 1", m.migrations, m.releases)
	}
	if !strings.Contains(out, "up to date") {
		t.Errorf("output = %q", out)
	}
}

func TestSeedAndStats(t *testing.T) {
	m := &memBackend{MemoryStore: manga.NewMemoryStore()}

	out, err := execute(t, m.opener(), "seed", seedDir(t), "--stats")
	if err != nil {
		t.Fatalf("seed error = %v", err)
	}
	if !strings.Contains(out, "Seeded 1 chapters, 1 panels.") || !strings.Contains(out, "Updated stats for 1 chapters.") {
		t.Errorf("output = %q", out)
	}

	c, err := m.GetChapter(context.Background(), "ch-1")
	if err != nil {
		t.Fatalf("GetChapter() error = %v", err)
	}
	if c.Stats.PanelCount != 1 || c.Stats.UniqueWords != 1 || c.Stats.UniqueGrammar != 1 {
		t.Errorf("stats = %+v", c.Stats)
	}

	out, err = execute(t, m.opener(), "stats", "ch-1")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	// 0.6*5 + 0.4*4
	if !strings.Contains(out, "N4.6") || !strings.Contains(out, "Characters:  13") {
		t.Errorf("output = %q", out)
	}
}

func TestSeed_EmptyDir(t *testing.T) {
	m := &memBackend{MemoryStore: manga.NewMemoryStore()}

	if _, err := execute(t, m.opener(), "seed", t.TempDir()); err == nil {
		t.Fatal("seed of an empty directory should fail")
	}
	if m.releases != 0 {
		t.Errorf("store opened %d times, want 0", m.releases)
	}
}

func TestStats_UnknownChapter(t *testing.T) {
	m := &memBackend{MemoryStore: manga.NewMemoryStore()}

	_, err := execute(t, m.opener(), "stats", "nope")
	if !errors.Is(err, manga.ErrNotFound) {
		t.Errorf("stats error = %v, want ErrNotFound", err)
	}
}

func TestExport(t *testing.T) {
	m := &memBackend{MemoryStore: manga.NewMemoryStore()}
	if _, err := execute(t, m.opener(), "seed", seedDir(t)); err != nil {
		t.Fatalf("seed error = %v", err)
	}
	err := m.RecordAttempt(context.Background(), manga.Attempt{
		LearnerID: "u1",
		Concept:   manga.ConceptRef{ID: "w-neko", Kind: manga.KindWord},
		Correct:   true,
	})
	if err != nil {
		t.Fatalf("RecordAttempt() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "u1.xlsx")
	if _, err := execute(t, m.opener(), "export", "--learner", "u1", "--chapter", "ch-1", "--out", path); err != nil {
		t.Fatalf("export error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(report.SheetWords)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "猫" {
		t.Errorf("word rows = %v", rows)
	}
}

func TestExport_RequiresFlags(t *testing.T) {
	m := &memBackend{MemoryStore: manga.NewMemoryStore()}

	if _, err := execute(t, m.opener(), "export", "--learner", "u1"); err == nil {
		t.Fatal("export without --chapter should fail")
	}
}
