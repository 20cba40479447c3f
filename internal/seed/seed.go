// Package seed loads chapter content from YAML files and writes it to a
// store.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/anyuan-chen/manga/internal/manga"
)

// namespace scopes derived ids to this application.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/anyuan-chen/manga"))

// DeriveID returns a stable id for a natural key of the given kind. Keys are
// NFC-normalized, so composed and decomposed spellings share an id.
func DeriveID(kind string, key ...string) string {
	name := norm.NFC.String(kind + ":" + strings.Join(key, "\x00"))
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

// Load reads every chapter seed file under dir, ordered by chapter order.
// Files that are not valid YAML or have no chapter title are skipped.
func Load(dir string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
			return nil
		}

		f, ok, err := loadFile(path)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading seed files: %w", err)
	}

	slices.SortStableFunc(files, func(a, b File) int {
		return a.Chapter.Order - b.Chapter.Order
	})
	slog.Info("seed files loaded", "dir", dir, "chapters", len(files))
	return files, nil
}

func loadFile(path string) (File, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, false, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		slog.Warn("skipping invalid seed YAML", "path", path, "error", err)
		return File{}, false, nil
	}
	if f.Chapter.Title == "" {
		return File{}, false, nil
	}
	return f, true, nil
}

// ChapterModel converts the seed to a chapter, deriving a missing id from the
// title.
func (f File) ChapterModel() manga.Chapter {
	id := f.Chapter.ID
	if id == "" {
		id = DeriveID("chapter", f.Chapter.Title)
	}
	return manga.Chapter{
		ID:         id,
		Title:      f.Chapter.Title,
		OrderIndex: f.Chapter.Order,
		FilePath:   f.Chapter.FilePath,
	}
}

// PanelModels converts the seed's panels. Missing panel ids derive from the
// chapter id and panel order; missing concept ids derive from the word's
// Japanese form or the grammar structure's name.
func (f File) PanelModels(chapterID string) []manga.Panel {
	panels := make([]manga.Panel, 0, len(f.Panels))
	for i, ps := range f.Panels {
		order := ps.Order
		if order == 0 {
			order = i + 1
		}
		id := ps.ID
		if id == "" {
			id = DeriveID("panel", chapterID, strconv.Itoa(order))
		}

		p := manga.Panel{
			ID:             id,
			ChapterID:      chapterID,
			Text:           ps.Text,
			Translation:    ps.Translation,
			OrderIndex:     order,
			AutoDisqualify: ps.AutoDisqualify,
		}
		for _, w := range ps.Words {
			p.Words = append(p.Words, w.model())
		}
		for _, g := range ps.Grammar {
			p.Grammar = append(p.Grammar, g.model())
		}
		panels = append(panels, p)
	}
	return panels
}

func (w WordSeed) model() manga.Word {
	id := w.ID
	if id == "" {
		id = DeriveID("word", w.Japanese)
	}
	return manga.Word{
		ID:           id,
		Japanese:     w.Japanese,
		Reading:      w.Reading,
		Meaning:      w.Meaning,
		PartOfSpeech: w.PartOfSpeech,
		JLPT:         w.JLPT,
	}
}

func (g GrammarSeed) model() manga.GrammarStructure {
	id := g.ID
	if id == "" {
		id = DeriveID("grammar", g.Name)
	}
	return manga.GrammarStructure{
		ID:          id,
		Name:        g.Name,
		Pattern:     g.Pattern,
		Explanation: g.Explanation,
		JLPT:        g.JLPT,
	}
}

// Result counts what Apply wrote.
type Result struct {
	Chapters int
	Panels   int
}

// Apply upserts every chapter and panel in files.
func Apply(ctx context.Context, w manga.SeedWriter, files []File) (Result, error) {
	var res Result
	for _, f := range files {
		c := f.ChapterModel()
		if err := w.UpsertChapter(ctx, c); err != nil {
			return res, fmt.Errorf("seed chapter %q: %w", c.Title, err)
		}
		res.Chapters++

		for _, p := range f.PanelModels(c.ID) {
			if err := w.UpsertPanel(ctx, p); err != nil {
				return res, fmt.Errorf("seed panel %d of %q: %w", p.OrderIndex, c.Title, err)
			}
			res.Panels++
		}
		slog.Info("chapter seeded", "chapter_id", c.ID, "title", c.Title, "panels", len(f.Panels))
	}
	return res, nil
}
