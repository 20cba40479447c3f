// Package report exports a learner's progress on a chapter as a spreadsheet.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/mastery"
)

const (
	SheetWords   = "Words"
	SheetGrammar = "Grammar"

	bucketNew = "new"
)

var header = []any{"Concept", "Detail", "Attempts", "Success %", "Status"}

// Source provides a chapter's panels and a learner's performance on them.
type Source interface {
	ChapterPanels(ctx context.Context, chapterID string) ([]manga.Panel, error)
	FetchPerformance(ctx context.Context, learnerID, panelID string) (*manga.Performance, error)
}

// Row is one concept line of the report.
type Row struct {
	Display   string
	Secondary string
	Attempts  int
	Success   *int // rounded percent, nil without attempts
	Status    string
}

// Progress holds the rows of both sheets in chapter order.
type Progress struct {
	Words   []Row
	Grammar []Row
}

// Collect gathers one row per distinct concept tagged in the chapter, in
// order of first appearance.
func Collect(ctx context.Context, src Source, learnerID, chapterID string) (*Progress, error) {
	if learnerID == "" || chapterID == "" {
		return nil, fmt.Errorf("%w: learner id and chapter id are required", manga.ErrInvalidInput)
	}
	panels, err := src.ChapterPanels(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("load chapter %s: %w", chapterID, err)
	}

	known := make(map[manga.ConceptRef]manga.ConceptPerformance)
	for _, p := range panels {
		if p.ConceptCount() == 0 {
			continue
		}
		perf, err := src.FetchPerformance(ctx, learnerID, p.ID)
		if err != nil {
			return nil, fmt.Errorf("load performance for panel %s: %w", p.ID, err)
		}
		for _, cp := range perf.All() {
			known[cp.Concept] = cp
		}
	}

	progress := &Progress{}
	seen := make(map[manga.ConceptRef]bool)
	for _, p := range panels {
		for _, w := range p.Words {
			if !seen[w.Ref()] {
				seen[w.Ref()] = true
				progress.Words = append(progress.Words, row(w.Japanese, w.Meaning, known[w.Ref()]))
			}
		}
		for _, g := range p.Grammar {
			if !seen[g.Ref()] {
				seen[g.Ref()] = true
				progress.Grammar = append(progress.Grammar, row(g.Name, g.Pattern, known[g.Ref()]))
			}
		}
	}
	return progress, nil
}

func row(display, secondary string, cp manga.ConceptPerformance) Row {
	r := Row{Display: display, Secondary: secondary, Attempts: cp.AttemptCount, Status: bucketNew}
	if cp.AttemptCount > 0 {
		pct := mastery.Percent(cp.SuccessRate)
		r.Success = &pct
		r.Status = mastery.BucketOf(cp.SuccessRate).String()
	}
	return r
}

// Workbook renders the progress as a workbook with a Words and a Grammar
// sheet. The caller closes the returned file.
func (p *Progress) Workbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetWords); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SheetGrammar); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	for sheet, rows := range map[string][]Row{SheetWords: p.Words, SheetGrammar: p.Grammar} {
		if err := writeSheet(f, sheet, rows, bold); err != nil {
			f.Close()
			return nil, fmt.Errorf("write %s sheet: %w", sheet, err)
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, rows []Row, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "E1", headerStyle); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var success any
		if r.Success != nil {
			success = *r.Success
		}
		values := []any{r.Display, r.Secondary, r.Attempts, success, r.Status}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "B", 24)
}

// Write collects the learner's chapter progress and writes it as .xlsx.
func Write(ctx context.Context, w io.Writer, src Source, learnerID, chapterID string) error {
	progress, err := Collect(ctx, src, learnerID, chapterID)
	if err != nil {
		return err
	}
	f, err := progress.Workbook()
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
