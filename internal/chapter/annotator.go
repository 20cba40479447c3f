package chapter

import (
	"context"
	"fmt"
	"math"

	"github.com/anyuan-chen/manga/internal/manga"
)

// Region is a panel's bounding box as drawn by an annotator, in PDF page
// coordinates.
type Region struct {
	Page   float64 `json:"pageNumber"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Placement floors every coordinate.
func (r Region) Placement() manga.Placement {
	return manga.Placement{
		Page:   int(math.Floor(r.Page)),
		X:      int(math.Floor(r.X)),
		Y:      int(math.Floor(r.Y)),
		Width:  int(math.Floor(r.Width)),
		Height: int(math.Floor(r.Height)),
	}
}

// Annotator maps panels to page regions.
type Annotator struct {
	store manga.AnnotationStore
}

// NewAnnotator creates an Annotator.
func NewAnnotator(store manga.AnnotationStore) *Annotator {
	return &Annotator{store: store}
}

// SetPlacement stores the floored region for the panel.
func (a *Annotator) SetPlacement(ctx context.Context, panelID string, r Region) (manga.Placement, error) {
	if panelID == "" {
		return manga.Placement{}, fmt.Errorf("%w: panel id is required", manga.ErrInvalidInput)
	}
	p := r.Placement()
	if err := a.store.SetPlacement(ctx, panelID, p); err != nil {
		return manga.Placement{}, fmt.Errorf("set placement for panel %s: %w", panelID, err)
	}
	return p, nil
}

// Labeled returns the chapter's placed, quiz-eligible panels in reading order.
func (a *Annotator) Labeled(ctx context.Context, chapterID string) ([]manga.Panel, error) {
	if chapterID == "" {
		return nil, fmt.Errorf("%w: chapter id is required", manga.ErrInvalidInput)
	}
	panels, err := a.store.LabeledPanels(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list labeled panels: %w", err)
	}
	return panels, nil
}

// Unlabeled returns every panel still missing a placement, by chapter then
// reading order.
func (a *Annotator) Unlabeled(ctx context.Context) ([]manga.Panel, error) {
	panels, err := a.store.UnlabeledPanels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unlabeled panels: %w", err)
	}
	return panels, nil
}
