package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/anyuan-chen/manga/internal/activity"
	"github.com/anyuan-chen/manga/internal/ai"
	"github.com/anyuan-chen/manga/internal/chapter"
	"github.com/anyuan-chen/manga/internal/quiz"
	"github.com/anyuan-chen/manga/internal/review"
)

const readyTimeout = 2 * time.Second

// Config holds the services the handler serves.
type Config struct {
	Gate      *quiz.Gate
	Generator *quiz.Generator
	Recorder  *quiz.Recorder
	Review    *review.Service
	Stats     *chapter.Stats
	Annotator *chapter.Annotator
	Library   *chapter.Library
	Activity  activity.Logger // optional
	// Ready reports whether backing services are reachable. Optional.
	Ready func(ctx context.Context) error
}

// Handler implements the HTTP endpoints.
type Handler struct {
	gate      *quiz.Gate
	generator *quiz.Generator
	recorder  *quiz.Recorder
	review    *review.Service
	stats     *chapter.Stats
	annotator *chapter.Annotator
	library   *chapter.Library
	activity  activity.Logger
	ready     func(ctx context.Context) error
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	events := cfg.Activity
	if events == nil {
		events = activity.Nop{}
	}
	return &Handler{
		gate:      cfg.Gate,
		generator: cfg.Generator,
		recorder:  cfg.Recorder,
		review:    cfg.Review,
		stats:     cfg.Stats,
		annotator: cfg.Annotator,
		library:   cfg.Library,
		activity:  events,
		ready:     cfg.Ready,
	}
}

// logEvent records an activity event. Failures are logged, never returned.
func (h *Handler) logEvent(ctx context.Context, e activity.Event) {
	if err := h.activity.Log(ctx, e); err != nil {
		slog.Warn("failed to log activity", "type", e.Type, "learner_id", e.LearnerID, "error", err)
	}
}

// === System ===

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			slog.Warn("readiness check failed", "error", err)
			jsonResponse(w, map[string]string{"status": "unavailable"}, http.StatusServiceUnavailable)
			return
		}
	}
	jsonResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// === Library ===

func (h *Handler) ListPDFs(w http.ResponseWriter, r *http.Request) {
	pdfs, err := h.library.ListPDFs()
	if err != nil {
		writeError(w, r, err, "Failed to read PDFs")
		return
	}
	jsonResponse(w, map[string]any{"pdfs": pdfs}, http.StatusOK)
}

func (h *Handler) ChapterStats(w http.ResponseWriter, r *http.Request) {
	chapterID := mux.Vars(r)["chapterId"]
	stats, err := h.stats.Calculate(r.Context(), chapterID)
	if err != nil {
		writeError(w, r, err, "Failed to calculate chapter stats")
		return
	}
	jsonResponse(w, map[string]any{"chapterId": chapterID, "stats": stats}, http.StatusOK)
}

// === Quiz ===

type questionsResponse struct {
	ShouldAsk  bool                     `json:"shouldAsk"`
	SkipReason quiz.SkipReason          `json:"skipReason,omitempty"`
	Questions  []quiz.GeneratedQuestion `json:"questions"`
}

// PanelQuestions gates the panel for the learner and, when a quiz should be
// shown, generates its questions.
func (h *Handler) PanelQuestions(w http.ResponseWriter, r *http.Request) {
	panelID := mux.Vars(r)["panelId"]
	learnerID := r.URL.Query().Get("userId")
	ctx := ai.WithLearner(r.Context(), learnerID)

	decision, err := h.gate.Decide(ctx, panelID, learnerID)
	if err != nil {
		writeError(w, r, err, "Failed to decide on questions")
		return
	}
	if !decision.ShouldAsk {
		h.logEvent(ctx, activity.Event{
			LearnerID: learnerID,
			PanelID:   panelID,
			Type:      activity.TypeQuizSkipped,
			Data:      map[string]any{"reason": string(decision.SkipReason)},
		})
		jsonResponse(w, questionsResponse{
			SkipReason: decision.SkipReason,
			Questions:  []quiz.GeneratedQuestion{},
		}, http.StatusOK)
		return
	}

	questions, err := h.generator.Generate(ctx, panelID, learnerID)
	if err != nil {
		writeError(w, r, err, "Question generation failed")
		return
	}
	h.logEvent(ctx, activity.Event{
		LearnerID: learnerID,
		PanelID:   panelID,
		Type:      activity.TypeQuestionsGenerated,
		Data:      map[string]any{"count": len(questions)},
	})
	jsonResponse(w, questionsResponse{ShouldAsk: true, Questions: questions}, http.StatusOK)
}

func (h *Handler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	var answer quiz.Answer
	if err := decodeJSON(r, &answer); err != nil {
		writeError(w, r, err, "Failed to record answer")
		return
	}

	correct, err := h.recorder.Record(r.Context(), answer)
	if err != nil {
		writeError(w, r, err, "Failed to record answer")
		return
	}
	h.logEvent(r.Context(), activity.Event{
		LearnerID: answer.LearnerID,
		Type:      activity.TypeAnswerRecorded,
		Data: map[string]any{
			"question_type": string(answer.QuestionType),
			"concept_id":    answer.ConceptID,
			"correct":       correct,
			"time_spent_ms": answer.TimeSpentMS,
		},
	})
	jsonResponse(w, map[string]any{"success": true, "correct": correct}, http.StatusOK)
}

// === Annotation ===

type positionRequest struct {
	PanelID string   `json:"panelId"`
	Page    *float64 `json:"pageNumber"`
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
	Width   *float64 `json:"width"`
	Height  *float64 `json:"height"`
}

func (h *Handler) SetPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, "Failed to update panel position")
		return
	}
	if req.PanelID == "" || req.Page == nil || req.X == nil || req.Y == nil || req.Width == nil || req.Height == nil {
		errorResponse(w, "Missing required fields: panelId, pageNumber, x, y, width, height", http.StatusBadRequest)
		return
	}

	placement, err := h.annotator.SetPlacement(r.Context(), req.PanelID, chapter.Region{
		Page: *req.Page, X: *req.X, Y: *req.Y, Width: *req.Width, Height: *req.Height,
	})
	if err != nil {
		writeError(w, r, err, "Failed to update panel position")
		return
	}
	jsonResponse(w, map[string]any{
		"panel": map[string]any{"id": req.PanelID, "placement": placement},
	}, http.StatusOK)
}

func (h *Handler) LabeledPanels(w http.ResponseWriter, r *http.Request) {
	chapterID := r.URL.Query().Get("chapterId")
	if chapterID == "" {
		errorResponse(w, "chapterId is required", http.StatusBadRequest)
		return
	}
	panels, err := h.annotator.Labeled(r.Context(), chapterID)
	if err != nil {
		writeError(w, r, err, "Failed to fetch labeled panels")
		return
	}
	jsonResponse(w, map[string]any{"panels": panels}, http.StatusOK)
}

func (h *Handler) UnlabeledPanels(w http.ResponseWriter, r *http.Request) {
	panels, err := h.annotator.Unlabeled(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to fetch unlabeled panels")
		return
	}
	jsonResponse(w, map[string]any{"panels": panels}, http.StatusOK)
}

// === Review ===

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("userId")
	ctx := ai.WithLearner(r.Context(), learnerID)

	items, err := h.review.Items(ctx, learnerID)
	if err != nil {
		writeError(w, r, err, "Failed to generate review questions")
		return
	}
	h.logEvent(ctx, activity.Event{
		LearnerID: learnerID,
		Type:      activity.TypeReviewGenerated,
		Data:      map[string]any{"count": len(items)},
	})
	jsonResponse(w, map[string]any{"reviewItems": items}, http.StatusOK)
}

func (h *Handler) ReviewCheck(w http.ResponseWriter, r *http.Request) {
	summary, err := h.review.Check(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, r, err, "Failed to check review status")
		return
	}
	jsonResponse(w, summary, http.StatusOK)
}
