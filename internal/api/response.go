package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anyuan-chen/manga/internal/ai"
	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/quiz"
)

func jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func errorResponse(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

// StatusOf maps an error to its HTTP status code.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, manga.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, manga.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ai.ErrBudgetExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, quiz.ErrGenerationParse):
		return http.StatusBadGateway
	case errors.Is(err, manga.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the status for err. Client errors echo the error
// message; server errors are logged and answered with msg.
func writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, "path", r.URL.Path, "status", status, "error", err)
		errorResponse(w, msg, status)
		return
	}
	errorResponse(w, err.Error(), status)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %w", manga.ErrInvalidInput, err)
	}
	return nil
}
