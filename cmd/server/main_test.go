package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/anyuan-chen/manga/internal/activity"
	"github.com/anyuan-chen/manga/internal/ai"
	"github.com/anyuan-chen/manga/internal/api"
	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/platform/config"
)

func TestHealthEndpoints(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Library.ChaptersDir = t.TempDir()

	h := newHandler(cfg, manga.NewMemoryStore(), ai.NewMockProvider("[]"), activity.Nop{}, func(context.Context) error { return nil })
	router := api.NewRouter(h, cfg.Server.AllowedOrigins)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}` + "\n",
		},
		{
			name:       "readyz returns 200",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}` + "\n",
		},
		{
			name:       "empty library",
			path:       "/api/pdfs",
			wantStatus: http.StatusOK,
			wantBody:   `{"pdfs":[]}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestNewAIRouter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AIConfig
		want    []string
		wantErr error
	}{
		{
			name:    "nothing configured",
			wantErr: ai.ErrNoProvider,
		},
		{
			name: "registration order",
			cfg: config.AIConfig{
				Ollama:     config.OllamaConfig{Enabled: true, URL: "http://localhost:11434"},
				Anthropic:  config.AnthropicConfig{APIKey: "sk-ant"},
				OpenRouter: config.OpenRouterConfig{APIKey: "sk-or"},
				DeepSeek:   config.DeepSeekConfig{APIKey: "sk-ds"},
				OpenAI:     config.OpenAIConfig{APIKey: "sk"},
				Model:      "gpt-4o",
			},
			want: []string{"openai", "deepseek", "openrouter", "anthropic", "ollama"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := newAIRouter(context.Background(), tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("newAIRouter() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := router.Providers(); !slices.Equal(got, tt.want) {
				t.Errorf("Providers() = %v, want %v", got, tt.want)
			}
		})
	}
}
