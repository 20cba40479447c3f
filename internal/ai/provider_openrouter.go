package ai

import "net/http"

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "google/gemini-2.5-flash"
	openRouterTitle          = "manga-reader"
)

// NewOpenRouterProvider creates a provider for OpenRouter, which speaks the
// OpenAI API and accepts attribution headers on every request.
func NewOpenRouterProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	base := []OpenAIOption{
		WithBaseURL(defaultOpenRouterBaseURL),
		WithProviderName("openrouter"),
		WithModel(defaultOpenRouterModel),
		WithHTTPClient(&http.Client{Transport: headerTransport{
			base:    http.DefaultTransport,
			headers: map[string]string{"X-Title": openRouterTitle},
		}}),
	}
	return NewOpenAIProvider(apiKey, append(base, opts...)...)
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
