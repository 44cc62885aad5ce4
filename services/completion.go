package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github/itish2003/studybuddy/models"

	"google.golang.org/genai"
)

// CompletionOptions bounds a single completion call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	Stop        []string
}

// DefaultCompletionOptions favours determinism for factual answers.
func DefaultCompletionOptions() CompletionOptions {
	return CompletionOptions{MaxTokens: 256, Temperature: 0.5, TopP: 0.9}
}

// CompletionBackend turns a prompt into text. Failures are *BackendError.
type CompletionBackend interface {
	Name() string
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// ResponseAdapter extracts the completion text from a backend's raw JSON.
type ResponseAdapter interface {
	Extract(raw []byte) (string, error)
}

// ChoicesAdapter reads {"choices":[{"text":...}]}.
type ChoicesAdapter struct{}

func (ChoicesAdapter) Extract(raw []byte) (string, error) {
	var resp models.ChoicesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return resp.Choices[0].Text, nil
}

// CompletionFieldAdapter reads {"completion":...}.
type CompletionFieldAdapter struct{}

func (CompletionFieldAdapter) Extract(raw []byte) (string, error) {
	var resp models.CompletionTextResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if resp.Completion == nil {
		return "", errors.New("response has no completion field")
	}
	return *resp.Completion, nil
}

// OllamaGenerateAdapter reads {"response":...} from /api/generate.
type OllamaGenerateAdapter struct{}

func (OllamaGenerateAdapter) Extract(raw []byte) (string, error) {
	var resp models.OllamaGenerateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if resp.Response == nil {
		return "", errors.New("response has no response field")
	}
	return *resp.Response, nil
}

// AdapterFor maps a configured response shape to its adapter.
func AdapterFor(shape string) (ResponseAdapter, error) {
	switch strings.ToLower(shape) {
	case "", "choices":
		return ChoicesAdapter{}, nil
	case "completion":
		return CompletionFieldAdapter{}, nil
	case "ollama":
		return OllamaGenerateAdapter{}, nil
	default:
		return nil, fmt.Errorf("unknown response shape %q", shape)
	}
}

// HTTPCompletionBackend posts prompts to a completions endpoint.
type HTTPCompletionBackend struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
	adapter    ResponseAdapter
	stream     *bool
}

// NewHTTPCompletionBackend builds a backend for baseURL+path. The client's
// timeout bounds each call.
func NewHTTPCompletionBackend(client *http.Client, baseURL, path, model, apiKey string, adapter ResponseAdapter) *HTTPCompletionBackend {
	b := &HTTPCompletionBackend{
		httpClient: client,
		endpoint:   strings.TrimRight(baseURL, "/") + path,
		model:      model,
		apiKey:     apiKey,
		adapter:    adapter,
	}
	if _, ok := adapter.(OllamaGenerateAdapter); ok {
		noStream := false
		b.stream = &noStream
	}
	return b
}

func (b *HTTPCompletionBackend) Name() string { return "http" }

func (b *HTTPCompletionBackend) fail(kind BackendErrorKind, err error) error {
	return &BackendError{Kind: kind, Backend: b.endpoint, Err: err}
}

func (b *HTTPCompletionBackend) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	reqBody, err := json.Marshal(models.CompletionRequest{
		Model:       b.model,
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stop:        opts.Stop,
		Stream:      b.stream,
	})
	if err != nil {
		return "", b.fail(BackendNetwork, fmt.Errorf("failed to marshal completion request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", b.fail(BackendNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", b.fail(BackendNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", b.fail(BackendNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", b.fail(BackendNetwork, fmt.Errorf("HTTP %d: %s", resp.StatusCode, summarize(strings.TrimSpace(string(body)))))
	}

	text, err := b.adapter.Extract(body)
	if err != nil {
		return "", b.fail(BackendMalformedResponse, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", b.fail(BackendEmptyCompletion, nil)
	}
	return text, nil
}

// GeminiCompletionBackend generates answers with a Gemini model.
type GeminiCompletionBackend struct {
	client *genai.Client
	model  string
}

func NewGeminiCompletionBackend(client *genai.Client, model string) *GeminiCompletionBackend {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiCompletionBackend{client: client, model: model}
}

func (g *GeminiCompletionBackend) Name() string { return "gemini" }

func (g *GeminiCompletionBackend) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: GetSystemPrompt(),
		Temperature:       genai.Ptr(opts.Temperature),
		TopP:              genai.Ptr(opts.TopP),
		MaxOutputTokens:   int32(opts.MaxTokens),
		StopSequences:     opts.Stop,
	})
	if err != nil {
		return "", &BackendError{Kind: BackendNetwork, Backend: "gemini", Err: err}
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", &BackendError{Kind: BackendEmptyCompletion, Backend: "gemini"}
	}

	var responseText strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p.Text != "" {
			responseText.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(responseText.String())
	if text == "" {
		return "", &BackendError{Kind: BackendEmptyCompletion, Backend: "gemini"}
	}
	return text, nil
}
