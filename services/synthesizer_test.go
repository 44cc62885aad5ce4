package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// stubBackend records every prompt and replies with a canned answer.
type stubBackend struct {
	prompts []string
	reply   func(prompt string) (string, error)
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Complete(_ context.Context, prompt string, _ CompletionOptions) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.reply != nil {
		return s.reply(prompt)
	}
	return "stub answer", nil
}

func TestBuildPrompt(t *testing.T) {
	s := NewAnswerSynthesizer(&stubBackend{}, DefaultCompletionOptions())
	prompt, err := s.BuildPrompt("What is the capital of France?", []ScoredChunk{
		{Chunk: Chunk{Text: "Paris is the capital of France."}},
		{Chunk: Chunk{Text: "France is in Europe."}},
	})
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(prompt, "Context: Paris is the capital of France.\n\nFrance is in Europe.") {
		t.Errorf("context not joined in order:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Question: What is the capital of France?") {
		t.Errorf("question missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, "doesn't contain enough information") {
		t.Errorf("insufficient-context instruction missing:\n%s", prompt)
	}
}

func TestAnswer_ZeroChunksStillCallsBackend(t *testing.T) {
	backend := &stubBackend{}
	s := NewAnswerSynthesizer(backend, DefaultCompletionOptions())

	if got := s.Answer(context.Background(), "anything?", nil); got != "stub answer" {
		t.Errorf("answer = %q", got)
	}
	if len(backend.prompts) != 1 {
		t.Fatalf("backend called %d times, want 1", len(backend.prompts))
	}
	if !strings.Contains(backend.prompts[0], "Context: \n") {
		t.Errorf("expected empty context in prompt:\n%s", backend.prompts[0])
	}
}

func TestAnswer_FallbackOnUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	backend := NewHTTPCompletionBackend(http.DefaultClient, url, "/v1/completions", "m", "", ChoicesAdapter{})
	s := NewAnswerSynthesizer(backend, DefaultCompletionOptions())

	got := s.Answer(context.Background(), "What is the capital of France?", []ScoredChunk{{Chunk: Chunk{Text: "Paris is the capital of France."}}})
	if got != FallbackAnswer {
		t.Errorf("answer = %q, want fallback", got)
	}
}

func TestAnswer_FallbackOnEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"text":""}]}`))
	}))
	defer srv.Close()

	backend := NewHTTPCompletionBackend(srv.Client(), srv.URL, "/v1/completions", "m", "", ChoicesAdapter{})
	s := NewAnswerSynthesizer(backend, DefaultCompletionOptions())
	if got := s.Answer(context.Background(), "q", nil); got != FallbackAnswer {
		t.Errorf("answer = %q, want fallback", got)
	}
}
