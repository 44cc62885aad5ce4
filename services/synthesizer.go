package services

import (
	"context"
	"log"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// FallbackAnswer is returned whenever the backend cannot produce an answer.
const FallbackAnswer = "I couldn't generate a specific answer based on the context."

// AnswerSynthesizer fills the QA template and asks the completion backend.
// It never fails: backend errors degrade to FallbackAnswer.
type AnswerSynthesizer struct {
	backend CompletionBackend
	prompt  prompts.PromptTemplate
	opts    CompletionOptions
}

func NewAnswerSynthesizer(backend CompletionBackend, opts CompletionOptions) *AnswerSynthesizer {
	return &AnswerSynthesizer{backend: backend, prompt: NewQAPrompt(), opts: opts}
}

// BuildPrompt renders the template with chunk texts in similarity order.
func (s *AnswerSynthesizer) BuildPrompt(question string, retrieved []ScoredChunk) (string, error) {
	texts := make([]string, len(retrieved))
	for i, r := range retrieved {
		texts[i] = r.Chunk.Text
	}
	return s.prompt.Format(map[string]any{
		"context":  strings.Join(texts, "\n\n"),
		"question": question,
	})
}

func (s *AnswerSynthesizer) Answer(ctx context.Context, question string, retrieved []ScoredChunk) string {
	prompt, err := s.BuildPrompt(question, retrieved)
	if err != nil {
		log.Printf("SYNTH ERROR: could not render prompt for '%s': %v", summarize(question), err)
		return FallbackAnswer
	}

	answer, err := s.backend.Complete(ctx, prompt, s.opts)
	if err != nil {
		log.Printf("SYNTH ERROR: %s completion failed for '%s' (%d chunks): %v", s.backend.Name(), summarize(question), len(retrieved), err)
		return FallbackAnswer
	}
	log.Printf("SYNTH: Generated answer for '%s': %s", summarize(question), summarize(answer))
	return answer
}
