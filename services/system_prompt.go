package services

import (
	"github.com/tmc/langchaingo/prompts"
	"google.golang.org/genai"
)

// qaTemplate has two slots: the retrieved context and the question.
const qaTemplate = `Based on the following context, provide a detailed and accurate answer to the question. If the context doesn't contain enough information, say so.

Context: {{.context}}

Question: {{.question}}

Answer:`

// NewQAPrompt returns the fixed question-answering template.
func NewQAPrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(qaTemplate, []string{"context", "question"})
}

// GetSystemPrompt defines the standing instructions for chat-style backends.
func GetSystemPrompt() *genai.Content {
	prompt := `You are a study assistant. You answer questions about the study material the student has provided, using only the context given with each question.

Be accurate and concise. Do not invent information. If the context does not contain the answer, say that the material does not cover it.`

	contents := genai.Text(prompt)
	if len(contents) == 0 {
		return nil
	}
	return contents[0]
}
