package models

// CompletionRequest is the JSON body sent to an HTTP completion backend.
type CompletionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float32  `json:"temperature"`
	TopP        float32  `json:"top_p"`
	Stop        []string `json:"stop"`
	Stream      *bool    `json:"stream,omitempty"`
}

// ChoicesResponse is the OpenAI-style completion response.
type ChoicesResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// CompletionTextResponse is the {completion: "..."} shape.
type CompletionTextResponse struct {
	Completion *string `json:"completion"`
}

// OllamaGenerateResponse is the non-streaming /api/generate shape.
type OllamaGenerateResponse struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

// OllamaEmbedRequest is the body of POST /api/embeddings.
type OllamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// OllamaEmbedResponse carries one embedding per request.
type OllamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}
