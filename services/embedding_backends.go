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

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// OllamaEmbedder generates embeddings using a local Ollama server.
type OllamaEmbedder struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewOllamaEmbedder(client *http.Client, baseURL, model string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text:v1.5"
	}
	return &OllamaEmbedder{httpClient: client, baseURL: strings.TrimRight(baseURL, "/"), model: model}
}

func (o *OllamaEmbedder) ModelID() string { return "ollama:" + o.model }

func (o *OllamaEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := o.embedOne(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (o *OllamaEmbedder) embedOne(ctx context.Context, textToEmbed string) ([]float32, error) {
	reqBody, err := json.Marshal(models.OllamaEmbedRequest{
		Model:  o.model,
		Prompt: textToEmbed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama api returned non-200 status: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp models.OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if len(ollamaResp.Embedding) == 0 {
		return nil, errors.New("ollama returned an empty embedding")
	}
	return ollamaResp.Embedding, nil
}

// OpenAIEmbedder uses an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, baseURL, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("openai embedder: API key not set")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (e *OpenAIEmbedder) ModelID() string { return "openai:" + e.model }

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i := range d.Embedding {
			v[i] = float32(d.Embedding[i])
		}
		out[d.Index] = v
	}
	return out, nil
}

// geminiEmbedBatch is the most inputs batchEmbedContents accepts per call.
const geminiEmbedBatch = 100

// GeminiEmbedder uses the Gemini embedding models.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = "text-embedding-004"
	}
	return &GeminiEmbedder{client: client, model: model}
}

func (g *GeminiEmbedder) ModelID() string { return "gemini:" + g.model }

func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiEmbedBatch {
		end := min(start+geminiEmbedBatch, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			contents = append(contents, genai.Text(t)...)
		}

		resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
		if err != nil {
			return nil, fmt.Errorf("gemini embed texts %d-%d: %w", start, end-1, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini embed: got %d vectors for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}
