package services

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github/itish2003/studybuddy/models"
)

func TestOllamaEmbedder(t *testing.T) {
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req models.OllamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		prompts = append(prompts, req.Prompt)
		json.NewEncoder(w).Encode(models.OllamaEmbedResponse{Embedding: []float32{3, 4}})
	}))
	defer srv.Close()

	e := NewEmbedder(NewOllamaEmbedder(srv.Client(), srv.URL, ""))
	if e.ModelID() != "ollama:nomic-embed-text:v1.5" {
		t.Errorf("ModelID = %q", e.ModelID())
	}
	vecs, err := e.Embed(context.Background(), []Chunk{{Text: "one"}, {Text: "two"}})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(prompts) != 2 || prompts[0] != "one" || prompts[1] != "two" {
		t.Errorf("prompts = %v", prompts)
	}
	if math.Abs(float64(vecs[0][0])-0.6) > 1e-6 || math.Abs(float64(vecs[0][1])-0.8) > 1e-6 {
		t.Errorf("vector not normalized: %v", vecs[0])
	}
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.Client(), srv.URL, "missing").EmbedTexts(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenAIEmbedder_PreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", srv.URL+"/v1", "")
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedTexts(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors out of order: %v", vecs)
	}
}

func TestOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder("", "", ""); err == nil {
		t.Error("expected error without API key")
	}
}

func TestGeminiEmbedder_BatchesRequests(t *testing.T) {
	var batches []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":batchEmbedContents") {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Requests []json.RawMessage `json:"requests"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		batches = append(batches, len(req.Requests))

		type embedding struct {
			Values []float32 `json:"values"`
		}
		resp := struct {
			Embeddings []embedding `json:"embeddings"`
		}{}
		for i := range req.Requests {
			resp.Embeddings = append(resp.Embeddings, embedding{Values: []float32{float32(i), 1}})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  srv.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	})
	if err != nil {
		t.Fatal(err)
	}

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = "chunk"
	}
	vecs, err := NewGeminiEmbedder(client, "").EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if len(batches) != 3 || batches[0] != 100 || batches[1] != 100 || batches[2] != 50 {
		t.Errorf("batch sizes = %v, want [100 100 50]", batches)
	}
	if len(vecs) != 250 || vecs[100][0] != 0 || vecs[249][0] != 49 {
		t.Errorf("vectors out of order: %d vectors", len(vecs))
	}
}
