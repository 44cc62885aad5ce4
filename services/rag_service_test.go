package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github/itish2003/studybuddy/models"
)

// echoContextBackend answers with the context section of the prompt, so an
// answer only contains what retrieval put there.
func echoContextBackend() *stubBackend {
	return &stubBackend{reply: func(prompt string) (string, error) {
		start := strings.Index(prompt, "Context: ")
		end := strings.Index(prompt, "\n\nQuestion:")
		if start < 0 || end < start {
			return "", errors.New("unexpected prompt")
		}
		return prompt[start+len("Context: ") : end], nil
	}}
}

func newTestRAG(backend CompletionBackend) (RAGService, *Session) {
	rag := NewRAGService(
		NewLoader(nil, 0),
		NewChunker("window", 500, 50),
		NewEmbedder(NewHashEmbedder(384)),
		NewAnswerSynthesizer(backend, DefaultCompletionOptions()),
		"", 0,
	)
	sessions := NewSessionManager(nil, nil)
	s, _ := sessions.Resolve("")
	return rag, s
}

func TestRAG_ParisEndToEnd(t *testing.T) {
	ctx := context.Background()
	rag, s := newTestRAG(echoContextBackend())

	resp, err := rag.ProcessMaterial(ctx, s, KindText, []byte("Paris is the capital of France."))
	if err != nil {
		t.Fatalf("ProcessMaterial: %v", err)
	}
	if resp.Documents != 1 || resp.Chunks != 1 || resp.SessionID != s.ID {
		t.Errorf("process response = %+v", resp)
	}

	answer, err := rag.Ask(ctx, s, "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(answer.Text, "Paris") {
		t.Errorf("answer %q does not mention Paris", answer.Text)
	}
	if len(answer.RetrievedChunks) != 1 || answer.RetrievedChunks[0].Chunk.Source != "user_input" {
		t.Errorf("retrieved = %+v", answer.RetrievedChunks)
	}
}

func TestRAG_RetrievesTopTwo(t *testing.T) {
	ctx := context.Background()
	rag, s := newTestRAG(echoContextBackend())

	docs := []Document{
		{Content: "Mitochondria produce most of the cell's energy.", Source: "bio"},
		{Content: "The French Revolution began in 1789.", Source: "history"},
		{Content: "Photosynthesis in plants converts light into energy.", Source: "plants"},
	}
	if n, err := rag.ProcessDocuments(ctx, s, docs); err != nil || n != 3 {
		t.Fatalf("ProcessDocuments = %d, %v", n, err)
	}

	answer, err := rag.Ask(ctx, s, "When did the French Revolution begin?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.RetrievedChunks) != 2 {
		t.Fatalf("retrieved %d chunks, want 2", len(answer.RetrievedChunks))
	}
	if answer.RetrievedChunks[0].Chunk.Source != "history" {
		t.Errorf("best chunk from %q, want history", answer.RetrievedChunks[0].Chunk.Source)
	}
}

func TestRAG_AskWithoutIndex(t *testing.T) {
	backend := &stubBackend{}
	rag, s := newTestRAG(backend)

	_, err := rag.Ask(context.Background(), s, "anything?")
	if !IsEmptyIndex(err) {
		t.Fatalf("err = %v, want empty index", err)
	}
	if len(backend.prompts) != 0 {
		t.Error("backend should not be called without an index")
	}
}

func TestRAG_EmptyMaterialKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	rag, s := newTestRAG(echoContextBackend())

	if _, err := rag.ProcessMaterial(ctx, s, KindText, []byte("Paris is the capital of France.")); err != nil {
		t.Fatal(err)
	}

	_, err := rag.ProcessMaterial(ctx, s, KindText, []byte("   "))
	if !IsEmptyIndex(err) {
		t.Fatalf("err = %v, want empty index error", err)
	}
	if !strings.Contains(err.Error(), "no valid documents to index") {
		t.Errorf("err = %v", err)
	}

	answer, err := rag.Ask(ctx, s, "capital of France?")
	if err != nil || !strings.Contains(answer.Text, "Paris") {
		t.Errorf("previous index not kept: %v %v", answer, err)
	}
}

func TestRAG_UnsupportedKind(t *testing.T) {
	rag, s := newTestRAG(&stubBackend{})
	_, err := rag.ProcessMaterial(context.Background(), s, InputKind("video"), []byte("x"))
	var le *LoadError
	if !errors.As(err, &le) || le.Kind != LoadUnsupportedKind {
		t.Fatalf("err = %v, want unsupported-kind", err)
	}
}

func TestRAG_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	rag, a := newTestRAG(echoContextBackend())
	sessions := NewSessionManager(nil, nil)
	b, _ := sessions.Resolve("other")

	if _, err := rag.ProcessMaterial(ctx, a, KindText, []byte("Paris is the capital of France.")); err != nil {
		t.Fatal(err)
	}
	if _, err := rag.Ask(ctx, b, "capital?"); !IsEmptyIndex(err) {
		t.Errorf("second session saw the first session's index: %v", err)
	}
}

func TestRAG_QueryAndNotes(t *testing.T) {
	ctx := context.Background()
	rag, s := newTestRAG(echoContextBackend())

	if _, err := rag.ProcessMaterial(ctx, s, KindText, []byte("Water boils at 100 degrees Celsius.")); err != nil {
		t.Fatal(err)
	}

	resp, err := rag.QueryRAG(ctx, s, models.QueryTextRequest{Query: "When does water boil?"})
	if err != nil {
		t.Fatalf("QueryRAG: %v", err)
	}
	if len(resp.SourceDocs) != 1 || resp.SourceDocs[0].Metadata["source"] != "user_input" || resp.SessionID != s.ID {
		t.Errorf("query response = %+v", resp)
	}

	notes, err := rag.GetAllNotes(ctx, s)
	if err != nil {
		t.Fatalf("GetAllNotes: %v", err)
	}
	if notes.Count != 1 || notes.Notes[0].Text != "Water boils at 100 degrees Celsius." {
		t.Errorf("notes = %+v", notes)
	}
	if n, _ := rag.GetTotalChunks(ctx, s); n != 1 {
		t.Errorf("GetTotalChunks = %d", n)
	}
}

func TestRAG_FallbackWhenBackendFails(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{reply: func(string) (string, error) {
		return "", &BackendError{Kind: BackendNetwork, Backend: "stub", Err: errors.New("connection refused")}
	}}
	rag, s := newTestRAG(backend)

	if _, err := rag.ProcessMaterial(ctx, s, KindText, []byte("Paris is the capital of France.")); err != nil {
		t.Fatal(err)
	}
	answer, err := rag.Ask(ctx, s, "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Text != FallbackAnswer {
		t.Errorf("answer = %q, want fallback", answer.Text)
	}
}
