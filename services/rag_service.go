package services

import (
	"context"
	"fmt"
	"log"

	"github/itish2003/studybuddy/models"
)

// RAGService interface defines the process and ask actions over a session.
type RAGService interface {
	ProcessMaterial(c context.Context, session *Session, kind InputKind, payload []byte) (*models.ProcessMaterialResponse, error)
	ProcessDocuments(c context.Context, session *Session, docs []Document) (int, error)
	Ask(c context.Context, session *Session, question string) (*Answer, error)
	QueryRAG(c context.Context, session *Session, req models.QueryTextRequest) (*models.QueryRAGResponse, error)
	GetAllNotes(c context.Context, session *Session) (*models.GetAllNotesResponse, error)
	GetTotalChunks(c context.Context, session *Session) (int, error)
}

// ragServiceImpl holds the dependencies it needs to do its job
type ragServiceImpl struct {
	loader      *Loader
	chunker     Chunker
	embedder    Embedder
	synthesizer *AnswerSynthesizer
	collection  string
	topK        int
}

// NewRAGService creates a new RAG service instance
func NewRAGService(loader *Loader, chunker Chunker, embedder Embedder, synthesizer *AnswerSynthesizer, collection string, topK int) RAGService {
	if collection == "" {
		collection = "study_materials"
	}
	if topK <= 0 {
		topK = 2
	}
	return &ragServiceImpl{
		loader:      loader,
		chunker:     chunker,
		embedder:    embedder,
		synthesizer: synthesizer,
		collection:  collection,
		topK:        topK,
	}
}

// ProcessMaterial implements RAGService: load -> split -> embed -> rebuild.
func (r *ragServiceImpl) ProcessMaterial(c context.Context, session *Session, kind InputKind, payload []byte) (*models.ProcessMaterialResponse, error) {
	log.Printf("SERVICE: Processing %s input for session %s: '%s'", kind, session.ID, summarize(string(payload)))

	docs, err := r.loader.Load(c, kind, payload)
	if err != nil {
		log.Printf("SERVICE ERROR: Error loading %s input: %v", kind, err)
		return nil, err
	}

	chunks, err := r.ProcessDocuments(c, session, docs)
	if err != nil {
		return nil, err
	}
	return &models.ProcessMaterialResponse{
		Message:   "Study material processed and index created.",
		Documents: len(docs),
		Chunks:    chunks,
		SessionID: session.ID,
	}, nil
}

// ProcessDocuments chunks, embeds and indexes already-loaded documents,
// replacing the session's index. It returns the number of chunks indexed.
func (r *ragServiceImpl) ProcessDocuments(c context.Context, session *Session, docs []Document) (int, error) {
	chunks := r.chunker.Split(docs)
	if len(chunks) == 0 {
		log.Printf("SERVICE WARN: No valid documents to index for session %s.", session.ID)
		return 0, &IndexError{Kind: IndexEmpty, Collection: r.collection, Err: fmt.Errorf("no valid documents to index")}
	}
	log.Printf("SERVICE: Split %d documents into %d chunks.", len(docs), len(chunks))

	vectors, err := r.embedder.Embed(c, chunks)
	if err != nil {
		log.Printf("SERVICE ERROR: Embedding %d chunks failed: %v", len(chunks), err)
		return 0, &IndexError{Kind: IndexRebuildFailed, Collection: r.collection, Err: fmt.Errorf("could not embed chunks: %w", err)}
	}

	if err := session.Index.Rebuild(c, r.collection, chunks, vectors); err != nil {
		log.Printf("SERVICE ERROR: Error creating index for session %s: %v", session.ID, err)
		return 0, err
	}
	log.Printf("SERVICE: Index created and retriever is ready for session %s.", session.ID)
	return len(chunks), nil
}

// Ask implements RAGService: embed query -> search -> answer.
func (r *ragServiceImpl) Ask(c context.Context, session *Session, question string) (*Answer, error) {
	log.Printf("SERVICE: Querying RAG with: '%s' (SessionID: '%s')", summarize(question), session.ID)

	count, err := session.Index.Count(c)
	if err != nil {
		return nil, fmt.Errorf("could not inspect index: %w", err)
	}
	if count == 0 {
		log.Printf("SERVICE WARN: Session %s asked a question without processing study materials.", session.ID)
		return nil, errEmptyIndex(r.collection)
	}

	queryEmbedding, err := r.embedder.EmbedQuery(c, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}

	retrieved, err := session.Index.Search(c, queryEmbedding, r.topK)
	if err != nil {
		return nil, err
	}
	log.Printf("SERVICE-HELPER: Retrieved %d chunks", len(retrieved))

	return &Answer{
		Text:            r.synthesizer.Answer(c, question, retrieved),
		RetrievedChunks: retrieved,
	}, nil
}

// QueryRAG implements RAGService
func (r *ragServiceImpl) QueryRAG(c context.Context, session *Session, req models.QueryTextRequest) (*models.QueryRAGResponse, error) {
	answer, err := r.Ask(c, session, req.Query)
	if err != nil {
		return nil, err
	}

	sources := make([]models.SourceDocument, 0, len(answer.RetrievedChunks))
	for _, rc := range answer.RetrievedChunks {
		sources = append(sources, models.SourceDocument{
			Text: rc.Chunk.Text,
			Metadata: map[string]interface{}{
				"source":    rc.Chunk.Source,
				"chunk_num": rc.Chunk.Index,
				"score":     rc.Score,
			},
		})
	}
	return &models.QueryRAGResponse{
		Answer:     answer.Text,
		SourceDocs: sources,
		SessionID:  session.ID,
	}, nil
}

// GetAllNotes lists the chunks held by the session's active index.
func (r *ragServiceImpl) GetAllNotes(c context.Context, session *Session) (*models.GetAllNotesResponse, error) {
	chunks, err := session.Index.Chunks(c)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	notes := make([]models.Note, 0, len(chunks))
	for _, ch := range chunks {
		notes = append(notes, models.Note{
			ID:   fmt.Sprintf("%s-chunk%d", r.collection, ch.Index),
			Text: ch.Text,
			Metadata: map[string]interface{}{
				"source":    ch.Source,
				"chunk_num": ch.Index,
			},
		})
	}
	log.Printf("SERVICE: Successfully retrieved %d notes", len(notes))
	return &models.GetAllNotesResponse{Count: len(notes), Notes: notes, SessionID: session.ID}, nil
}

// GetTotalChunks counts all the chunks in the session's index.
func (r *ragServiceImpl) GetTotalChunks(c context.Context, session *Session) (int, error) {
	return session.Index.Count(c)
}
