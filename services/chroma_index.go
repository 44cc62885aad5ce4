package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
)

const chromaAddBatch = 500

// ChromaIndex keeps a session's entries in a Chroma collection. Each rebuild
// populates a fresh staging collection and only then retires the old one.
//
// Readers hold mu for the whole backend call, so the swap waits for them
// and a retired collection is never deleted under an in-flight search.
type ChromaIndex struct {
	client chromago.Client

	rebuildMu sync.Mutex

	mu     sync.RWMutex
	active chromago.Collection
}

func NewChromaIndex(client chromago.Client) *ChromaIndex {
	return &ChromaIndex{client: client}
}

func stagingName(name string) string {
	// chroma names are limited to 63 characters
	if len(name) > 26 {
		name = name[:26]
	}
	return fmt.Sprintf("%s-%s", name, uuid.New().String())
}

func (c *ChromaIndex) Rebuild(ctx context.Context, name string, chunks []Chunk, vectors [][]float32) error {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	if _, err := validateEntries(name, chunks, vectors); err != nil {
		return err
	}

	staging := stagingName(name)
	log.Printf("INDEX: Creating staging collection '%s' for '%s'...", staging, name)
	collection, err := c.client.CreateCollection(
		ctx,
		staging,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "study materials"),
				chromago.NewStringAttribute("logical_name", name),
			),
		),
	)
	if err != nil {
		return &IndexError{Kind: IndexRebuildFailed, Collection: name, Err: fmt.Errorf("create collection: %w", err)}
	}

	if err := addEntries(ctx, collection, chunks, vectors); err != nil {
		if delErr := c.client.DeleteCollection(ctx, staging); delErr != nil {
			log.Printf("INDEX WARN: could not remove staging collection %s: %v", staging, delErr)
		}
		return &IndexError{Kind: IndexRebuildFailed, Collection: name, Err: err}
	}

	c.mu.Lock()
	old := c.active
	c.active = collection
	c.mu.Unlock()

	if old != nil {
		if err := c.client.DeleteCollection(ctx, old.Name()); err != nil {
			log.Printf("INDEX WARN: could not delete retired collection %s: %v", old.Name(), err)
		}
	}
	log.Printf("INDEX: Collection '%s' now serves %d entries from '%s'", name, len(chunks), staging)
	return nil
}

func addEntries(ctx context.Context, collection chromago.Collection, chunks []Chunk, vectors [][]float32) error {
	batchID := uuid.New().String()
	for start := 0; start < len(chunks); start += chromaAddBatch {
		end := start + chromaAddBatch
		if end > len(chunks) {
			end = len(chunks)
		}

		ids := make([]chromago.DocumentID, 0, end-start)
		texts := make([]string, 0, end-start)
		embs := make([]embeddings.Embedding, 0, end-start)
		metas := make([]chromago.DocumentMetadata, 0, end-start)
		for i := start; i < end; i++ {
			ids = append(ids, chromago.DocumentID(fmt.Sprintf("%s-chunk%d", batchID, i)))
			texts = append(texts, chunks[i].Text)
			embs = append(embs, embeddings.NewEmbeddingFromFloat32(vectors[i]))
			metas = append(metas, chromago.NewDocumentMetadata(
				chromago.NewStringAttribute("source", chunks[i].Source),
				chromago.NewIntAttribute("chunk_num", int64(chunks[i].Index)),
			))
		}

		err := collection.Add(ctx,
			chromago.WithIDs(ids...),
			chromago.WithTexts(texts...),
			chromago.WithEmbeddings(embs...),
			chromago.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to add chunks %d-%d to chromadb: %w", start, end-1, err)
		}
	}
	return nil
}

func (c *ChromaIndex) Search(ctx context.Context, query []float32, k int) ([]ScoredChunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	collection := c.active
	if collection == nil {
		return nil, errEmptyIndex("")
	}
	count, err := collection.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count items in collection: %w", err)
	}
	if int(count) == 0 {
		return nil, errEmptyIndex(collection.Name())
	}

	results, err := collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(query)),
		chromago.WithNResults(clampK(k, int(count))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(documentGroups) == 0 {
		return []ScoredChunk{}, nil
	}

	out := make([]ScoredChunk, 0, len(documentGroups[0]))
	for i, doc := range documentGroups[0] {
		chunk := Chunk{Text: doc.ContentString()}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			chunk.Source, chunk.Index = decodeChunkMetadata(metadataGroups[0][i])
		}
		var score float32
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			// squared L2 between unit vectors is 2 - 2*dot
			score = 1 - float32(distanceGroups[0][i])/2
		}
		out = append(out, ScoredChunk{Chunk: chunk, Score: score})
	}
	return out, nil
}

// decodeChunkMetadata goes through JSON since DocumentMetadata has no
// exported map accessor.
func decodeChunkMetadata(metadata chromago.DocumentMetadata) (string, int) {
	if metadata == nil {
		return "", 0
	}
	jsonBytes, err := json.Marshal(metadata)
	if err != nil {
		log.Printf("WARN: could not marshal chunk metadata: %v", err)
		return "", 0
	}
	var metaMap map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &metaMap); err != nil {
		log.Printf("WARN: could not unmarshal chunk metadata: %v", err)
		return "", 0
	}
	source, _ := metaMap["source"].(string)
	num, _ := metaMap["chunk_num"].(float64)
	return source, int(num)
}

func (c *ChromaIndex) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	collection := c.active
	if collection == nil {
		return 0, nil
	}
	count, err := collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

func (c *ChromaIndex) Chunks(ctx context.Context) ([]Chunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	collection := c.active
	if collection == nil {
		return []Chunk{}, nil
	}
	results, err := collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chromadb: %w", err)
	}

	documents := results.GetDocuments()
	metadatas := results.GetMetadatas()
	chunks := make([]Chunk, 0, len(documents))
	for i := range documents {
		chunk := Chunk{Text: documents[i].ContentString()}
		if i < len(metadatas) {
			chunk.Source, chunk.Index = decodeChunkMetadata(metadatas[i])
		}
		chunks = append(chunks, chunk)
	}
	sort.Slice(chunks, func(a, b int) bool { return chunks[a].Index < chunks[b].Index })
	return chunks, nil
}

func (c *ChromaIndex) Drop(ctx context.Context) error {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	c.mu.Lock()
	old := c.active
	c.active = nil
	c.mu.Unlock()

	if old == nil {
		return nil
	}
	if err := c.client.DeleteCollection(ctx, old.Name()); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", old.Name(), err)
	}
	return nil
}
