package services

import (
	"log"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Chunker splits documents into passages. It never fails; an empty input
// yields an empty result.
type Chunker interface {
	Split(docs []Document) []Chunk
}

// NewChunker returns the chunker for strategy ("window" or "recursive").
func NewChunker(strategy string, size, overlap int) Chunker {
	size, overlap = normalizeWindow(size, overlap)
	if strategy == "recursive" {
		return &RecursiveChunker{
			size:    size,
			overlap: overlap,
			splitter: textsplitter.NewRecursiveCharacter(
				textsplitter.WithChunkSize(size),
				textsplitter.WithChunkOverlap(overlap),
			),
		}
	}
	return &WindowChunker{size: size, overlap: overlap}
}

func normalizeWindow(size, overlap int) (int, int) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}
	return size, overlap
}

// WindowChunker cuts fixed-size rune windows advancing by size-overlap.
type WindowChunker struct {
	size    int
	overlap int
}

func (c *WindowChunker) Split(docs []Document) []Chunk {
	chunks := []Chunk{}
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		for _, text := range splitWindows(d.Content, c.size, c.overlap) {
			chunks = append(chunks, Chunk{Text: text, Source: d.Source, Index: len(chunks)})
		}
	}
	return chunks
}

func splitWindows(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	step := size - overlap
	var out []string
	for start := 0; ; start += step {
		end := start + size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			return out
		}
		out = append(out, string(runes[start:end]))
	}
}

// RecursiveChunker prefers paragraph, line and word boundaries.
type RecursiveChunker struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

func (c *RecursiveChunker) Split(docs []Document) []Chunk {
	chunks := []Chunk{}
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		parts, err := c.splitter.SplitText(d.Content)
		if err != nil {
			log.Printf("CHUNKER WARN: recursive split of %s failed, using windows: %v", d.Source, err)
			parts = splitWindows(d.Content, c.size, c.overlap)
		}
		for _, text := range parts {
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, Chunk{Text: text, Source: d.Source, Index: len(chunks)})
		}
	}
	return chunks
}
