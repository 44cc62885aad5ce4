package services

// Document is normalized text produced by the loader. Source is a tag such as
// "user_input", the fetched URL, or "<file>#page=<n>".
type Document struct {
	Content string
	Source  string
}

// Chunk is a window of a document's content. Source is copied from the
// document so the document itself need not be retained after chunking.
type Chunk struct {
	Text   string
	Source string
	Index  int
}

// ScoredChunk is a retrieved chunk with its dot-product similarity to the query.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// Answer is the result of the ask action.
type Answer struct {
	Text            string
	RetrievedChunks []ScoredChunk
}

// InputKind selects how the loader interprets a payload.
type InputKind string

const (
	KindText InputKind = "text"
	KindURL  InputKind = "url"
	KindPDF  InputKind = "pdf"
)

const userInputSource = "user_input"
