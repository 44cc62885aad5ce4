package models

type ProcessMaterialResponse struct {
	Message   string `json:"message"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	SessionID string `json:"sessionID"`
}

type QueryRAGResponse struct {
	Answer     string           `json:"answer"`
	SourceDocs []SourceDocument `json:"source_docs,omitempty"`
	Error      string           `json:"error,omitempty"`
	SessionID  string           `json:"sessionID"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	SessionID string `json:"sessionID,omitempty"`
}
