package models

// Note represents a single chunk held by the session's active index.
type Note struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// GetAllNotesResponse is the structure for the response of the GET /notes endpoint.
type GetAllNotesResponse struct {
	Count     int    `json:"count"`
	Notes     []Note `json:"notes"`
	SessionID string `json:"sessionID"`
}

// SourceDocument represents a retrieved chunk and its origin.
type SourceDocument struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
