package models

// ProcessMaterialRequest carries study material for the "process" action.
// Kind is "text" or "url"; PDFs are uploaded as multipart files.
type ProcessMaterialRequest struct {
	Kind    string `json:"kind" binding:"required"`
	Payload string `json:"payload"`
}

type QueryTextRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"sessionID,omitempty"`
}

type AddTaskRequest struct {
	Task string `json:"task"`
}

type RecordMoodRequest struct {
	Emotion string `json:"emotion"`
}
