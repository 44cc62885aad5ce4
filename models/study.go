package models

// Task is one to-do entry. Status is "Pending" or "Completed".
type Task struct {
	Index  int    `json:"index"`
	Title  string `json:"task"`
	Status string `json:"status"`
}

type TaskListResponse struct {
	Tasks     []Task `json:"tasks"`
	Current   *Task  `json:"current,omitempty"`
	SessionID string `json:"sessionID"`
}

// MoodSummaryResponse is the trailing-window evaluation of recorded emotions.
type MoodSummaryResponse struct {
	WindowMinutes int            `json:"window_minutes"`
	Samples       int            `json:"samples"`
	Counts        map[string]int `json:"counts"`
	Dominant      string         `json:"dominant,omitempty"`
	Percentage    float64        `json:"percentage"`
	Level         string         `json:"level"`
	Message       string         `json:"message"`
}
