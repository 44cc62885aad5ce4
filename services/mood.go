package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github/itish2003/studybuddy/models"
	"github/itish2003/studybuddy/store"
)

const (
	DefaultMoodWindow    = 5 * time.Minute
	DefaultMoodThreshold = 70.0
	neutralEmotion       = "Neutral"
)

// MoodTracker records emotion labels from an external classifier and
// evaluates the dominant mood over a trailing window.
type MoodTracker struct {
	history   store.HistoryStore
	window    time.Duration
	threshold float64
	now       func() time.Time
}

func NewMoodTracker(history store.HistoryStore, window time.Duration, thresholdPercent float64) *MoodTracker {
	if window <= 0 {
		window = DefaultMoodWindow
	}
	if thresholdPercent <= 0 {
		thresholdPercent = DefaultMoodThreshold
	}
	return &MoodTracker{history: history, window: window, threshold: thresholdPercent, now: time.Now}
}

// NormalizeEmotion capitalizes a classifier label; an empty label means no
// face or emotion was detected and maps to Neutral.
func NormalizeEmotion(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return neutralEmotion
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}

func (m *MoodTracker) Record(ctx context.Context, label string) (string, error) {
	emotion := NormalizeEmotion(label)
	rec := store.Record{Kind: store.KindEmotion, Value: emotion, Timestamp: m.now()}
	if err := m.history.Append(ctx, rec); err != nil {
		return "", fmt.Errorf("record emotion %s: %w", emotion, err)
	}
	return emotion, nil
}

func (m *MoodTracker) Evaluate(ctx context.Context) (*models.MoodSummaryResponse, error) {
	records, err := m.history.Since(ctx, store.KindEmotion, m.now().Add(-m.window))
	if err != nil {
		return nil, fmt.Errorf("read recent emotions: %w", err)
	}

	report := &models.MoodSummaryResponse{
		WindowMinutes: int(m.window / time.Minute),
		Samples:       len(records),
		Counts:        map[string]int{},
	}
	if len(records) == 0 {
		report.Level = "info"
		report.Message = "No recent emotions detected."
		return report, nil
	}

	// ties go to the emotion seen first in the window
	var order []string
	for _, r := range records {
		if _, seen := report.Counts[r.Value]; !seen {
			order = append(order, r.Value)
		}
		report.Counts[r.Value]++
	}
	for _, e := range order {
		if report.Dominant == "" || report.Counts[e] > report.Counts[report.Dominant] {
			report.Dominant = e
		}
	}
	report.Percentage = float64(report.Counts[report.Dominant]) / float64(len(records)) * 100

	switch {
	case report.Percentage <= m.threshold:
		report.Level = "info"
		report.Message = "Your mood varies. Stay consistent and take care of yourself!"
	case report.Dominant == "Happy" || report.Dominant == "Surprise":
		report.Level = "success"
		report.Message = "You're feeling great! Keep up the positive vibes!"
	case report.Dominant == "Sad" || report.Dominant == "Angry":
		report.Level = "warning"
		report.Message = "It seems you're feeling down. Consider taking a short break or talking to someone."
	default:
		report.Level = "info"
		report.Message = "You're in a neutral mood. Keep focused and continue your study session!"
	}
	log.Printf("MOOD: %d samples in the last %v, dominant %s (%.2f%%)", len(records), m.window, report.Dominant, report.Percentage)
	return report, nil
}
