package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github/itish2003/studybuddy/models"
	"github/itish2003/studybuddy/services"
	"github/itish2003/studybuddy/store"
)

type cannedBackend struct{}

func (cannedBackend) Name() string { return "canned" }

func (cannedBackend) Complete(_ context.Context, prompt string, _ services.CompletionOptions) (string, error) {
	if strings.Contains(prompt, "Paris") {
		return "Paris.", nil
	}
	return "I don't know.", nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	history := store.NewMemoryStore()
	sessions := services.NewSessionManager(nil, history)
	rag := services.NewRAGService(
		services.NewLoader(nil, 0),
		services.NewChunker("window", 500, 50),
		services.NewEmbedder(services.NewHashEmbedder(64)),
		services.NewAnswerSynthesizer(cannedBackend{}, services.DefaultCompletionOptions()),
		"", 0,
	)
	moods := services.NewMoodTracker(history, 5*time.Minute, 70)
	return NewRouter(NewRAGController(rag, sessions, 0), NewStudyController(sessions, moods))
}

func do(router *gin.Engine, method, path, session string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(newTestRouter(t), http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestProcessThenQuery(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/api/v1/materials", "", models.ProcessMaterialRequest{Kind: "Text", Payload: "Paris is the capital of France."})
	if w.Code != http.StatusCreated {
		t.Fatalf("process = %d %s", w.Code, w.Body.String())
	}
	session := w.Header().Get(SessionHeader)
	if session == "" {
		t.Fatal("no session ID returned")
	}
	var processed models.ProcessMaterialResponse
	json.Unmarshal(w.Body.Bytes(), &processed)
	if processed.SessionID != session || processed.Chunks != 1 {
		t.Errorf("process response = %+v", processed)
	}

	w = do(router, http.MethodPost, "/api/v1/query", session, models.QueryTextRequest{Query: "What is the capital of France?"})
	if w.Code != http.StatusOK {
		t.Fatalf("query = %d %s", w.Code, w.Body.String())
	}
	var answer models.QueryRAGResponse
	json.Unmarshal(w.Body.Bytes(), &answer)
	if answer.Answer != "Paris." || len(answer.SourceDocs) != 1 || answer.SessionID != session {
		t.Errorf("answer = %+v", answer)
	}

	w = do(router, http.MethodGet, "/api/v1/notes", session, nil)
	var notes models.GetAllNotesResponse
	json.Unmarshal(w.Body.Bytes(), &notes)
	if w.Code != http.StatusOK || notes.Count != 1 {
		t.Errorf("notes = %d %+v", w.Code, notes)
	}
}

func TestQuerySessionFromBody(t *testing.T) {
	router := newTestRouter(t)
	w := do(router, http.MethodPost, "/api/v1/materials", "abc", models.ProcessMaterialRequest{Kind: "text", Payload: "Paris is the capital of France."})
	if w.Code != http.StatusCreated {
		t.Fatalf("process = %d", w.Code)
	}
	w = do(router, http.MethodPost, "/api/v1/query", "", models.QueryTextRequest{Query: "capital?", SessionID: "abc"})
	if w.Code != http.StatusOK {
		t.Errorf("query with body session = %d %s", w.Code, w.Body.String())
	}
}

func TestQueryWithoutIndex(t *testing.T) {
	w := do(newTestRouter(t), http.MethodPost, "/api/v1/query", "", models.QueryTextRequest{Query: "anything?"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No index available. Please add and process study materials first.") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestProcessErrors(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/api/v1/materials", "", models.ProcessMaterialRequest{Kind: "text", Payload: "   "})
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "No valid documents to index.") {
		t.Errorf("empty text = %d %s", w.Code, w.Body.String())
	}

	w = do(router, http.MethodPost, "/api/v1/materials", "", models.ProcessMaterialRequest{Kind: "video", Payload: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unsupported kind = %d", w.Code)
	}

	w = do(router, http.MethodPost, "/api/v1/materials", "", map[string]string{"payload": "no kind"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing kind = %d", w.Code)
	}

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	w = do(router, http.MethodPost, "/api/v1/materials", "", models.ProcessMaterialRequest{Kind: "url", Payload: missing.URL})
	if w.Code != http.StatusBadGateway {
		t.Errorf("404 url = %d", w.Code)
	}
}

func TestProcessPDFUpload(t *testing.T) {
	router := newTestRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "notes.pdf")
	part.Write([]byte("this is not a pdf"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/materials/pdf", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("broken pdf = %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/materials/pdf", strings.NewReader(""))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file = %d", w.Code)
	}
}

func TestEndSession(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/api/v1/materials", "s1", models.ProcessMaterialRequest{Kind: "text", Payload: "Paris is the capital of France."})

	if w := do(router, http.MethodDelete, "/api/v1/sessions/s1", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("end = %d", w.Code)
	}
	if w := do(router, http.MethodDelete, "/api/v1/sessions/s1", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("second end = %d", w.Code)
	}
	if w := do(router, http.MethodPost, "/api/v1/query", "s1", models.QueryTextRequest{Query: "capital?"}); w.Code != http.StatusConflict {
		t.Errorf("query after end = %d", w.Code)
	}
}

func TestTasks(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/api/v1/tasks", "s", models.AddTaskRequest{Task: "Read chapter 3"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add = %d %s", w.Code, w.Body.String())
	}
	if w := do(router, http.MethodPost, "/api/v1/tasks", "s", models.AddTaskRequest{Task: "Read chapter 3"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate = %d", w.Code)
	}
	if w := do(router, http.MethodPost, "/api/v1/tasks", "s", models.AddTaskRequest{Task: " "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty = %d", w.Code)
	}

	w = do(router, http.MethodPatch, "/api/v1/tasks/0", "s", nil)
	var list models.TaskListResponse
	json.Unmarshal(w.Body.Bytes(), &list)
	if w.Code != http.StatusOK || list.Tasks[0].Status != services.TaskCompleted || list.Current == nil {
		t.Errorf("toggle = %d %+v", w.Code, list)
	}
	if w := do(router, http.MethodPatch, "/api/v1/tasks/9", "s", nil); w.Code != http.StatusNotFound {
		t.Errorf("toggle missing = %d", w.Code)
	}
	if w := do(router, http.MethodPatch, "/api/v1/tasks/x", "s", nil); w.Code != http.StatusBadRequest {
		t.Errorf("toggle non-number = %d", w.Code)
	}

	w = do(router, http.MethodGet, "/api/v1/tasks", "other", nil)
	list = models.TaskListResponse{}
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Tasks) != 0 {
		t.Errorf("tasks leaked across sessions: %+v", list)
	}
}

func TestMoods(t *testing.T) {
	router := newTestRouter(t)

	for _, e := range []string{"happy", "happy", "happy", "happy"} {
		if w := do(router, http.MethodPost, "/api/v1/moods", "", models.RecordMoodRequest{Emotion: e}); w.Code != http.StatusCreated {
			t.Fatalf("record = %d", w.Code)
		}
	}
	w := do(router, http.MethodGet, "/api/v1/moods/summary", "", nil)
	var report models.MoodSummaryResponse
	json.Unmarshal(w.Body.Bytes(), &report)
	if w.Code != http.StatusOK || report.Dominant != "Happy" || report.Level != "success" || report.Samples != 4 {
		t.Errorf("summary = %d %+v", w.Code, report)
	}
}
