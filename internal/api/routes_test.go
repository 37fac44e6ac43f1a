package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hearthside/companion/adapters/memory"
	"github.com/hearthside/companion/domain/entities"
	"github.com/hearthside/companion/domain/repositories"
	"github.com/hearthside/companion/usecase"
)

// fakeSpeechToText returns a canned transcript.
type fakeSpeechToText struct {
	text string
	err  error
}

func (f *fakeSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type testServer struct {
	echo  *echo.Echo
	store *memory.Store
}

func newTestServer(t *testing.T, stt repositories.SpeechToText) *testServer {
	t.Helper()
	if stt == nil {
		stt = &fakeSpeechToText{text: "feeling good today"}
	}
	store := memory.NewStore()
	logger := zap.NewNop()
	e := echo.New()
	InitRoutes(
		e,
		nil, // the websocket endpoint is not exercised here
		store,
		usecase.NewDashboardService(store),
		usecase.NewStatusService(store),
		stt,
		nil,
		logger,
	)
	return &testServer{echo: e, store: store}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/v1/tasks", `{"text":"drink water","type":"water","time":"09:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var task entities.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("decoding created task: %v", err)
	}
	if task.ID == "" || task.Type != entities.TaskTypeWater {
		t.Errorf("created task = %+v", task)
	}

	rec = s.do(http.MethodGet, "/api/v1/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var tasks []entities.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decoding task list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("listed %d tasks, want 1", len(tasks))
	}

	rec = s.do(http.MethodPatch, "/api/v1/tasks/"+task.ID, `{"text":"drink more water","time":"10:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated entities.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Text != "drink more water" || updated.Time != "10:00" {
		t.Errorf("updated task = %+v", updated)
	}
	if updated.Type != entities.TaskTypeWater {
		t.Errorf("patch changed untouched type to %q", updated.Type)
	}

	rec = s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", rec.Code, rec.Body.String())
	}
	var toggled struct {
		Task     entities.Task     `json:"task"`
		Counters entities.Counters `json:"counters"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &toggled); err != nil {
		t.Fatalf("decoding toggle response: %v", err)
	}
	if !toggled.Task.Completed {
		t.Error("task not completed after toggle")
	}
	if toggled.Counters.Stars != 1 {
		t.Errorf("stars = %d, want 1", toggled.Counters.Stars)
	}

	rec = s.do(http.MethodDelete, "/api/v1/tasks/"+task.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = s.do(http.MethodDelete, "/api/v1/tasks/"+task.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/v1/tasks", `{"type":"water"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for missing text, want 400", rec.Code)
	}

	rec = s.do(http.MethodPost, "/api/v1/tasks", `{"text":"x","type":"exercise"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for bad type, want 400", rec.Code)
	}
}

func TestJournalLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/v1/journal", `{"text":"took a short walk"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var entry entities.JournalEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Voice {
		t.Error("typed entry flagged as voice")
	}

	rec = s.do(http.MethodGet, "/api/v1/journal", "")
	var entries []entities.JournalEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("listed %d entries, want 1", len(entries))
	}

	rec = s.do(http.MethodDelete, "/api/v1/journal/"+entry.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestVoiceJournal(t *testing.T) {
	s := newTestServer(t, &fakeSpeechToText{text: "I had soup for lunch"})

	audio := base64.StdEncoding.EncodeToString([]byte("fake-pcm"))
	rec := s.do(http.MethodPost, "/api/v1/journal/voice", `{"audio_data":"`+audio+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var entry entities.JournalEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Text != "I had soup for lunch" {
		t.Errorf("text = %q", entry.Text)
	}
	if !entry.Voice {
		t.Error("voice entry not flagged as voice")
	}
}

func TestVoiceJournalBadAudio(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(http.MethodPost, "/api/v1/journal/voice", `{"audio_data":"not-base64!!"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAppointmentLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/v1/appointments",
		`{"date":"Oct 28, 2025","time":"1:00 PM","title":"Dr. Chen checkup","type":"medical"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var appt entities.Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &appt); err != nil {
		t.Fatal(err)
	}
	if appt.When.IsZero() {
		t.Error("appointment When not parsed")
	}

	rec = s.do(http.MethodPost, "/api/v1/appointments",
		`{"date":"whenever","time":"later","title":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for bad date, want 400", rec.Code)
	}

	rec = s.do(http.MethodDelete, "/api/v1/appointments/"+appt.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestWaterAndChecks(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/v1/water", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("water status = %d", rec.Code)
	}
	var counters entities.Counters
	if err := json.Unmarshal(rec.Body.Bytes(), &counters); err != nil {
		t.Fatal(err)
	}
	if counters.WaterCount != 1 {
		t.Errorf("water count = %d, want 1", counters.WaterCount)
	}
	if counters.Stars != 1 {
		t.Errorf("stars = %d, want 1 after water", counters.Stars)
	}

	rec = s.do(http.MethodPost, "/api/v1/checks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("checks status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &counters); err != nil {
		t.Fatal(err)
	}
	if counters.LastCheck.IsZero() {
		t.Error("check-in time not recorded")
	}
	if counters.Stars != 3 {
		t.Errorf("stars = %d, want 3 after water and check-in", counters.Stars)
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, nil)

	task := entities.NewTask("pending item", entities.TaskTypeGeneral)
	if err := s.store.Tasks().Create(context.Background(), task); err != nil {
		t.Fatal(err)
	}

	rec := s.do(http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Snapshot entities.StatusSnapshot `json:"snapshot"`
		Counters entities.Counters       `json:"counters"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Snapshot.PendingTaskCount != 1 {
		t.Errorf("pending = %d, want 1", body.Snapshot.PendingTaskCount)
	}
}
