package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"feedback-engine/internal/conversation"
	"feedback-engine/internal/llm"
	"feedback-engine/internal/storage"
)

type scriptedLLM struct {
	response string
	calls    int
}

func (s *scriptedLLM) Generate(_ context.Context, _ []llm.Message) (llm.Response, error) {
	s.calls++
	return llm.Response{Content: s.response}, nil
}

func newTestServer(t *testing.T, response string) (*Server, *scriptedLLM) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	client := &scriptedLLM{response: response}
	engine := conversation.NewEngine(client, store, nil)
	return New(engine, store, client, 8000), client
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["status"] != "ok" || body["time"] == "" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestSubmitFeedback_HappyPath(t *testing.T) {
	srv, _ := newTestServer(t, `{
		"transcription": "the portions were tiny",
		"sentiment": "Negative",
		"feedback": ["portion size"],
		"conversationalResponse": "Sorry to hear that! Which dish did you order?",
		"requiresFollowUp": true
	}`)

	body, contentType := multipartBody(t, map[string]string{
		"score":             "3",
		"transcription":     "the portions were tiny",
		"business_category": "restaurant",
	})
	req := httptest.NewRequest(http.MethodPost, "/submit_feedback", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.handleSubmitFeedback(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Transcription    string `json:"transcription"`
		RequiresFollowUp bool   `json:"requiresFollowUp"`
		Score            int    `json:"score"`
		History          struct {
			InitialTranscription string         `json:"initial_transcription"`
			Turns                []storage.Turn `json:"turns"`
		} `json:"history"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !resp.RequiresFollowUp || resp.Score != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.History.InitialTranscription != "the portions were tiny" {
		t.Fatalf("history not returned: %+v", resp.History)
	}
	if resp.History.Turns == nil || len(resp.History.Turns) != 0 {
		t.Fatalf("fresh history must have empty turns: %+v", resp.History.Turns)
	}
}

func TestSubmitFeedback_ScoreOutOfRange(t *testing.T) {
	srv, client := newTestServer(t, "{}")

	body, contentType := multipartBody(t, map[string]string{
		"score":         "11",
		"transcription": "hello",
	})
	req := httptest.NewRequest(http.MethodPost, "/submit_feedback", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.handleSubmitFeedback(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want 400", rr.Code)
	}
	if client.calls != 0 {
		t.Fatalf("model must not be called on validation failure")
	}
}

func TestSubmitFeedback_MissingScore(t *testing.T) {
	srv, _ := newTestServer(t, "{}")

	body, contentType := multipartBody(t, map[string]string{"transcription": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/submit_feedback", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.handleSubmitFeedback(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want 400", rr.Code)
	}
}

func TestSubmitFollowup_MalformedHistory(t *testing.T) {
	srv, _ := newTestServer(t, "{}")

	body, contentType := multipartBody(t, map[string]string{
		"score":                "5",
		"transcription":        "more detail",
		"conversation_history": "{broken",
	})
	req := httptest.NewRequest(http.MethodPost, "/submit_followup", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.handleSubmitFollowup(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want 400, body: %s", rr.Code, rr.Body.String())
	}
}

func TestSubmitFollowup_AppendsTurn(t *testing.T) {
	srv, _ := newTestServer(t, `{
		"transcription": "it was the pasta",
		"conversationalResponse": "Thanks, noted!",
		"requiresFollowUp": false,
		"conversationComplete": true
	}`)

	history, _ := json.Marshal(conversation.History{
		InitialTranscription: "the portions were tiny",
		Score:                3,
		Sentiment:            "Negative",
		Turns:                []storage.Turn{},
	})
	body, contentType := multipartBody(t, map[string]string{
		"score":                "3",
		"transcription":        "it was the pasta",
		"conversation_history": string(history),
	})
	req := httptest.NewRequest(http.MethodPost, "/submit_followup", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.handleSubmitFollowup(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		ConversationComplete bool `json:"conversationComplete"`
		History              struct {
			Turns       []storage.Turn `json:"turns"`
			LastUpdated string         `json:"last_updated"`
		} `json:"history"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !resp.ConversationComplete {
		t.Fatalf("expected completed conversation: %s", rr.Body.String())
	}
	if len(resp.History.Turns) != 1 || resp.History.Turns[0].User != "it was the pasta" {
		t.Fatalf("turn not appended: %+v", resp.History.Turns)
	}
	if resp.History.LastUpdated == "" {
		t.Fatalf("last_updated not set")
	}
}

func TestAnalyticsSummary_EmptyStoreIs404(t *testing.T) {
	srv, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/analytics/summary", nil)
	rr := httptest.NewRecorder()
	srv.handleAnalyticsSummary(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d want 404", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "no saved conversations") {
		t.Fatalf("missing specific empty-state message: %s", rr.Body.String())
	}
}

func TestAnalyticsSummary_AfterConversation(t *testing.T) {
	srv, _ := newTestServer(t, `{
		"transcription": "slow app",
		"sentiment": "Negative",
		"feedback": ["performance"],
		"conversationalResponse": "Sorry!",
		"requiresFollowUp": true
	}`)

	// Drive one initial submission so a snapshot exists.
	body, contentType := multipartBody(t, map[string]string{
		"score":         "2",
		"transcription": "slow app",
	})
	req := httptest.NewRequest(http.MethodPost, "/submit_feedback", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.handleSubmitFeedback(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("seed submission failed: %d %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/analytics/summary", nil)
	rr = httptest.NewRecorder()
	srv.handleAnalyticsSummary(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body: %s", rr.Code, rr.Body.String())
	}
	var report struct {
		Summary struct {
			TotalConversations int      `json:"total_conversations"`
			AvgScore           *float64 `json:"avg_score"`
		} `json:"summary"`
		Conversations []json.RawMessage `json:"conversations"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if report.Summary.TotalConversations != 1 || len(report.Conversations) != 1 {
		t.Fatalf("unexpected report: %s", rr.Body.String())
	}
	if report.Summary.AvgScore == nil || *report.Summary.AvgScore != 2.0 {
		t.Fatalf("unexpected avg score: %v", report.Summary.AvgScore)
	}
}

func TestAnalyticsSummary_NoneInRangeIs404(t *testing.T) {
	srv, _ := newTestServer(t, `{"requiresFollowUp": false, "conversationalResponse": "Thanks"}`)

	body, contentType := multipartBody(t, map[string]string{
		"score":         "9",
		"transcription": "great",
	})
	req := httptest.NewRequest(http.MethodPost, "/submit_feedback", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.handleSubmitFeedback(rr, req)

	target := "/analytics/summary?" + url.Values{"start_date": {"2099-01-01"}}.Encode()
	req = httptest.NewRequest(http.MethodGet, target, nil)
	rr = httptest.NewRecorder()
	srv.handleAnalyticsSummary(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d want 404", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "selected timeframe") {
		t.Fatalf("missing timeframe empty-state message: %s", rr.Body.String())
	}
}

func TestTopFocusAreas_NoNegativeIs404(t *testing.T) {
	srv, _ := newTestServer(t, `{"requiresFollowUp": false, "sentiment": "Positive", "conversationalResponse": "Thanks"}`)

	body, contentType := multipartBody(t, map[string]string{
		"score":         "10",
		"transcription": "everything is great",
	})
	req := httptest.NewRequest(http.MethodPost, "/submit_feedback", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.handleSubmitFeedback(rr, req)

	req = httptest.NewRequest(http.MethodGet, "/analytics/top-focus-areas", nil)
	rr = httptest.NewRecorder()
	srv.handleTopFocusAreas(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d want 404, body: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "negative or frustrated") {
		t.Fatalf("empty state must name the missing negative records: %s", rr.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, "")
	handler := corsMiddleware(http.HandlerFunc(srv.handleHealth))

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}
