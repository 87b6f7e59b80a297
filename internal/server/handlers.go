package server

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"feedback-engine/internal/analytics"
	"feedback-engine/internal/conversation"
)

const maxUploadSize = 32 << 20 // audio clips are short; 32MB is plenty

// turnResponse merges the model result with the history object the client
// must carry into the next turn.
type turnResponse struct {
	*conversation.TurnResult
	History *conversation.History `json:"history"`
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	score, ok := parseScore(w, r)
	if !ok {
		return
	}
	audioPath, cleanup, ok := saveAudioUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	result, history, err := s.engine.Begin(r.Context(), conversation.BeginRequest{
		Score:            score,
		Transcription:    r.FormValue("transcription"),
		AudioPath:        audioPath,
		BusinessCategory: r.FormValue("business_category"),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, turnResponse{TurnResult: result, History: history})
}

func (s *Server) handleSubmitFollowup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	score, ok := parseScore(w, r)
	if !ok {
		return
	}
	historyJSON := r.FormValue("conversation_history")
	if historyJSON == "" {
		http.Error(w, "conversation_history is required", http.StatusBadRequest)
		return
	}
	audioPath, cleanup, ok := saveAudioUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	result, history, err := s.engine.Continue(r.Context(), conversation.ContinueRequest{
		Score:            score,
		History:          []byte(historyJSON),
		Transcription:    r.FormValue("transcription"),
		AudioPath:        audioPath,
		BusinessCategory: r.FormValue("business_category"),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, turnResponse{TurnResult: result, History: history})
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := analytics.BuildReport(s.store, r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleTopFocusAreas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := analytics.TopFocusAreas(r.Context(), s.client, s.store,
		r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, report)
}

func parseScore(w http.ResponseWriter, r *http.Request) (int, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		// Fall back to ordinary form encoding for text-only clients.
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return 0, false
		}
	}
	raw := r.FormValue("score")
	if raw == "" {
		http.Error(w, "score is required", http.StatusBadRequest)
		return 0, false
	}
	score, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "score must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return score, true
}

// saveAudioUpload spools an optional audio_data part to a temp file and
// returns its path (empty when no audio was sent) plus a cleanup func.
func saveAudioUpload(w http.ResponseWriter, r *http.Request) (string, func(), bool) {
	noop := func() {}
	if r.MultipartForm == nil {
		return "", noop, true
	}
	file, header, err := r.FormFile("audio_data")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", noop, true
		}
		http.Error(w, "invalid audio upload", http.StatusBadRequest)
		return "", noop, false
	}
	defer func() { _ = file.Close() }()

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".webm"
	}
	tmp, err := os.CreateTemp("", "feedback-audio-*"+ext)
	if err != nil {
		http.Error(w, "failed to store audio upload", http.StatusInternalServerError)
		return "", noop, false
	}
	if _, err := tmp.ReadFrom(file); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		http.Error(w, "failed to store audio upload", http.StatusInternalServerError)
		return "", noop, false
	}
	if err := tmp.Close(); err != nil {
		log.Printf("failed to close audio temp file: %v", err)
	}
	path := tmp.Name()
	return path, func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning deleting temp file: %v", err)
		}
	}, true
}
