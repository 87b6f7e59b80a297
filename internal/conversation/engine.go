package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"feedback-engine/internal/extract"
	"feedback-engine/internal/llm"
	"feedback-engine/internal/storage"
)

// Alerter receives detractor notifications when a low-score conversation
// completes. A nil Alerter disables alerts.
type Alerter interface {
	AlertDetractor(score int, sentiment, transcription string)
}

// Engine drives the turn-based feedback conversation: it builds prompts,
// invokes the model, extracts and normalizes the structured result, and
// persists a snapshot after every turn. It holds no conversation state of its
// own; callers carry the History between requests.
type Engine struct {
	client  llm.Client
	store   storage.Store
	alerter Alerter
	now     func() time.Time
}

func NewEngine(client llm.Client, store storage.Store, alerter Alerter) *Engine {
	return &Engine{
		client:  client,
		store:   store,
		alerter: alerter,
		now:     time.Now,
	}
}

type BeginRequest struct {
	Score            int
	Transcription    string
	AudioPath        string
	BusinessCategory string
}

type ContinueRequest struct {
	Score            int
	History          []byte
	Transcription    string
	AudioPath        string
	BusinessCategory string
}

// Begin processes the first feedback submission. The initial snapshot is
// always persisted, regardless of whether a follow-up is required, so no
// feedback is lost if the user never returns.
func (e *Engine) Begin(ctx context.Context, req BeginRequest) (*TurnResult, *History, error) {
	if req.Score < 0 || req.Score > 10 {
		return nil, nil, ErrInvalidScore
	}
	userText, err := e.resolveInput(ctx, req.Transcription, req.AudioPath)
	if err != nil {
		return nil, nil, err
	}

	prompt := fmt.Sprintf("%s\n\nUser's feedback: %q", buildInitialPrompt(req.Score), userText)
	result, err := e.callModel(ctx, req.BusinessCategory, prompt)
	if err != nil {
		return nil, nil, err
	}

	if result.Transcription == "" {
		result.Transcription = userText
	}
	result.Score = req.Score

	feedback := result.Feedback
	if feedback == nil {
		feedback = []string{}
	}
	history := &History{
		InitialTranscription: result.Transcription,
		Score:                req.Score,
		Sentiment:            result.Sentiment,
		Feedback:             feedback,
		Turns:                []storage.Turn{},
	}

	e.persistSnapshot(history, req.BusinessCategory, result, true)
	return result, history, nil
}

// Continue processes one follow-up turn. A snapshot is persisted on every
// call, not only at completion; intermediate turns carry analyzable signal
// too.
func (e *Engine) Continue(ctx context.Context, req ContinueRequest) (*TurnResult, *History, error) {
	if req.Score < 0 || req.Score > 10 {
		return nil, nil, ErrInvalidScore
	}
	history, err := ParseHistory(req.History)
	if err != nil {
		return nil, nil, err
	}
	userText, err := e.resolveInput(ctx, req.Transcription, req.AudioPath)
	if err != nil {
		return nil, nil, err
	}

	// The turn count is a steering signal for the model's escalation policy,
	// not a mechanical cap: the engine trusts the model's control fields.
	turnCount := len(history.Turns) + 1
	prompt := fmt.Sprintf("%s\n\nUser's current response: %q",
		buildFollowupPrompt(req.Score, history.InitialTranscription, history.Turns, turnCount), userText)
	result, err := e.callModel(ctx, req.BusinessCategory, prompt)
	if err != nil {
		return nil, nil, err
	}

	if result.Transcription == "" {
		result.Transcription = userText
	}
	result.Score = req.Score

	history.Turns = append(history.Turns, storage.Turn{
		AI:   result.ConversationalResponse,
		User: result.Transcription,
	})
	history.ConversationComplete = result.ConversationComplete
	history.LastUpdated = e.now().UTC().Format(time.RFC3339)

	e.persistSnapshot(history, req.BusinessCategory, result, false)

	if result.ConversationComplete && req.Score <= 6 && e.alerter != nil {
		e.alerter.AlertDetractor(req.Score, history.Sentiment, history.InitialTranscription)
	}
	return result, history, nil
}

func (e *Engine) callModel(ctx context.Context, businessCategory, prompt string) (*TurnResult, error) {
	resp, err := e.client.Generate(ctx, []llm.Message{
		{Role: "system", Content: toneFor(businessCategory)},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("model error: %w", err)
	}
	payload, err := extract.Extract(resp.Content)
	if err != nil {
		// The raw text stays on the error for diagnostics; log a truncated
		// copy here since the handler only reports the failure itself.
		log.Printf("❌ no structured payload in model output: %.300q", resp.Content)
		return nil, err
	}
	return NormalizeTurnResult(payload)
}

func (e *Engine) resolveInput(ctx context.Context, transcription, audioPath string) (string, error) {
	// Pre-supplied transcription always wins; audio is never consulted when
	// text is given.
	if t := strings.TrimSpace(transcription); t != "" {
		return t, nil
	}
	if audioPath != "" {
		tr, ok := e.client.(llm.Transcriber)
		if !ok {
			return "", ErrAudioUnsupported
		}
		text, err := tr.Transcribe(ctx, audioPath)
		if err != nil {
			return "", fmt.Errorf("transcription error: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			return "", ErrMissingInput
		}
		return text, nil
	}
	return "", ErrMissingInput
}

// persistSnapshot appends a snapshot of the current conversation state to the
// record log. Persistence failures are logged and swallowed: the
// conversational reply was already produced and must still reach the user.
func (e *Engine) persistSnapshot(h *History, businessCategory string, result *TurnResult, initial bool) {
	now := e.now().UTC().Format(time.RFC3339)
	score := h.Score
	record := &storage.Record{
		Score:                 &score,
		Sentiment:             h.Sentiment,
		InitialTranscription:  h.InitialTranscription,
		InitialFeedbackPoints: h.Feedback,
		Turns:                 h.Turns,
		BusinessCategory:      businessCategory,
		FinalAnalysis: &storage.Analysis{
			Transcription:          result.Transcription,
			Sentiment:              result.Sentiment,
			Feedback:               result.Feedback,
			ConversationalResponse: result.ConversationalResponse,
			RequiresFollowUp:       &result.RequiresFollowUp,
			ConversationComplete:   &result.ConversationComplete,
			Score:                  &score,
		},
		Metadata: storage.Metadata{
			TotalTurns:           len(h.Turns),
			RequiresFollowup:     &result.RequiresFollowUp,
			ConversationComplete: &result.ConversationComplete,
			UpdatedAt:            now,
		},
		SavedAt: now,
	}
	if initial {
		record.Metadata.CreatedAt = now
	}
	if result.ConversationComplete {
		record.Metadata.CompletedAt = now
	}

	filename, err := e.store.Save(record)
	if err != nil {
		log.Printf("⚠️ failed to persist conversation snapshot: %v", err)
		return
	}
	log.Printf("💾 conversation snapshot saved: %s (turns=%d, complete=%v)",
		filename, record.Metadata.TotalTurns, result.ConversationComplete)
}
