package conversation

import (
	"encoding/json"
	"errors"
	"fmt"

	"feedback-engine/internal/storage"
)

var (
	// ErrInvalidScore rejects scores outside the 0-10 range before any model
	// call is attempted.
	ErrInvalidScore = errors.New("score must be between 0 and 10")
	// ErrMissingInput is returned when neither a transcription nor audio was
	// supplied.
	ErrMissingInput = errors.New("either transcription or audio input must be provided")
	// ErrAudioUnsupported is returned when audio input was supplied but the
	// configured provider cannot transcribe it.
	ErrAudioUnsupported = errors.New("audio input is not supported by the configured model provider")
	// ErrBadHistory is returned when a follow-up carries history that does not
	// deserialize; the caller must restart the conversation.
	ErrBadHistory = errors.New("conversation history must be a valid JSON object")
	// ErrBadModelField is returned when a control field is not a boolean after
	// defaulting.
	ErrBadModelField = errors.New("model returned a non-boolean control field")
)

// TurnResult is the normalized structured result of one model turn.
// Sentiment and Feedback are only populated on the first turn.
type TurnResult struct {
	Transcription          string   `json:"transcription"`
	Sentiment              string   `json:"sentiment,omitempty"`
	Feedback               []string `json:"feedback,omitempty"`
	ConversationalResponse string   `json:"conversationalResponse"`
	RequiresFollowUp       bool     `json:"requiresFollowUp"`
	ConversationComplete   bool     `json:"conversationComplete"`
	Score                  int      `json:"score"`
}

// History is the client-carried conversation state. The service is stateless
// across requests: the full history is returned to the caller on every turn
// and passed back in on the next one.
type History struct {
	InitialTranscription string         `json:"initial_transcription"`
	Score                int            `json:"score"`
	Sentiment            string         `json:"sentiment"`
	Feedback             []string       `json:"feedback"`
	Turns                []storage.Turn `json:"turns"`
	ConversationComplete bool           `json:"conversationComplete,omitempty"`
	LastUpdated          string         `json:"last_updated,omitempty"`
}

// ParseHistory deserializes client-supplied history. Malformed history is a
// hard error, not recoverable.
func ParseHistory(raw []byte) (*History, error) {
	var h History
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHistory, err)
	}
	if h.Turns == nil {
		h.Turns = []storage.Turn{}
	}
	return &h, nil
}

// NormalizeTurnResult applies the defaulting laws to an extracted payload:
// a missing requiresFollowUp defaults to true (fail toward continuing the
// conversation, never toward dropping the user), a missing
// conversationComplete defaults to its negation. After defaulting both fields
// must be booleans or the result is rejected.
func NormalizeTurnResult(payload map[string]any) (*TurnResult, error) {
	rf, ok := payload["requiresFollowUp"]
	if !ok {
		rf = true
	}
	requiresFollowUp, ok := rf.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: requiresFollowUp", ErrBadModelField)
	}

	cc, ok := payload["conversationComplete"]
	if !ok {
		cc = !requiresFollowUp
	}
	conversationComplete, ok := cc.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: conversationComplete", ErrBadModelField)
	}

	return &TurnResult{
		Transcription:          stringField(payload, "transcription"),
		Sentiment:              stringField(payload, "sentiment"),
		Feedback:               stringSlice(payload, "feedback"),
		ConversationalResponse: stringField(payload, "conversationalResponse"),
		RequiresFollowUp:       requiresFollowUp,
		ConversationComplete:   conversationComplete,
	}, nil
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func stringSlice(payload map[string]any, key string) []string {
	items, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
