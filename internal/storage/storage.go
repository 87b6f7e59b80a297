package storage

// Turn is one AI-prompt/user-reply exchange inside a conversation.
// The AI prompt of turn N precedes the user reply of turn N.
type Turn struct {
	AI   string `json:"ai"`
	User string `json:"user"`
}

// Analysis is the structured model result attached to a snapshot at save
// time. The boolean fields are pointers so that their absence in an older or
// foreign blob stays distinguishable from false.
type Analysis struct {
	Transcription          string   `json:"transcription,omitempty"`
	Sentiment              string   `json:"sentiment,omitempty"`
	Feedback               []string `json:"feedback,omitempty"`
	ConversationalResponse string   `json:"conversationalResponse,omitempty"`
	RequiresFollowUp       *bool    `json:"requiresFollowUp,omitempty"`
	ConversationComplete   *bool    `json:"conversationComplete,omitempty"`
	Score                  *int     `json:"score,omitempty"`
}

// Metadata carries derived counters and lifecycle timestamps.
type Metadata struct {
	TotalTurns           int    `json:"total_turns"`
	RequiresFollowup     *bool  `json:"requires_followup,omitempty"`
	ConversationComplete *bool  `json:"conversation_complete,omitempty"`
	CreatedAt            string `json:"created_at,omitempty"`
	UpdatedAt            string `json:"updated_at,omitempty"`
	CompletedAt          string `json:"completed_at,omitempty"`
}

// Record is the durable unit: one full conversation state at one point in
// time. Snapshots are append-only; a new blob is written after the initial
// turn and after every follow-up, never mutated in place.
type Record struct {
	Score                 *int      `json:"score,omitempty"`
	Sentiment             string    `json:"sentiment,omitempty"`
	InitialTranscription  string    `json:"initial_transcription,omitempty"`
	InitialFeedbackPoints []string  `json:"initial_feedback_points,omitempty"`
	Turns                 []Turn    `json:"turns"`
	BusinessCategory      string    `json:"business_category,omitempty"`
	FinalAnalysis         *Analysis `json:"final_analysis,omitempty"`
	Metadata              Metadata  `json:"metadata"`
	SavedAt               string    `json:"saved_at"`
}

// Summary is the projection LoadAll reduces every blob to; turn-level text is
// only re-read on demand via LoadFull.
type Summary struct {
	Filename              string   `json:"filename"`
	SavedAt               string   `json:"saved_at,omitempty"`
	Score                 *int     `json:"score,omitempty"`
	Sentiment             string   `json:"sentiment,omitempty"`
	RequiresFollowup      *bool    `json:"requires_followup,omitempty"`
	ConversationComplete  *bool    `json:"conversation_complete,omitempty"`
	TotalTurns            int      `json:"total_turns"`
	InitialTranscription  string   `json:"initial_transcription,omitempty"`
	FinalTranscription    string   `json:"final_transcription,omitempty"`
	FinalResponse         string   `json:"final_response,omitempty"`
	InitialFeedbackPoints []string `json:"initial_feedback_points"`
}

// Store abstracts persistence of conversation snapshots.
// Save must assign a collision-free identifier and write atomically so a
// concurrent LoadAll sees either the old state or the complete new blob.
// LoadAll must skip unreadable entries instead of failing the whole batch.
// Implementations must be safe for concurrent use.
type Store interface {
	Save(record *Record) (string, error)
	LoadAll() ([]Summary, error)
	LoadFull(filename string) (*Record, error)
}
