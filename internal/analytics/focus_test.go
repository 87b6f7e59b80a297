package analytics

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedback-engine/internal/llm"
	"feedback-engine/internal/storage"
)

// memStore is an in-memory Store for aggregation tests.
type memStore struct {
	summaries []storage.Summary
	full      map[string]*storage.Record
}

func (m *memStore) Save(*storage.Record) (string, error) { return "", nil }

func (m *memStore) LoadAll() ([]storage.Summary, error) { return m.summaries, nil }

func (m *memStore) LoadFull(filename string) (*storage.Record, error) {
	if r, ok := m.full[filename]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("no such file: %s", filename)
}

type fakeLLM struct {
	response   string
	calls      int
	lastPrompt string
}

func (f *fakeLLM) Generate(_ context.Context, messages []llm.Message) (llm.Response, error) {
	f.calls++
	f.lastPrompt = messages[len(messages)-1].Content
	return llm.Response{Content: f.response}, nil
}

func TestIsNegativeSentiment(t *testing.T) {
	for _, s := range []string{"negative", "Negative", "FRUSTRATED", " angry ", "Disappointed", "unhappy"} {
		assert.True(t, IsNegativeSentiment(s), s)
	}
	for _, s := range []string{"positive", "Confused", "", "neutral"} {
		assert.False(t, IsNegativeSentiment(s), s)
	}
}

func TestTopFocusAreas_EmptyStatesAreDistinct(t *testing.T) {
	client := &fakeLLM{}

	// No records at all.
	_, err := TopFocusAreas(context.Background(), client, &memStore{}, "", "")
	assert.ErrorIs(t, err, ErrNoRecords)

	// Records exist but none in range.
	store := &memStore{summaries: []storage.Summary{
		{Filename: "a", SavedAt: "2025-01-01T10:00:00Z", Sentiment: "Negative"},
	}}
	_, err = TopFocusAreas(context.Background(), client, store, "2030-01-01", "")
	assert.ErrorIs(t, err, ErrNoneInRange)

	// Records in range but none negative.
	store = &memStore{summaries: []storage.Summary{
		{Filename: "a", SavedAt: "2025-01-01T10:00:00Z", Sentiment: "Positive"},
	}}
	_, err = TopFocusAreas(context.Background(), client, store, "", "")
	assert.ErrorIs(t, err, ErrNoNegative)

	assert.Equal(t, 0, client.calls, "no empty state may reach the model")
}

func TestTopFocusAreas_BuildsCorpusAndPadsToThree(t *testing.T) {
	store := &memStore{
		summaries: []storage.Summary{
			{
				Filename:              "neg.json",
				SavedAt:               "2025-01-01T10:00:00Z",
				Sentiment:             "Frustrated",
				InitialTranscription:  "support never answers",
				InitialFeedbackPoints: []string{"slow support"},
				FinalTranscription:    "still waiting on ticket 42",
			},
			{
				Filename:  "pos.json",
				SavedAt:   "2025-01-01T11:00:00Z",
				Sentiment: "Positive",
			},
		},
		full: map[string]*storage.Record{
			"neg.json": {Turns: []storage.Turn{{AI: "what ticket?", User: "ticket 42"}}},
		},
	}
	client := &fakeLLM{response: `{"top_focus_areas": [{"title": "Improve Support Response Time", "explanation": "Customers wait too long."}]}`}

	report, err := TopFocusAreas(context.Background(), client, store, "", "")
	require.NoError(t, err)

	require.Len(t, report.TopFocusAreas, 3)
	assert.Equal(t, "Improve Support Response Time", report.TopFocusAreas[0].Title)
	assert.Equal(t, placeholderFocusArea, report.TopFocusAreas[1])
	assert.Equal(t, placeholderFocusArea, report.TopFocusAreas[2])

	// transcription + feedback point + final transcription + turn utterance
	assert.Equal(t, 4, report.TotalFeedbackItems)
	assert.Equal(t, 1, report.TotalNegativeConversations)
	assert.Equal(t, 2, report.TotalConversationsAnalyzed)

	assert.Contains(t, client.lastPrompt, "support never answers")
	assert.Contains(t, client.lastPrompt, "Feedback point: slow support")
	assert.Contains(t, client.lastPrompt, "User said: ticket 42")
	assert.NotContains(t, client.lastPrompt, "pos.json")
}

func TestTopFocusAreas_TruncatesToThree(t *testing.T) {
	store := &memStore{
		summaries: []storage.Summary{
			{Filename: "n.json", SavedAt: "2025-01-01T10:00:00Z", Sentiment: "angry", InitialTranscription: "bad"},
		},
		full: map[string]*storage.Record{"n.json": {}},
	}
	client := &fakeLLM{response: `{"top_focus_areas": [
		{"title": "A", "explanation": "a"},
		{"title": "B", "explanation": "b"},
		{"title": "C", "explanation": "c"},
		{"title": "D", "explanation": "d"}
	]}`}

	report, err := TopFocusAreas(context.Background(), client, store, "", "")
	require.NoError(t, err)
	require.Len(t, report.TopFocusAreas, 3)
	assert.Equal(t, "C", report.TopFocusAreas[2].Title)
}
