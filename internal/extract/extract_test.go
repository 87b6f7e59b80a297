package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_FencedBlock(t *testing.T) {
	raw := "Here is the analysis you asked for:\n```json\n{\"sentiment\": \"Negative\", \"requiresFollowUp\": true}\n```\nLet me know if you need anything else."
	obj, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "Negative", obj["sentiment"])
	assert.Equal(t, true, obj["requiresFollowUp"])
}

func TestExtract_FencedBlockWithoutTag(t *testing.T) {
	raw := "```\n{\"transcription\": \"the app crashed twice\"}\n```"
	obj, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "the app crashed twice", obj["transcription"])
}

func TestExtract_BraceSpanWithProse(t *testing.T) {
	raw := `Sure! {"conversationalResponse": "Thanks for sharing.", "requiresFollowUp": false} Hope that helps.`
	obj, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "Thanks for sharing.", obj["conversationalResponse"])
	assert.Equal(t, false, obj["requiresFollowUp"])
}

func TestExtract_SingleQuoteRepair(t *testing.T) {
	raw := `{'sentiment': 'Frustrated', 'feedback': ['slow checkout']}`
	obj, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "Frustrated", obj["sentiment"])
	fb, ok := obj["feedback"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"slow checkout"}, fb)
}

func TestExtract_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		_, err := Extract(raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoPayload))
	}
}

func TestExtract_NoJSON(t *testing.T) {
	_, err := Extract("I am sorry, I cannot answer that.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPayload))

	var xerr *ExtractionError
	require.True(t, errors.As(err, &xerr))
	assert.Equal(t, "I am sorry, I cannot answer that.", xerr.Raw)
}

func TestExtract_MalformedBracesNotRepairable(t *testing.T) {
	_, err := Extract(`{"sentiment": "Positive",}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPayload))
}

func TestExtract_FencePreferredOverOuterBraces(t *testing.T) {
	// Outer braces around the fence must not win over the fenced payload.
	raw := "{ preamble\n```json\n{\"sentiment\": \"Positive\"}\n```\n}"
	obj, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "Positive", obj["sentiment"])
}
