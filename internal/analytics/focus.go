package analytics

import (
	"context"
	"fmt"
	"log"
	"strings"

	"feedback-engine/internal/extract"
	"feedback-engine/internal/llm"
	"feedback-engine/internal/storage"
)

const focusPrompt = `You are a customer feedback analyst. Analyze the negative and frustrated customer feedback provided below and identify the TOP 3 most important things the company should focus on to improve customer satisfaction and address these issues.

Note: All feedback below is from customers with negative or frustrated sentiment. Focus on actionable improvements.

Consider:
- Frequency of mentions
- Severity/impact on customer experience
- Actionability
- Urgency of addressing the issue

All Negative/Frustrated Customer Feedback:

%s

Instructions:
1. Analyze all the negative/frustrated feedback above
2. Identify the 3 most critical areas that need immediate attention to address customer dissatisfaction
3. For each area, provide:
   - A clear, actionable focus area title (e.g., "Improve Response Time", "Enhance Product Quality", "Fix Billing Issues")
   - A brief explanation (1-2 sentences) of why this is important based on the negative feedback and how addressing it will improve customer satisfaction

Respond ONLY with a valid JSON object in this exact format:
{
  "top_focus_areas": [
    {"title": "...", "explanation": "..."},
    {"title": "...", "explanation": "..."},
    {"title": "...", "explanation": "..."}
  ]
}`

// negativeSentiments is the fixed vocabulary selecting records for the
// focus-area analysis; matching is case-insensitive and exact.
var negativeSentiments = map[string]bool{
	"negative":     true,
	"frustrated":   true,
	"angry":        true,
	"disappointed": true,
	"unhappy":      true,
}

func IsNegativeSentiment(sentiment string) bool {
	return negativeSentiments[strings.ToLower(strings.TrimSpace(sentiment))]
}

type FocusArea struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

type FocusReport struct {
	TopFocusAreas              []FocusArea `json:"top_focus_areas"`
	TotalFeedbackItems         int         `json:"total_feedback_items"`
	TotalNegativeConversations int         `json:"total_negative_conversations"`
	TotalConversationsAnalyzed int         `json:"total_conversations_analyzed"`
}

var placeholderFocusArea = FocusArea{
	Title:       "Insufficient feedback data",
	Explanation: "Not enough feedback available to identify this focus area.",
}

// TopFocusAreas asks the model for the top 3 improvement areas derived from
// negative-sentiment conversations in the given date range. The three
// possible empty inputs surface as distinguishable errors.
func TopFocusAreas(ctx context.Context, client llm.Client, store storage.Store, startDate, endDate string) (*FocusReport, error) {
	records, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	filtered := records
	if startDate != "" || endDate != "" {
		filtered, err = FilterByDate(records, startDate, endDate)
		if err != nil {
			return nil, err
		}
	}
	if len(filtered) == 0 {
		return nil, ErrNoneInRange
	}

	var negative []storage.Summary
	for _, r := range filtered {
		if IsNegativeSentiment(r.Sentiment) {
			negative = append(negative, r)
		}
	}
	if len(negative) == 0 {
		return nil, ErrNoNegative
	}

	corpus := collectFeedbackCorpus(store, negative)
	if len(corpus) == 0 {
		return nil, ErrNoFeedbackText
	}

	resp, err := client.Generate(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(focusPrompt, strings.Join(corpus, "\n\n"))},
	})
	if err != nil {
		return nil, fmt.Errorf("model error: %w", err)
	}
	payload, err := extract.Extract(resp.Content)
	if err != nil {
		return nil, err
	}

	areas, err := parseFocusAreas(payload)
	if err != nil {
		return nil, err
	}
	// Exactly 3 areas: truncate extras, pad shortfalls.
	if len(areas) > 3 {
		areas = areas[:3]
	}
	for len(areas) < 3 {
		areas = append(areas, placeholderFocusArea)
	}

	return &FocusReport{
		TopFocusAreas:              areas,
		TotalFeedbackItems:         len(corpus),
		TotalNegativeConversations: len(negative),
		TotalConversationsAnalyzed: len(filtered),
	}, nil
}

// collectFeedbackCorpus flattens every transcription, feedback point and
// per-turn user utterance from the negative records into one text corpus.
// Turn-level text lives only in the full blob, so each record is re-read on
// demand; unreadable blobs are skipped with a warning.
func collectFeedbackCorpus(store storage.Store, negative []storage.Summary) []string {
	var corpus []string
	for _, r := range negative {
		if r.InitialTranscription != "" {
			corpus = append(corpus, "Initial feedback: "+r.InitialTranscription)
		}
		for _, point := range r.InitialFeedbackPoints {
			if point != "" {
				corpus = append(corpus, "Feedback point: "+point)
			}
		}
		if r.FinalTranscription != "" && r.FinalTranscription != r.InitialTranscription {
			corpus = append(corpus, "Follow-up feedback: "+r.FinalTranscription)
		}

		full, err := store.LoadFull(r.Filename)
		if err != nil {
			log.Printf("⚠️ could not load full conversation file %s: %v", r.Filename, err)
			continue
		}
		for _, turn := range full.Turns {
			if turn.User != "" {
				corpus = append(corpus, "User said: "+turn.User)
			}
		}
	}
	return corpus
}

func parseFocusAreas(payload map[string]any) ([]FocusArea, error) {
	raw, ok := payload["top_focus_areas"].([]any)
	if !ok {
		return nil, fmt.Errorf("model response missing top_focus_areas list")
	}
	var areas []FocusArea
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title, _ := obj["title"].(string)
		explanation, _ := obj["explanation"].(string)
		if title == "" {
			continue
		}
		areas = append(areas, FocusArea{Title: title, Explanation: explanation})
	}
	return areas, nil
}
