package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"feedback-engine/internal/storage"
)

var (
	// The three distinguishable empty states of an analytics query.
	ErrNoRecords   = errors.New("no saved conversations found")
	ErrNoneInRange = errors.New("no conversations found for the selected timeframe")
	ErrNoNegative  = errors.New("no negative or frustrated feedback found in the selected timeframe")
	// ErrNoFeedbackText covers negative records that carry no usable text.
	ErrNoFeedbackText = errors.New("no feedback text found in conversations")

	ErrBadDateFilter = errors.New("invalid date format, use ISO format YYYY-MM-DD or YYYY-MM-DDTHH:MM:SSZ")
)

type FeedbackCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Summary holds aggregate statistics over a set of conversation records.
// Score averages are pointers: nil means no numeric scores were present.
type Summary struct {
	TotalConversations  int            `json:"total_conversations"`
	AvgScore            *float64       `json:"avg_score"`
	MedianScore         *float64       `json:"median_score"`
	SentimentBreakdown  map[string]int `json:"sentiment_breakdown"`
	FollowupRequiredPct float64        `json:"followup_required_pct"`
	CompletedPct        float64        `json:"completed_pct"`
	AvgTurns            float64        `json:"avg_turns"`
	MaxTurns            int            `json:"max_turns"`
}

type Filters struct {
	StartDate      string `json:"start_date,omitempty"`
	EndDate        string `json:"end_date,omitempty"`
	TotalAvailable int    `json:"total_available"`
}

// Report is the full analytics-summary payload: stats, top feedback themes
// and the filtered record list.
type Report struct {
	Summary       *Summary          `json:"summary"`
	TopFeedback   []FeedbackCount   `json:"top_feedback"`
	Conversations []storage.Summary `json:"conversations"`
	Filters       Filters           `json:"filters"`
}

// Summarize computes aggregate statistics and the top-5 feedback themes over
// already-filtered records. Empty input yields (nil, nil), not an error.
func Summarize(records []storage.Summary) (*Summary, []FeedbackCount) {
	if len(records) == 0 {
		return nil, nil
	}

	sum := &Summary{
		TotalConversations: len(records),
		SentimentBreakdown: make(map[string]int),
	}

	var scores []float64
	for _, r := range records {
		if r.Score != nil {
			scores = append(scores, float64(*r.Score))
		}
	}
	if len(scores) > 0 {
		var total float64
		for _, s := range scores {
			total += s
		}
		avg := round2(total / float64(len(scores)))
		sum.AvgScore = &avg
		median := round2(median(scores))
		sum.MedianScore = &median
	}

	for _, r := range records {
		label := r.Sentiment
		if label == "" {
			label = "Unknown"
		}
		sum.SentimentBreakdown[label]++
	}

	// Percentages count only records where the flag is present; absence is
	// not treated as false.
	var followupTrue, followupKnown, completedTrue, completedKnown int
	for _, r := range records {
		if r.RequiresFollowup != nil {
			followupKnown++
			if *r.RequiresFollowup {
				followupTrue++
			}
		}
		if r.ConversationComplete != nil {
			completedKnown++
			if *r.ConversationComplete {
				completedTrue++
			}
		}
	}
	if followupKnown > 0 {
		sum.FollowupRequiredPct = round2(100 * float64(followupTrue) / float64(followupKnown))
	}
	if completedKnown > 0 {
		sum.CompletedPct = round2(100 * float64(completedTrue) / float64(completedKnown))
	}

	var totalTurns int
	for _, r := range records {
		totalTurns += r.TotalTurns
		if r.TotalTurns > sum.MaxTurns {
			sum.MaxTurns = r.TotalTurns
		}
	}
	sum.AvgTurns = round2(float64(totalTurns) / float64(len(records)))

	return sum, topFeedback(records, 5)
}

// topFeedback counts trimmed feedback-point strings across records and keeps
// the top n, ties broken by first-encountered order.
func topFeedback(records []storage.Summary, n int) []FeedbackCount {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0
	for _, r := range records {
		for _, point := range r.InitialFeedbackPoints {
			text := strings.TrimSpace(point)
			if text == "" {
				continue
			}
			if _, seen := counts[text]; !seen {
				firstSeen[text] = order
				order++
			}
			counts[text]++
		}
	}

	items := make([]FeedbackCount, 0, len(counts))
	for text, count := range counts {
		items = append(items, FeedbackCount{Text: text, Count: count})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return firstSeen[items[i].Text] < firstSeen[items[j].Text]
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}

// FilterByDate keeps records whose saved_at parses and falls within
// [start, end] inclusive. A date-only (midnight) end bound covers the entire
// day. Bounds without a timezone are treated as UTC. Records with missing or
// unparseable saved_at are excluded from date-filtered views.
func FilterByDate(records []storage.Summary, startDate, endDate string) ([]storage.Summary, error) {
	var start, end time.Time
	var hasStart, hasEnd bool
	if startDate != "" {
		t, err := parseISOTime(startDate)
		if err != nil {
			return nil, err
		}
		start, hasStart = t, true
	}
	if endDate != "" {
		t, err := parseISOTime(endDate)
		if err != nil {
			return nil, err
		}
		// A midnight end bound means the whole day is inclusive.
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			t = t.Add(24*time.Hour - time.Millisecond)
		}
		end, hasEnd = t, true
	}

	var filtered []storage.Summary
	for _, r := range records {
		if r.SavedAt == "" {
			continue
		}
		saved, err := parseISOTime(r.SavedAt)
		if err != nil {
			continue
		}
		if hasStart && saved.Before(start) {
			continue
		}
		if hasEnd && saved.After(end) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseISOTime(value string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDateFilter, value)
}

// BuildReport loads all records, applies the optional date filter and
// summarizes the result. Empty states surface as ErrNoRecords or
// ErrNoneInRange so the caller can tell them apart.
func BuildReport(store storage.Store, startDate, endDate string) (*Report, error) {
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

	summary, top := Summarize(filtered)
	return &Report{
		Summary:       summary,
		TopFeedback:   top,
		Conversations: filtered,
		Filters: Filters{
			StartDate:      startDate,
			EndDate:        endDate,
			TotalAvailable: len(records),
		},
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
