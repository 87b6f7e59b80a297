package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStore keeps one JSON blob per snapshot under a single directory.
// Filenames embed a UTC timestamp plus a sequence suffix so that two saves in
// the same second never overwrite each other.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure conversations dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Save(record *Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	ts := time.Now().UTC().Format("20060102_150405")
	var filename string
	for seq := 0; ; seq++ {
		filename = fmt.Sprintf("conversation_%s_%03d.json", ts, seq)
		if _, err := os.Stat(filepath.Join(s.dir, filename)); os.IsNotExist(err) {
			break
		}
	}

	// Write to a temp file first and rename into place so concurrent readers
	// never observe a partially written blob.
	tmp := filepath.Join(s.dir, filename+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, filename)); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize snapshot: %w", err)
	}
	return filename, nil
}

func (s *FileStore) LoadAll() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read conversations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var summaries []Summary
	for _, name := range names {
		record, err := s.LoadFull(name)
		if err != nil {
			// One bad file must not blank out analytics for all others.
			log.Printf("⚠️ skipping unreadable conversation file %s: %v", name, err)
			continue
		}
		summaries = append(summaries, summarize(name, record))
	}
	return summaries, nil
}

func (s *FileStore) LoadFull(filename string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(filename)))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &record, nil
}

func summarize(filename string, r *Record) Summary {
	sum := Summary{
		Filename:              filename,
		SavedAt:               r.SavedAt,
		Score:                 r.Score,
		Sentiment:             r.Sentiment,
		TotalTurns:            len(r.Turns),
		InitialTranscription:  r.InitialTranscription,
		InitialFeedbackPoints: r.InitialFeedbackPoints,
	}
	if sum.InitialFeedbackPoints == nil {
		sum.InitialFeedbackPoints = []string{}
	}
	if fa := r.FinalAnalysis; fa != nil {
		if sum.Sentiment == "" {
			sum.Sentiment = fa.Sentiment
		}
		sum.RequiresFollowup = fa.RequiresFollowUp
		sum.ConversationComplete = fa.ConversationComplete
		sum.FinalTranscription = fa.Transcription
		sum.FinalResponse = fa.ConversationalResponse
	}
	return sum
}
