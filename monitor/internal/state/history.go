// CLAUDE:SUMMARY Persisted monitoring state: per-source last-seen keys, bounded run ledger, legacy migration.
// Package state owns the aggregates persisted in the key-value store:
// the run history (history.json) and the subscriber groups (config.json).
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/diario/idgen"
)

const (
	// HistoryKey is the store key of the History aggregate.
	HistoryKey = "history.json"
	// HistoryVersion is the current schema version written by SaveHistory.
	HistoryVersion = 2
	// MaxRuns bounds the run ledger.
	MaxRuns = 300
)

// Source names with built-in meaning.
const (
	SourceDOE  = "DOE/PB"
	SourceDEJT = "DEJT TRT-13"
)

// Store is the key-value contract this package persists through.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RunRecord is one processed edition. Records are never modified once appended.
type RunRecord struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Source            string    `json:"source"`
	EditionLabel      string    `json:"editionLabel,omitempty"`
	URL               string    `json:"url"`
	Found             bool      `json:"found"`
	Hits              []string  `json:"hits"`
	MatchedGroupNames []string  `json:"matchedGroupNames"`
	Manual            bool      `json:"manual,omitempty"`
}

// History is the per-deployment monitoring state.
type History struct {
	Version  int               `json:"version"`
	LastSeen map[string]string `json:"lastSeen"`
	Runs     []RunRecord       `json:"runs"`

	// Migrated is set by DecodeHistory when the stored layout predates
	// HistoryVersion and should be written back.
	Migrated bool `json:"-"`
}

// NewHistory returns an empty, current-version History.
func NewHistory() *History {
	return &History{Version: HistoryVersion, LastSeen: map[string]string{}, Runs: []RunRecord{}}
}

// Append inserts r at the head of the ledger and drops the oldest records
// beyond MaxRuns.
func (h *History) Append(r RunRecord) {
	if r.Hits == nil {
		r.Hits = []string{}
	}
	if r.MatchedGroupNames == nil {
		r.MatchedGroupNames = []string{}
	}
	runs := make([]RunRecord, 0, min(len(h.Runs)+1, MaxRuns))
	runs = append(runs, r)
	runs = append(runs, h.Runs...)
	if len(runs) > MaxRuns {
		runs = runs[:MaxRuns]
	}
	h.Runs = runs
}

// MarkSeen records key as the last processed edition of source.
func (h *History) MarkSeen(source, key string) {
	if h.LastSeen == nil {
		h.LastSeen = map[string]string{}
	}
	h.LastSeen[source] = key
}

// ShouldSkip reports whether key was the last edition processed for source.
func ShouldSkip(source, key string, h *History) bool {
	if h == nil {
		return false
	}
	seen, ok := h.LastSeen[source]
	return ok && seen == key
}

// InferSource guesses the source of a legacy run from its document URL.
func InferSource(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil && strings.EqualFold(u.Hostname(), "auniao.pb.gov.br") {
		return SourceDOE
	}
	return SourceDEJT
}

// LoadHistory reads and migrates the History. A missing key yields an empty
// History.
func LoadHistory(ctx context.Context, kv Store) (*History, error) {
	data, ok, err := kv.Get(ctx, HistoryKey)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", HistoryKey, err)
	}
	if !ok || len(data) == 0 {
		return NewHistory(), nil
	}
	h, err := DecodeHistory(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", HistoryKey, err)
	}
	return h, nil
}

// SaveHistory writes h at the current version.
func SaveHistory(ctx context.Context, kv Store, h *History) error {
	h.Version = HistoryVersion
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := kv.Set(ctx, HistoryKey, data); err != nil {
		return fmt.Errorf("save %s: %w", HistoryKey, err)
	}
	return nil
}

// storedHistory accepts every schema ever written.
type storedHistory struct {
	Version      int               `json:"version"`
	LastSeen     map[string]string `json:"lastSeen"`
	LastSeenHref string            `json:"lastSeenHref"`
	Runs         []storedRun       `json:"runs"`
}

type storedRun struct {
	RunRecord
	When    string `json:"when"`
	PdfURL  string `json:"pdfUrl"`
	Edition string `json:"edition"`
}

// DecodeHistory parses a stored History and migrates legacy layouts:
// lastSeenHref becomes lastSeen["DOE/PB"], and legacy run fields
// (when, pdfUrl, edition) map onto the current ones with the source inferred
// from the document host.
func DecodeHistory(data []byte) (*History, error) {
	var raw storedHistory
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	h := NewHistory()
	h.Migrated = raw.Version < HistoryVersion
	for k, v := range raw.LastSeen {
		h.LastSeen[k] = v
	}
	if raw.LastSeenHref != "" {
		if _, ok := h.LastSeen[SourceDOE]; !ok {
			h.LastSeen[SourceDOE] = raw.LastSeenHref
		}
	}
	for _, sr := range raw.Runs {
		r := sr.RunRecord
		if r.URL == "" {
			r.URL = sr.PdfURL
		}
		if r.EditionLabel == "" {
			r.EditionLabel = sr.Edition
		}
		if r.Timestamp.IsZero() && sr.When != "" {
			if ts, err := time.Parse(time.RFC3339Nano, sr.When); err == nil {
				r.Timestamp = ts
			}
		}
		if r.Source == "" {
			r.Source = InferSource(r.URL)
		}
		if r.ID == "" {
			r.ID = idgen.New()
		}
		if r.Hits == nil {
			r.Hits = []string{}
		}
		if r.MatchedGroupNames == nil {
			r.MatchedGroupNames = []string{}
		}
		h.Runs = append(h.Runs, r)
	}
	if len(h.Runs) > MaxRuns {
		h.Runs = h.Runs[:MaxRuns]
	}
	return h, nil
}
