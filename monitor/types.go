package monitor

import "github.com/hazyhaar/diario/monitor/internal/state"

// Persisted aggregates, exposed for the status and admin surfaces.
type (
	Group     = state.Group
	History   = state.History
	RunRecord = state.RunRecord
)

// Request parameterizes one invocation. The zero Request is a scheduled run
// over every configured source.
type Request struct {
	// URL overrides collection with an explicit document. Such manual runs
	// bypass dedup and leave the history untouched unless Persist is set.
	URL string `json:"url,omitempty"`
	// Sources restricts the run to these source names.
	Sources []string `json:"sources,omitempty"`
	// Terms replaces the configured and group terms for every source.
	Terms []string `json:"terms,omitempty"`
	// DryRun suppresses the global hit and empty-result notifications.
	DryRun bool `json:"dry,omitempty"`
	// Snippets requests one text excerpt per hit.
	Snippets bool `json:"snippets,omitempty"`
	// Persist records a manual run and advances the source's last-seen key.
	Persist bool `json:"persist,omitempty"`
}

// Manual reports whether r overrides collection with an explicit URL.
func (r Request) Manual() bool { return r.URL != "" }

// Result is the outcome of one invocation.
type Result struct {
	// Terms is the union of the terms searched, in first-seen order.
	Terms   []string       `json:"terms"`
	Message string         `json:"message,omitempty"`
	Sources []SourceResult `json:"sources"`
}

// SourceResult is the outcome of one source.
type SourceResult struct {
	Source       string   `json:"source"`
	URL          string   `json:"url,omitempty"`
	EditionLabel string   `json:"editionLabel,omitempty"`
	Found        bool     `json:"found"`
	Hits         []string `json:"hits"`
	Count        int      `json:"count"`
	Skipped      bool     `json:"skipped,omitempty"`
	Message      string   `json:"message,omitempty"`
	Snippets     []string `json:"snippets,omitempty"`
	Groups       []string `json:"groups,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	Error        string   `json:"error,omitempty"`

	err error
}

// Err returns the error that aborted this source, if any. It wraps one of
// ErrCollection, ErrDownload, ErrExtraction or ErrConfiguration.
func (r SourceResult) Err() error { return r.err }

func (r *SourceResult) fail(err error) {
	r.err = err
	r.Error = err.Error()
}
