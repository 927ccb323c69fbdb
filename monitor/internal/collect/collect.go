// CLAUDE:SUMMARY Source collectors: discover the current edition of a gazette and derive its dedup key.
// Package collect discovers the latest document of a source.
package collect

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hazyhaar/diario/monitor/internal/fetch"
)

// DefaultTimeout bounds listing GETs and fixed-URL HEADs.
const DefaultTimeout = 20 * time.Second

var (
	// ErrNoDocument is returned when a listing page links no edition.
	ErrNoDocument = errors.New("collect: no document link found")
	// ErrNoURL is returned when a source has no URL configured.
	ErrNoURL = errors.New("collect: no URL configured")
)

// DefaultLinkPattern matches DOE/PB edition filenames regardless of case; its
// three groups are day, month and year.
var DefaultLinkPattern = regexp.MustCompile(`(?i)diario-oficial-(\d{2})-(\d{2})-(\d{4})-portal\.pdf`)

// Metadata identifies the current edition of a source.
type Metadata struct {
	Source       string `json:"source"`
	URL          string `json:"url"`
	EditionLabel string `json:"editionLabel"`
	DedupKey     string `json:"dedupKey"`
}

// Collector returns the metadata of a source's current edition.
type Collector interface {
	Collect(ctx context.Context) (*Metadata, error)
}

// Client is the subset of fetch.Fetcher used by collectors.
type Client interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Response, error)
	Head(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Response, error)
}

// LabelFromURL extracts a DD/MM/YYYY label from rawURL using pattern, whose
// first three groups must be day, month and year.
func LabelFromURL(pattern *regexp.Regexp, rawURL string) (string, bool) {
	if pattern == nil {
		pattern = DefaultLinkPattern
	}
	m := pattern.FindStringSubmatch(rawURL)
	if len(m) < 4 {
		return "", false
	}
	return fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3]), true
}

// DateLabel formats t as DD/MM/YYYY in loc (UTC when nil).
func DateLabel(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02/01/2006")
}
