package collect

import (
	"context"
	"net/http"
	"time"
)

// FixedURL watches a document published at a stable address. The edition is
// identified by the server's Last-Modified header; when that is unavailable
// the current local date is used, so at most one run per day is recorded.
type FixedURL struct {
	Source   string
	URL      string
	Timeout  time.Duration  // default DefaultTimeout
	Location *time.Location // labels are local dates; default UTC
	Client   Client
	Now      func() time.Time // default time.Now
}

func (f *FixedURL) Collect(ctx context.Context) (*Metadata, error) {
	if f.URL == "" {
		return nil, ErrNoURL
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	md := &Metadata{Source: f.Source, URL: f.URL}

	if lm, ok := f.lastModified(ctx, timeout); ok {
		md.EditionLabel = DateLabel(lm, f.Location)
		md.DedupKey = f.URL + "#" + lm.UTC().Format(time.RFC3339)
		return md, nil
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	md.EditionLabel = DateLabel(now(), f.Location)
	md.DedupKey = f.URL + "#" + md.EditionLabel
	return md, nil
}

func (f *FixedURL) lastModified(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	resp, err := f.Client.Head(ctx, f.URL, timeout)
	if err != nil {
		return time.Time{}, false
	}
	v := resp.Header.Get("Last-Modified")
	if v == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
