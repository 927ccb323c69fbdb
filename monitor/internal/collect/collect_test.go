package collect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/diario/monitor/internal/fetch"
)

type stubClient struct {
	body     string
	finalURL string
	header   http.Header
	err      error
}

func (s stubClient) Get(_ context.Context, rawURL string, _ time.Duration) (*fetch.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	u := s.finalURL
	if u == "" {
		u = rawURL
	}
	return &fetch.Response{URL: u, StatusCode: 200, Body: []byte(s.body)}, nil
}

func (s stubClient) Head(_ context.Context, rawURL string, _ time.Duration) (*fetch.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &fetch.Response{URL: rawURL, StatusCode: 200, Header: s.header}, nil
}

const listingHTML = `<html><body>
<a href="/sobre">Sobre</a>
<a href="/wp-content/uploads/2024/03/diario-oficial-15-03-2024-portal.pdf">DOE 15/03</a>
<a href="/wp-content/uploads/2024/03/diario-oficial-14-03-2024-portal.pdf">DOE 14/03</a>
</body></html>`

func TestListing_FirstMatchResolved(t *testing.T) {
	// WHAT: The first matching anchor is resolved against the listing URL.
	// WHY: The listing shows editions newest first with relative links.
	l := &Listing{Source: "DOE/PB", URL: "https://auniao.pb.gov.br/doe", Client: stubClient{body: listingHTML}}
	md, err := l.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := "https://auniao.pb.gov.br/wp-content/uploads/2024/03/diario-oficial-15-03-2024-portal.pdf"
	if md.URL != want || md.DedupKey != want {
		t.Errorf("url = %q key = %q, want %q", md.URL, md.DedupKey, want)
	}
	if md.EditionLabel != "15/03/2024" || md.Source != "DOE/PB" {
		t.Errorf("unexpected metadata: %+v", md)
	}
}

func TestListing_CapitalizedFilename(t *testing.T) {
	// WHAT: Edition links match regardless of filename case.
	// WHY: The portal has published "Diario-Oficial-...-Portal.pdf"; missing it loses a day's alerts.
	l := &Listing{Source: "DOE/PB", URL: "https://auniao.pb.gov.br/doe", Client: stubClient{
		body: `<a href="/files/Diario-Oficial-15-03-2024-Portal.pdf">DOE</a>`,
	}}
	md, err := l.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if md.URL != "https://auniao.pb.gov.br/files/Diario-Oficial-15-03-2024-Portal.pdf" || md.EditionLabel != "15/03/2024" {
		t.Errorf("unexpected metadata: %+v", md)
	}
	if label, ok := LabelFromURL(DefaultLinkPattern, "https://x.org/DIARIO-OFICIAL-01-02-2024-PORTAL.PDF"); !ok || label != "01/02/2024" {
		t.Errorf("LabelFromURL = %q, %v", label, ok)
	}
}

func TestListing_UsesFinalURLAsBase(t *testing.T) {
	// WHAT: Relative links resolve against the post-redirect URL.
	// WHY: The portal redirects /doe to a dated path.
	l := &Listing{URL: "https://auniao.pb.gov.br/doe", Client: stubClient{
		body:     `<a href="diario-oficial-01-02-2024-portal.pdf">x</a>`,
		finalURL: "https://auniao.pb.gov.br/servicos/doe/",
	}}
	md, err := l.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if md.URL != "https://auniao.pb.gov.br/servicos/doe/diario-oficial-01-02-2024-portal.pdf" {
		t.Errorf("url = %q", md.URL)
	}
}

func TestListing_NoLink(t *testing.T) {
	// WHAT: A listing without a matching link fails with ErrNoDocument.
	// WHY: A layout change must be reported, not silently skipped.
	l := &Listing{URL: "https://example.org", Client: stubClient{body: `<a href="/x.pdf">x</a>`}}
	if _, err := l.Collect(context.Background()); !errors.Is(err, ErrNoDocument) {
		t.Errorf("err = %v, want ErrNoDocument", err)
	}
}

func TestListing_FetchErrorPropagates(t *testing.T) {
	// WHAT: Listing GET failures propagate.
	// WHY: Only the fixed-URL variant degrades gracefully.
	boom := errors.New("dns")
	l := &Listing{URL: "https://example.org", Client: stubClient{err: boom}}
	if _, err := l.Collect(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if _, err := (&Listing{Client: stubClient{}}).Collect(context.Background()); !errors.Is(err, ErrNoURL) {
		t.Errorf("empty URL err = %v", err)
	}
}

func TestListing_CustomPattern(t *testing.T) {
	// WHAT: A custom pattern with day/month/year groups drives discovery and labels.
	// WHY: Sources are configuration, not code.
	l := &Listing{
		URL:     "https://example.org/",
		Pattern: regexp.MustCompile(`caderno_(\d{2})(\d{2})(\d{4})\.pdf`),
		Client:  stubClient{body: `<a href="caderno_05062024.pdf">x</a>`},
	}
	md, err := l.Collect(context.Background())
	if err != nil || md.EditionLabel != "05/06/2024" {
		t.Fatalf("md = %+v err = %v", md, err)
	}
}

func TestFixedURL_LastModified(t *testing.T) {
	// WHAT: Last-Modified yields a local-date label and a timestamped key.
	// WHY: The document URL never changes; its modification time does.
	loc, err := time.LoadLocation("America/Fortaleza")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	h := http.Header{}
	h.Set("Last-Modified", "Tue, 02 Jan 2024 01:30:00 GMT")
	f := &FixedURL{Source: "DEJT TRT-13", URL: "https://example.org/dejt.pdf", Location: loc, Client: stubClient{header: h}}
	md, err := f.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if md.EditionLabel != "01/01/2024" {
		t.Errorf("label = %q, want local date 01/01/2024", md.EditionLabel)
	}
	if md.DedupKey != "https://example.org/dejt.pdf#2024-01-02T01:30:00Z" {
		t.Errorf("key = %q", md.DedupKey)
	}
}

func TestFixedURL_Fallbacks(t *testing.T) {
	// WHAT: HEAD failures and missing or bad headers fall back to today's label.
	// WHY: Fixed-URL collection never fails; it degrades to one run per day.
	now := func() time.Time { return time.Date(2024, 5, 7, 12, 0, 0, 0, time.UTC) }
	bad := http.Header{}
	bad.Set("Last-Modified", "yesterday")
	for name, c := range map[string]stubClient{
		"error":   {err: errors.New("timeout")},
		"missing": {header: http.Header{}},
		"garbage": {header: bad},
	} {
		f := &FixedURL{URL: "https://example.org/d.pdf", Client: c, Now: now}
		md, err := f.Collect(context.Background())
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if md.EditionLabel != "07/05/2024" || md.DedupKey != "https://example.org/d.pdf#07/05/2024" {
			t.Errorf("%s: %+v", name, md)
		}
	}
}

func TestListing_WithFetcher(t *testing.T) {
	// WHAT: Listing works end to end over HTTP with the real fetcher.
	// WHY: Guards the Client contract between collect and fetch.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.ReplaceAll(listingHTML, "/wp-content", "/files")))
	}))
	defer srv.Close()

	l := &Listing{URL: srv.URL + "/doe", Client: fetch.New(fetch.Config{URLValidator: func(string) error { return nil }})}
	md, err := l.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !strings.HasPrefix(md.URL, srv.URL+"/files/") {
		t.Errorf("url = %q", md.URL)
	}
}

func TestLabelFromURL(t *testing.T) {
	// WHAT: Labels are derived from matching filenames only.
	// WHY: Manual URL overrides reuse the label when the name follows the pattern.
	if got, ok := LabelFromURL(nil, "https://x/diario-oficial-31-12-2023-portal.pdf"); !ok || got != "31/12/2023" {
		t.Errorf("got %q %v", got, ok)
	}
	if _, ok := LabelFromURL(nil, "https://x/other.pdf"); ok {
		t.Error("unexpected label for non-matching URL")
	}
}
