package collect

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Listing finds the newest edition on an HTML index page: the first anchor
// whose href matches Pattern. The dedup key is the resolved document URL.
type Listing struct {
	Source  string
	URL     string
	Pattern *regexp.Regexp // default DefaultLinkPattern
	Timeout time.Duration  // default DefaultTimeout
	Client  Client
}

func (l *Listing) Collect(ctx context.Context) (*Metadata, error) {
	if l.URL == "" {
		return nil, ErrNoURL
	}
	pattern := l.Pattern
	if pattern == nil {
		pattern = DefaultLinkPattern
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	resp, err := l.Client.Get(ctx, l.URL, timeout)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", l.URL, err)
	}
	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	href, ok := firstMatchingHref(doc, pattern)
	if !ok {
		return nil, ErrNoDocument
	}

	base, err := url.Parse(resp.URL)
	if err != nil || resp.URL == "" {
		base, err = url.Parse(l.URL)
		if err != nil {
			return nil, fmt.Errorf("listing url: %w", err)
		}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("document href %q: %w", href, err)
	}
	abs := base.ResolveReference(ref).String()

	label, _ := LabelFromURL(pattern, abs)
	return &Metadata{Source: l.Source, URL: abs, EditionLabel: label, DedupKey: abs}, nil
}

// firstMatchingHref walks the tree in document order.
func firstMatchingHref(n *html.Node, pattern *regexp.Regexp) (string, bool) {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		for _, a := range n.Attr {
			if a.Key == "href" && pattern.MatchString(a.Val) {
				return strings.TrimSpace(a.Val), true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href, ok := firstMatchingHref(c, pattern); ok {
			return href, true
		}
	}
	return "", false
}
