// CLAUDE:SUMMARY Service orchestrator: per-source collect, dedup, download, extract, match, route, notify and record.
// Package monitor watches official gazettes for watch terms.
//
// One invocation (Service.Run) walks the configured sources sequentially:
//
//	collect -> dedup check -> download -> extract -> match -> route -> notify -> record
//
// The run history is loaded once at the start and saved once at the end.
// Failures of one source are reported in its SourceResult and never touch
// that source's state.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/diario/idgen"
	"github.com/hazyhaar/diario/kit"
	"github.com/hazyhaar/diario/monitor/internal/collect"
	"github.com/hazyhaar/diario/monitor/internal/extract"
	"github.com/hazyhaar/diario/monitor/internal/fetch"
	"github.com/hazyhaar/diario/monitor/internal/match"
	"github.com/hazyhaar/diario/monitor/internal/route"
	"github.com/hazyhaar/diario/monitor/internal/scheduler"
	"github.com/hazyhaar/diario/monitor/internal/state"
	"github.com/hazyhaar/diario/notify"
)

// Store is the key-value persistence boundary (see kvstore).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Notifier delivers alerts. notify.Dispatcher is the production implementation.
type Notifier interface {
	NotifyHits(ctx context.Context, a notify.Alert) error
	NotifyEmpty(ctx context.Context, a notify.Alert) error
	NotifyGroup(ctx context.Context, g notify.GroupAlert) error
}

// Client performs outbound requests for collection and download.
type Client interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Response, error)
	Head(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Response, error)
}

// Extractor turns document bytes into text.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// Option customizes a Service.
type Option func(*Service)

// WithClient replaces the HTTP client built from Config.Fetch.
func WithClient(c Client) Option { return func(s *Service) { s.client = c } }

// WithExtractor replaces the pdfcpu-backed extractor.
func WithExtractor(e Extractor) Option { return func(s *Service) { s.extractor = e } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator replaces the run and group ID generators.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Service) { s.newRunID, s.newGroupID = gen, gen }
}

// Service is the gazette monitor.
type Service struct {
	kv        Store
	notifier  Notifier
	client    Client
	extractor Extractor
	config    Config
	sources   []sourceDef
	logger    *slog.Logger

	now        func() time.Time
	newRunID   idgen.Generator
	newGroupID idgen.Generator

	// mu serializes invocations within the process.
	mu sync.Mutex
	// adminMu serializes group read-modify-write cycles.
	adminMu sync.Mutex
}

// New creates a Service. notifier may be nil to disable alerts.
func New(kv Store, notifier Notifier, cfg Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	defs, err := compileSources(cfg.Sources)
	if err != nil {
		return nil, err
	}
	s := &Service{
		kv:         kv,
		notifier:   notifier,
		config:     cfg,
		sources:    defs,
		logger:     logger,
		now:        time.Now,
		newRunID:   idgen.Default,
		newGroupID: idgen.Prefixed("grp_", idgen.Default),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.client == nil {
		s.client = fetch.New(cfg.Fetch)
	}
	if s.extractor == nil {
		s.extractor = extract.New(nil)
	}
	return s, nil
}

// Sources returns the configured source names in processing order.
func (s *Service) Sources() []string {
	names := make([]string, len(s.sources))
	for i, d := range s.sources {
		names[i] = d.Name
	}
	return names
}

// StartScheduler runs scheduled invocations until ctx is cancelled.
func (s *Service) StartScheduler(ctx context.Context) {
	sched := scheduler.New(func(ctx context.Context) error {
		_, err := s.Run(ctx, Request{})
		return err
	}, s.config.Scheduler, s.logger)
	sched.Run(ctx)
}

// Run performs one invocation.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.With("trigger", kit.GetTransport(ctx), "manual", req.Manual())

	hist, err := state.LoadHistory(ctx, s.kv)
	if err != nil {
		return nil, err
	}
	if hist.Migrated {
		if err := state.SaveHistory(ctx, s.kv, hist); err != nil {
			return nil, err
		}
		hist.Migrated = false
		log.Info("monitor: history migrated", "version", state.HistoryVersion)
	}
	groupCfg, err := state.LoadGroups(ctx, s.kv)
	if err != nil {
		return nil, err
	}
	groups := groupCfg.Groups

	targets, unknown := s.targets(req)
	override := match.CleanTerms(req.Terms)
	defaults := match.CleanTerms(s.config.Terms)

	res := &Result{Terms: []string{}, Sources: []SourceResult{}}
	termsBySource := make(map[string][]string, len(targets))
	seen := map[string]bool{}
	for _, def := range targets {
		terms := override
		if len(terms) == 0 {
			terms = route.TermsFor(def.Name, defaults, groups)
		}
		termsBySource[def.Name] = terms
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				res.Terms = append(res.Terms, t)
			}
		}
	}

	for _, name := range unknown {
		sr := SourceResult{Source: name, Hits: []string{}}
		sr.fail(fmt.Errorf("%w: unknown source %q", ErrConfiguration, name))
		res.Sources = append(res.Sources, sr)
	}
	if len(res.Terms) == 0 {
		res.Message = "no terms configured"
		log.Info("monitor: no terms configured, nothing to do")
		return res, nil
	}

	dirty := false
	for _, def := range targets {
		sr, recorded := s.runSource(ctx, log, def, termsBySource[def.Name], req, hist, groups)
		res.Sources = append(res.Sources, sr)
		dirty = dirty || recorded
	}

	if dirty {
		if err := state.SaveHistory(ctx, s.kv, hist); err != nil {
			return res, err
		}
	}
	return res, nil
}

// targets resolves the sources of req. Without a filter, a manual run targets
// the primary source and a scheduled run every source with a URL.
func (s *Service) targets(req Request) (defs []sourceDef, unknown []string) {
	if len(req.Sources) > 0 {
		for _, name := range req.Sources {
			if d, ok := s.source(name); ok {
				defs = append(defs, d)
			} else {
				unknown = append(unknown, name)
			}
		}
		return defs, unknown
	}
	if req.Manual() {
		return s.sources[:1], nil
	}
	for _, d := range s.sources {
		if d.URL != "" {
			defs = append(defs, d)
		}
	}
	return defs, nil
}

func (s *Service) source(name string) (sourceDef, bool) {
	for _, d := range s.sources {
		if d.Name == name {
			return d, true
		}
	}
	return sourceDef{}, false
}

func (s *Service) collector(def sourceDef) collect.Collector {
	if def.Kind == KindFixed {
		return &collect.FixedURL{
			Source:   def.Name,
			URL:      def.URL,
			Timeout:  s.config.MetadataTimeout,
			Location: def.location,
			Client:   s.client,
			Now:      s.now,
		}
	}
	return &collect.Listing{
		Source:  def.Name,
		URL:     def.URL,
		Pattern: def.pattern,
		Timeout: s.config.MetadataTimeout,
		Client:  s.client,
	}
}

// runSource drives one source through its pipeline and reports whether the
// history was modified.
func (s *Service) runSource(ctx context.Context, log *slog.Logger, def sourceDef, terms []string, req Request, hist *state.History, groups []state.Group) (SourceResult, bool) {
	sr := SourceResult{Source: def.Name, Hits: []string{}}
	log = log.With("source", def.Name)

	if len(terms) == 0 {
		sr.Skipped = true
		sr.Message = "no terms configured for this source"
		return sr, false
	}

	// COLLECTING
	var md *collect.Metadata
	if req.Manual() {
		label, ok := collect.LabelFromURL(def.pattern, req.URL)
		if !ok {
			label = collect.DateLabel(s.now(), def.location)
		}
		md = &collect.Metadata{Source: def.Name, URL: req.URL, EditionLabel: label, DedupKey: req.URL}
	} else {
		var err error
		md, err = s.collector(def).Collect(ctx)
		if err != nil {
			sr.fail(fmt.Errorf("%w: %v", ErrCollection, err))
			log.Warn("monitor: collection failed", "error", err)
			return sr, false
		}
	}
	sr.URL, sr.EditionLabel = md.URL, md.EditionLabel

	if !req.Manual() && state.ShouldSkip(def.Name, md.DedupKey, hist) {
		sr.Skipped = true
		sr.Message = "edition already processed"
		log.Info("monitor: edition already processed", "key", md.DedupKey)
		return sr, false
	}

	// FETCHING
	resp, err := s.client.Get(ctx, md.URL, s.config.DocumentTimeout)
	if err != nil {
		sr.fail(fmt.Errorf("%w: %v", ErrDownload, err))
		log.Warn("monitor: download failed", "url", md.URL, "error", err)
		return sr, false
	}

	// EXTRACTING
	text, err := s.extractor.Extract(resp.Body)
	if err != nil {
		sr.fail(fmt.Errorf("%w: %v", ErrExtraction, err))
		log.Warn("monitor: extraction failed", "url", md.URL, "error", err)
		return sr, false
	}

	// MATCHING
	matcher, rejected := match.NewMatcher(terms)
	for _, t := range rejected {
		sr.Warnings = append(sr.Warnings, fmt.Sprintf("term %q ignored: %v", t, match.ErrEmptyTerm))
	}
	m := matcher.Match(text, req.Snippets)
	sr.Hits, sr.Count, sr.Found = m.Hits, len(m.Hits), len(m.Hits) > 0
	sr.Snippets = m.Snippets

	// ROUTING
	routed := route.Route(def.Name, m.Hits, groups)
	sr.Groups = route.Names(routed)
	sr.Warnings = append(sr.Warnings, s.dispatch(ctx, log, md, m, routed, req)...)

	log.Info("monitor: source processed", "edition", md.EditionLabel, "found", sr.Found, "hits", sr.Count, "groups", len(routed))

	// RECORDING
	if req.Manual() && !req.Persist {
		return sr, false
	}
	hist.Append(state.RunRecord{
		ID:                s.newRunID(),
		Timestamp:         s.now().UTC(),
		Source:            def.Name,
		EditionLabel:      md.EditionLabel,
		URL:               md.URL,
		Found:             sr.Found,
		Hits:              m.Hits,
		MatchedGroupNames: route.Names(routed),
		Manual:            req.Manual(),
	})
	hist.MarkSeen(def.Name, md.DedupKey)
	return sr, true
}

type nopNotifier struct{}

func (nopNotifier) NotifyHits(context.Context, notify.Alert) error       { return nil }
func (nopNotifier) NotifyEmpty(context.Context, notify.Alert) error      { return nil }
func (nopNotifier) NotifyGroup(context.Context, notify.GroupAlert) error { return nil }
