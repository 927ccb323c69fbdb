package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/diario/monitor/internal/collect"
	"github.com/hazyhaar/diario/monitor/internal/match"
	"github.com/hazyhaar/diario/monitor/internal/route"
	"github.com/hazyhaar/diario/monitor/internal/state"
	"github.com/hazyhaar/diario/notify"
)

// dispatch sends the global alert (or the empty-result alert) and one alert
// per routed group that wants notifications. Failures become warnings.
func (s *Service) dispatch(ctx context.Context, log *slog.Logger, md *collect.Metadata, m match.Result, routed []route.Match, req Request) []string {
	var warnings []string
	warn := func(what string, err error) {
		err = fmt.Errorf("%w: %s: %v", ErrNotification, what, err)
		log.Warn("monitor: notification failed", "target", what, "error", err)
		warnings = append(warnings, err.Error())
	}

	alert := notify.Alert{
		Source:       md.Source,
		EditionLabel: md.EditionLabel,
		URL:          md.URL,
		Hits:         m.Hits,
		Snippets:     m.Snippets,
	}

	if !req.DryRun {
		if len(m.Hits) > 0 {
			if err := s.notifier.NotifyHits(ctx, alert); err != nil {
				warn("global", err)
			}
		} else if s.config.SendEmpty {
			if err := s.notifier.NotifyEmpty(ctx, alert); err != nil {
				warn("empty", err)
			}
		}
	}

	snippetOf := make(map[string]string, len(m.Snippets))
	for i, sn := range m.Snippets {
		snippetOf[m.Hits[i]] = sn
	}
	for _, r := range routed {
		recipients := state.Recipients(r.Group.Address)
		if !r.Group.Notify || len(recipients) == 0 {
			continue
		}
		ga := notify.GroupAlert{
			Alert:      alert,
			GroupName:  r.Group.Name,
			GroupTerms: r.Group.Terms,
			Recipients: recipients,
		}
		ga.Hits = r.Hits
		ga.Snippets = nil
		for _, h := range r.Hits {
			if sn, ok := snippetOf[h]; ok {
				ga.Snippets = append(ga.Snippets, sn)
			}
		}
		if err := s.notifier.NotifyGroup(ctx, ga); err != nil {
			warn("group "+r.Group.Name, err)
		}
	}
	return warnings
}
