package monitor

import (
	"fmt"
	"regexp"
	"time"

	"github.com/hazyhaar/diario/monitor/internal/collect"
	fetchpkg "github.com/hazyhaar/diario/monitor/internal/fetch"
	"github.com/hazyhaar/diario/monitor/internal/scheduler"
	"github.com/hazyhaar/diario/monitor/internal/state"
)

// Source kinds.
const (
	KindListing = "listing"
	KindFixed   = "fixed"
)

// DefaultTimezone is used for edition labels of fixed-URL sources.
const DefaultTimezone = "America/Fortaleza"

// SourceConfig defines one monitored source.
type SourceConfig struct {
	Name string `yaml:"name" json:"name"`
	// Kind is "listing" (HTML index page) or "fixed" (stable document URL).
	Kind string `yaml:"kind" json:"kind"`
	URL  string `yaml:"url" json:"url"`
	// LinkPattern overrides the edition filename regexp of listing sources.
	// It is matched case-insensitively. Its first three groups must capture
	// day, month and year.
	LinkPattern string `yaml:"link_pattern,omitempty" json:"link_pattern,omitempty"`
	// Timezone overrides DefaultTimezone for this source.
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// DefaultSources returns the built-in sources. The DEJT TRT-13 document has
// no stable public default address and must be configured.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: state.SourceDOE, Kind: KindListing, URL: "https://auniao.pb.gov.br/doe"},
		{Name: state.SourceDEJT, Kind: KindFixed},
	}
}

// Config configures the monitor service.
type Config struct {
	// Sources in processing order. The first one is the primary source, the
	// target of URL overrides without a source filter. Default: DefaultSources.
	Sources []SourceConfig

	// Terms searched in every source, merged with the terms of groups
	// following that source.
	Terms []string

	// SendEmpty enables the no-hit notification.
	SendEmpty bool

	// MetadataTimeout bounds listing GETs and HEAD requests. Default: 20s.
	MetadataTimeout time.Duration
	// DocumentTimeout bounds document downloads. Default: 60s.
	DocumentTimeout time.Duration

	// Fetch settings
	Fetch fetchpkg.Config

	// Scheduler settings
	Scheduler scheduler.Config
}

func (c *Config) defaults() {
	if len(c.Sources) == 0 {
		c.Sources = DefaultSources()
	}
	if c.MetadataTimeout <= 0 {
		c.MetadataTimeout = collect.DefaultTimeout
	}
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = 60 * time.Second
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 64 << 20
	}
	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = 6 * time.Hour
	}
}

// loadLocation resolves name, falling back to a fixed UTC-3 zone when the
// tz database is unavailable.
func loadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("-03", -3*60*60)
}

// sourceDef is a validated, compiled SourceConfig.
type sourceDef struct {
	SourceConfig
	pattern  *regexp.Regexp
	location *time.Location
}

func compileSources(cfgs []SourceConfig) ([]sourceDef, error) {
	seen := map[string]bool{}
	defs := make([]sourceDef, 0, len(cfgs))
	for _, sc := range cfgs {
		if sc.Name == "" {
			return nil, fmt.Errorf("%w: source without name", ErrConfiguration)
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("%w: duplicate source %q", ErrConfiguration, sc.Name)
		}
		seen[sc.Name] = true
		def := sourceDef{SourceConfig: sc, pattern: collect.DefaultLinkPattern, location: loadLocation(sc.Timezone)}
		switch sc.Kind {
		case KindListing, KindFixed:
		default:
			return nil, fmt.Errorf("%w: source %q has unknown kind %q", ErrConfiguration, sc.Name, sc.Kind)
		}
		if sc.LinkPattern != "" {
			re, err := regexp.Compile("(?i)" + sc.LinkPattern)
			if err != nil {
				return nil, fmt.Errorf("%w: source %q link pattern: %v", ErrConfiguration, sc.Name, err)
			}
			if re.NumSubexp() < 3 {
				return nil, fmt.Errorf("%w: source %q link pattern needs day, month and year groups", ErrConfiguration, sc.Name)
			}
			def.pattern = re
		}
		defs = append(defs, def)
	}
	return defs, nil
}
