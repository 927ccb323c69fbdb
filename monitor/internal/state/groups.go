package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/diario/horosafe"
	"github.com/hazyhaar/diario/idgen"
	"github.com/hazyhaar/diario/monitor/internal/match"
)

const (
	// GroupsKey is the store key of the GroupConfig aggregate.
	GroupsKey = "config.json"
	// GroupsVersion is the current schema version written by SaveGroups.
	GroupsVersion = 1
)

var (
	// ErrInvalidGroup wraps every group validation failure.
	ErrInvalidGroup = errors.New("invalid group")
	// ErrGroupNotFound is returned when deleting an unknown group.
	ErrGroupNotFound = errors.New("group not found")
)

// Group is a subscriber group: the sources it follows, the terms it cares
// about and where its alerts go. Address may hold several comma-separated
// recipients.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Sources []string `json:"sources"`
	Terms   []string `json:"terms"`
	Notify  bool     `json:"notifyEmail"`
	Address string   `json:"email,omitempty"`
}

// GroupConfig is the stored list of groups.
type GroupConfig struct {
	Version int     `json:"version"`
	Groups  []Group `json:"groups"`
}

// Find returns the group with id.
func (c *GroupConfig) Find(id string) (Group, bool) {
	for _, g := range c.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

type storedGroup struct {
	Group
	Emails []string `json:"emails"`
}

type storedGroupConfig struct {
	Version int           `json:"version"`
	Groups  []storedGroup `json:"groups"`
}

// LoadGroups reads the group configuration. A missing key yields no groups.
// Legacy "emails" arrays are folded into the comma-separated address, and
// every group is cleaned so routing compares lower-cased terms.
func LoadGroups(ctx context.Context, kv Store) (*GroupConfig, error) {
	data, ok, err := kv.Get(ctx, GroupsKey)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", GroupsKey, err)
	}
	cfg := &GroupConfig{Version: GroupsVersion, Groups: []Group{}}
	if !ok || len(data) == 0 {
		return cfg, nil
	}
	var raw storedGroupConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", GroupsKey, err)
	}
	for _, sg := range raw.Groups {
		g := sg.Group
		if g.Address == "" && len(sg.Emails) > 0 {
			g.Address = joinAddresses(sg.Emails)
		}
		cfg.Groups = append(cfg.Groups, CleanGroup(g))
	}
	return cfg, nil
}

// SaveGroups writes cfg at the current version.
func SaveGroups(ctx context.Context, kv Store, cfg *GroupConfig) error {
	cfg.Version = GroupsVersion
	if cfg.Groups == nil {
		cfg.Groups = []Group{}
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode groups: %w", err)
	}
	if err := kv.Set(ctx, GroupsKey, data); err != nil {
		return fmt.Errorf("save %s: %w", GroupsKey, err)
	}
	return nil
}

// CleanGroup trims every field, de-duplicates sources and terms and
// lower-cases terms.
func CleanGroup(g Group) Group {
	g.ID = strings.TrimSpace(g.ID)
	g.Name = strings.TrimSpace(g.Name)
	g.Address = strings.TrimSpace(g.Address)
	g.Terms = match.CleanTerms(g.Terms)
	seen := map[string]bool{}
	sources := make([]string, 0, len(g.Sources))
	for _, s := range g.Sources {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		sources = append(sources, s)
	}
	g.Sources = sources
	return g
}

// ValidateGroup checks a cleaned group.
func ValidateGroup(g Group) error {
	switch {
	case g.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidGroup)
	case len(g.Sources) == 0:
		return fmt.Errorf("%w: at least one source is required", ErrInvalidGroup)
	case len(g.Terms) == 0:
		return fmt.Errorf("%w: at least one term is required", ErrInvalidGroup)
	case g.Notify && g.Address == "":
		return fmt.Errorf("%w: email is required when notifications are enabled", ErrInvalidGroup)
	}
	if g.ID != "" {
		if err := horosafe.ValidateIdentifier(g.ID); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGroup, err)
		}
	}
	return nil
}

// UpsertGroup cleans and validates g, then replaces the group with the same
// ID or appends it. Groups without an ID get one from newID (default
// "grp_" + UUIDv7).
func UpsertGroup(ctx context.Context, kv Store, g Group, newID idgen.Generator) (Group, error) {
	g = CleanGroup(g)
	if err := ValidateGroup(g); err != nil {
		return Group{}, err
	}
	cfg, err := LoadGroups(ctx, kv)
	if err != nil {
		return Group{}, err
	}
	if g.ID == "" {
		if newID == nil {
			newID = idgen.Prefixed("grp_", idgen.Default)
		}
		g.ID = newID()
	}
	replaced := false
	for i := range cfg.Groups {
		if cfg.Groups[i].ID == g.ID {
			cfg.Groups[i] = g
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Groups = append(cfg.Groups, g)
	}
	if err := SaveGroups(ctx, kv, cfg); err != nil {
		return Group{}, err
	}
	return g, nil
}

// DeleteGroup removes the group with id.
func DeleteGroup(ctx context.Context, kv Store, id string) error {
	cfg, err := LoadGroups(ctx, kv)
	if err != nil {
		return err
	}
	kept := cfg.Groups[:0]
	found := false
	for _, g := range cfg.Groups {
		if g.ID == id {
			found = true
			continue
		}
		kept = append(kept, g)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	cfg.Groups = kept
	return SaveGroups(ctx, kv, cfg)
}

// Recipients splits a group address into individual addresses.
func Recipients(address string) []string {
	var out []string
	for _, a := range strings.FieldsFunc(address, func(r rune) bool { return r == ',' || r == ';' }) {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func joinAddresses(addrs []string) string {
	var clean []string
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			clean = append(clean, a)
		}
	}
	return strings.Join(clean, ",")
}
