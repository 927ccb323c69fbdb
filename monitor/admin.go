package monitor

import (
	"context"

	"github.com/hazyhaar/diario/monitor/internal/state"
)

// History returns the persisted run history.
func (s *Service) History(ctx context.Context) (*History, error) {
	return state.LoadHistory(ctx, s.kv)
}

// Groups returns the configured subscriber groups.
func (s *Service) Groups(ctx context.Context) ([]Group, error) {
	cfg, err := state.LoadGroups(ctx, s.kv)
	if err != nil {
		return nil, err
	}
	return cfg.Groups, nil
}

// SaveGroup creates or replaces a group. Input is trimmed and de-duplicated;
// invalid groups fail with ErrInvalidGroup.
func (s *Service) SaveGroup(ctx context.Context, g Group) (Group, error) {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	saved, err := state.UpsertGroup(ctx, s.kv, g, s.newGroupID)
	if err != nil {
		return Group{}, err
	}
	s.logger.Info("monitor: group saved", "id", saved.ID, "name", saved.Name)
	return saved, nil
}

// DeleteGroup removes a group; unknown IDs fail with ErrGroupNotFound.
func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	if err := state.DeleteGroup(ctx, s.kv, id); err != nil {
		return err
	}
	s.logger.Info("monitor: group deleted", "id", id)
	return nil
}
