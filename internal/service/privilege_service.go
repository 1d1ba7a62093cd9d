package service

import (
	"context"
	"sort"

	"vending-kernel/internal/core/ports"
)

// PrivilegeService implements ports.PrivilegeChecker. An actor is
// privileged when listed in configuration or flagged admin on its wallet.
type PrivilegeService struct {
	configured map[string]struct{}
	wallets    ports.WalletRepository
}

func NewPrivilegeService(adminIDs []string, wallets ports.WalletRepository) *PrivilegeService {
	configured := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		if id != "" {
			configured[id] = struct{}{}
		}
	}
	return &PrivilegeService{configured: configured, wallets: wallets}
}

func (s *PrivilegeService) IsPrivileged(ctx context.Context, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	if _, ok := s.configured[actorID]; ok {
		return true, nil
	}
	w, err := s.wallets.Get(ctx, actorID)
	if err != nil {
		return false, err
	}
	return w != nil && w.IsAdmin, nil
}

// PrivilegedActors returns the sorted union of configured and flagged admins.
func (s *PrivilegeService) PrivilegedActors(ctx context.Context) ([]string, error) {
	flagged, err := s.wallets.ListAdminIDs(ctx)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(s.configured)+len(flagged))
	for id := range s.configured {
		set[id] = struct{}{}
	}
	for _, id := range flagged {
		set[id] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
