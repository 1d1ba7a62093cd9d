package memory

import (
	"context"
	"sync"
	"time"

	"vending-kernel/internal/core/domain"
)

// SettingRepo implements ports.SettingRepository.
type SettingRepo struct {
	mu       sync.RWMutex
	settings map[string]domain.Setting
}

func NewSettingRepo() *SettingRepo {
	return &SettingRepo{settings: make(map[string]domain.Setting)}
}

func (r *SettingRepo) Get(_ context.Context, key string) (*domain.Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.settings[key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *SettingRepo) Set(_ context.Context, key, value string) (*domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := domain.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	r.settings[key] = s
	return &s, nil
}
