package service

import (
	"context"
	"strings"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"

	"github.com/rs/zerolog"
)

// defaultTexts are served until an administrator edits a setting.
var defaultTexts = map[string]string{
	"home_text":           "Welcome! Pick a product to get started.",
	"services_empty_text": "No products are available right now.",
	"wallet_text":         "Your wallet balance is shown below.",
	"add_funds_text":      "Send the amount, then submit the transaction reference.",
	"orders_empty_text":   "You have no orders yet.",
	"help_text":           "Need help? Contact support.",
	"support_text":        "Reach support through the help menu.",
}

// SettingsServiceImpl implements ports.SettingsService.
type SettingsServiceImpl struct {
	settings ports.SettingRepository
	log      zerolog.Logger
}

func NewSettingsService(settings ports.SettingRepository, log zerolog.Logger) *SettingsServiceImpl {
	return &SettingsServiceImpl{settings: settings, log: log}
}

// GetText returns the stored text or its default.
func (s *SettingsServiceImpl) GetText(ctx context.Context, key string) (*domain.Setting, error) {
	if !domain.IsEditableSetting(key) {
		return nil, apperror.ErrNotFound("setting")
	}
	setting, err := s.settings.Get(ctx, key)
	if err != nil {
		return nil, translate(err)
	}
	if setting == nil {
		return &domain.Setting{Key: key, Value: defaultTexts[key]}, nil
	}
	return setting, nil
}

func (s *SettingsServiceImpl) SetText(ctx context.Context, key, value string) (*domain.Setting, error) {
	if !domain.IsEditableSetting(key) {
		return nil, translate(domain.ErrUnknownSetting)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, apperror.InvalidInput("text must not be empty")
	}

	setting, err := s.settings.Set(ctx, key, value)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("settings: write failed")
		return nil, translate(err)
	}
	s.log.Info().Str("key", key).Msg("settings: text updated")
	return setting, nil
}
