// internal/services/settings_service.go
package services

import (
	"strings"
	"sync"

	apperrors "github.com/charaverse/charachat/internal/errors"
	"github.com/charaverse/charachat/internal/models"
	"github.com/charaverse/charachat/internal/storage"
)

// SettingsService 管理用户设置记录
type SettingsService struct {
	store *storage.RecordStore

	mu       sync.RWMutex
	settings *models.Settings
}

// NewSettingsService 创建设置服务并加载持久化记录
func NewSettingsService(store *storage.RecordStore) (*SettingsService, error) {
	settings := models.DefaultSettings()
	if err := store.Load(storage.RecordSettings, settings); err != nil {
		return nil, err
	}
	settings.Normalize()

	return &SettingsService{
		store:    store,
		settings: settings,
	}, nil
}

// Get 返回当前设置的副本
func (s *SettingsService) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.settings
}

// Save 校验并整体覆盖设置记录
func (s *SettingsService) Save(settings *models.Settings) error {
	settings.APIKey = strings.TrimSpace(settings.APIKey)
	settings.APIBase = strings.TrimSpace(settings.APIBase)
	settings.Model = strings.TrimSpace(settings.Model)
	settings.Normalize()

	switch settings.Provider {
	case models.ProviderOpenAI, models.ProviderOpenRouter, models.ProviderCustom:
	default:
		return apperrors.NewValidationError("不支持的提供商: "+settings.Provider, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(storage.RecordSettings, settings); err != nil {
		return err
	}
	s.settings = settings
	return nil
}
