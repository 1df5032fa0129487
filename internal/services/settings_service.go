package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"carbonflow/internal/cache"
	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/models"
)

const settingsCacheTTL = 5 * time.Minute

// settingsService reads and writes system settings, serving reads from a
// TTL cache that is invalidated on write.
type settingsService struct {
	db    *gorm.DB
	cache *cache.Cache[string]
}

// NewSettingsService creates a new SettingsServicer.
func NewSettingsService(db *gorm.DB) SettingsServicer {
	return &settingsService{
		db:    db,
		cache: cache.New[string](settingsCacheTTL),
	}
}

// newSettingsServiceWithClock is used in tests to drive cache expiry.
func newSettingsServiceWithClock(db *gorm.DB, now func() time.Time) *settingsService {
	return &settingsService{
		db:    db,
		cache: cache.NewWithClock[string](settingsCacheTTL, now),
	}
}

// GetSetting returns a setting value, cached for a few minutes.
func (s *settingsService) GetSetting(key string) (string, error) {
	if value, ok := s.cache.Get(key); ok {
		return value, nil
	}

	var setting models.SystemSetting
	if err := s.db.Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrSettingNotFound
		}
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.cache.Set(key, setting.Value)
	return setting.Value, nil
}

// SetSetting creates or updates a setting and invalidates its cache entry.
func (s *settingsService) SetSetting(key, value string) error {
	if key == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "key is required")
	}

	var setting models.SystemSetting
	err := s.db.Where("key = ?", key).First(&setting).Error
	switch {
	case err == nil:
		if err := s.db.Model(&setting).Update("value", value).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting = models.SystemSetting{Key: key, Value: value}
		if err := s.db.Create(&setting).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	default:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.cache.Invalidate(key)
	return nil
}
