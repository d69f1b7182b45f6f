package preferences

import (
	"errors"
	"fmt"

	"rss-notifier/models/entities"
	"rss-notifier/utils/databases"

	"gorm.io/gorm"
)

func New(db databases.SqlConnection) *Impl {
	return &Impl{db: db}
}

func (repo *Impl) Get(userID int64) (*entities.UserPreference, error) {
	var preference entities.UserPreference
	result := repo.db.GetDB().Where("user_id = ?", userID).First(&preference)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up user preference: %w", result.Error)
	}

	return &preference, nil
}

func (repo *Impl) SaveOrUpdate(preference entities.UserPreference) error {
	var existing entities.UserPreference

	result := repo.db.GetDB().Where("user_id = ?", preference.UserID).First(&existing)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			if err := repo.db.GetDB().Create(&preference).Error; err != nil {
				return fmt.Errorf("failed to create user preference: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check user preference existence: %w", result.Error)
	}

	return repo.db.GetDB().
		Model(&entities.UserPreference{}).
		Where("user_id = ?", preference.UserID).
		Update("active", preference.Active).
		Error
}
