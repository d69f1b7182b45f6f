package subscriptions

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

func (repo *Impl) ListByUser(userID int64) ([]entities.Subscription, error) {
	var subscriptions []entities.Subscription
	result := repo.db.GetDB().Where("user_id = ?", userID).Find(&subscriptions)
	return subscriptions, result.Error
}

func (repo *Impl) ListBySource(sourceID uint) ([]entities.Subscription, error) {
	var subscriptions []entities.Subscription
	result := repo.db.GetDB().Where("source_id = ?", sourceID).Find(&subscriptions)
	return subscriptions, result.Error
}

func (repo *Impl) GetByID(id uint) (*entities.Subscription, error) {
	var subscription entities.Subscription
	result := repo.db.GetDB().First(&subscription, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up subscription: %w", result.Error)
	}

	return &subscription, nil
}

func (repo *Impl) Create(userID int64, sourceID uint) (*entities.Subscription, error) {
	subscription := entities.Subscription{UserID: userID, SourceID: sourceID}
	if err := repo.db.GetDB().Create(&subscription).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	return &subscription, nil
}

// Delete reports false when no row matched, so callers can tell an already
// removed subscription apart from a storage failure.
func (repo *Impl) Delete(id uint) (bool, error) {
	result := repo.db.GetDB().Delete(&entities.Subscription{}, id)
	return result.RowsAffected > 0, result.Error
}

func (repo *Impl) Exists(userID int64, sourceID uint) (bool, error) {
	var count int64
	result := repo.db.GetDB().
		Model(&entities.Subscription{}).
		Where("user_id = ? AND source_id = ?", userID, sourceID).
		Count(&count)

	return count > 0, result.Error
}
