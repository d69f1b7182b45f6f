package users

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

func (repo *Impl) List() ([]entities.User, error) {
	var users []entities.User
	result := repo.db.GetDB().Find(&users)

	return users, result.Error
}

func (repo *Impl) Get(chatID int64) (*entities.User, error) {
	var user entities.User
	result := repo.db.GetDB().Where("chat_id = ?", chatID).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up user: %w", result.Error)
	}

	return &user, nil
}

func (repo *Impl) SaveOrUpdate(user entities.User) error {
	var existingUser entities.User

	result := repo.db.GetDB().Where("chat_id = ?", user.ChatID).First(&existingUser)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			if err := repo.db.GetDB().Create(&user).Error; err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
		} else {
			return fmt.Errorf("failed to check user existence: %w", result.Error)
		}
	}

	return nil
}

func (repo *Impl) Delete(chatID int64) error {
	result := repo.db.GetDB().Delete(&entities.User{}, chatID)
	return result.Error
}
