package subscriptions

import (
	"rss-notifier/models/entities"
	"rss-notifier/utils/databases"
)

type Repository interface {
	ListByUser(userID int64) ([]entities.Subscription, error)
	ListBySource(sourceID uint) ([]entities.Subscription, error)
	GetByID(id uint) (*entities.Subscription, error)
	Create(userID int64, sourceID uint) (*entities.Subscription, error)
	Delete(id uint) (bool, error)
	Exists(userID int64, sourceID uint) (bool, error)
}

type Impl struct {
	db databases.SqlConnection
}
