package users

import (
	"rss-notifier/models/entities"
	"rss-notifier/utils/databases"
)

type Repository interface {
	List() ([]entities.User, error)
	Get(chatID int64) (*entities.User, error)
	SaveOrUpdate(user entities.User) error
	Delete(chatID int64) error
}

type Impl struct {
	db databases.SqlConnection
}
