package preferences

import (
	"rss-notifier/models/entities"
	"rss-notifier/utils/databases"
)

type Repository interface {
	Get(userID int64) (*entities.UserPreference, error)
	SaveOrUpdate(preference entities.UserPreference) error
}

type Impl struct {
	db databases.SqlConnection
}
