package sources

import (
	"time"

	"rss-notifier/models/entities"
	"rss-notifier/utils/databases"
)

type Repository interface {
	List() ([]entities.Source, error)
	GetByID(id uint) (*entities.Source, error)
	GetByLink(link string) (*entities.Source, error)
	Create(link, title string) (*entities.Source, error)
	AdvanceWatermark(id uint, timestamp time.Time) (bool, error)
	RecordFetchFailure(id uint) error
	ResetFetchFailures(id uint) error
	Count() int64
}

type Impl struct {
	db databases.SqlConnection
}
