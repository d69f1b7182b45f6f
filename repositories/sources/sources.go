package sources

import (
	"errors"
	"fmt"
	"time"

	"rss-notifier/models/entities"
	"rss-notifier/utils/databases"

	"gorm.io/gorm"
)

func New(db databases.SqlConnection) *Impl {
	return &Impl{db: db}
}

func (repo *Impl) List() ([]entities.Source, error) {
	var sources []entities.Source
	response := repo.db.GetDB().Model(&entities.Source{}).Find(&sources)
	return sources, response.Error
}

func (repo *Impl) GetByID(id uint) (*entities.Source, error) {
	var source entities.Source
	result := repo.db.GetDB().First(&source, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up source: %w", result.Error)
	}

	return &source, nil
}

func (repo *Impl) GetByLink(link string) (*entities.Source, error) {
	var source entities.Source
	result := repo.db.GetDB().Where("link = ?", link).First(&source)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up source by link: %w", result.Error)
	}

	return &source, nil
}

func (repo *Impl) Create(link, title string) (*entities.Source, error) {
	source := entities.Source{
		Link:       link,
		Title:      title,
		LastUpdate: time.Now().UTC(),
	}
	if err := repo.db.GetDB().Create(&source).Error; err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	return &source, nil
}

// AdvanceWatermark moves the source watermark forward, never backward. The
// guard lives in the WHERE clause so the watermark stays monotonic even when
// two cycles overlap. Returns false when the source is gone or the timestamp
// is not newer.
func (repo *Impl) AdvanceWatermark(id uint, timestamp time.Time) (bool, error) {
	timestamp = timestamp.UTC()
	result := repo.db.GetDB().
		Model(&entities.Source{}).
		Where("id = ? AND last_update < ?", id, timestamp).
		Update("last_update", timestamp)

	return result.RowsAffected > 0, result.Error
}

func (repo *Impl) RecordFetchFailure(id uint) error {
	return repo.db.GetDB().
		Model(&entities.Source{}).
		Where("id = ?", id).
		Update("error_count", gorm.Expr("error_count + 1")).
		Error
}

func (repo *Impl) ResetFetchFailures(id uint) error {
	return repo.db.GetDB().
		Model(&entities.Source{}).
		Where("id = ? AND error_count <> 0", id).
		Update("error_count", 0).
		Error
}

func (repo *Impl) Count() int64 {
	count := new(int64)
	repo.db.GetDB().Model(&entities.Source{}).Count(count)

	return *count
}
