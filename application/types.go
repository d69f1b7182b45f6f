package application

import (
	healthService "rss-notifier/services/health"
	syncService "rss-notifier/services/sync"
	telegramService "rss-notifier/services/telegram"
	"rss-notifier/utils/databases"

	"github.com/go-co-op/gocron/v2"
)

type Application interface {
	Run()
	Shutdown()
}

type Impl struct {
	scheduler       gocron.Scheduler
	healthService   healthService.Service
	syncService     syncService.Service
	telegramService telegramService.Service
	db              databases.SqlConnection
}
