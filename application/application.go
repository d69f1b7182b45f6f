package application

import (
	"time"

	"rss-notifier/models/constants"
	"rss-notifier/models/entities"
	preferenceRepo "rss-notifier/repositories/preferences"
	sourceRepo "rss-notifier/repositories/sources"
	subscriptionRepo "rss-notifier/repositories/subscriptions"
	userRepo "rss-notifier/repositories/users"
	fetcherService "rss-notifier/services/fetcher"
	healthService "rss-notifier/services/health"
	subscriptionService "rss-notifier/services/subscriptions"
	syncService "rss-notifier/services/sync"
	telegramService "rss-notifier/services/telegram"
	"rss-notifier/utils/databases"

	"github.com/go-co-op/gocron/v2"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func New() (*Impl, error) {
	db := databases.New()
	if errDB := db.Run(); errDB != nil {
		return nil, errDB
	}

	errMigration := db.GetDB().AutoMigrate(&entities.Source{}, &entities.Subscription{},
		&entities.User{}, &entities.UserPreference{})
	if errMigration != nil {
		return nil, errMigration
	}

	scheduler, errScheduler := gocron.NewScheduler()
	if errScheduler != nil {
		return nil, errScheduler
	}

	// Repositories
	sources := sourceRepo.New(db)
	subscriptions := subscriptionRepo.New(db)
	users := userRepo.New(db)
	preferences := preferenceRepo.New(db)

	summaryCache := cache.New(1*time.Hour, 2*time.Hour)

	fetcher := fetcherService.New()
	subscriptionSvc := subscriptionService.New(fetcher, sources, subscriptions)

	telegramSvc, errTg := telegramService.New(viper.GetString(constants.TelegramBotToken),
		users, preferences, subscriptionSvc, summaryCache)
	if errTg != nil {
		return nil, errTg
	}

	syncSvc, errSync := syncService.New(scheduler, sources, subscriptions, users, preferences,
		fetcher, telegramSvc, summaryCache)
	if errSync != nil {
		return nil, errSync
	}

	telegramSvc.RegisterSynchronizer(syncSvc)

	healthSvc, errHealth := healthService.New(scheduler)
	if errHealth != nil {
		return nil, errHealth
	}

	return &Impl{
		scheduler:       scheduler,
		healthService:   healthSvc,
		syncService:     syncSvc,
		telegramService: telegramSvc,
		db:              db,
	}, nil
}

func (app *Impl) Run() {
	app.scheduler.Start()
	go func() {
		if err := app.telegramService.ListenAndDispatch(); err != nil {
			log.Error().Err(err).Msg("Telegram bot stopped listening")
		}
	}()
	for _, job := range app.scheduler.Jobs() {
		scheduledTime, err := job.NextRun()
		if err == nil {
			log.Info().Msgf("%v scheduled at %v", job.Name(), scheduledTime)
		}
	}
}

func (app *Impl) Shutdown() {
	if err := app.scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Cannot shutdown scheduler, continuing...")
	}
	app.db.Shutdown()
	log.Info().Msgf("Application is no longer running")
}
