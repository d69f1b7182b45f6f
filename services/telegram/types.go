package telegram

import (
	"errors"
	"net/http"

	preferenceRepo "rss-notifier/repositories/preferences"
	userRepo "rss-notifier/repositories/users"
	subscriptionService "rss-notifier/services/subscriptions"
	syncService "rss-notifier/services/sync"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/patrickmn/go-cache"
)

var (
	ErrTokenIsMissing         = errors.New("telegram token is missing")
	ErrBotNotInitialized      = errors.New("telegram bot is not ready yet")
	ErrFailedToStartListening = errors.New("telegram bot can't start to listen command")
)

type Service interface {
	ListenAndDispatch() error
	RegisterSynchronizer(synchronizer syncService.Service)
}

type Impl struct {
	bot                 *gotgbot.Bot
	updater             *ext.Updater
	token               string
	adminChatID         int64
	client              *http.Client
	userRepo            userRepo.Repository
	preferenceRepo      preferenceRepo.Repository
	subscriptionService subscriptionService.Service
	synchronizer        syncService.Service
	cache               *cache.Cache
}
