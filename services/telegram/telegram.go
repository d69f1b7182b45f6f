package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rss-notifier/models/constants"
	"rss-notifier/models/entities"
	"rss-notifier/pkg/feed"
	preferenceRepo "rss-notifier/repositories/preferences"
	userRepo "rss-notifier/repositories/users"
	subscriptionService "rss-notifier/services/subscriptions"
	syncService "rss-notifier/services/sync"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/dustin/go-humanize"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const telegramFileURL = "https://api.telegram.org/file/bot%s/%s"

func New(token string,
	users userRepo.Repository,
	preferences preferenceRepo.Repository,
	subscriptions subscriptionService.Service,
	summaryCache *cache.Cache) (*Impl, error) {
	if token == "" {
		return &Impl{}, ErrTokenIsMissing
	}

	b, err := gotgbot.NewBot(token, nil)
	if err != nil {
		return &Impl{}, ErrBotNotInitialized
	}

	timeout := time.Duration(viper.GetInt(constants.HTTPTimeout)) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *gotgbot.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			log.Warn().Err(err).Msg("an error occurred while handling update")
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})

	service := Impl{
		bot:                 b,
		token:               token,
		adminChatID:         viper.GetInt64(constants.TelegramAdminChatID),
		client:              &http.Client{Timeout: timeout},
		userRepo:            users,
		preferenceRepo:      preferences,
		subscriptionService: subscriptions,
		cache:               summaryCache,
	}

	dispatcher.AddHandler(handlers.NewCommand("start", service.startCmd))
	dispatcher.AddHandler(handlers.NewCommand("help", service.helpCmd))
	dispatcher.AddHandler(handlers.NewCommand("ping", service.pingCmd))
	dispatcher.AddHandler(handlers.NewCommand("add", service.addCmd))
	dispatcher.AddHandler(handlers.NewCommand("remove", service.removeCmd))
	dispatcher.AddHandler(handlers.NewCommand("list", service.listCmd))
	dispatcher.AddHandler(handlers.NewCommand("check", service.checkCmd))
	dispatcher.AddHandler(handlers.NewCommand("update", service.updateCmd))
	dispatcher.AddHandler(handlers.NewCommand("pause", service.pauseCmd))
	dispatcher.AddHandler(handlers.NewCommand("activate", service.activateCmd))
	dispatcher.AddHandler(handlers.NewCommand("export", service.exportCmd))
	dispatcher.AddHandler(handlers.NewCommand("", service.unknownCmd))
	dispatcher.AddHandler(handlers.NewMessage(func(msg *gotgbot.Message) bool {
		return msg.Document != nil
	}, service.importDocument))

	service.updater = ext.NewUpdater(dispatcher, nil)

	return &service, nil
}

// RegisterSynchronizer wires the manual /update trigger. Resolved after
// construction because the synchronizer itself needs this service as its
// notifier.
func (service *Impl) RegisterSynchronizer(synchronizer syncService.Service) {
	service.synchronizer = synchronizer
}

func (service *Impl) ListenAndDispatch() error {
	err := service.updater.StartPolling(service.bot, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &gotgbot.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return ErrFailedToStartListening
	}

	service.updater.Idle()
	return nil
}

// NotifyFeedItem delivers one (user, item) notification. It is the outbound
// half of the synchronization cycle's fan-out.
func (service *Impl) NotifyFeedItem(ctx context.Context, chatID int64, source entities.Source, item feed.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := service.bot.SendMessage(chatID, formatFeedItem(source.Title, item), &gotgbot.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}

	return nil
}

func (service *Impl) startCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "start").Str(constants.LogUserName, ctx.EffectiveChat.Username).Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")

	err := service.userRepo.SaveOrUpdate(entities.User{ChatID: ctx.EffectiveChat.Id, FirstName: ctx.EffectiveChat.FirstName})
	if err != nil {
		log.Error().Err(err).Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("error on user registration")
		service.reply(ctx, genericErrorMessage())
		return nil
	}

	service.notifyAdminOnNewUser(ctx.EffectiveChat.Id)
	service.reply(ctx, welcomeMessage())
	return nil
}

func (service *Impl) helpCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "help").Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")
	service.reply(ctx, helpMessage())
	return nil
}

func (service *Impl) pingCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	service.bot.SendMessage(ctx.EffectiveChat.Id, "pong", nil)
	return nil
}

func (service *Impl) unknownCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "unknown").Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")
	service.reply(ctx, genericErrorMessage())
	return nil
}

func (service *Impl) addCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "add").Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")
	if !service.requireUser(ctx) {
		return nil
	}

	link := commandArgument(ctx.EffectiveMessage.Text)
	if link == "" {
		service.reply(ctx, "Usage: `/add [feed link]`")
		return nil
	}

	subscribed, err := service.subscriptionService.Add(context.Background(), ctx.EffectiveChat.Id, link)
	if err != nil {
		service.reply(ctx, subscribeErrorMessage(err))
		return nil
	}

	service.reply(ctx, fmt.Sprintf("✅ Subscribed to *%s*", escapeMarkdownV2(subscribed.Source.Title)))
	return nil
}

func (service *Impl) removeCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "remove").Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")
	if !service.requireUser(ctx) {
		return nil
	}

	argument := commandArgument(ctx.EffectiveMessage.Text)
	subscriptionID, err := strconv.ParseUint(argument, 10, 32)
	if argument == "" || err != nil {
		service.reply(ctx, "Usage: `/remove [subscription id]` \\(see `/list`\\)")
		return nil
	}

	err = service.subscriptionService.Remove(context.Background(), ctx.EffectiveChat.Id, uint(subscriptionID))
	if err != nil {
		if err == subscriptionService.ErrSubscriptionNotFound {
			service.reply(ctx, "No such subscription\\. It may already be removed\\.")
			return nil
		}
		log.Error().Err(err).Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("error on remove")
		service.reply(ctx, genericErrorMessage())
		return nil
	}

	service.reply(ctx, "✅ Unsubscribed")
	return nil
}

func (service *Impl) listCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "list").Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")
	if !service.requireUser(ctx) {
		return nil
	}

	subscribed, err := service.subscriptionService.ListForUser(context.Background(), ctx.EffectiveChat.Id)
	if err != nil {
		log.Error().Err(err).Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("error on list")
		service.reply(ctx, genericErrorMessage())
		return nil
	}
	if len(subscribed) == 0 {
		service.reply(ctx, "No subscription yet\\. Use `/add [feed link]` to track a feed\\.")
		return nil
	}

	var message strings.Builder
	for _, subscription := range subscribed {
		message.WriteString(fmt.Sprintf("\\[%d\\] [%s](%s) — updated %s\n",
			subscription.SubscriptionID,
			escapeMarkdownV2(subscription.Source.Title),
			escapeMarkdownV2(subscription.Source.Link),
			escapeMarkdownV2(humanize.Time(subscription.Source.LastUpdate))))
	}
	service.reply(ctx, message.String())
	return nil
}

func (service *Impl) checkCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "check").Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")
	if !service.requireUser(ctx) {
		return nil
	}

	cached, found := service.cache.Get(syncService.LastSummaryCacheKey)
	if !found {
		service.reply(ctx, "No synchronization cycle has completed yet\\.")
		return nil
	}

	summary := cached.(syncService.Summary)
	service.reply(ctx, summaryMessage(summary))
	return nil
}

func (service *Impl) updateCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "update").Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")
	if !service.requireUser(ctx) {
		return nil
	}
	if service.synchronizer == nil {
		service.reply(ctx, genericErrorMessage())
		return nil
	}

	summary, err := service.synchronizer.RunCycle(context.Background())
	if err != nil {
		if err == syncService.ErrCycleInProgress {
			service.reply(ctx, "A synchronization cycle is already running, try again in a moment\\.")
			return nil
		}
		log.Error().Err(err).Msg("manual cycle failed")
		service.reply(ctx, genericErrorMessage())
		return nil
	}

	service.reply(ctx, summaryMessage(*summary))
	return nil
}

func (service *Impl) pauseCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "pause").Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")
	if !service.requireUser(ctx) {
		return nil
	}

	err := service.preferenceRepo.SaveOrUpdate(entities.UserPreference{UserID: ctx.EffectiveChat.Id, Active: false})
	if err != nil {
		log.Error().Err(err).Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("error on pause")
		service.reply(ctx, genericErrorMessage())
		return nil
	}

	service.reply(ctx, "⏸ Notifications paused\\. Your subscriptions are kept, use `/activate` to resume\\.")
	return nil
}

func (service *Impl) activateCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "activate").Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")
	if !service.requireUser(ctx) {
		return nil
	}

	err := service.preferenceRepo.SaveOrUpdate(entities.UserPreference{UserID: ctx.EffectiveChat.Id, Active: true})
	if err != nil {
		log.Error().Err(err).Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("error on activate")
		service.reply(ctx, genericErrorMessage())
		return nil
	}

	service.reply(ctx, "▶️ Notifications resumed\\.")
	return nil
}

func (service *Impl) exportCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	log.Info().Str(constants.LogCommand, "export").Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("command received")
	if !service.requireUser(ctx) {
		return nil
	}

	subscribed, err := service.subscriptionService.ListForUser(context.Background(), ctx.EffectiveChat.Id)
	if err != nil {
		log.Error().Err(err).Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("error on export")
		service.reply(ctx, genericErrorMessage())
		return nil
	}
	if len(subscribed) == 0 {
		service.reply(ctx, "No subscription to export\\.")
		return nil
	}

	links := make([]string, 0, len(subscribed))
	for _, subscription := range subscribed {
		links = append(links, subscription.Source.Link)
	}
	service.bot.SendMessage(ctx.EffectiveChat.Id, strings.Join(links, "\n"), nil)
	return nil
}

// requireUser gates commands behind /start registration.
func (service *Impl) requireUser(ctx *ext.Context) bool {
	user, err := service.userRepo.Get(ctx.EffectiveChat.Id)
	if err != nil {
		log.Error().Err(err).Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("error on user lookup")
		return false
	}
	if user == nil {
		service.reply(ctx, "Please register with `/start` first\\.")
		return false
	}
	return true
}

func (service *Impl) reply(ctx *ext.Context, text string) {
	_, err := service.bot.SendMessage(ctx.EffectiveChat.Id, text, &gotgbot.SendMessageOpts{ParseMode: "MarkdownV2"})
	if err != nil {
		log.Error().Err(err).Int64(constants.LogChatID, ctx.EffectiveChat.Id).Msg("failed to send reply")
	}
}

func (service *Impl) notifyAdminOnNewUser(chatID int64) {
	if service.adminChatID == 0 || chatID == service.adminChatID {
		return
	}

	// one admin ping per user per day, however often they /start
	key := fmt.Sprintf("admin_new_user_%d_%s", chatID, time.Now().Format("2006-01-02"))
	if _, found := service.cache.Get(key); found {
		return
	}
	service.cache.Set(key, true, 25*time.Hour)

	message := "🆕 *New user*\n"
	message += fmt.Sprintf("👤 Chat ID: `%d`\n", chatID)
	message += fmt.Sprintf("📅 Date: `%s`", escapeMarkdownV2(time.Now().Format("2006-01-02 15:04:05")))
	service.bot.SendMessage(service.adminChatID, message, &gotgbot.SendMessageOpts{ParseMode: "MarkdownV2"})
}

// commandArgument returns everything after the command word.
func commandArgument(text string) string {
	_, argument, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(argument)
}
