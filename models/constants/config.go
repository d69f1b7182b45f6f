package constants

import "github.com/rs/zerolog"

const (
	ConfigFileName = ".env"

	// TELEGRAM BOT
	TelegramBotToken = "TELEGRAM_BOT_TOKEN"

	// Telegram chat ID receiving admin notifications; disabled when 0.
	TelegramAdminChatID = "TELEGRAM_ADMIN_CHAT_ID"

	// SQLITE_URL URL.
	SqliteURL = "SQLITE_URL"

	// Zerolog values from [trace, debug, info, warn, error, fatal, panic].
	LogLevel = "LOG_LEVEL"

	// Cron tab to the feed synchronization cycle.
	SyncCronTab = "SYNC_CRON_TAB"

	// Cron tab to health.
	HealthCronTab = "HEALTH_CRON_TAB"

	// Timeout in seconds applied to every outbound HTTP call.
	HTTPTimeout = "HTTP_TIMEOUT"

	// User-Agent header sent when fetching feed documents.
	FeedUserAgent = "FEED_USER_AGENT"

	// Number of users notified concurrently during fan-out.
	FanOutWorkers = "FAN_OUT_WORKERS"

	// Consecutive fetch failures after which a source is skipped.
	SourceFailureThreshold = "SOURCE_FAILURE_THRESHOLD"

	defaultTelegramBotToken       = ""
	defaultTelegramAdminChatID    = int64(0)
	defaultSqliteURL              = "rss-notifier.db"
	defaultSyncCronTab            = "*/10 * * * *"
	defaultHealthCrontab          = "* * * * *"
	defaultHTTPTimeout            = 15
	defaultFeedUserAgent          = "RSSNotifierBot/1.0 (+https://github.com/rss-notifier)"
	defaultFanOutWorkers          = 5
	defaultSourceFailureThreshold = 10
	defaultLogLevel               = zerolog.InfoLevel
)

func GetDefaultConfigValues() map[string]any {
	return map[string]any{
		TelegramBotToken:       defaultTelegramBotToken,
		TelegramAdminChatID:    defaultTelegramAdminChatID,
		SqliteURL:              defaultSqliteURL,
		LogLevel:               defaultLogLevel.String(),
		SyncCronTab:            defaultSyncCronTab,
		HealthCronTab:          defaultHealthCrontab,
		HTTPTimeout:            defaultHTTPTimeout,
		FeedUserAgent:          defaultFeedUserAgent,
		FanOutWorkers:          defaultFanOutWorkers,
		SourceFailureThreshold: defaultSourceFailureThreshold,
	}
}
