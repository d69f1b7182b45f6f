package telegram

import (
	"errors"
	"fmt"

	"rss-notifier/pkg/feed"
	"rss-notifier/services/fetcher"
	subscriptionService "rss-notifier/services/subscriptions"
	syncService "rss-notifier/services/sync"

	"github.com/dustin/go-humanize"
)

func welcomeMessage() string {
	msg := "👋 Hi\\! I'm *RSS Notifier* 🤖\n\n"
	msg += "I watch RSS and Atom feeds for you and send a message whenever one of them publishes something new\\.\n\n"
	msg += "✅ `/add [feed link]` to track a feed\\.\n"
	msg += "📋 `/list` to see what you follow\\.\n"
	msg += "💬 `/help` for every command\\."

	return msg
}

func helpMessage() string {
	msg := "🤖 *RSS Notifier* – Help 📢\n\n"
	msg += "✅ `/add [feed link]` – Subscribe to an RSS/Atom feed\\.\n"
	msg += "❌ `/remove [id]` – Unsubscribe \\(ids are shown by `/list`\\)\\.\n"
	msg += "📋 `/list` – List your subscriptions\\.\n"
	msg += "🔄 `/update` – Check every feed right now\\.\n"
	msg += "📊 `/check` – Show the last synchronization summary\\.\n"
	msg += "⏸ `/pause` / ▶️ `/activate` – Pause or resume notifications\\.\n"
	msg += "📤 `/export` – Export your feed links as text\\.\n\n"
	msg += "You can also upload a text file with one feed link per line to import in bulk\\."

	return msg
}

func genericErrorMessage() string {
	msg := "😔 *Oops\\! Something went wrong*\n\n"
	msg += "I couldn't complete your request\\. Double\\-check the command and try again in a moment\\."

	return msg
}

func subscribeErrorMessage(err error) string {
	switch {
	case errors.Is(err, subscriptionService.ErrAlreadySubscribed):
		return "You are already subscribed to this feed\\."
	case errors.Is(err, feed.ErrUnsupportedFormat):
		return "This link is not an RSS 2\\.0 or Atom 1\\.0 feed\\."
	default:
		var invalid *feed.InvalidDocumentError
		if errors.As(err, &invalid) {
			return "This link does not serve a valid feed document\\."
		}
		var response *fetcher.ResponseError
		if errors.As(err, &response) {
			return fmt.Sprintf("The feed answered with status %d, try again later\\.", response.StatusCode)
		}
		return "I couldn't reach this feed\\. Check the link and try again\\."
	}
}

func summaryMessage(summary syncService.Summary) string {
	msg := "📊 *Last synchronization*\n\n"
	msg += fmt.Sprintf("🕑 Ran %s\n", escapeMarkdownV2(humanize.Time(summary.StartedAt)))
	msg += fmt.Sprintf("🔎 Sources checked: `%d`\n", summary.SourcesChecked)
	msg += fmt.Sprintf("⚠️ Sources failed: `%d`\n", summary.SourcesFailed)
	msg += fmt.Sprintf("⏭ Sources skipped: `%d`\n", summary.SourcesSkipped)
	msg += fmt.Sprintf("📨 Items delivered: `%d`\n", summary.ItemsDelivered)
	msg += fmt.Sprintf("💥 Delivery failures: `%d`", summary.DeliveryFailures)

	return msg
}
