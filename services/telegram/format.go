package telegram

import (
	"fmt"
	"strings"

	"rss-notifier/pkg/feed"

	"github.com/microcosm-cc/bluemonday"
)

const descriptionLimit = 500

var descriptionPolicy = bluemonday.StrictPolicy()

var markdownV2Replacer = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

// escapeMarkdownV2 escapes every character the MarkdownV2 parse mode treats
// as markup.
func escapeMarkdownV2(text string) string {
	return markdownV2Replacer.Replace(text)
}

// formatFeedItem renders one notification: source title and publish date,
// a description excerpt stripped of HTML, and the item link.
func formatFeedItem(sourceTitle string, item feed.Item) string {
	description := strings.TrimSpace(descriptionPolicy.Sanitize(item.Description))
	if runes := []rune(description); len(runes) > descriptionLimit {
		description = string(runes[:descriptionLimit]) + "…"
	}

	header := fmt.Sprintf("*%s* %s",
		escapeMarkdownV2(sourceTitle),
		escapeMarkdownV2(item.PubDate.Format("2006-01-02")))
	body := escapeMarkdownV2("-------- Description --------\n" + description + "\n---------- Link ----------")
	link := fmt.Sprintf("[%s](%s)",
		escapeMarkdownV2(item.Title),
		escapeMarkdownV2(item.Link))

	return strings.Join([]string{header, body, link}, "\n")
}
