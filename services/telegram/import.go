package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"rss-notifier/models/constants"
	subscriptionService "rss-notifier/services/subscriptions"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

const importMaxFileBytes = 1 << 20

// importDocument handles a text file upload as a bulk subscribe: one feed
// link per line, each attempted up to 3 times before being reported as
// failed. One bad line does not stop the others.
func (service *Impl) importDocument(b *gotgbot.Bot, ctx *ext.Context) error {
	chatID := ctx.EffectiveChat.Id
	log.Info().Str(constants.LogCommand, "import").Int64(constants.LogChatID, chatID).Msg("document received")
	if !service.requireUser(ctx) {
		return nil
	}

	content, err := service.downloadDocument(ctx.EffectiveMessage.Document.FileId)
	if err != nil {
		log.Error().Err(err).Int64(constants.LogChatID, chatID).Msg("cannot download document")
		service.reply(ctx, genericErrorMessage())
		return nil
	}

	var links []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			links = append(links, line)
		}
	}
	if len(links) == 0 {
		service.reply(ctx, "The file contains no feed link\\.")
		return nil
	}

	var added, failed int
	for _, link := range links {
		if err := service.addWithRetry(context.Background(), chatID, link); err != nil {
			failed++
			log.Warn().Err(err).
				Int64(constants.LogChatID, chatID).
				Str(constants.LogSourceLink, link).
				Msg("bulk import line failed")
			continue
		}
		added++
	}

	service.reply(ctx, fmt.Sprintf("Import finished: %d subscribed, %d failed\\.", added, failed))
	return nil
}

func (service *Impl) addWithRetry(ctx context.Context, chatID int64, link string) error {
	// 3 attempts total: the initial try plus two retries
	backoff := retry.WithMaxRetries(2, retry.NewConstant(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := service.subscriptionService.Add(ctx, chatID, link)
		if err == nil || errors.Is(err, subscriptionService.ErrAlreadySubscribed) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// downloadDocument fetches an uploaded attachment through the Telegram file
// endpoint.
func (service *Impl) downloadDocument(fileID string) (string, error) {
	file, err := service.bot.GetFile(fileID, nil)
	if err != nil {
		return "", fmt.Errorf("getFile failed: %w", err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("getFile returned no file path")
	}

	response, err := service.client.Get(fmt.Sprintf(telegramFileURL, service.token, file.FilePath))
	if err != nil {
		return "", fmt.Errorf("file download failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", fmt.Errorf("file download failed with status %d", response.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(response.Body, importMaxFileBytes))
	if err != nil {
		return "", fmt.Errorf("cannot read file body: %w", err)
	}

	return string(content), nil
}
