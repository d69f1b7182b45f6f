package subscriptions

import (
	"context"
	"strings"

	"rss-notifier/models/constants"
	sourceRepo "rss-notifier/repositories/sources"
	subscriptionRepo "rss-notifier/repositories/subscriptions"
	"rss-notifier/services/fetcher"

	"github.com/rs/zerolog/log"
)

func New(fetcherService fetcher.Service, sources sourceRepo.Repository, subscriptions subscriptionRepo.Repository) *Impl {
	return &Impl{
		fetcher:          fetcherService,
		sourceRepo:       sources,
		subscriptionRepo: subscriptions,
	}
}

// Add fetches and parses the link first, so an invalid feed fails fast before
// anything is written. The source is shared across users and looked up by
// link; a second subscribe attempt for the same (user, source) pair is
// rejected with ErrAlreadySubscribed.
func (service *Impl) Add(ctx context.Context, userID int64, link string) (*SubscribedSource, error) {
	link = strings.TrimSpace(link)

	parsed, err := service.fetcher.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}

	source, err := service.sourceRepo.GetByLink(link)
	if err != nil {
		return nil, err
	}
	if source == nil {
		source, err = service.sourceRepo.Create(link, parsed.Title)
		if err != nil {
			return nil, err
		}
		log.Info().
			Uint(constants.LogSourceID, source.ID).
			Str(constants.LogSourceLink, link).
			Msg("New source tracked")
	}

	exists, err := service.subscriptionRepo.Exists(userID, source.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadySubscribed
	}

	subscription, err := service.subscriptionRepo.Create(userID, source.ID)
	if err != nil {
		return nil, err
	}

	return &SubscribedSource{SubscriptionID: subscription.ID, Source: *source}, nil
}

// Remove deletes a subscription by ID. A missing or foreign subscription
// yields ErrSubscriptionNotFound rather than touching anything.
func (service *Impl) Remove(ctx context.Context, userID int64, subscriptionID uint) error {
	subscription, err := service.subscriptionRepo.GetByID(subscriptionID)
	if err != nil {
		return err
	}
	if subscription == nil || subscription.UserID != userID {
		return ErrSubscriptionNotFound
	}

	deleted, err := service.subscriptionRepo.Delete(subscriptionID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSubscriptionNotFound
	}

	return nil
}

func (service *Impl) ListForUser(ctx context.Context, userID int64) ([]SubscribedSource, error) {
	subscriptions, err := service.subscriptionRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	subscribed := make([]SubscribedSource, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		source, err := service.sourceRepo.GetByID(subscription.SourceID)
		if err != nil {
			return nil, err
		}
		if source == nil {
			log.Warn().
				Uint(constants.LogSourceID, subscription.SourceID).
				Msg("Subscription references a missing source, skipping")
			continue
		}
		subscribed = append(subscribed, SubscribedSource{
			SubscriptionID: subscription.ID,
			Source:         *source,
		})
	}

	return subscribed, nil
}
