package subscriptions

import (
	"context"
	"errors"

	"rss-notifier/models/entities"
	sourceRepo "rss-notifier/repositories/sources"
	subscriptionRepo "rss-notifier/repositories/subscriptions"
	"rss-notifier/services/fetcher"
)

var (
	ErrAlreadySubscribed    = errors.New("user is already subscribed to this feed")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// SubscribedSource joins a subscription with its source metadata for listing
// and removal by subscription ID.
type SubscribedSource struct {
	SubscriptionID uint
	Source         entities.Source
}

type Service interface {
	Add(ctx context.Context, userID int64, link string) (*SubscribedSource, error)
	Remove(ctx context.Context, userID int64, subscriptionID uint) error
	ListForUser(ctx context.Context, userID int64) ([]SubscribedSource, error)
}

type Impl struct {
	fetcher          fetcher.Service
	sourceRepo       sourceRepo.Repository
	subscriptionRepo subscriptionRepo.Repository
}
