package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"rss-notifier/models/entities"
	"rss-notifier/pkg/feed"
	preferenceRepo "rss-notifier/repositories/preferences"
	sourceRepo "rss-notifier/repositories/sources"
	subscriptionRepo "rss-notifier/repositories/subscriptions"
	userRepo "rss-notifier/repositories/users"
	"rss-notifier/services/fetcher"

	"github.com/patrickmn/go-cache"
)

// ErrCycleInProgress is returned when a trigger fires while the previous
// cycle is still running. The new trigger does nothing.
var ErrCycleInProgress = errors.New("a synchronization cycle is already running")

// LastSummaryCacheKey is where the most recent cycle summary is stored.
const LastSummaryCacheKey = "last_cycle_summary"

type Service interface {
	RunCycle(ctx context.Context) (*Summary, error)
}

// Notifier delivers one formatted message per (user, item) pair. A failed
// delivery only affects that pair.
type Notifier interface {
	NotifyFeedItem(ctx context.Context, chatID int64, source entities.Source, item feed.Item) error
}

// Summary is the aggregated outcome of one cycle. A cycle never fails as a
// whole; per-unit failures end up in these counters.
type Summary struct {
	StartedAt        time.Time
	Duration         time.Duration
	SourcesChecked   int
	SourcesFailed    int
	SourcesSkipped   int
	ItemsDelivered   int
	DeliveryFailures int
}

type Impl struct {
	sourceRepo       sourceRepo.Repository
	subscriptionRepo subscriptionRepo.Repository
	userRepo         userRepo.Repository
	preferenceRepo   preferenceRepo.Repository
	fetcher          fetcher.Service
	notifier         Notifier
	cache            *cache.Cache

	fanOutWorkers    int
	failureThreshold int
	running          atomic.Bool
}

// sourceDelta carries one source's new items through fan-out. The watermark
// has already advanced by the time a delta exists.
type sourceDelta struct {
	source entities.Source
	items  []feed.Item
}
