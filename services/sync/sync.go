package sync

import (
	"context"
	stdsync "sync"
	"sync/atomic"
	"time"

	"rss-notifier/models/constants"
	"rss-notifier/models/entities"
	"rss-notifier/pkg/feed"
	preferenceRepo "rss-notifier/repositories/preferences"
	sourceRepo "rss-notifier/repositories/sources"
	subscriptionRepo "rss-notifier/repositories/subscriptions"
	userRepo "rss-notifier/repositories/users"
	"rss-notifier/services/fetcher"

	"github.com/go-co-op/gocron/v2"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func New(scheduler gocron.Scheduler,
	sources sourceRepo.Repository,
	subscriptions subscriptionRepo.Repository,
	users userRepo.Repository,
	preferences preferenceRepo.Repository,
	fetcherService fetcher.Service,
	notifier Notifier,
	summaryCache *cache.Cache) (*Impl, error) {
	fanOutWorkers := viper.GetInt(constants.FanOutWorkers)
	if fanOutWorkers <= 0 {
		fanOutWorkers = 5
	}
	failureThreshold := viper.GetInt(constants.SourceFailureThreshold)
	if failureThreshold <= 0 {
		failureThreshold = 10
	}

	service := &Impl{
		sourceRepo:       sources,
		subscriptionRepo: subscriptions,
		userRepo:         users,
		preferenceRepo:   preferences,
		fetcher:          fetcherService,
		notifier:         notifier,
		cache:            summaryCache,
		fanOutWorkers:    fanOutWorkers,
		failureThreshold: failureThreshold,
	}

	_, errJob := scheduler.NewJob(
		gocron.CronJob(viper.GetString(constants.SyncCronTab), true),
		gocron.NewTask(func() {
			if _, err := service.RunCycle(context.Background()); err != nil {
				log.Error().Err(err).Msg("Synchronization cycle did not run")
			}
		}),
		gocron.WithName("Synchronize feeds"),
	)
	if errJob != nil {
		return nil, errJob
	}

	return service, nil
}

// RunCycle executes one synchronization cycle: snapshot sources and users,
// refresh every source concurrently, then fan the new items out to
// subscribers with bounded concurrency across users. Only one cycle runs at
// a time; overlapping triggers get ErrCycleInProgress.
func (service *Impl) RunCycle(ctx context.Context) (*Summary, error) {
	if !service.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer service.running.Store(false)

	started := time.Now()
	log.Info().Msg("Starting synchronization cycle...")

	allSources, err := service.sourceRepo.List()
	if err != nil {
		return nil, err
	}
	allUsers, err := service.userRepo.List()
	if err != nil {
		return nil, err
	}

	summary := &Summary{StartedAt: started}

	deltas := make([]*sourceDelta, len(allSources))
	var failedSources atomic.Int64

	var refreshGroup stdsync.WaitGroup
	for i, source := range allSources {
		if source.ErrorCount >= service.failureThreshold {
			summary.SourcesSkipped++
			log.Warn().
				Uint(constants.LogSourceID, source.ID).
				Str(constants.LogSourceLink, source.Link).
				Int("errorCount", source.ErrorCount).
				Msg("Source skipped until its failure counter is reset")
			continue
		}

		summary.SourcesChecked++
		refreshGroup.Add(1)
		go func(i int, source entities.Source) {
			defer refreshGroup.Done()
			delta, ok := service.refreshSource(ctx, source)
			if !ok {
				failedSources.Add(1)
				return
			}
			deltas[i] = delta
		}(i, source)
	}
	refreshGroup.Wait()
	summary.SourcesFailed = int(failedSources.Load())

	updated := make([]*sourceDelta, 0, len(deltas))
	for _, delta := range deltas {
		if delta != nil && len(delta.items) > 0 {
			updated = append(updated, delta)
		}
	}

	var delivered, deliveryFailures atomic.Int64
	if len(updated) > 0 {
		fanOut := new(errgroup.Group)
		fanOut.SetLimit(service.fanOutWorkers)
		for _, user := range allUsers {
			user := user
			fanOut.Go(func() error {
				service.notifyUser(ctx, user, updated, &delivered, &deliveryFailures)
				return nil
			})
		}
		fanOut.Wait()
	}
	summary.ItemsDelivered = int(delivered.Load())
	summary.DeliveryFailures = int(deliveryFailures.Load())
	summary.Duration = time.Since(started)

	service.cache.Set(LastSummaryCacheKey, *summary, cache.NoExpiration)
	log.Info().
		Int(constants.LogCycleChecked, summary.SourcesChecked).
		Int(constants.LogCycleFailed, summary.SourcesFailed).
		Int(constants.LogCycleSkipped, summary.SourcesSkipped).
		Int(constants.LogCycleDelivered, summary.ItemsDelivered).
		Dur("duration", summary.Duration).
		Msg("Synchronization cycle finished")

	return summary, nil
}

// refreshSource fetches one source and computes its delta against the
// watermark captured before this cycle's fetch. The watermark advances to
// the feed's lastPub before any notification is attempted; if that write
// fails the delta is dropped so the items are retried next cycle instead of
// being delivered past a stale watermark.
func (service *Impl) refreshSource(ctx context.Context, source entities.Source) (*sourceDelta, bool) {
	parsed, err := service.fetcher.Fetch(ctx, source.Link)
	if err != nil {
		log.Error().Err(err).
			Uint(constants.LogSourceID, source.ID).
			Str(constants.LogSourceLink, source.Link).
			Msg("Cannot read feed source, source ignored this cycle")
		if errCount := service.sourceRepo.RecordFetchFailure(source.ID); errCount != nil {
			log.Error().Err(errCount).
				Uint(constants.LogSourceID, source.ID).
				Msg("Cannot record fetch failure")
		}
		return nil, false
	}

	if source.ErrorCount > 0 {
		if err := service.sourceRepo.ResetFetchFailures(source.ID); err != nil {
			log.Error().Err(err).
				Uint(constants.LogSourceID, source.ID).
				Msg("Cannot reset failure counter")
		}
	}

	delta := &sourceDelta{source: source}
	for _, item := range parsed.Items {
		if item.PubDate.After(source.LastUpdate) {
			delta.items = append(delta.items, item)
		}
	}

	if parsed.LastPub.After(source.LastUpdate) {
		advanced, err := service.sourceRepo.AdvanceWatermark(source.ID, parsed.LastPub)
		if err != nil {
			log.Error().Err(err).
				Uint(constants.LogSourceID, source.ID).
				Str(constants.LogSourceLink, source.Link).
				Msg("Cannot advance watermark, withholding delta; items retried next cycle")
			return nil, false
		}
		if !advanced {
			// lost to a newer write or the source is gone; nothing to deliver
			return nil, true
		}
	}

	log.Info().
		Uint(constants.LogSourceID, source.ID).
		Str(constants.LogSourceLink, source.Link).
		Int(constants.LogItemNumber, len(delta.items)).
		Msg("Feed source read")

	return delta, true
}

// notifyUser fans one user's share of the cycle out: new items of every
// source they subscribe to, unordered and unbounded within the user. A
// delivery failure only loses that one (user, item) pair.
func (service *Impl) notifyUser(ctx context.Context, user entities.User, updated []*sourceDelta, delivered, deliveryFailures *atomic.Int64) {
	preference, err := service.preferenceRepo.Get(user.ChatID)
	if err != nil {
		log.Error().Err(err).
			Int64(constants.LogChatID, user.ChatID).
			Msg("Cannot read user preference, user skipped this cycle")
		return
	}
	if preference != nil && !preference.Active {
		return
	}

	subscriptions, err := service.subscriptionRepo.ListByUser(user.ChatID)
	if err != nil {
		log.Error().Err(err).
			Int64(constants.LogChatID, user.ChatID).
			Msg("Cannot read subscriptions, user skipped this cycle")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	subscribedTo := make(map[uint]struct{}, len(subscriptions))
	for _, subscription := range subscriptions {
		subscribedTo[subscription.SourceID] = struct{}{}
	}

	var wg stdsync.WaitGroup
	for _, delta := range updated {
		if _, ok := subscribedTo[delta.source.ID]; !ok {
			continue
		}
		for _, item := range delta.items {
			wg.Add(1)
			go func(source entities.Source, item feed.Item) {
				defer wg.Done()
				if err := service.notifier.NotifyFeedItem(ctx, user.ChatID, source, item); err != nil {
					deliveryFailures.Add(1)
					log.Error().Err(err).
						Int64(constants.LogChatID, user.ChatID).
						Uint(constants.LogSourceID, source.ID).
						Str(constants.LogItemGUID, item.GUID).
						Msg("Notification delivery failed")
					return
				}
				delivered.Add(1)
			}(delta.source, item)
		}
	}
	wg.Wait()
}
