package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"rss-notifier/models/constants"
	"rss-notifier/models/entities"
	"rss-notifier/pkg/feed"
	preferenceRepo "rss-notifier/repositories/preferences"
	sourceRepo "rss-notifier/repositories/sources"
	subscriptionRepo "rss-notifier/repositories/subscriptions"
	userRepo "rss-notifier/repositories/users"
	"rss-notifier/utils/databases"

	"github.com/go-co-op/gocron/v2"
	"github.com/patrickmn/go-cache"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    stdsync.Mutex
	feeds map[string]*feed.Feed
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		feeds: map[string]*feed.Feed{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*feed.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if parsed, ok := f.feeds[url]; ok {
		return parsed, nil
	}
	return nil, errors.New("unexpected fetch: " + url)
}

type delivery struct {
	chatID   int64
	sourceID uint
	guid     string
}

type recordingNotifier struct {
	mu         stdsync.Mutex
	deliveries []delivery
	failFor    map[int64]bool
	onNotify   func()
}

func (n *recordingNotifier) NotifyFeedItem(ctx context.Context, chatID int64, source entities.Source, item feed.Item) error {
	if n.onNotify != nil {
		n.onNotify()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[chatID] {
		return errors.New("transport rejected the message")
	}
	n.deliveries = append(n.deliveries, delivery{chatID: chatID, sourceID: source.ID, guid: item.GUID})
	return nil
}

func (n *recordingNotifier) guidsFor(chatID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var guids []string
	for _, d := range n.deliveries {
		if d.chatID == chatID {
			guids = append(guids, d.guid)
		}
	}
	return guids
}

type fixture struct {
	service       *Impl
	db            databases.SqlConnection
	sources       sourceRepo.Repository
	subscriptions subscriptionRepo.Repository
	users         userRepo.Repository
	preferences   preferenceRepo.Repository
	fetcher       *fakeFetcher
	notifier      *recordingNotifier
	cache         *cache.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	viper.Set(constants.SyncCronTab, "*/10 * * * *")
	viper.Set(constants.FanOutWorkers, 5)
	viper.Set(constants.SourceFailureThreshold, 10)

	db := databases.NewWithDSN(":memory:")
	require.NoError(t, db.Run())
	require.NoError(t, db.GetDB().AutoMigrate(
		&entities.Source{}, &entities.Subscription{}, &entities.User{}, &entities.UserPreference{}))
	t.Cleanup(db.Shutdown)

	scheduler, err := gocron.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = scheduler.Shutdown() })

	f := &fixture{
		db:            db,
		sources:       sourceRepo.New(db),
		subscriptions: subscriptionRepo.New(db),
		users:         userRepo.New(db),
		preferences:   preferenceRepo.New(db),
		fetcher:       newFakeFetcher(),
		notifier:      &recordingNotifier{failFor: map[int64]bool{}},
		cache:         cache.New(time.Hour, time.Hour),
	}

	f.service, err = New(scheduler, f.sources, f.subscriptions, f.users, f.preferences, f.fetcher, f.notifier, f.cache)
	require.NoError(t, err)

	return f
}

// addSource creates a source and pins its watermark to the given time.
func (f *fixture) addSource(t *testing.T, link string, watermark time.Time) entities.Source {
	t.Helper()
	source, err := f.sources.Create(link, link)
	require.NoError(t, err)
	require.NoError(t, f.db.GetDB().
		Model(&entities.Source{}).
		Where("id = ?", source.ID).
		Update("last_update", watermark).Error)
	source.LastUpdate = watermark
	return *source
}

func (f *fixture) addUser(t *testing.T, chatID int64, sourceIDs ...uint) {
	t.Helper()
	require.NoError(t, f.users.SaveOrUpdate(entities.User{ChatID: chatID, FirstName: "user"}))
	for _, sourceID := range sourceIDs {
		_, err := f.subscriptions.Create(chatID, sourceID)
		require.NoError(t, err)
	}
}

func itemAt(pubDate time.Time, guid string) feed.Item {
	return feed.Item{
		Title:   "item " + guid,
		Link:    "https://example.com/" + guid,
		GUID:    guid,
		PubDate: pubDate,
	}
}

func feedOf(items ...feed.Item) *feed.Feed {
	parsed := &feed.Feed{Title: "feed", Items: items}
	for _, item := range items {
		if item.PubDate.After(parsed.LastPub) {
			parsed.LastPub = item.PubDate
		}
	}
	return parsed
}

func TestRunCycle_DeltaCorrectness(t *testing.T) {
	f := newFixture(t)
	T := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	source := f.addSource(t, "https://example.com/a", T)
	f.addUser(t, 100, source.ID)
	f.fetcher.feeds[source.Link] = feedOf(
		itemAt(T.Add(-10*time.Minute), "old"),
		itemAt(T, "boundary"),
		itemAt(T.Add(5*time.Minute), "fresh-1"),
		itemAt(T.Add(20*time.Minute), "fresh-2"),
	)

	summary, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ItemsDelivered)
	assert.ElementsMatch(t, []string{"fresh-1", "fresh-2"}, f.notifier.guidsFor(100),
		"delta is strictly greater than the pre-cycle watermark")

	current, err := f.sources.GetByLink(source.Link)
	require.NoError(t, err)
	assert.True(t, current.LastUpdate.Equal(T.Add(20*time.Minute)), "watermark advances to lastPub")
}

func TestRunCycle_Idempotence(t *testing.T) {
	f := newFixture(t)
	T := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	source := f.addSource(t, "https://example.com/a", T)
	f.addUser(t, 100, source.ID)
	f.fetcher.feeds[source.Link] = feedOf(itemAt(T.Add(time.Minute), "once"))

	first, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.ItemsDelivered)

	second, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.ItemsDelivered, "no new upstream items means zero notifications")
	assert.Len(t, f.notifier.guidsFor(100), 1)

	current, err := f.sources.GetByLink(source.Link)
	require.NoError(t, err)
	assert.True(t, current.LastUpdate.Equal(T.Add(time.Minute)), "watermark untouched by the second run")
}

func TestRunCycle_FanOutOnlyToSubscribers(t *testing.T) {
	f := newFixture(t)
	T := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := f.addSource(t, "https://example.com/a", T)
	b := f.addSource(t, "https://example.com/b", T)
	c := f.addSource(t, "https://example.com/c", T)
	f.fetcher.feeds[a.Link] = feedOf(itemAt(T.Add(time.Minute), "a-1"))
	f.fetcher.feeds[b.Link] = feedOf(itemAt(T.Add(time.Minute), "b-1"))
	f.fetcher.feeds[c.Link] = feedOf(itemAt(T.Add(time.Minute), "c-1"))

	f.addUser(t, 100, a.ID, c.ID)
	f.addUser(t, 200, b.ID)

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a-1", "c-1"}, f.notifier.guidsFor(100))
	assert.ElementsMatch(t, []string{"b-1"}, f.notifier.guidsFor(200))
}

func TestRunCycle_FailingSourceDoesNotAffectOthers(t *testing.T) {
	f := newFixture(t)
	T := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := f.addSource(t, "https://example.com/a", T)
	b := f.addSource(t, "https://example.com/b", T)
	f.fetcher.errs[a.Link] = errors.New("HTTP 500")
	f.fetcher.feeds[b.Link] = feedOf(itemAt(T.Add(time.Minute), "b-1"))

	f.addUser(t, 100, a.ID, b.ID)

	summary, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SourcesFailed)
	assert.ElementsMatch(t, []string{"b-1"}, f.notifier.guidsFor(100))

	currentA, err := f.sources.GetByLink(a.Link)
	require.NoError(t, err)
	assert.True(t, currentA.LastUpdate.Equal(T), "failed source keeps its watermark")
	assert.Equal(t, 1, currentA.ErrorCount)

	currentB, err := f.sources.GetByLink(b.Link)
	require.NoError(t, err)
	assert.True(t, currentB.LastUpdate.Equal(T.Add(time.Minute)))
}

func TestRunCycle_DeliveryFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	T := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	source := f.addSource(t, "https://example.com/a", T)
	f.fetcher.feeds[source.Link] = feedOf(itemAt(T.Add(time.Minute), "a-1"))
	f.addUser(t, 100, source.ID)
	f.addUser(t, 200, source.ID)
	f.notifier.failFor[100] = true

	summary, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.DeliveryFailures)
	assert.ElementsMatch(t, []string{"a-1"}, f.notifier.guidsFor(200))

	// watermark advanced regardless of delivery outcome
	current, err := f.sources.GetByLink(source.Link)
	require.NoError(t, err)
	assert.True(t, current.LastUpdate.Equal(T.Add(time.Minute)))
}

func TestRunCycle_SkipsChronicallyFailingSource(t *testing.T) {
	f := newFixture(t)
	T := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	source := f.addSource(t, "https://example.com/a", T)
	require.NoError(t, f.db.GetDB().
		Model(&entities.Source{}).
		Where("id = ?", source.ID).
		Update("error_count", 10).Error)

	summary, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SourcesSkipped)
	assert.Zero(t, f.fetcher.calls[source.Link], "a source over the failure threshold is not fetched")
}

func TestRunCycle_SkipsPausedUser(t *testing.T) {
	f := newFixture(t)
	T := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	source := f.addSource(t, "https://example.com/a", T)
	f.fetcher.feeds[source.Link] = feedOf(itemAt(T.Add(time.Minute), "a-1"))
	f.addUser(t, 100, source.ID)
	require.NoError(t, f.preferences.SaveOrUpdate(entities.UserPreference{UserID: 100, Active: false}))

	summary, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.ItemsDelivered)
	assert.Empty(t, f.notifier.guidsFor(100))
}

func TestRunCycle_RejectsOverlappingCycle(t *testing.T) {
	f := newFixture(t)
	T := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	source := f.addSource(t, "https://example.com/a", T)
	f.fetcher.feeds[source.Link] = feedOf(itemAt(T.Add(time.Minute), "a-1"))
	f.addUser(t, 100, source.ID)

	var overlapErr error
	f.notifier.onNotify = func() {
		_, overlapErr = f.service.RunCycle(context.Background())
	}

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, overlapErr, ErrCycleInProgress)
}

func TestRunCycle_StoresSummaryInCache(t *testing.T) {
	f := newFixture(t)
	T := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	source := f.addSource(t, "https://example.com/a", T)
	f.fetcher.feeds[source.Link] = feedOf(itemAt(T.Add(time.Minute), "a-1"))
	f.addUser(t, 100, source.ID)

	summary, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	cached, found := f.cache.Get(LastSummaryCacheKey)
	require.True(t, found)
	assert.Equal(t, *summary, cached.(Summary))
}
