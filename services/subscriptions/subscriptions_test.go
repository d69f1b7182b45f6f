package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"rss-notifier/models/entities"
	sourceRepo "rss-notifier/repositories/sources"
	subscriptionRepo "rss-notifier/repositories/subscriptions"
	"rss-notifier/pkg/feed"
	"rss-notifier/utils/databases"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	feeds map[string]*feed.Feed
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*feed.Feed, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if parsed, ok := f.feeds[url]; ok {
		return parsed, nil
	}
	return nil, errors.New("unexpected fetch: " + url)
}

func newTestService(t *testing.T, fetch *fakeFetcher) (*Impl, sourceRepo.Repository) {
	t.Helper()

	db := databases.NewWithDSN(":memory:")
	require.NoError(t, db.Run())
	require.NoError(t, db.GetDB().AutoMigrate(&entities.Source{}, &entities.Subscription{}))
	t.Cleanup(db.Shutdown)

	sources := sourceRepo.New(db)
	return New(fetch, sources, subscriptionRepo.New(db)), sources
}

func validFeed(title string) *feed.Feed {
	return &feed.Feed{
		Title:   title,
		LastPub: time.Now(),
		Items:   []feed.Item{{Title: "item", Link: "https://example.com/item", PubDate: time.Now()}},
	}
}

func TestAdd_CreatesSourceAndSubscription(t *testing.T) {
	fetch := &fakeFetcher{feeds: map[string]*feed.Feed{
		"https://example.com/rss": validFeed("Example Blog"),
	}}
	service, sources := newTestService(t, fetch)

	subscribed, err := service.Add(context.Background(), 100, "https://example.com/rss")
	require.NoError(t, err)
	assert.Equal(t, "Example Blog", subscribed.Source.Title)

	created, err := sources.GetByLink("https://example.com/rss")
	require.NoError(t, err)
	require.NotNil(t, created)
}

func TestAdd_RejectsDuplicateWithoutDuplicatingSource(t *testing.T) {
	fetch := &fakeFetcher{feeds: map[string]*feed.Feed{
		"https://example.com/rss": validFeed("Example Blog"),
	}}
	service, sources := newTestService(t, fetch)

	_, err := service.Add(context.Background(), 100, "https://example.com/rss")
	require.NoError(t, err)

	_, err = service.Add(context.Background(), 100, "https://example.com/rss")
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
	assert.EqualValues(t, 1, sources.Count())
}

func TestAdd_SharesSourceBetweenUsers(t *testing.T) {
	fetch := &fakeFetcher{feeds: map[string]*feed.Feed{
		"https://example.com/rss": validFeed("Example Blog"),
	}}
	service, sources := newTestService(t, fetch)

	first, err := service.Add(context.Background(), 100, "https://example.com/rss")
	require.NoError(t, err)
	second, err := service.Add(context.Background(), 200, "https://example.com/rss")
	require.NoError(t, err)

	assert.Equal(t, first.Source.ID, second.Source.ID)
	assert.EqualValues(t, 1, sources.Count())
}

func TestAdd_FailsFastOnInvalidFeed(t *testing.T) {
	fetch := &fakeFetcher{errs: map[string]error{
		"https://example.com/page": feed.ErrUnsupportedFormat,
	}}
	service, sources := newTestService(t, fetch)

	_, err := service.Add(context.Background(), 100, "https://example.com/page")
	assert.ErrorIs(t, err, feed.ErrUnsupportedFormat)
	assert.EqualValues(t, 0, sources.Count(), "nothing is written when the link is not a valid feed")
}

func TestRemove(t *testing.T) {
	fetch := &fakeFetcher{feeds: map[string]*feed.Feed{
		"https://example.com/rss": validFeed("Example Blog"),
	}}
	service, _ := newTestService(t, fetch)

	subscribed, err := service.Add(context.Background(), 100, "https://example.com/rss")
	require.NoError(t, err)

	// another user cannot remove it
	err = service.Remove(context.Background(), 200, subscribed.SubscriptionID)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	require.NoError(t, service.Remove(context.Background(), 100, subscribed.SubscriptionID))

	// removing again is a clear not-found, not a crash
	err = service.Remove(context.Background(), 100, subscribed.SubscriptionID)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestListForUser(t *testing.T) {
	fetch := &fakeFetcher{feeds: map[string]*feed.Feed{
		"https://example.com/a": validFeed("A"),
		"https://example.com/b": validFeed("B"),
	}}
	service, _ := newTestService(t, fetch)

	_, err := service.Add(context.Background(), 100, "https://example.com/a")
	require.NoError(t, err)
	_, err = service.Add(context.Background(), 100, "https://example.com/b")
	require.NoError(t, err)
	_, err = service.Add(context.Background(), 200, "https://example.com/a")
	require.NoError(t, err)

	subscribed, err := service.ListForUser(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, subscribed, 2)

	titles := []string{subscribed[0].Source.Title, subscribed[1].Source.Title}
	assert.ElementsMatch(t, []string{"A", "B"}, titles)
}
