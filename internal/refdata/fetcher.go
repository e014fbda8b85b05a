// Package refdata serves the category and payment-method lists used to
// classify transactions, mirrored in the cache for a day.
package refdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dvloznov/finance-bot/internal/cache"
	"github.com/dvloznov/finance-bot/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultMaxAge is how long a fetched snapshot is served without a live call.
const DefaultMaxAge = 24 * time.Hour

// Lists is the payload returned by a reference data source.
type Lists struct {
	Categories     []string `json:"categories"`
	PaymentMethods []string `json:"paymentMethods"`
}

// Snapshot is a cached copy of the reference lists.
type Snapshot struct {
	Categories     []string
	PaymentMethods []string
	FetchedAt      time.Time // zero when nothing was ever cached
}

// Source loads the reference lists from wherever they live.
type Source interface {
	Fetch(ctx context.Context) (*Lists, error)
}

// Fetcher returns reference data from the cache, refreshing it from the
// source once it is older than MaxAge.
type Fetcher struct {
	source Source
	store  cache.Store
	maxAge time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewFetcher creates a Fetcher. maxAge <= 0 selects DefaultMaxAge.
func NewFetcher(source Source, store cache.Store, maxAge time.Duration, log zerolog.Logger) *Fetcher {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Fetcher{
		source: source,
		store:  store,
		maxAge: maxAge,
		now:    time.Now,
		log:    log,
	}
}

// WithClock replaces the time source. Intended for tests.
func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	f.now = now
	return f
}

// Get returns the current reference data. It never fails: on a source error
// the last cached snapshot is returned regardless of age, and with nothing
// cached the lists are empty.
func (f *Fetcher) Get(ctx context.Context) Snapshot {
	cached := f.cached(ctx)

	if !cached.FetchedAt.IsZero() && f.now().Sub(cached.FetchedAt) < f.maxAge {
		metrics.ReferenceFetches.WithLabelValues("cached").Inc()
		return cached
	}

	lists, err := f.source.Fetch(ctx)
	if err != nil {
		f.log.Warn().
			Err(err).
			Time("cached_at", cached.FetchedAt).
			Msg("Reference data fetch failed, serving cached copy")
		if cached.FetchedAt.IsZero() {
			metrics.ReferenceFetches.WithLabelValues("empty").Inc()
		} else {
			metrics.ReferenceFetches.WithLabelValues("stale").Inc()
		}
		return cached
	}

	fresh := Snapshot{
		Categories:     nonNil(lists.Categories),
		PaymentMethods: nonNil(lists.PaymentMethods),
		FetchedAt:      f.now(),
	}
	f.save(ctx, fresh)
	metrics.ReferenceFetches.WithLabelValues("fetched").Inc()

	return fresh
}

// cached reads the mirrored snapshot. Read or decode errors degrade to empty
// values so a broken cache never blocks extraction.
func (f *Fetcher) cached(ctx context.Context) Snapshot {
	snap := Snapshot{
		Categories:     []string{},
		PaymentMethods: []string{},
	}

	if raw, ok := f.get(ctx, cache.KeyUpdatedAt); ok {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			f.log.Warn().Err(err).Str("value", raw).Msg("Ignoring malformed reference timestamp")
		} else {
			snap.FetchedAt = ts
		}
	}

	snap.Categories = f.getList(ctx, cache.KeyCategories)
	snap.PaymentMethods = f.getList(ctx, cache.KeyPaymentMethods)

	return snap
}

func (f *Fetcher) get(ctx context.Context, key string) (string, bool) {
	raw, ok, err := f.store.Get(ctx, key)
	if err != nil {
		metrics.Errors.WithLabelValues("cache").Inc()
		f.log.Error().Err(err).Str("key", key).Msg("Failed to read reference cache")
		return "", false
	}
	return raw, ok
}

func (f *Fetcher) getList(ctx context.Context, key string) []string {
	raw, ok := f.get(ctx, key)
	if !ok {
		return []string{}
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("Ignoring malformed reference list")
		return []string{}
	}
	return nonNil(list)
}

// save writes the lists before the timestamp so a partial write never makes
// stale lists look fresh.
func (f *Fetcher) save(ctx context.Context, snap Snapshot) {
	categories, _ := json.Marshal(snap.Categories)
	methods, _ := json.Marshal(snap.PaymentMethods)

	writes := []struct {
		key   string
		value string
	}{
		{cache.KeyCategories, string(categories)},
		{cache.KeyPaymentMethods, string(methods)},
		{cache.KeyUpdatedAt, snap.FetchedAt.UTC().Format(time.RFC3339Nano)},
	}

	for _, w := range writes {
		if err := f.store.Put(ctx, w.key, w.value, 0); err != nil {
			metrics.Errors.WithLabelValues("cache").Inc()
			f.log.Error().Err(err).Str("key", w.key).Msg("Failed to update reference cache")
			return
		}
	}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
