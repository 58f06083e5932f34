package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"swapit/internal/domain/entity"
	"swapit/internal/domain/repository"
	"swapit/pkg/errors"
	"swapit/pkg/geo"
	"swapit/pkg/logger"
)

// FeedFilters narrows the derived feed. A zero value filters nothing.
// The radius filter is active when Center is set and RadiusKm > 0.
type FeedFilters struct {
	Category string
	Center   *entity.ItemLocation
	RadiusKm float64
}

// CatalogSync keeps two live subscriptions per user, the item catalogue
// and the user's swipe set, and composes them into a filtered feed. All
// cached state is mutated under one mutex; the feed callback is always
// invoked outside it with an immutable snapshot.
type CatalogSync struct {
	store repository.RemoteStore

	mu           sync.Mutex
	uid          string
	started      bool
	gen          int
	items        map[string]entity.Item
	swiped       map[string]struct{}
	itemsWatched bool
	filters      FeedFilters
	feed         []entity.Item
	onFeed       func([]entity.Item)
	cancelSwipes repository.CancelFunc
	cancelItems  repository.CancelFunc
}

func NewCatalogSync(store repository.RemoteStore) *CatalogSync {
	return &CatalogSync{
		store:  store,
		items:  make(map[string]entity.Item),
		swiped: make(map[string]struct{}),
	}
}

// OnFeed registers the derived-feed callback. It fires with a fresh
// slice after every recompute, including the empty slice on teardown.
func (s *CatalogSync) OnFeed(fn func([]entity.Item)) {
	s.mu.Lock()
	s.onFeed = fn
	s.mu.Unlock()
}

// Start subscribes to the user's swipe set; the catalogue subscription
// is opened once the first swipe snapshot has arrived, so the feed never
// shows items the user already swiped. Calling Start again with the same
// uid is a no-op; a different uid tears down and restarts.
func (s *CatalogSync) Start(ctx context.Context, uid string) error {
	if uid == "" {
		return errors.BadRequest("User id is required", nil)
	}

	s.mu.Lock()
	if s.started && s.uid == uid {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.Stop()

	s.mu.Lock()
	s.started = true
	s.uid = uid
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	cancel, err := s.store.Subscribe(
		repository.UserSwipesPath(uid),
		func(raw json.RawMessage) { s.handleSwipes(gen, raw) },
		func(err error) { s.cancelled(gen, err) },
	)
	if err != nil {
		s.Stop()
		return errors.Internal("Failed to subscribe to swipe set", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		// Torn down while subscribing.
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.cancelSwipes = cancel
	s.mu.Unlock()
	return nil
}

func (s *CatalogSync) handleSwipes(gen int, raw json.RawMessage) {
	var swipes map[string]string
	if err := json.Unmarshal(raw, &swipes); err != nil && string(raw) != "null" {
		logger.Warn("Ignoring malformed swipe snapshot: %v", err)
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.swiped = make(map[string]struct{}, len(swipes))
	for itemID := range swipes {
		s.swiped[itemID] = struct{}{}
	}
	watchItems := !s.itemsWatched
	s.itemsWatched = true
	var publish func()
	if !watchItems {
		publish = s.recomputeLocked()
	}
	s.mu.Unlock()

	if publish != nil {
		publish()
	}
	if !watchItems {
		return
	}

	cancel, err := s.store.Subscribe(
		repository.ItemsPath(),
		func(raw json.RawMessage) { s.handleItems(gen, raw) },
		func(err error) { s.cancelled(gen, err) },
	)
	if err != nil {
		logger.Error("Failed to subscribe to item catalogue: %v", err)
		s.cancelled(gen, err)
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancelItems = cancel
	s.mu.Unlock()
}

func (s *CatalogSync) handleItems(gen int, raw json.RawMessage) {
	var items map[string]entity.Item
	if err := json.Unmarshal(raw, &items); err != nil && string(raw) != "null" {
		logger.Warn("Ignoring malformed catalogue snapshot: %v", err)
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.items = make(map[string]entity.Item, len(items))
	for id, item := range items {
		item.ID = id
		s.items[id] = item
	}
	publish := s.recomputeLocked()
	s.mu.Unlock()
	publish()
}

// cancelled handles subscription revocation: the whole sync is torn down
// and the derived feed cleared. Restarting is the caller's job.
func (s *CatalogSync) cancelled(gen int, err error) {
	s.mu.Lock()
	stale := s.gen != gen
	s.mu.Unlock()
	if stale {
		return
	}
	logger.Warn("Catalog subscription cancelled, stopping sync: %v", err)
	s.Stop()
}

// Swipe records the user's decision remotely and removes the item from
// the local feed immediately, without waiting for the remote echo.
func (s *CatalogSync) Swipe(ctx context.Context, itemID, action string) error {
	if action != entity.SwipeLike && action != entity.SwipeDislike {
		return errors.BadRequest("Swipe action must be like or dislike", nil)
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.BadRequest("Catalog sync is not started", nil)
	}
	uid := s.uid
	s.swiped[itemID] = struct{}{}
	publish := s.recomputeLocked()
	s.mu.Unlock()
	publish()

	if err := s.store.Set(ctx, repository.UserSwipePath(uid, itemID), action); err != nil {
		return errors.Internal("Failed to write swipe record", err)
	}
	return nil
}

func (s *CatalogSync) SetFilters(f FeedFilters) {
	s.mu.Lock()
	s.filters = f
	publish := s.recomputeLocked()
	s.mu.Unlock()
	publish()
}

func (s *CatalogSync) ClearFilters() {
	s.SetFilters(FeedFilters{})
}

// Feed returns a copy of the current derived feed.
func (s *CatalogSync) Feed() []entity.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Item, len(s.feed))
	copy(out, s.feed)
	return out
}

// AvailableCategories lists the distinct categories present in the
// cached catalogue, sorted, for the filter UI.
func (s *CatalogSync) AvailableCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, item := range s.items {
		if item.Category == "" {
			continue
		}
		if _, ok := seen[item.Category]; ok {
			continue
		}
		seen[item.Category] = struct{}{}
		out = append(out, item.Category)
	}
	sort.Strings(out)
	return out
}

// Stop cancels both subscriptions and clears all cached state. A later
// Start begins from empty.
func (s *CatalogSync) Stop() {
	s.mu.Lock()
	cancelSwipes, cancelItems := s.cancelSwipes, s.cancelItems
	s.cancelSwipes, s.cancelItems = nil, nil
	s.started = false
	s.uid = ""
	s.gen++
	s.itemsWatched = false
	s.items = make(map[string]entity.Item)
	s.swiped = make(map[string]struct{})
	s.feed = nil
	onFeed := s.onFeed
	s.mu.Unlock()

	if cancelSwipes != nil {
		cancelSwipes()
	}
	if cancelItems != nil {
		cancelItems()
	}
	if onFeed != nil {
		onFeed([]entity.Item{})
	}
}

// recomputeLocked rebuilds the derived feed from the cached snapshots
// and returns the publish closure to run after unlocking. Filtering is a
// full pass; the catalogue is small enough that diffing is not worth it.
func (s *CatalogSync) recomputeLocked() func() {
	feed := buildFeed(s.items, s.swiped, s.uid, s.filters)
	s.feed = feed
	onFeed := s.onFeed
	return func() {
		if onFeed != nil {
			snapshot := make([]entity.Item, len(feed))
			copy(snapshot, feed)
			onFeed(snapshot)
		}
	}
}

// buildFeed is the pure feed computation: unswiped, not own, passing the
// filters, newest first.
func buildFeed(items map[string]entity.Item, swiped map[string]struct{}, uid string, filters FeedFilters) []entity.Item {
	feed := make([]entity.Item, 0, len(items))
	for _, item := range items {
		if _, ok := swiped[item.ID]; ok {
			continue
		}
		if item.OwnerUID == uid {
			continue
		}
		if !passesFilters(item, filters) {
			continue
		}
		feed = append(feed, item)
	}

	sort.Slice(feed, func(i, j int) bool {
		if feed[i].CreatedAt != feed[j].CreatedAt {
			return feed[i].CreatedAt > feed[j].CreatedAt
		}
		return feed[i].ID < feed[j].ID
	})
	return feed
}

func passesFilters(item entity.Item, filters FeedFilters) bool {
	if filters.Category != "" && item.Category != filters.Category {
		return false
	}

	if filters.Center != nil && filters.RadiusKm > 0 {
		if item.Location == nil {
			return false
		}
		d := geo.DistanceKm(filters.Center.Lat, filters.Center.Lng, item.Location.Lat, item.Location.Lng)
		if d > filters.RadiusKm {
			return false
		}
	}

	return true
}
