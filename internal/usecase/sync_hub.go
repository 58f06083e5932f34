package usecase

import (
	"context"
	"sync"

	"swapit/internal/domain/entity"
	"swapit/internal/domain/repository"
	"swapit/pkg/errors"
)

// SyncHub hands out per-user sync sessions with explicit lifecycles
// instead of process-wide singletons. Sessions are reference-counted:
// the catalogue subscriptions stay up while at least one consumer (for
// example a websocket connection) holds the session.
type SyncHub struct {
	store repository.RemoteStore

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSyncHub(store repository.RemoteStore) *SyncHub {
	return &SyncHub{
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Session bundles one user's live sync components.
type Session struct {
	UID           string
	Catalog       *CatalogSync
	Conversations *ConversationSync

	hub  *SyncHub
	refs int
}

// Acquire returns the user's session, starting the catalogue sync on
// first acquisition.
func (h *SyncHub) Acquire(ctx context.Context, uid string) (*Session, error) {
	if uid == "" {
		return nil, errors.BadRequest("User id is required", nil)
	}

	h.mu.Lock()
	session, ok := h.sessions[uid]
	if !ok {
		session = &Session{
			UID:           uid,
			Catalog:       NewCatalogSync(h.store),
			Conversations: NewConversationSync(h.store, uid),
			hub:           h,
		}
		h.sessions[uid] = session
	}
	session.refs++
	h.mu.Unlock()

	if err := session.Catalog.Start(ctx, uid); err != nil {
		session.Release()
		return nil, err
	}
	return session, nil
}

// Release drops one reference. The last release stops the catalogue
// subscriptions and forgets the session.
func (s *Session) Release() {
	h := s.hub
	h.mu.Lock()
	s.refs--
	done := s.refs <= 0
	if done {
		delete(h.sessions, s.UID)
	}
	h.mu.Unlock()

	if done {
		s.Catalog.Stop()
	}
}

// Swipe routes through the user's live session when one exists, so the
// optimistic feed update applies; otherwise it writes the record
// directly.
func (h *SyncHub) Swipe(ctx context.Context, uid, itemID, action string) error {
	if action != entity.SwipeLike && action != entity.SwipeDislike {
		return errors.BadRequest("Swipe action must be like or dislike", nil)
	}

	h.mu.Lock()
	session := h.sessions[uid]
	h.mu.Unlock()

	if session != nil {
		return session.Catalog.Swipe(ctx, itemID, action)
	}
	if err := h.store.Set(ctx, repository.UserSwipePath(uid, itemID), action); err != nil {
		return errors.Internal("Failed to write swipe record", err)
	}
	return nil
}

// Conversations returns a conversation fan-out bound to uid without
// holding a session open; the fan-out itself is stateless.
func (h *SyncHub) Conversations(uid string) *ConversationSync {
	return NewConversationSync(h.store, uid)
}
