package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapit/internal/domain/entity"
	"swapit/internal/domain/repository"
	"swapit/internal/infrastructure/memstore"
)

func seedProfile(t *testing.T, store *memstore.Store, uid, nickname string) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), repository.UserProfilePath(uid), entity.UserProfile{
		Nickname:  nickname,
		Email:     uid + "@example.com",
		CreatedAt: 1,
	}))
}

func TestConversationIDCommutativeAndSanitized(t *testing.T) {
	assert.Equal(t, ConversationID("bike1", "U1", "U2"), ConversationID("bike1", "U2", "U1"))
	assert.Equal(t, "bike1_U1_U2", ConversationID("bike1", "U2", "U1"))
	assert.NotEqual(t, ConversationID("bike1", "U1", "U2"), ConversationID("bike2", "U1", "U2"))
	assert.Equal(t, "a_b_c_d_U1_U2", ConversationID("a.b/c#d", "U1", "U2"))
}

func TestCreateOrGetConversation(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedProfile(t, store, "U2", "Bea")

	sync := NewConversationSync(store, "U2")
	cid, err := sync.CreateOrGetConversation(ctx, CreateConversationInput{
		ItemID:        "bike1",
		ItemTitle:     "Bike",
		ItemImageURL:  "mem://objects/bike.jpg",
		OwnerUID:      "U1",
		OwnerNickname: "Al",
	})
	require.NoError(t, err)
	assert.Equal(t, "bike1_U1_U2", cid)

	var conv entity.Conversation
	found, err := store.Get(ctx, repository.ConversationPath(cid), &conv)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "bike1", conv.ItemID)
	assert.Equal(t, "U2", conv.BuyerUID)
	assert.Equal(t, "Bea", conv.BuyerNickname)
	assert.Equal(t, "U1", conv.SellerUID)
	assert.Equal(t, "Al", conv.SellerNickname)
	assert.Zero(t, conv.LastMessageAt)

	var mine, theirs entity.UserConversation
	found, err = store.Get(ctx, repository.UserConversationPath("U2", cid), &mine)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "U1", mine.OtherUID)
	assert.Equal(t, "Al", mine.OtherNickname)
	assert.Equal(t, "Bike", mine.ItemTitle)

	found, err = store.Get(ctx, repository.UserConversationPath("U1", cid), &theirs)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "U2", theirs.OtherUID)
	assert.Equal(t, "Bea", theirs.OtherNickname)
}

func TestCreateOrGetConversationIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedProfile(t, store, "U2", "Bea")

	sync := NewConversationSync(store, "U2")
	input := CreateConversationInput{
		ItemID: "bike1", ItemTitle: "Bike", OwnerUID: "U1", OwnerNickname: "Al",
	}

	cid1, err := sync.CreateOrGetConversation(ctx, input)
	require.NoError(t, err)

	var before entity.Conversation
	_, err = store.Get(ctx, repository.ConversationPath(cid1), &before)
	require.NoError(t, err)

	cid2, err := sync.CreateOrGetConversation(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, cid1, cid2)

	var after entity.Conversation
	_, err = store.Get(ctx, repository.ConversationPath(cid2), &after)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	var index map[string]entity.UserConversation
	_, err = store.Get(ctx, repository.UserConversationsPath("U2"), &index)
	require.NoError(t, err)
	assert.Len(t, index, 1)
}

func TestCreateConversationRejectsSelfMatch(t *testing.T) {
	store := memstore.New()
	sync := NewConversationSync(store, "U1")

	_, err := sync.CreateOrGetConversation(context.Background(), CreateConversationInput{
		ItemID:   "bike1",
		OwnerUID: "U1",
	})
	require.Error(t, err)

	var conv entity.Conversation
	found, getErr := store.Get(context.Background(), repository.ConversationPath("bike1_U1_U1"), &conv)
	require.NoError(t, getErr)
	assert.False(t, found)
}

func setupConversation(t *testing.T, store *memstore.Store) string {
	t.Helper()
	seedProfile(t, store, "U2", "Bea")
	sync := NewConversationSync(store, "U2")
	cid, err := sync.CreateOrGetConversation(context.Background(), CreateConversationInput{
		ItemID: "bike1", ItemTitle: "Bike", OwnerUID: "U1", OwnerNickname: "Al",
	})
	require.NoError(t, err)
	return cid
}

func TestSendMessageFanout(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cid := setupConversation(t, store)

	sync := NewConversationSync(store, "U2")
	msg, err := sync.SendMessage(ctx, cid, "  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Text)
	assert.Equal(t, "U2", msg.SenderUID)
	require.NotEmpty(t, msg.ID)

	var stored entity.Message
	found, err := store.Get(ctx, repository.MessagePath(cid, msg.ID), &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hello there", stored.Text)

	var conv entity.Conversation
	_, err = store.Get(ctx, repository.ConversationPath(cid), &conv)
	require.NoError(t, err)
	assert.Equal(t, "hello there", conv.LastMessage)
	assert.Equal(t, msg.CreatedAt, conv.LastMessageAt)

	var buyer, seller entity.UserConversation
	_, err = store.Get(ctx, repository.UserConversationPath("U2", cid), &buyer)
	require.NoError(t, err)
	_, err = store.Get(ctx, repository.UserConversationPath("U1", cid), &seller)
	require.NoError(t, err)

	// One timestamp shared by every location, and sending counts as
	// having seen.
	assert.Equal(t, msg.CreatedAt, buyer.LastMessageAt)
	assert.Equal(t, msg.CreatedAt, buyer.LastSeenAt)
	assert.Equal(t, msg.CreatedAt, seller.LastMessageAt)
	assert.Zero(t, seller.LastSeenAt)
	assert.Equal(t, "hello there", buyer.LastMessage)
	assert.Equal(t, "hello there", seller.LastMessage)
}

func TestSendMessageRejectsBlankText(t *testing.T) {
	store := memstore.New()
	cid := setupConversation(t, store)

	sync := NewConversationSync(store, "U2")
	_, err := sync.SendMessage(context.Background(), cid, "   ")
	assert.Error(t, err)
}

// failingBatchStore rejects batched writes to force the fault between
// the read and the fan-out.
type failingBatchStore struct {
	*memstore.Store
}

func (s failingBatchStore) BatchWrite(ctx context.Context, updates map[string]interface{}) error {
	return assert.AnError
}

func TestSendMessageAllOrNothingOnFault(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cid := setupConversation(t, store)

	sync := NewConversationSync(failingBatchStore{store}, "U2")
	_, err := sync.SendMessage(ctx, cid, "hello")
	require.Error(t, err)

	var conv entity.Conversation
	_, getErr := store.Get(ctx, repository.ConversationPath(cid), &conv)
	require.NoError(t, getErr)
	assert.Empty(t, conv.LastMessage)
	assert.Zero(t, conv.LastMessageAt)

	var messages map[string]entity.Message
	found, getErr := store.Get(ctx, repository.MessagesPath(cid), &messages)
	require.NoError(t, getErr)
	assert.False(t, found)

	var buyer entity.UserConversation
	_, getErr = store.Get(ctx, repository.UserConversationPath("U2", cid), &buyer)
	require.NoError(t, getErr)
	assert.Zero(t, buyer.LastMessageAt)
	assert.Zero(t, buyer.LastSeenAt)
}

func TestSendMessageMissingParticipantFailsClosed(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Set(ctx, repository.ConversationPath("broken"), map[string]interface{}{
		"itemId":   "bike1",
		"buyerUid": "U2",
	}))

	sync := NewConversationSync(store, "U2")
	_, err := sync.SendMessage(ctx, "broken", "hello")
	require.Error(t, err)

	var messages map[string]entity.Message
	found, getErr := store.Get(ctx, repository.MessagesPath("broken"), &messages)
	require.NoError(t, getErr)
	assert.False(t, found)
}

func TestUnreadCountAndMarkSeen(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cid := setupConversation(t, store)
	seedProfile(t, store, "U1", "Al")

	buyer := NewConversationSync(store, "U2")
	seller := NewConversationSync(store, "U1")

	var unread int
	cancel, err := buyer.ListenUnreadCount(func(n int) { unread = n }, nil)
	require.NoError(t, err)
	defer cancel()

	assert.Zero(t, unread)

	_, err = seller.SendMessage(ctx, cid, "still available?")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	require.NoError(t, buyer.MarkSeen(ctx, cid))
	assert.Zero(t, unread)

	// The sender's own message never counts as unread for the sender.
	var sellerUnread int
	cancelSeller, err := seller.ListenUnreadCount(func(n int) { sellerUnread = n }, nil)
	require.NoError(t, err)
	defer cancelSeller()
	assert.Zero(t, sellerUnread)
}

func TestListenMessagesOrdered(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cid := setupConversation(t, store)
	seedProfile(t, store, "U1", "Al")

	buyer := NewConversationSync(store, "U2")
	seller := NewConversationSync(store, "U1")

	_, err := buyer.SendMessage(ctx, cid, "first")
	require.NoError(t, err)
	_, err = seller.SendMessage(ctx, cid, "second")
	require.NoError(t, err)

	var got []entity.Message
	cancel, err := buyer.ListenMessages(cid, func(messages []entity.Message) { got = messages }, nil)
	require.NoError(t, err)
	defer cancel()

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
	assert.LessOrEqual(t, got[0].CreatedAt, got[1].CreatedAt)
}

func TestListenMyConversationsSorted(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedProfile(t, store, "U2", "Bea")

	sync := NewConversationSync(store, "U2")
	cid1, err := sync.CreateOrGetConversation(ctx, CreateConversationInput{
		ItemID: "bike1", ItemTitle: "Bike", OwnerUID: "U1", OwnerNickname: "Al",
	})
	require.NoError(t, err)
	cid2, err := sync.CreateOrGetConversation(ctx, CreateConversationInput{
		ItemID: "sofa1", ItemTitle: "Sofa", OwnerUID: "U3", OwnerNickname: "Cy",
	})
	require.NoError(t, err)

	_, err = sync.SendMessage(ctx, cid1, "about the bike")
	require.NoError(t, err)

	var rows []entity.ConversationRow
	cancel, err := sync.ListenMyConversations(func(r []entity.ConversationRow) { rows = r }, nil)
	require.NoError(t, err)
	defer cancel()

	require.Len(t, rows, 2)
	assert.Equal(t, cid1, rows[0].ConversationID)
	assert.Equal(t, cid2, rows[1].ConversationID)
	assert.False(t, rows[0].Unread) // sender has seen their own message

	list, err := sync.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, rows, list)
}

func TestListenItemAvailability(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cid := setupConversation(t, store)

	item := testItem("U1", 100)
	require.NoError(t, store.Set(ctx, repository.ItemPath("bike1"), item))

	sync := NewConversationSync(store, "U2")
	var available bool
	cancel, err := sync.ListenItemAvailability(cid, func(ok bool) { available = ok }, nil)
	require.NoError(t, err)
	defer cancel()

	assert.True(t, available)

	// The item disappearing reads as unavailable.
	require.NoError(t, store.Delete(ctx, repository.ItemPath("bike1")))
	require.NoError(t, store.Set(ctx, repository.ConversationPath(cid)+"/itemId", "bike1"))
	assert.False(t, available)
}

func TestDeleteConversation(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cid := setupConversation(t, store)

	sync := NewConversationSync(store, "U2")
	_, err := sync.SendMessage(ctx, cid, "hello")
	require.NoError(t, err)

	require.NoError(t, sync.DeleteConversation(ctx, cid))

	for _, path := range []string{
		repository.ConversationPath(cid),
		repository.MessagesPath(cid),
		repository.UserConversationPath("U1", cid),
		repository.UserConversationPath("U2", cid),
	} {
		var raw interface{}
		found, err := store.Get(ctx, path, &raw)
		require.NoError(t, err)
		assert.False(t, found, path)
	}
}

func TestDeleteConversationMissingParticipant(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Set(ctx, repository.ConversationPath("broken"), map[string]interface{}{
		"itemId":    "bike1",
		"sellerUid": "U1",
	}))

	sync := NewConversationSync(store, "U2")
	err := sync.DeleteConversation(ctx, "broken")
	require.Error(t, err)

	// The record is left untouched; nothing was cleaned half-way.
	var conv entity.Conversation
	found, getErr := store.Get(ctx, repository.ConversationPath("broken"), &conv)
	require.NoError(t, getErr)
	assert.True(t, found)
}

func TestMatchScenarioBike(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedProfile(t, store, "U1", "Al")
	seedProfile(t, store, "U2", "Bea")
	require.NoError(t, store.Set(ctx, repository.ItemPath("bike1"), testItem("U1", 100)))

	catalog := NewCatalogSync(store)
	require.NoError(t, catalog.Start(ctx, "U2"))
	defer catalog.Stop()
	require.NoError(t, catalog.Swipe(ctx, "bike1", entity.SwipeLike))

	conversations := NewConversationSync(store, "U2")
	cid, err := conversations.CreateOrGetConversation(ctx, CreateConversationInput{
		ItemID: "bike1", ItemTitle: "Bike", OwnerUID: "U1", OwnerNickname: "Al",
	})
	require.NoError(t, err)
	assert.Equal(t, "bike1_U1_U2", cid)

	var conv entity.Conversation
	found, err := store.Get(ctx, repository.ConversationPath(cid), &conv)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "U2", conv.BuyerUID)
	assert.Equal(t, "U1", conv.SellerUID)

	for _, uid := range []string{"U1", "U2"} {
		var entry entity.UserConversation
		found, err := store.Get(ctx, repository.UserConversationPath(uid, cid), &entry)
		require.NoError(t, err)
		assert.True(t, found, uid)
	}
}
