package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"swapit/internal/domain/entity"
	"swapit/internal/domain/repository"
	"swapit/pkg/errors"
	"swapit/pkg/logger"
)

const (
	maxNicknameLen  = 30
	maxItemTitleLen = 80
)

var keySanitizer = strings.NewReplacer(
	".", "_",
	"#", "_",
	"$", "_",
	"[", "_",
	"]", "_",
	"/", "_",
)

// ConversationID derives the deterministic conversation key for an item
// and a participant pair. It is commutative in the two participants, so
// re-matching the same pair on the same item lands on the same record.
func ConversationID(itemID, a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return fmt.Sprintf("%s_%s_%s", keySanitizer.Replace(itemID), pair[0], pair[1])
}

// ConversationSync performs the denormalized conversation fan-out for
// one user: the canonical record under /conversations, the message log
// under /messages and the per-participant projections under
// /userConversations move together in single batched writes.
type ConversationSync struct {
	store repository.RemoteStore
	uid   string
}

func NewConversationSync(store repository.RemoteStore, uid string) *ConversationSync {
	return &ConversationSync{store: store, uid: uid}
}

type CreateConversationInput struct {
	ItemID        string
	ItemTitle     string
	ItemImageURL  string
	OwnerUID      string
	OwnerNickname string
}

// CreateOrGetConversation returns the conversation id for the caller and
// the item owner, creating the conversation record and both index
// entries in one batched write when it does not exist yet. A second call
// for the same pair and item finds the record and changes nothing.
func (s *ConversationSync) CreateOrGetConversation(ctx context.Context, input CreateConversationInput) (string, error) {
	if input.ItemID == "" || input.OwnerUID == "" {
		return "", errors.BadRequest("Item id and owner id are required", nil)
	}
	if s.uid == input.OwnerUID {
		return "", errors.BadRequest("You cannot start a conversation about your own item", nil)
	}

	conversationID := ConversationID(input.ItemID, s.uid, input.OwnerUID)

	var existing entity.Conversation
	found, err := s.store.Get(ctx, repository.ConversationPath(conversationID), &existing)
	if err != nil {
		return "", errors.Internal("Failed to look up conversation", err)
	}
	if found {
		return conversationID, nil
	}

	myNickname, err := s.lookupNickname(ctx, s.uid)
	if err != nil {
		return "", err
	}
	ownerNickname := cleanNickname(input.OwnerNickname)
	itemTitle := cleanItemTitle(input.ItemTitle)
	itemImage := strings.TrimSpace(input.ItemImageURL)

	now := time.Now().UnixMilli()

	conversation := entity.Conversation{
		ID:             conversationID,
		ItemID:         input.ItemID,
		BuyerUID:       s.uid,
		BuyerNickname:  myNickname,
		SellerUID:      input.OwnerUID,
		SellerNickname: ownerNickname,
		CreatedAt:      now,
		LastMessage:    "",
		LastMessageAt:  0,
	}

	myEntry := entity.UserConversation{
		ItemID:        input.ItemID,
		ItemTitle:     itemTitle,
		ItemImageURL:  itemImage,
		OtherUID:      input.OwnerUID,
		OtherNickname: ownerNickname,
	}
	ownerEntry := entity.UserConversation{
		ItemID:        input.ItemID,
		ItemTitle:     itemTitle,
		ItemImageURL:  itemImage,
		OtherUID:      s.uid,
		OtherNickname: myNickname,
	}

	// The record and both projections commit together; a reader can
	// never observe one without the others.
	updates := map[string]interface{}{
		repository.ConversationPath(conversationID):                     conversation,
		repository.UserConversationPath(s.uid, conversationID):          myEntry,
		repository.UserConversationPath(input.OwnerUID, conversationID): ownerEntry,
	}
	if err := s.store.BatchWrite(ctx, updates); err != nil {
		return "", errors.Internal("Failed to create conversation", err)
	}

	return conversationID, nil
}

// SendMessage appends the message and refreshes every denormalized copy
// of lastMessage/lastMessageAt, plus the sender's own lastSeenAt, in one
// batched write sharing one timestamp.
func (s *ConversationSync) SendMessage(ctx context.Context, conversationID, text string) (*entity.Message, error) {
	cleanText := strings.TrimSpace(text)
	if cleanText == "" {
		return nil, errors.BadRequest("Message text must not be blank", nil)
	}

	var conversation entity.Conversation
	found, err := s.store.Get(ctx, repository.ConversationPath(conversationID), &conversation)
	if err != nil {
		return nil, errors.Internal("Failed to read conversation", err)
	}
	if !found {
		return nil, errors.NotFound("Conversation", nil)
	}
	if conversation.BuyerUID == "" || conversation.SellerUID == "" {
		return nil, errors.Consistency("Conversation record is missing a participant", nil)
	}

	messageID, err := s.store.NewChildID(ctx, repository.MessagesPath(conversationID))
	if err != nil {
		return nil, errors.Internal("Failed to allocate message id", err)
	}

	now := time.Now().UnixMilli()
	message := entity.Message{
		ID:        messageID,
		SenderUID: s.uid,
		Text:      cleanText,
		CreatedAt: now,
	}

	convPath := repository.ConversationPath(conversationID)
	buyerPath := repository.UserConversationPath(conversation.BuyerUID, conversationID)
	sellerPath := repository.UserConversationPath(conversation.SellerUID, conversationID)

	updates := map[string]interface{}{
		repository.MessagePath(conversationID, messageID): message,
		convPath + "/lastMessage":                         cleanText,
		convPath + "/lastMessageAt":                       now,
		buyerPath + "/lastMessage":                        cleanText,
		buyerPath + "/lastMessageAt":                      now,
		sellerPath + "/lastMessage":                       cleanText,
		sellerPath + "/lastMessageAt":                     now,
		// Sending counts as having seen the conversation.
		repository.UserConversationPath(s.uid, conversationID) + "/lastSeenAt": now,
	}
	if err := s.store.BatchWrite(ctx, updates); err != nil {
		return nil, errors.Internal("Failed to send message", err)
	}

	return &message, nil
}

// MarkSeen advances the caller's lastSeenAt on the conversation entry.
func (s *ConversationSync) MarkSeen(ctx context.Context, conversationID string) error {
	now := time.Now().UnixMilli()
	path := repository.UserConversationPath(s.uid, conversationID) + "/lastSeenAt"
	if err := s.store.Set(ctx, path, now); err != nil {
		return errors.Internal("Failed to mark conversation seen", err)
	}
	return nil
}

// DeleteConversation removes both index entries, the whole message log
// and the canonical record in one batched write. It refuses to run when
// either participant id is missing, because then it cannot determine
// both index paths to clean.
func (s *ConversationSync) DeleteConversation(ctx context.Context, conversationID string) error {
	var conversation entity.Conversation
	found, err := s.store.Get(ctx, repository.ConversationPath(conversationID), &conversation)
	if err != nil {
		return errors.Internal("Failed to read conversation", err)
	}
	if !found {
		return errors.NotFound("Conversation", nil)
	}
	if conversation.BuyerUID == "" || conversation.SellerUID == "" {
		return errors.Consistency("Conversation record is missing a participant", nil)
	}

	updates := map[string]interface{}{
		repository.UserConversationPath(conversation.BuyerUID, conversationID):  nil,
		repository.UserConversationPath(conversation.SellerUID, conversationID): nil,
		repository.MessagesPath(conversationID):                                 nil,
		repository.ConversationPath(conversationID):                             nil,
	}
	if err := s.store.BatchWrite(ctx, updates); err != nil {
		return errors.Internal("Failed to delete conversation", err)
	}
	return nil
}

// ListenMyConversations subscribes to the user's conversation index and
// delivers display rows sorted by lastMessageAt descending.
func (s *ConversationSync) ListenMyConversations(onUpdate func([]entity.ConversationRow), onCancel func(error)) (repository.CancelFunc, error) {
	return s.store.Subscribe(
		repository.UserConversationsPath(s.uid),
		func(raw json.RawMessage) {
			onUpdate(decodeConversationRows(raw))
		},
		onCancel,
	)
}

// ListenUnreadCount subscribes to the user's conversation index and
// reports how many entries have messages newer than the user last saw.
func (s *ConversationSync) ListenUnreadCount(onUpdate func(int), onCancel func(error)) (repository.CancelFunc, error) {
	return s.store.Subscribe(
		repository.UserConversationsPath(s.uid),
		func(raw json.RawMessage) {
			entries := decodeUserConversations(raw)
			unread := 0
			for _, entry := range entries {
				if entry.LastMessageAt > entry.LastSeenAt {
					unread++
				}
			}
			onUpdate(unread)
		},
		onCancel,
	)
}

// ListenMessages subscribes to a conversation's message log, ordered by
// createdAt with the store-assigned id as tie-breaker.
func (s *ConversationSync) ListenMessages(conversationID string, onUpdate func([]entity.Message), onCancel func(error)) (repository.CancelFunc, error) {
	return s.store.Subscribe(
		repository.MessagesPath(conversationID),
		func(raw json.RawMessage) {
			var byID map[string]entity.Message
			if err := json.Unmarshal(raw, &byID); err != nil && string(raw) != "null" {
				logger.Warn("Ignoring malformed message snapshot: %v", err)
				return
			}

			messages := make([]entity.Message, 0, len(byID))
			for id, msg := range byID {
				msg.ID = id
				messages = append(messages, msg)
			}
			sort.Slice(messages, func(i, j int) bool {
				if messages[i].CreatedAt != messages[j].CreatedAt {
					return messages[i].CreatedAt < messages[j].CreatedAt
				}
				return messages[i].ID < messages[j].ID
			})
			onUpdate(messages)
		},
		onCancel,
	)
}

// ListenItemAvailability watches the conversation's itemId reference and
// reports whether the item is still active. An absent item record reads
// as unavailable.
func (s *ConversationSync) ListenItemAvailability(conversationID string, onUpdate func(bool), onCancel func(error)) (repository.CancelFunc, error) {
	return s.store.Subscribe(
		repository.ConversationPath(conversationID)+"/itemId",
		func(raw json.RawMessage) {
			var itemID string
			if err := json.Unmarshal(raw, &itemID); err != nil || itemID == "" {
				onUpdate(false)
				return
			}

			var status string
			found, err := s.store.Get(context.Background(), repository.ItemStatusPath(itemID), &status)
			if err != nil || !found {
				onUpdate(false)
				return
			}
			onUpdate(status == entity.ItemStatusActive)
		},
		onCancel,
	)
}

// Messages is the one-shot variant of ListenMessages.
func (s *ConversationSync) Messages(ctx context.Context, conversationID string) ([]entity.Message, error) {
	var byID map[string]entity.Message
	if _, err := s.store.Get(ctx, repository.MessagesPath(conversationID), &byID); err != nil {
		return nil, errors.Internal("Failed to read messages", err)
	}

	messages := make([]entity.Message, 0, len(byID))
	for id, msg := range byID {
		msg.ID = id
		messages = append(messages, msg)
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt != messages[j].CreatedAt {
			return messages[i].CreatedAt < messages[j].CreatedAt
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}

// ListConversations is the one-shot variant of ListenMyConversations.
func (s *ConversationSync) ListConversations(ctx context.Context) ([]entity.ConversationRow, error) {
	var raw json.RawMessage
	if _, err := s.store.Get(ctx, repository.UserConversationsPath(s.uid), &raw); err != nil {
		return nil, errors.Internal("Failed to read conversation index", err)
	}
	if raw == nil {
		raw = json.RawMessage("null")
	}
	return decodeConversationRows(raw), nil
}

func decodeUserConversations(raw json.RawMessage) map[string]entity.UserConversation {
	var entries map[string]entity.UserConversation
	if err := json.Unmarshal(raw, &entries); err != nil && string(raw) != "null" {
		logger.Warn("Ignoring malformed conversation index snapshot: %v", err)
		return nil
	}
	return entries
}

func decodeConversationRows(raw json.RawMessage) []entity.ConversationRow {
	entries := decodeUserConversations(raw)

	rows := make([]entity.ConversationRow, 0, len(entries))
	for conversationID, entry := range entries {
		rows = append(rows, entity.ConversationRow{
			ConversationID: conversationID,
			ItemID:         entry.ItemID,
			ItemTitle:      entry.ItemTitle,
			ItemImageURL:   entry.ItemImageURL,
			OtherUID:       entry.OtherUID,
			OtherNickname:  entry.OtherNickname,
			LastMessage:    entry.LastMessage,
			LastMessageAt:  entry.LastMessageAt,
			Unread:         entry.LastMessageAt > entry.LastSeenAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LastMessageAt != rows[j].LastMessageAt {
			return rows[i].LastMessageAt > rows[j].LastMessageAt
		}
		return rows[i].ConversationID < rows[j].ConversationID
	})
	return rows
}

func (s *ConversationSync) lookupNickname(ctx context.Context, uid string) (string, error) {
	var nickname string
	if _, err := s.store.Get(ctx, repository.UserNicknamePath(uid), &nickname); err != nil {
		return "", errors.Internal("Failed to look up nickname", err)
	}
	return cleanNickname(nickname), nil
}

func cleanNickname(nickname string) string {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = "User"
	}
	if len(nickname) > maxNicknameLen {
		nickname = nickname[:maxNicknameLen]
	}
	return nickname
}

func cleanItemTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Item"
	}
	if len(title) > maxItemTitleLen {
		title = title[:maxItemTitleLen]
	}
	return title
}
