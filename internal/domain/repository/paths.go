package repository

import "fmt"

// Canonical tree layout. Every component builds its paths through these
// helpers so the denormalized locations stay in one place.

func ItemsPath() string { return "items" }

func ItemPath(itemID string) string {
	return fmt.Sprintf("items/%s", itemID)
}

func ItemStatusPath(itemID string) string {
	return fmt.Sprintf("items/%s/status", itemID)
}

func UserProfilePath(uid string) string {
	return fmt.Sprintf("users/%s/profile", uid)
}

func UserNicknamePath(uid string) string {
	return fmt.Sprintf("users/%s/profile/nickname", uid)
}

func UserItemsPath(uid string) string {
	return fmt.Sprintf("users/%s/userItems", uid)
}

func UserItemPath(uid, itemID string) string {
	return fmt.Sprintf("users/%s/userItems/%s", uid, itemID)
}

func UserSwipesPath(uid string) string {
	return fmt.Sprintf("users/%s/swipes", uid)
}

func UserSwipePath(uid, itemID string) string {
	return fmt.Sprintf("users/%s/swipes/%s", uid, itemID)
}

func ConversationPath(conversationID string) string {
	return fmt.Sprintf("conversations/%s", conversationID)
}

func MessagesPath(conversationID string) string {
	return fmt.Sprintf("messages/%s", conversationID)
}

func MessagePath(conversationID, messageID string) string {
	return fmt.Sprintf("messages/%s/%s", conversationID, messageID)
}

func UserConversationsPath(uid string) string {
	return fmt.Sprintf("userConversations/%s", uid)
}

func UserConversationPath(uid, conversationID string) string {
	return fmt.Sprintf("userConversations/%s/%s", uid, conversationID)
}
