package entity

type Conversation struct {
	ID             string `json:"id,omitempty"`
	ItemID         string `json:"itemId"`
	BuyerUID       string `json:"buyerUid"`
	BuyerNickname  string `json:"buyerNickname"`
	SellerUID      string `json:"sellerUid"`
	SellerNickname string `json:"sellerNickname"`
	CreatedAt      int64  `json:"createdAt"`
	LastMessage    string `json:"lastMessage"`
	LastMessageAt  int64  `json:"lastMessageAt"`
}

// UserConversation is the per-participant projection stored under
// /userConversations/{uid}/{conversationId}. LastSeenAt only ever moves
// forward for the entry's own user.
type UserConversation struct {
	ItemID        string `json:"itemId"`
	ItemTitle     string `json:"itemTitle"`
	ItemImageURL  string `json:"itemImageUrl"`
	OtherUID      string `json:"otherUid"`
	OtherNickname string `json:"otherNickname"`
	LastMessage   string `json:"lastMessage"`
	LastMessageAt int64  `json:"lastMessageAt"`
	LastSeenAt    int64  `json:"lastSeenAt"`
}

type Message struct {
	ID        string `json:"id"`
	SenderUID string `json:"senderUid"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// ConversationRow is a display row for the "my conversations" list.
type ConversationRow struct {
	ConversationID string `json:"conversationId"`
	ItemID         string `json:"itemId"`
	ItemTitle      string `json:"itemTitle"`
	ItemImageURL   string `json:"itemImageUrl"`
	OtherUID       string `json:"otherUid"`
	OtherNickname  string `json:"otherNickname"`
	LastMessage    string `json:"lastMessage"`
	LastMessageAt  int64  `json:"lastMessageAt"`
	Unread         bool   `json:"unread"`
}
