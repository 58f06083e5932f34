package entity

type UserProfile struct {
	Nickname  string `json:"nickname"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"createdAt"`
}
