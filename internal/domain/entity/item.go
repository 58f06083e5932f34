package entity

const (
	ItemStatusActive  = "active"
	ItemStatusRemoved = "removed"
)

type ItemLocation struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
}

type Geo struct {
	Geohash string `json:"geohash"`
}

type Item struct {
	ID            string        `json:"id,omitempty"`
	Title         string        `json:"title"`
	Desc          string        `json:"desc"`
	Category      string        `json:"category"`
	CreatedAt     int64         `json:"createdAt"`
	UpdatedAt     int64         `json:"updatedAt"`
	OwnerUID      string        `json:"ownerUid"`
	OwnerNickname string        `json:"ownerNickname"`
	Status        string        `json:"status"`
	ImagesCount   int           `json:"imagesCount"`
	ImageURLs     []string      `json:"imageUrls"`
	Location      *ItemLocation `json:"location,omitempty"`
	Geo           *Geo          `json:"geo,omitempty"`
}

// ItemSummary is the denormalized row kept under /users/{uid}/userItems,
// enough to render the owner's "my items" list without loading the item.
type ItemSummary struct {
	ItemID        string `json:"itemId"`
	Title         string `json:"title"`
	Category      string `json:"category"`
	CreatedAt     int64  `json:"createdAt"`
	OwnerNickname string `json:"ownerNickname"`
	LocationLabel string `json:"locationLabel"`
	FirstImageURL string `json:"firstImageUrl"`
}

const (
	SwipeLike    = "like"
	SwipeDislike = "dislike"
)
