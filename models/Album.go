package models

// AlbumEntry is one row of a user's album. AvailableQuantity counts the copies
// not locked in a trade proposal or offer; it never exceeds Quantity.
type AlbumEntry struct {
	ID                uint `gorm:"primaryKey" json:"-"`
	UserID            uint `gorm:"uniqueIndex:idx_album_user_card;not null" json:"-"`
	CardID            int  `gorm:"uniqueIndex:idx_album_user_card;not null" json:"card_id"`
	Quantity          int  `gorm:"not null;default:0" json:"quantity"`
	AvailableQuantity int  `gorm:"not null;default:0" json:"available_quantity"`
}

func (AlbumEntry) TableName() string {
	return "album_entries"
}

// Card is a catalog character merged with the caller's ownership.
type Card struct {
	ID                int      `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	Thumbnail         string   `json:"thumbnail"`
	Comics            []string `json:"comics,omitempty"`
	Series            []string `json:"series,omitempty"`
	Stories           []string `json:"stories,omitempty"`
	Events            []string `json:"events,omitempty"`
	Quantity          int      `json:"quantity"`
	AvailableQuantity int      `json:"available_quantity"`
}

type AlbumPage struct {
	PageNumber int    `json:"page_number"`
	TotalPages int    `json:"total_pages"`
	Cards      []Card `json:"cards"`
}

type PossessedPage struct {
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Cards  []Card `json:"cards"`
}

type CardsByIDsInput struct {
	CardIDs []int `json:"cardIds" validate:"required,min=1,max=100,dive,gte=1"`
}
