package models

import "time"

type PurchaseKind string

const (
	PurchaseCredits PurchaseKind = "credits"
	PurchasePacket  PurchaseKind = "packet"
)

// Purchase records a credit top-up or a packet bought by a user.
type Purchase struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	UserID    uint         `gorm:"index;not null" json:"user_id"`
	Kind      PurchaseKind `gorm:"not null" json:"kind"`
	Credits   int          `gorm:"not null" json:"credits"`
	CardIDs   string       `json:"card_ids,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type PacketResult struct {
	CardIDs []int `json:"card_ids"`
	Credits int   `json:"credits"`
}
