package models

import "time"

type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

type Trade struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	ProposerID    uint           `gorm:"index;not null" json:"proposer_id"`
	ProposedCards []ProposedCard `gorm:"foreignKey:TradeID" json:"proposed_cards"`
	Offers        []Offer        `gorm:"foreignKey:TradeID" json:"offers"`
	Status        TradeStatus    `gorm:"not null;default:open" json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type ProposedCard struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	TradeID  string `gorm:"index;size:36;not null" json:"-"`
	CardID   int    `gorm:"not null" json:"card_id"`
	Quantity int    `gorm:"not null" json:"quantity"`
}

type Offer struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	TradeID      string        `gorm:"index;size:36;not null" json:"trade_id"`
	UserID       uint          `gorm:"index;not null" json:"user_id"`
	OfferedCards []OfferedCard `gorm:"foreignKey:OfferID" json:"offered_cards"`
	Status       OfferStatus   `gorm:"not null;default:pending" json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

type OfferedCard struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	OfferID  string `gorm:"index;size:36;not null" json:"-"`
	CardID   int    `gorm:"not null" json:"card_id"`
	Quantity int    `gorm:"not null" json:"quantity"`
}

// CardQuantity is one line of a proposal or offer request.
type CardQuantity struct {
	CardID   int `json:"card_id" validate:"required,gte=1"`
	Quantity int `json:"quantity" validate:"required,gte=1,lte=1000"`
}

type ProposeTradeInput struct {
	ProposedCards []CardQuantity `json:"proposed_cards" validate:"required,min=1,max=50,dive"`
}

type MakeOfferInput struct {
	OfferedCards []CardQuantity `json:"offered_cards" validate:"required,min=1,max=50,dive"`
}

// UserOffer is an offer listed together with the proposal it targets.
type UserOffer struct {
	Offer
	ProposerID    uint           `json:"proposer_id"`
	ProposedCards []ProposedCard `json:"proposed_cards"`
}
