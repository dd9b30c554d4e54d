package models

import "time"

type CardCount struct {
	CardID        int   `json:"card_id"`
	TotalQuantity int64 `json:"quantity"`
}

// CommunityStats summarises activity across all users.
type CommunityStats struct {
	TotalUsers         int64       `json:"total_users"`
	OpenTrades         int64       `json:"open_trades"`
	PendingOffers      int64       `json:"pending_offers"`
	CardsInCirculation int64       `json:"cards_in_circulation"`
	PacketsSold        int64       `json:"packets_sold"`
	TopCards           []CardCount `json:"top_cards"`
	GeneratedAt        time.Time   `json:"generated_at"`
}
