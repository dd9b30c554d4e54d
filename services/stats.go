package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"marvelalbum/concurrent"
	"marvelalbum/models"
	"marvelalbum/utils"
)

const topCardsLimit = 5

// CommunityStats runs the aggregate queries concurrently.
func CommunityStats(ctx context.Context, db *gorm.DB) (*models.CommunityStats, error) {
	stats := &models.CommunityStats{TopCards: []models.CardCount{}}

	count := func(model interface{}, dest *int64, query string, args ...interface{}) func(context.Context) error {
		return func(ctx context.Context) error {
			q := db.WithContext(ctx).Model(model)
			if query != "" {
				q = q.Where(query, args...)
			}
			return q.Count(dest).Error
		}
	}

	err := concurrent.RunAll(ctx,
		count(&models.User{}, &stats.TotalUsers, ""),
		count(&models.Trade{}, &stats.OpenTrades, "status = ?", models.TradeOpen),
		count(&models.Offer{}, &stats.PendingOffers, "status = ?", models.OfferPending),
		count(&models.Purchase{}, &stats.PacketsSold, "kind = ?", models.PurchasePacket),
		func(ctx context.Context) error {
			var total struct{ Sum int64 }
			err := db.WithContext(ctx).Model(&models.AlbumEntry{}).
				Select("COALESCE(SUM(quantity), 0) AS sum").
				Scan(&total).Error
			stats.CardsInCirculation = total.Sum
			return err
		},
		func(ctx context.Context) error {
			return db.WithContext(ctx).Model(&models.AlbumEntry{}).
				Select("card_id, SUM(quantity) AS total_quantity").
				Where("quantity > 0").
				Group("card_id").
				Order("total_quantity DESC, card_id ASC").
				Limit(topCardsLimit).
				Scan(&stats.TopCards).Error
		},
	)
	if err != nil {
		return nil, utils.Internal("Failed to compute statistics", err)
	}

	stats.GeneratedAt = time.Now().UTC()
	return stats, nil
}
