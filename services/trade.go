package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"marvelalbum/models"
	"marvelalbum/monitoring"
	"marvelalbum/utils"
)

const (
	DefaultTradeLimit = 20
	MaxTradeLimit     = 100
)

func preloadTrade(db *gorm.DB) *gorm.DB {
	return db.Preload("ProposedCards").Preload("Offers").Preload("Offers.OfferedCards")
}

func loadTrade(db *gorm.DB, tradeID string) (*models.Trade, error) {
	var trade models.Trade
	err := preloadTrade(db).Where("id = ?", tradeID).First(&trade).Error
	if isNotFound(err) {
		return nil, utils.NotFound("Trade not found")
	}
	if err != nil {
		return nil, utils.Internal("Failed to load trade", err)
	}
	return &trade, nil
}

// claimTrade flips an open trade to status, or bumps updated_at when status is
// open. Only one concurrent caller wins.
func claimTrade(tx *gorm.DB, tradeID string, status models.TradeStatus) error {
	res := tx.Model(&models.Trade{}).
		Where("id = ? AND status = ?", tradeID, models.TradeOpen).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return utils.Internal("Failed to update trade", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.Conflict("Trade is no longer open")
	}
	return nil
}

// restorePendingOffers unlocks the cards of every pending offer except skipID.
func restorePendingOffers(tx *gorm.DB, offers []models.Offer, skipID string) error {
	for _, o := range offers {
		if o.ID == skipID || o.Status != models.OfferPending {
			continue
		}
		if err := unlockCards(tx, o.UserID, offeredLines(o.OfferedCards)); err != nil {
			return err
		}
	}
	return nil
}

func deleteOfferRows(tx *gorm.DB, offerIDs []string) error {
	if len(offerIDs) == 0 {
		return nil
	}
	if err := tx.Where("offer_id IN ?", offerIDs).Delete(&models.OfferedCard{}).Error; err != nil {
		return utils.Internal("Failed to delete offers", err)
	}
	if err := tx.Where("id IN ?", offerIDs).Delete(&models.Offer{}).Error; err != nil {
		return utils.Internal("Failed to delete offers", err)
	}
	return nil
}

func deleteTradeRows(tx *gorm.DB, trade *models.Trade) error {
	offerIDs := make([]string, 0, len(trade.Offers))
	for _, o := range trade.Offers {
		offerIDs = append(offerIDs, o.ID)
	}
	if err := deleteOfferRows(tx, offerIDs); err != nil {
		return err
	}
	if err := tx.Where("trade_id = ?", trade.ID).Delete(&models.ProposedCard{}).Error; err != nil {
		return utils.Internal("Failed to delete trade", err)
	}
	if err := tx.Where("id = ?", trade.ID).Delete(&models.Trade{}).Error; err != nil {
		return utils.Internal("Failed to delete trade", err)
	}
	return nil
}

// ProposeTrade locks the proposed cards in the user's album and opens a
// trade for them.
func ProposeTrade(ctx context.Context, db *gorm.DB, userID uint, cards []models.CardQuantity) (*models.Trade, error) {
	lines, err := mergeValidLines(cards)
	if err != nil {
		return nil, err
	}

	trade := models.Trade{
		ID:         uuid.NewString(),
		ProposerID: userID,
		Status:     models.TradeOpen,
		Offers:     []models.Offer{},
	}
	for _, l := range lines {
		trade.ProposedCards = append(trade.ProposedCards, models.ProposedCard{CardID: l.CardID, Quantity: l.Quantity})
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCards(tx, userID, lines); err != nil {
			return err
		}
		if err := tx.Create(&trade).Error; err != nil {
			return utils.Internal("Failed to create trade", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.TradeEvents.WithLabelValues("proposed").Inc()
	utils.Log.WithFields(logrus.Fields{
		"trade_id": trade.ID,
		"user_id":  userID,
	}).Info("Trade proposed")
	return &trade, nil
}

// ListOpenTrades lists open trades, newest first.
func ListOpenTrades(ctx context.Context, db *gorm.DB, limit, offset int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	if limit > MaxTradeLimit {
		limit = MaxTradeLimit
	}
	if offset < 0 {
		offset = 0
	}

	trades := []models.Trade{}
	err := preloadTrade(db.WithContext(ctx)).
		Where("status = ?", models.TradeOpen).
		Order("created_at DESC, id ASC").
		Limit(limit).Offset(offset).
		Find(&trades).Error
	if err != nil {
		return nil, utils.Internal("Failed to load trades", err)
	}
	return trades, nil
}

func TradeDetails(ctx context.Context, db *gorm.DB, tradeID string) (*models.Trade, error) {
	return loadTrade(db.WithContext(ctx), tradeID)
}

func UserProposals(ctx context.Context, db *gorm.DB, userID uint) ([]models.Trade, error) {
	trades := []models.Trade{}
	err := preloadTrade(db.WithContext(ctx)).
		Where("proposer_id = ?", userID).
		Order("created_at DESC").
		Find(&trades).Error
	if err != nil {
		return nil, utils.Internal("Failed to load trades", err)
	}
	return trades, nil
}

// UserOffers lists the user's offers along with the trade each one targets.
func UserOffers(ctx context.Context, db *gorm.DB, userID uint) ([]models.UserOffer, error) {
	var offers []models.Offer
	err := db.WithContext(ctx).Preload("OfferedCards").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&offers).Error
	if err != nil {
		return nil, utils.Internal("Failed to load offers", err)
	}

	tradeIDs := make([]string, 0, len(offers))
	for _, o := range offers {
		tradeIDs = append(tradeIDs, o.TradeID)
	}
	var trades []models.Trade
	if len(tradeIDs) > 0 {
		if err := db.WithContext(ctx).Preload("ProposedCards").Where("id IN ?", tradeIDs).Find(&trades).Error; err != nil {
			return nil, utils.Internal("Failed to load trades", err)
		}
	}
	byID := make(map[string]models.Trade, len(trades))
	for _, t := range trades {
		byID[t.ID] = t
	}

	result := make([]models.UserOffer, 0, len(offers))
	for _, o := range offers {
		t := byID[o.TradeID]
		result = append(result, models.UserOffer{
			Offer:         o,
			ProposerID:    t.ProposerID,
			ProposedCards: t.ProposedCards,
		})
	}
	return result, nil
}

// MakeOffer locks the offered cards in the user's album and attaches a
// pending offer to an open trade.
func MakeOffer(ctx context.Context, db *gorm.DB, userID uint, tradeID string, cards []models.CardQuantity) (*models.Offer, error) {
	lines, err := mergeValidLines(cards)
	if err != nil {
		return nil, err
	}

	offer := models.Offer{
		ID:      uuid.NewString(),
		TradeID: tradeID,
		UserID:  userID,
		Status:  models.OfferPending,
	}
	for _, l := range lines {
		offer.OfferedCards = append(offer.OfferedCards, models.OfferedCard{CardID: l.CardID, Quantity: l.Quantity})
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trade models.Trade
		err := tx.Where("id = ?", tradeID).First(&trade).Error
		if isNotFound(err) {
			return utils.NotFound("Trade not found")
		}
		if err != nil {
			return utils.Internal("Failed to load trade", err)
		}
		if trade.ProposerID == userID {
			return utils.Forbidden("You cannot make an offer on your own trade")
		}
		if trade.Status != models.TradeOpen {
			return utils.Conflict("Trade is no longer open")
		}

		var pending int64
		err = tx.Model(&models.Offer{}).
			Where("trade_id = ? AND user_id = ? AND status = ?", tradeID, userID, models.OfferPending).
			Count(&pending).Error
		if err != nil {
			return utils.Internal("Failed to load offers", err)
		}
		if pending > 0 {
			return utils.Conflict("You already have a pending offer on this trade")
		}

		if err := claimTrade(tx, tradeID, models.TradeOpen); err != nil {
			return err
		}
		if err := lockCards(tx, userID, lines); err != nil {
			return err
		}
		if err := tx.Create(&offer).Error; err != nil {
			return utils.Internal("Failed to create offer", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.TradeEvents.WithLabelValues("offered").Inc()
	utils.Log.WithFields(logrus.Fields{
		"trade_id": tradeID,
		"offer_id": offer.ID,
		"user_id":  userID,
	}).Info("Offer made")
	return &offer, nil
}

// DeleteTrade cancels the user's trade. The proposer's cards and those of
// every pending offer are unlocked.
func DeleteTrade(ctx context.Context, db *gorm.DB, userID uint, tradeID string) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trade, err := loadTrade(tx, tradeID)
		if err != nil {
			return err
		}
		if trade.ProposerID != userID {
			return utils.Forbidden("Only the proposer can delete this trade")
		}
		if err := claimTrade(tx, tradeID, models.TradeClosed); err != nil {
			return err
		}

		if err := unlockCards(tx, trade.ProposerID, proposedLines(trade.ProposedCards)); err != nil {
			return err
		}
		if err := restorePendingOffers(tx, trade.Offers, ""); err != nil {
			return err
		}
		return deleteTradeRows(tx, trade)
	})
	if err != nil {
		return err
	}

	monitoring.TradeEvents.WithLabelValues("deleted").Inc()
	utils.Log.WithFields(logrus.Fields{
		"trade_id": tradeID,
		"user_id":  userID,
	}).Info("Trade deleted")
	return nil
}

// WithdrawOffer removes the user's pending offer and unlocks its cards.
func WithdrawOffer(ctx context.Context, db *gorm.DB, userID uint, offerID string) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var offer models.Offer
		err := tx.Preload("OfferedCards").Where("id = ?", offerID).First(&offer).Error
		if isNotFound(err) {
			return utils.NotFound("Offer not found")
		}
		if err != nil {
			return utils.Internal("Failed to load offer", err)
		}
		if offer.UserID != userID {
			return utils.Forbidden("Only the offerer can withdraw this offer")
		}
		if offer.Status != models.OfferPending {
			return utils.Conflict("Offer is no longer pending")
		}

		res := tx.Where("id = ? AND status = ?", offerID, models.OfferPending).Delete(&models.Offer{})
		if res.Error != nil {
			return utils.Internal("Failed to delete offer", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("Offer is no longer pending")
		}
		if err := tx.Where("offer_id = ?", offerID).Delete(&models.OfferedCard{}).Error; err != nil {
			return utils.Internal("Failed to delete offer", err)
		}
		return unlockCards(tx, userID, offeredLines(offer.OfferedCards))
	})
	if err != nil {
		return err
	}

	monitoring.TradeEvents.WithLabelValues("withdrawn").Inc()
	return nil
}

// AcceptOffer exchanges the trade's proposed cards for the offer's cards and
// deletes the trade with all of its offers. Other pending offers are
// unlocked. The whole exchange is one transaction.
func AcceptOffer(ctx context.Context, db *gorm.DB, userID uint, tradeID, offerID string) (*models.Trade, error) {
	var accepted *models.Trade
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trade, err := loadTrade(tx, tradeID)
		if err != nil {
			return err
		}
		if trade.ProposerID != userID {
			return utils.Forbidden("Only the proposer can accept offers")
		}

		var offer *models.Offer
		for i := range trade.Offers {
			if trade.Offers[i].ID == offerID {
				offer = &trade.Offers[i]
				break
			}
		}
		if offer == nil {
			return utils.NotFound("Offer not found")
		}
		if offer.Status != models.OfferPending {
			return utils.Conflict("Offer is no longer pending")
		}

		if err := claimTrade(tx, tradeID, models.TradeClosed); err != nil {
			return err
		}

		for _, l := range proposedLines(trade.ProposedCards) {
			if err := removeLockedCards(tx, trade.ProposerID, l.CardID, l.Quantity); err != nil {
				return err
			}
			if err := addCards(tx, offer.UserID, l.CardID, l.Quantity); err != nil {
				return err
			}
		}
		for _, l := range offeredLines(offer.OfferedCards) {
			if err := removeLockedCards(tx, offer.UserID, l.CardID, l.Quantity); err != nil {
				return err
			}
			if err := addCards(tx, trade.ProposerID, l.CardID, l.Quantity); err != nil {
				return err
			}
		}

		if err := restorePendingOffers(tx, trade.Offers, offerID); err != nil {
			return err
		}
		if err := deleteTradeRows(tx, trade); err != nil {
			return err
		}

		trade.Status = models.TradeClosed
		for i := range trade.Offers {
			if trade.Offers[i].ID == offerID {
				trade.Offers[i].Status = models.OfferAccepted
			} else {
				trade.Offers[i].Status = models.OfferRejected
			}
		}
		accepted = trade
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.TradeEvents.WithLabelValues("accepted").Inc()
	utils.Log.WithFields(logrus.Fields{
		"trade_id": tradeID,
		"offer_id": offerID,
		"user_id":  userID,
	}).Info("Offer accepted")
	return accepted, nil
}
