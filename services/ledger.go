// Package services holds the album, purchase, trade and user operations.
// Every operation is a plain function over an explicit *gorm.DB and, where
// needed, a Catalog.
package services

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"marvelalbum/models"
	"marvelalbum/utils"
)

// MaxLineQuantity bounds the copies of one card in a proposal or offer,
// before and after duplicate ids are merged.
const MaxLineQuantity = 1000

// mergeLines sums duplicate card ids and orders lines by card id so that
// concurrent transactions touch album rows in the same order.
func mergeLines(lines []models.CardQuantity) []models.CardQuantity {
	totals := make(map[int]int, len(lines))
	for _, l := range lines {
		totals[l.CardID] += l.Quantity
	}

	merged := make([]models.CardQuantity, 0, len(totals))
	for id, q := range totals {
		merged = append(merged, models.CardQuantity{CardID: id, Quantity: q})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].CardID < merged[j].CardID })
	return merged
}

func validLines(lines []models.CardQuantity) error {
	if len(lines) == 0 {
		return utils.BadRequest("At least one card is required")
	}
	for _, l := range lines {
		if l.CardID <= 0 || l.Quantity <= 0 {
			return utils.BadRequest("Card ids and quantities must be positive")
		}
		if l.Quantity > MaxLineQuantity {
			return utils.BadRequest(fmt.Sprintf("At most %d copies of a card per trade", MaxLineQuantity))
		}
	}
	return nil
}

// mergeValidLines validates and merges lines. Each input line is bounded, so
// the running sums cannot overflow before the merged check.
func mergeValidLines(lines []models.CardQuantity) ([]models.CardQuantity, error) {
	if err := validLines(lines); err != nil {
		return nil, err
	}
	merged := mergeLines(lines)
	for _, l := range merged {
		if l.Quantity > MaxLineQuantity {
			return nil, utils.BadRequest(fmt.Sprintf("At most %d copies of a card per trade", MaxLineQuantity))
		}
	}
	return merged, nil
}

// lockCards moves quantity copies of each card out of the user's available
// stock. A single short line fails the whole call.
func lockCards(tx *gorm.DB, userID uint, lines []models.CardQuantity) error {
	for _, l := range lines {
		res := tx.Model(&models.AlbumEntry{}).
			Where("user_id = ? AND card_id = ? AND available_quantity >= ?", userID, l.CardID, l.Quantity).
			Update("available_quantity", gorm.Expr("available_quantity - ?", l.Quantity))
		if res.Error != nil {
			return utils.Internal("Failed to lock cards", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.Conflict(fmt.Sprintf("Insufficient available quantity for card %d", l.CardID))
		}
	}
	return nil
}

// unlockCards returns locked copies to the user's available stock, capped at
// the owned quantity.
func unlockCards(tx *gorm.DB, userID uint, lines []models.CardQuantity) error {
	for _, l := range lines {
		err := tx.Model(&models.AlbumEntry{}).
			Where("user_id = ? AND card_id = ?", userID, l.CardID).
			Update("available_quantity", gorm.Expr(
				"CASE WHEN available_quantity + ? > quantity THEN quantity ELSE available_quantity + ? END",
				l.Quantity, l.Quantity,
			)).Error
		if err != nil {
			return utils.Internal("Failed to unlock cards", err)
		}
	}
	return nil
}

// addCards gives the user quantity fresh, unlocked copies of cardID.
func addCards(tx *gorm.DB, userID uint, cardID, quantity int) error {
	res := tx.Model(&models.AlbumEntry{}).
		Where("user_id = ? AND card_id = ?", userID, cardID).
		Updates(map[string]interface{}{
			"quantity":           gorm.Expr("quantity + ?", quantity),
			"available_quantity": gorm.Expr("available_quantity + ?", quantity),
		})
	if res.Error != nil {
		return utils.Internal("Failed to update album", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	entry := models.AlbumEntry{UserID: userID, CardID: cardID, Quantity: quantity, AvailableQuantity: quantity}
	if err := tx.Create(&entry).Error; err != nil {
		return utils.Internal("Failed to update album", err)
	}
	return nil
}

// removeLockedCards takes away copies that were locked earlier; only the
// owned quantity changes.
func removeLockedCards(tx *gorm.DB, userID uint, cardID, quantity int) error {
	res := tx.Model(&models.AlbumEntry{}).
		Where("user_id = ? AND card_id = ? AND quantity >= ?", userID, cardID, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return utils.Internal("Failed to update album", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.Conflict(fmt.Sprintf("User %d no longer owns %d of card %d", userID, quantity, cardID))
	}
	return nil
}

func proposedLines(cards []models.ProposedCard) []models.CardQuantity {
	lines := make([]models.CardQuantity, 0, len(cards))
	for _, c := range cards {
		lines = append(lines, models.CardQuantity{CardID: c.CardID, Quantity: c.Quantity})
	}
	return lines
}

func offeredLines(cards []models.OfferedCard) []models.CardQuantity {
	lines := make([]models.CardQuantity, 0, len(cards))
	for _, c := range cards {
		lines = append(lines, models.CardQuantity{CardID: c.CardID, Quantity: c.Quantity})
	}
	return lines
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
