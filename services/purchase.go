package services

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"marvelalbum/models"
	"marvelalbum/monitoring"
	"marvelalbum/utils"
)

const (
	MinCreditsPerPurchase = 1
	MaxCreditsPerPurchase = 99
)

// Packet describes what a packet costs and where its cards come from.
type Packet struct {
	Cost    int
	Size    int
	CardIDs []int
	// Draw returns an index in [0, n). Defaults to math/rand/v2.
	Draw func(n int) int
}

func (p Packet) draw() []int {
	pick := p.Draw
	if pick == nil {
		pick = rand.IntN
	}
	ids := make([]int, p.Size)
	for i := range ids {
		ids[i] = p.CardIDs[pick(len(p.CardIDs))]
	}
	return ids
}

func GetCredits(ctx context.Context, db *gorm.DB, userID uint) (int, error) {
	user, err := GetUser(ctx, db, userID)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// BuyCredits adds amount credits to the user's balance and returns the new
// balance.
func BuyCredits(ctx context.Context, db *gorm.DB, userID uint, amount int) (int, error) {
	if amount < MinCreditsPerPurchase || amount > MaxCreditsPerPurchase {
		return 0, utils.BadRequest("Amount must be between 1 and 99")
	}

	var credits int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("credits", gorm.Expr("credits + ?", amount))
		if res.Error != nil {
			return utils.Internal("Failed to add credits", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.NotFound("User not found")
		}

		purchase := models.Purchase{UserID: userID, Kind: models.PurchaseCredits, Credits: amount}
		if err := tx.Create(&purchase).Error; err != nil {
			return utils.Internal("Failed to record purchase", err)
		}
		var user models.User
		if err := tx.Select("credits").First(&user, userID).Error; err != nil {
			return utils.Internal("Failed to load credits", err)
		}
		credits = user.Credits
		return nil
	})
	if err != nil {
		return 0, err
	}

	monitoring.CreditsBought.Add(float64(amount))
	return credits, nil
}

// BuyPacket debits the packet cost and adds Size random cards to the album.
// Both happen in one transaction.
func BuyPacket(ctx context.Context, db *gorm.DB, userID uint, packet Packet) (*models.PacketResult, error) {
	if len(packet.CardIDs) == 0 {
		return nil, utils.Unavailable("Card catalog is empty", nil)
	}

	drawn := packet.draw()
	result := &models.PacketResult{CardIDs: drawn}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND credits >= ?", userID, packet.Cost).
			Update("credits", gorm.Expr("credits - ?", packet.Cost))
		if res.Error != nil {
			return utils.Internal("Failed to debit credits", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return utils.Internal("Failed to load user", err)
			}
			if count == 0 {
				return utils.NotFound("User not found")
			}
			return utils.Conflict("Insufficient credits")
		}

		lines := make([]models.CardQuantity, 0, len(drawn))
		for _, id := range drawn {
			lines = append(lines, models.CardQuantity{CardID: id, Quantity: 1})
		}
		for _, line := range mergeLines(lines) {
			if err := addCards(tx, userID, line.CardID, line.Quantity); err != nil {
				return err
			}
		}

		purchase := models.Purchase{
			UserID:  userID,
			Kind:    models.PurchasePacket,
			Credits: packet.Cost,
			CardIDs: joinIDs(drawn),
		}
		if err := tx.Create(&purchase).Error; err != nil {
			return utils.Internal("Failed to record purchase", err)
		}
		var user models.User
		if err := tx.Select("credits").First(&user, userID).Error; err != nil {
			return utils.Internal("Failed to load credits", err)
		}
		result.Credits = user.Credits
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.PacketsBought.Inc()
	monitoring.CardsDrawn.Add(float64(len(drawn)))
	utils.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"cards":   drawn,
	}).Info("Packet bought")
	return result, nil
}

// ListPurchases returns the user's purchases, newest first.
func ListPurchases(ctx context.Context, db *gorm.DB, userID uint) ([]models.Purchase, error) {
	purchases := []models.Purchase{}
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&purchases).Error
	if err != nil {
		return nil, utils.Internal("Failed to load purchases", err)
	}
	return purchases, nil
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
