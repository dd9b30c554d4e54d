package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"marvelalbum/catalog"
	"marvelalbum/models"
	"marvelalbum/monitoring"
	"marvelalbum/utils"
)

const (
	DefaultPossessedLimit = 20
	MaxPossessedLimit     = 100
	searchLimit           = 100
)

// Catalog is the part of the character catalog the album needs.
type Catalog interface {
	GetCharacter(ctx context.Context, id int) (*catalog.Character, error)
	GetCharacters(ctx context.Context, ids []int) []catalog.Character
	SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]catalog.Character, error)
}

func toCard(ch catalog.Character, entry models.AlbumEntry) models.Card {
	return models.Card{
		ID:                ch.ID,
		Name:              ch.Name,
		Description:       ch.Description,
		Thumbnail:         ch.Thumbnail,
		Comics:            ch.Comics,
		Series:            ch.Series,
		Stories:           ch.Stories,
		Events:            ch.Events,
		Quantity:          entry.Quantity,
		AvailableQuantity: entry.AvailableQuantity,
	}
}

// mergeCards pairs album rows with catalog metadata in row order. Rows whose
// character could not be fetched are dropped.
func mergeCards(ctx context.Context, cat Catalog, entries []models.AlbumEntry) []models.Card {
	ids := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.CardID
	}

	byID := make(map[int]catalog.Character, len(ids))
	for _, ch := range cat.GetCharacters(ctx, ids) {
		byID[ch.ID] = ch
	}

	cards := make([]models.Card, 0, len(entries))
	for _, e := range entries {
		if ch, ok := byID[e.CardID]; ok {
			cards = append(cards, toCard(ch, e))
		}
	}
	return cards
}

func albumEntries(db *gorm.DB, userID uint, cardIDs []int) (map[int]models.AlbumEntry, error) {
	var entries []models.AlbumEntry
	if len(cardIDs) > 0 {
		if err := db.Where("user_id = ? AND card_id IN ?", userID, cardIDs).Find(&entries).Error; err != nil {
			return nil, err
		}
	}
	out := make(map[int]models.AlbumEntry, len(entries))
	for _, e := range entries {
		out[e.CardID] = e
	}
	return out, nil
}

// AlbumPage returns page pageNumber (1-based) of the user's album ordered by
// card id. Pages past the end are empty.
func AlbumPage(ctx context.Context, db *gorm.DB, cat Catalog, userID uint, pageNumber, pageSize int) (*models.AlbumPage, error) {
	if pageNumber < 1 {
		return nil, utils.BadRequest("page_number must be at least 1")
	}
	if pageSize < 1 {
		return nil, utils.BadRequest("page size must be positive")
	}

	var total int64
	if err := db.WithContext(ctx).Model(&models.AlbumEntry{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, utils.Internal("Failed to count album", err)
	}

	page := &models.AlbumPage{
		PageNumber: pageNumber,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		Cards:      []models.Card{},
	}
	if pageNumber > page.TotalPages {
		return page, nil
	}

	var entries []models.AlbumEntry
	err := db.WithContext(ctx).Where("user_id = ?", userID).
		Order("card_id ASC").
		Limit(pageSize).Offset((pageNumber - 1) * pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, utils.Internal("Failed to load album", err)
	}

	page.Cards = mergeCards(ctx, cat, entries)
	return page, nil
}

// SearchAlbum finds catalog characters by name prefix and attaches the
// user's ownership. Catalog failures yield an empty result.
func SearchAlbum(ctx context.Context, db *gorm.DB, cat Catalog, userID uint, prefix string) ([]models.Card, error) {
	if prefix == "" {
		return nil, utils.BadRequest("name_starts_with is required")
	}

	characters, err := cat.SearchByNamePrefix(ctx, prefix, searchLimit)
	if err != nil {
		utils.Log.WithFields(logrus.Fields{
			"prefix": prefix,
			"error":  err.Error(),
		}).Warn("Catalog search failed")
		return []models.Card{}, nil
	}

	ids := make([]int, len(characters))
	for i, ch := range characters {
		ids[i] = ch.ID
	}
	owned, err := albumEntries(db.WithContext(ctx), userID, ids)
	if err != nil {
		return nil, utils.Internal("Failed to load album", err)
	}

	cards := make([]models.Card, 0, len(characters))
	for _, ch := range characters {
		cards = append(cards, toCard(ch, owned[ch.ID]))
	}
	return cards, nil
}

// CharacterDetails returns the full catalog entry for id with the user's
// ownership.
func CharacterDetails(ctx context.Context, db *gorm.DB, cat Catalog, userID uint, id int) (*models.Card, error) {
	if id <= 0 {
		return nil, utils.BadRequest("Invalid character id")
	}

	ch, err := cat.GetCharacter(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, utils.NotFound("Character not found")
	}
	if err != nil {
		return nil, utils.Unavailable("Character catalog unavailable", err)
	}

	owned, err := albumEntries(db.WithContext(ctx), userID, []int{id})
	if err != nil {
		return nil, utils.Internal("Failed to load album", err)
	}
	card := toCard(*ch, owned[id])
	return &card, nil
}

// CardsByIDs returns metadata for ids in request order, with the user's
// ownership. Unknown ids are left out.
func CardsByIDs(ctx context.Context, db *gorm.DB, cat Catalog, userID uint, ids []int) ([]models.Card, error) {
	if len(ids) == 0 {
		return nil, utils.BadRequest("At least one card id is required")
	}

	owned, err := albumEntries(db.WithContext(ctx), userID, ids)
	if err != nil {
		return nil, utils.Internal("Failed to load album", err)
	}

	characters := cat.GetCharacters(ctx, ids)
	cards := make([]models.Card, 0, len(characters))
	for _, ch := range characters {
		cards = append(cards, toCard(ch, owned[ch.ID]))
	}
	return cards, nil
}

// PossessedCards lists the cards the user holds at least one copy of.
func PossessedCards(ctx context.Context, db *gorm.DB, cat Catalog, userID uint, limit, offset int) (*models.PossessedPage, error) {
	if limit <= 0 {
		limit = DefaultPossessedLimit
	}
	if limit > MaxPossessedLimit {
		limit = MaxPossessedLimit
	}
	if offset < 0 {
		return nil, utils.BadRequest("offset must not be negative")
	}

	q := db.WithContext(ctx).Model(&models.AlbumEntry{}).Where("user_id = ? AND quantity > 0", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, utils.Internal("Failed to count album", err)
	}

	var entries []models.AlbumEntry
	err := db.WithContext(ctx).Where("user_id = ? AND quantity > 0", userID).
		Order("card_id ASC").Limit(limit).Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, utils.Internal("Failed to load album", err)
	}

	return &models.PossessedPage{
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Cards:  mergeCards(ctx, cat, entries),
	}, nil
}

// SellCard removes one unlocked copy of cardID from the user's album.
func SellCard(ctx context.Context, db *gorm.DB, userID uint, cardID int) (*models.AlbumEntry, error) {
	var entry models.AlbumEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND card_id = ?", userID, cardID).First(&entry).Error; err != nil {
			if isNotFound(err) {
				return utils.NotFound("Card not found in album")
			}
			return utils.Internal("Failed to load album", err)
		}
		if entry.Quantity == 0 {
			return utils.Conflict("You do not own this card")
		}
		if entry.AvailableQuantity == 0 {
			return utils.Conflict("Every copy of this card is locked in a trade")
		}

		res := tx.Model(&models.AlbumEntry{}).
			Where("id = ? AND quantity > 0 AND available_quantity > 0", entry.ID).
			Updates(map[string]interface{}{
				"quantity":           gorm.Expr("quantity - 1"),
				"available_quantity": gorm.Expr("available_quantity - 1"),
			})
		if res.Error != nil {
			return utils.Internal("Failed to sell card", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("Card is no longer available")
		}

		entry.Quantity--
		entry.AvailableQuantity--
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.CardsSold.Inc()
	return &entry, nil
}
