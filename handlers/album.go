package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marvelalbum/models"
	"marvelalbum/services"
	"marvelalbum/utils"
)

// AlbumCards serves GET /api/album/cards?page_number=
func (h *Handler) AlbumCards(c *gin.Context) {
	page, err := intQuery(c, "page_number", 1)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := services.AlbumPage(c.Request.Context(), h.DB, h.Catalog, currentUser(c), page, h.Config.Game.AlbumPageSize)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) SearchAlbum(c *gin.Context) {
	cards, err := services.SearchAlbum(c.Request.Context(), h.DB, h.Catalog, currentUser(c), c.Query("name_starts_with"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *Handler) CharacterDetails(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	card, err := services.CharacterDetails(c.Request.Context(), h.DB, h.Catalog, currentUser(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) CardsByIDs(c *gin.Context) {
	var input models.CardsByIDsInput
	if !utils.BindJSON(c, &input) {
		return
	}

	cards, err := services.CardsByIDs(c.Request.Context(), h.DB, h.Catalog, currentUser(c), input.CardIDs)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

// PossessedCards serves GET /api/album/possessed?limit&offset
func (h *Handler) PossessedCards(c *gin.Context) {
	limit, err := intQuery(c, "limit", services.DefaultPossessedLimit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		_ = c.Error(err)
		return
	}

	page, err := services.PossessedCards(c.Request.Context(), h.DB, h.Catalog, currentUser(c), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) SellCard(c *gin.Context) {
	cardID, err := intParam(c, "cardId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	entry, err := services.SellCard(c.Request.Context(), h.DB, currentUser(c), cardID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.invalidateStats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Card sold", "card": entry})
}
