package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marvelalbum/models"
	"marvelalbum/services"
	"marvelalbum/utils"
)

func (h *Handler) UserInfo(c *gin.Context) {
	user, err := services.GetUser(c.Request.Context(), h.DB, currentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var input models.UpdateUserInput
	if !utils.BindJSON(c, &input) {
		return
	}

	user, err := services.UpdateUser(c.Request.Context(), h.DB, currentUser(c), input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	if err := services.DeleteUser(c.Request.Context(), h.DB, currentUser(c)); err != nil {
		_ = c.Error(err)
		return
	}

	h.invalidateStats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

func (h *Handler) Credits(c *gin.Context) {
	credits, err := services.GetCredits(c.Request.Context(), h.DB, currentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": credits})
}

func (h *Handler) BuyCredits(c *gin.Context) {
	var input models.BuyCreditsInput
	if !utils.BindJSON(c, &input) {
		return
	}

	credits, err := services.BuyCredits(c.Request.Context(), h.DB, currentUser(c), input.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": credits})
}

func (h *Handler) BuyPacket(c *gin.Context) {
	packet := services.Packet{
		Cost:    h.Config.Game.PacketCost,
		Size:    h.Config.Game.PacketSize,
		CardIDs: h.CardIDs,
	}

	result, err := services.BuyPacket(c.Request.Context(), h.DB, currentUser(c), packet)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.invalidateStats(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Purchases(c *gin.Context) {
	purchases, err := services.ListPurchases(c.Request.Context(), h.DB, currentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}
