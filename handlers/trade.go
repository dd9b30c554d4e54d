package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marvelalbum/models"
	"marvelalbum/services"
	"marvelalbum/utils"
)

// ListTrades serves GET /api/trade?limit&offset
func (h *Handler) ListTrades(c *gin.Context) {
	limit, err := intQuery(c, "limit", services.DefaultTradeLimit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		_ = c.Error(err)
		return
	}

	trades, err := services.ListOpenTrades(c.Request.Context(), h.DB, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *Handler) TradeDetails(c *gin.Context) {
	trade, err := services.TradeDetails(c.Request.Context(), h.DB, c.Param("tradeId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (h *Handler) ProposeTrade(c *gin.Context) {
	var input models.ProposeTradeInput
	if !utils.BindJSON(c, &input) {
		return
	}

	trade, err := services.ProposeTrade(c.Request.Context(), h.DB, currentUser(c), input.ProposedCards)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.invalidateStats(c.Request.Context())
	c.JSON(http.StatusCreated, trade)
}

func (h *Handler) UserProposals(c *gin.Context) {
	trades, err := services.UserProposals(c.Request.Context(), h.DB, currentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *Handler) UserOffers(c *gin.Context) {
	offers, err := services.UserOffers(c.Request.Context(), h.DB, currentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, offers)
}

func (h *Handler) DeleteTrade(c *gin.Context) {
	if err := services.DeleteTrade(c.Request.Context(), h.DB, currentUser(c), c.Param("tradeId")); err != nil {
		_ = c.Error(err)
		return
	}

	h.invalidateStats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Trade deleted"})
}

func (h *Handler) WithdrawOffer(c *gin.Context) {
	if err := services.WithdrawOffer(c.Request.Context(), h.DB, currentUser(c), c.Param("offerId")); err != nil {
		_ = c.Error(err)
		return
	}

	h.invalidateStats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Offer withdrawn"})
}

func (h *Handler) MakeOffer(c *gin.Context) {
	var input models.MakeOfferInput
	if !utils.BindJSON(c, &input) {
		return
	}

	offer, err := services.MakeOffer(c.Request.Context(), h.DB, currentUser(c), c.Param("tradeId"), input.OfferedCards)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.invalidateStats(c.Request.Context())
	c.JSON(http.StatusCreated, offer)
}

func (h *Handler) AcceptOffer(c *gin.Context) {
	trade, err := services.AcceptOffer(c.Request.Context(), h.DB, currentUser(c), c.Param("tradeId"), c.Param("offerId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.invalidateStats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Offer accepted", "trade": trade})
}
