package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marvelalbum/models"
	"marvelalbum/monitoring"
	"marvelalbum/services"
	"marvelalbum/utils"
)

func (h *Handler) issueToken(c *gin.Context, status int, userID uint) {
	token, err := utils.NewToken(userID, h.Config.Auth.JWTSecret, h.Config.Auth.TokenTTL)
	if err != nil {
		_ = c.Error(utils.Internal("Failed to issue token", err))
		return
	}
	c.JSON(status, models.AuthResponse{Token: token, UserID: userID})
}

func (h *Handler) Register(c *gin.Context) {
	var input models.RegisterInput
	if !utils.BindJSON(c, &input) {
		return
	}

	user, err := services.RegisterUser(c.Request.Context(), h.DB, h.CardIDs, h.Config.Game.StartingCredits, input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.invalidateStats(c.Request.Context())
	h.issueToken(c, http.StatusCreated, user.ID)
}

func (h *Handler) Login(c *gin.Context) {
	var input models.LoginInput
	if !utils.BindJSON(c, &input) {
		return
	}

	user, err := services.Authenticate(c.Request.Context(), h.DB, input.Email, input.Password)
	if err != nil {
		monitoring.AuthenticationAttempts.WithLabelValues("failure").Inc()
		_ = c.Error(err)
		return
	}

	monitoring.AuthenticationAttempts.WithLabelValues("success").Inc()
	h.issueToken(c, http.StatusOK, user.ID)
}
