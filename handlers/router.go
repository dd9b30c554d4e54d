package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"marvelalbum/middleware"
	"marvelalbum/monitoring"
	"marvelalbum/utils"
)

// NewRouter wires every route of the API onto a fresh engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	// X-Forwarded-For is only honoured from configured proxies
	if err := r.SetTrustedProxies(h.Config.TrustedProxies); err != nil {
		utils.Log.WithError(err).Warn("Invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.SecurityHeaders(), middleware.RemovePoweredBy())
	r.Use(monitoring.PrometheusMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     h.Config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.ErrorHandler(h.Config.IsRelease()))

	limiter := middleware.NewRateLimiter(float64(h.Config.RateLimitRPS), h.Config.RateLimitBurst)
	auth := middleware.AuthMiddleware(h.Config.Auth.JWTSecret)

	r.GET("/health", h.Health)
	r.GET("/metrics", monitoring.PrometheusHandler())

	api := r.Group("/api")
	api.GET("/stats", limiter.Handler(), h.Stats)

	users := api.Group("/users")
	{
		users.POST("/register", limiter.Handler(), h.Register)
		users.POST("/login", limiter.Handler(), h.Login)

		private := users.Group("", auth, limiter.Handler())
		private.GET("/info", h.UserInfo)
		private.PUT("/update", h.UpdateUser)
		private.DELETE("/delete", h.DeleteUser)
		private.GET("/credits", h.Credits)
		private.POST("/buy-credits", h.BuyCredits)
		private.POST("/buy-packet", h.BuyPacket)
		private.GET("/purchases", h.Purchases)
	}

	album := api.Group("/album", auth, limiter.Handler())
	{
		album.GET("/cards", h.AlbumCards)
		album.GET("/search", h.SearchAlbum)
		album.GET("/characters/:id", h.CharacterDetails)
		album.POST("/cardsByIds", h.CardsByIDs)
		album.GET("/possessed", h.PossessedCards)
		album.PUT("/sell/:cardId", h.SellCard)
	}

	trade := api.Group("/trade")
	{
		trade.GET("", limiter.Handler(), h.ListTrades)
		trade.GET("/:tradeId/details", limiter.Handler(), h.TradeDetails)

		private := trade.Group("", auth, limiter.Handler())
		private.POST("", h.ProposeTrade)
		private.GET("/user/proposals", h.UserProposals)
		private.GET("/user/offers", h.UserOffers)
		private.DELETE("/:tradeId", h.DeleteTrade)
		private.DELETE("/offers/:offerId", h.WithdrawOffer)
		private.POST("/:tradeId/offers", h.MakeOffer)
		private.PUT("/:tradeId/offers/:offerId/accept", h.AcceptOffer)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
	return r
}
