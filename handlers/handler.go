package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"marvelalbum/cache"
	"marvelalbum/config"
	"marvelalbum/middleware"
	"marvelalbum/services"
	"marvelalbum/utils"
)

// Handler carries everything the HTTP handlers depend on.
type Handler struct {
	DB      *gorm.DB
	Catalog services.Catalog
	Cache   *cache.Redis
	Config  *config.Config
	// CardIDs is every card a packet can contain.
	CardIDs []int
}

// currentUser returns the id set by AuthMiddleware. Routes using it are
// always mounted behind that middleware.
func currentUser(c *gin.Context) uint {
	id, _ := middleware.UserID(c)
	return id
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.BadRequest(name + " must be an integer")
	}
	return v, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		return 0, utils.BadRequest("Invalid " + name)
	}
	return v, nil
}

// invalidateStats drops the cached community statistics after a change that
// affects them.
func (h *Handler) invalidateStats(ctx context.Context) {
	if err := h.Cache.Delete(ctx, cache.StatsKey); err != nil {
		utils.Log.WithError(err).Warn("Failed to invalidate stats cache")
	}
}
