package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marvelalbum/cache"
	"marvelalbum/models"
	"marvelalbum/services"
	"marvelalbum/utils"
)

const statsTTL = 5 * time.Minute

// Stats serves the public community statistics, cached in Redis when it is
// available.
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	var stats models.CommunityStats
	err := h.Cache.Get(ctx, cache.StatsKey, &stats)
	if err == nil {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, stats)
		return
	}
	if !errors.Is(err, cache.ErrMiss) && !errors.Is(err, cache.ErrUnavailable) {
		utils.Log.WithError(err).Warn("Stats cache read failed")
	}

	start := time.Now()
	fresh, err := services.CommunityStats(ctx, h.DB)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.Cache.Set(ctx, cache.StatsKey, fresh, statsTTL); err != nil && !errors.Is(err, cache.ErrUnavailable) {
		utils.Log.WithError(err).Warn("Stats cache write failed")
	}

	c.Header("X-Cache", "MISS")
	c.Header("X-Duration", time.Since(start).String())
	c.JSON(http.StatusOK, fresh)
}

// Health reports database and cache connectivity.
func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	database := "ok"
	if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status = http.StatusServiceUnavailable
		database = "unreachable"
	}

	redis := "disabled"
	if h.Cache.Available(ctx) {
		redis = "ok"
	}

	c.JSON(status, gin.H{
		"status":   http.StatusText(status),
		"database": database,
		"redis":    redis,
		"cards":    len(h.CardIDs),
	})
}
