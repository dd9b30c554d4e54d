package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"marvelalbum/cache"
	"marvelalbum/catalog"
	"marvelalbum/config"
	"marvelalbum/db"
	"marvelalbum/handlers"
	"marvelalbum/monitoring"
	"marvelalbum/utils"
)

func main() {
	cfg := config.MustLoad()

	utils.InitLogger(cfg.LogLevel, cfg.LogFile, cfg.IsRelease())
	monitoring.InitMetrics()

	switch cfg.Env {
	case config.EnvRelease:
		gin.SetMode(gin.ReleaseMode)
	case config.EnvTest:
		gin.SetMode(gin.TestMode)
	}

	conn, err := db.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		utils.Log.WithError(err).Fatal("Failed to open database")
	}
	utils.Log.WithField("driver", cfg.Database.Driver).Info("Database connected and migrated")

	redis, err := cache.New(cfg.Redis.URL, cfg.Redis.Password)
	if err != nil {
		// the service runs without a cache
		utils.Log.WithError(err).Warn("Redis unavailable, caching disabled")
	}
	defer redis.Close()

	characters := catalog.New(catalog.Config{
		BaseURL:    cfg.Marvel.BaseURL,
		PublicKey:  cfg.Marvel.PublicKey,
		PrivateKey: cfg.Marvel.PrivateKey,
		Timeout:    cfg.Marvel.Timeout,
		Workers:    cfg.Marvel.Workers,
		RPS:        cfg.Marvel.RPS,
	}, redis)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 2*time.Minute)
	cardIDs, err := characters.LoadIDs(loadCtx, cfg.Marvel.IDsFile)
	cancelLoad()
	if err != nil {
		utils.Log.WithError(err).Fatal("Failed to load the card catalog")
	}
	utils.Log.WithField("cards", len(cardIDs)).Info("Card catalog loaded")

	router := handlers.NewRouter(&handlers.Handler{
		DB:      conn,
		Catalog: characters,
		Cache:   redis,
		Config:  cfg,
		CardIDs: cardIDs,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := cfg.UseHTTPS && cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		server.TLSConfig = &tls.Config{
			MinVersion:       tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{tls.CurveP521, tls.CurveP384, tls.CurveP256},
			CipherSuites: []uint16{
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			},
		}
	}

	go func() {
		fields := logrus.Fields{"port": cfg.Port, "tls": useTLS}
		var err error
		if useTLS {
			utils.Log.WithFields(fields).Info("Starting server with HTTPS")
			err = server.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			if cfg.IsRelease() {
				utils.Log.Warn("Running without HTTPS. Set USE_HTTPS=true for production")
			}
			utils.Log.WithFields(fields).Info("Starting server with HTTP")
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	utils.Log.Info("Got signal to shutdown server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		utils.Log.WithError(err).Error("Stopping server error")
	}
	if sqlDB, err := conn.DB(); err == nil {
		sqlDB.Close()
	}
}
