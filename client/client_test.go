package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marvelalbum/cache"
	"marvelalbum/catalog/catalogtest"
	"marvelalbum/client"
	"marvelalbum/config"
	"marvelalbum/db"
	"marvelalbum/handlers"
	"marvelalbum/models"
)

func newServer(t *testing.T) (*client.Client, *gorm.DB, *catalogtest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.Open("sqlite", "file:client_"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	redis, _ := cache.New("", "")
	heroes := catalogtest.NewServer(t, catalogtest.Heroes)

	router := handlers.NewRouter(&handlers.Handler{
		DB:      conn,
		Catalog: heroes.Client(),
		Cache:   redis,
		Config: &config.Config{
			Env:            config.EnvTest,
			RateLimitBurst: 1,
			AllowedOrigins: []string{"http://localhost:3000"},
			Auth:           config.Auth{JWTSecret: "client-secret", TokenTTL: time.Hour},
			Game:           config.Game{StartingCredits: 10, PacketCost: 1, PacketSize: 5, AlbumPageSize: 18},
		},
		CardIDs: catalogtest.IDs(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return client.New(srv.URL, srv.Client()), conn, heroes
}

func grant(t *testing.T, conn *gorm.DB, userID uint, cardID, quantity int) {
	t.Helper()
	require.NoError(t, conn.Model(&models.AlbumEntry{}).
		Where("user_id = ? AND card_id = ?", userID, cardID).
		Updates(map[string]interface{}{"quantity": quantity, "available_quantity": quantity}).Error)
}

func TestSessionLifecycle(t *testing.T) {
	api, _, _ := newServer(t)
	ctx := context.Background()

	session, err := api.Register(ctx, models.RegisterInput{Username: "peter", Email: "peter@marvel.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	_, err = api.UserInfo(ctx)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	peter := api.WithSession(session)
	user, err := peter.UserInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, user.ID)

	credits, err := peter.BuyCredits(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 13, credits)

	packet, err := peter.BuyPacket(ctx)
	require.NoError(t, err)
	assert.Len(t, packet.CardIDs, 5)

	again, err := api.Login(ctx, "peter@marvel.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, again.UserID)

	_, err = api.Login(ctx, "peter@marvel.com", "bad-password")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Invalid email or password", apiErr.Message)
}

func TestCharactersUseSessionSnapshot(t *testing.T) {
	api, _, heroes := newServer(t)
	ctx := context.Background()

	session, err := api.Register(ctx, models.RegisterInput{Username: "peter", Email: "peter@marvel.com", Password: "secret123"})
	require.NoError(t, err)
	peter := api.WithSession(session)

	_, err = peter.AlbumPage(ctx, 1)
	require.NoError(t, err)
	card, ok := peter.Session().Card(1009610)
	require.True(t, ok)
	assert.Equal(t, "Spider-Man (Peter Parker)", card.Name)

	before := heroes.Requests()
	cards, err := peter.Characters(ctx, []int{1009610, 1009351})
	require.NoError(t, err)
	assert.Len(t, cards, 2)
	assert.Equal(t, before, heroes.Requests())
}

func TestCardsByIDsAfterSale(t *testing.T) {
	api, conn, _ := newServer(t)
	ctx := context.Background()

	session, err := api.Register(ctx, models.RegisterInput{Username: "peter", Email: "peter@marvel.com", Password: "secret123"})
	require.NoError(t, err)
	grant(t, conn, session.UserID, 1009610, 2)
	peter := api.WithSession(session)

	cards, err := peter.CardsByIDs(ctx, []int{1009610})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, 2, cards[0].Quantity)

	require.NoError(t, peter.SellCard(ctx, 1009610))

	cards, err = peter.CardsByIDs(ctx, []int{1009610})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, 1, cards[0].Quantity)
	assert.Equal(t, 1, cards[0].AvailableQuantity)

	cached, ok := peter.Session().Card(1009610)
	require.True(t, ok)
	assert.Zero(t, cached.Quantity)
}

func TestTradeThroughClient(t *testing.T) {
	api, conn, _ := newServer(t)
	ctx := context.Background()

	aSession, err := api.Register(ctx, models.RegisterInput{Username: "anya", Email: "anya@marvel.com", Password: "secret123"})
	require.NoError(t, err)
	bSession, err := api.Register(ctx, models.RegisterInput{Username: "bruce", Email: "bruce@marvel.com", Password: "secret123"})
	require.NoError(t, err)
	grant(t, conn, aSession.UserID, 1017100, 1)
	grant(t, conn, bSession.UserID, 1009009, 2)

	a := api.WithSession(aSession)
	b := api.WithSession(bSession)

	trade, err := a.ProposeTrade(ctx, []models.CardQuantity{{CardID: 1017100, Quantity: 1}})
	require.NoError(t, err)

	open, err := api.Trades(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)

	offer, err := b.MakeOffer(ctx, trade.ID, []models.CardQuantity{{CardID: 1009009, Quantity: 2}})
	require.NoError(t, err)

	mine, err := b.MyOffers(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, trade.ID, mine[0].TradeID)

	require.NoError(t, a.AcceptOffer(ctx, trade.ID, offer.ID))

	page, err := a.Possessed(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Cards, 1)
	assert.Equal(t, 1009009, page.Cards[0].ID)
	assert.Equal(t, 2, page.Cards[0].Quantity)

	_, err = api.TradeDetails(ctx, trade.ID)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestAPIErrorFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	_, err := client.New(srv.URL, nil).Stats(context.Background())
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, client.FallbackMessage, apiErr.Message)
}
