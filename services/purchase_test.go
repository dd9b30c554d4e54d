package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marvelalbum/catalog/catalogtest"
	"marvelalbum/models"
)

func ownedTotals(t *testing.T, conn *gorm.DB, userID uint) (quantity, available int) {
	t.Helper()
	var album []models.AlbumEntry
	require.NoError(t, conn.Where("user_id = ?", userID).Find(&album).Error)
	for _, e := range album {
		quantity += e.Quantity
		available += e.AvailableQuantity
	}
	return quantity, available
}

func TestBuyCredits(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	ctx := context.Background()

	credits, err := BuyCredits(ctx, conn, peter.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, 109, credits)

	credits, err = BuyCredits(ctx, conn, peter.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, 208, credits, "no cumulative cap")

	for _, amount := range []int{0, -1, 100} {
		_, err = BuyCredits(ctx, conn, peter.ID, amount)
		requireStatus(t, err, http.StatusBadRequest)
	}

	_, err = BuyCredits(ctx, conn, 999, 5)
	requireStatus(t, err, http.StatusNotFound)

	credits, err = GetCredits(ctx, conn, peter.ID)
	require.NoError(t, err)
	assert.Equal(t, 208, credits)
}

func TestBuyPacketAddsExactlySizeCards(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	ctx := context.Background()

	ids := catalogtest.IDs()
	picks := []int{0, 3, 3, 7, 11}
	next := 0
	packet := Packet{Cost: 1, Size: 5, CardIDs: ids, Draw: func(n int) int {
		require.Equal(t, len(ids), n)
		p := picks[next]
		next++
		return p
	}}

	result, err := BuyPacket(ctx, conn, peter.ID, packet)
	require.NoError(t, err)
	assert.Equal(t, []int{ids[0], ids[3], ids[3], ids[7], ids[11]}, result.CardIDs)
	assert.Equal(t, 9, result.Credits)

	quantity, available := ownedTotals(t, conn, peter.ID)
	assert.Equal(t, 5, quantity)
	assert.Equal(t, 5, available)
	assert.Equal(t, 2, entry(t, conn, peter.ID, ids[3]).Quantity)

	purchases, err := ListPurchases(ctx, conn, peter.ID)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, models.PurchasePacket, purchases[0].Kind)
}

func TestBuyPacketWithoutCredits(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	peter, err := RegisterUser(ctx, conn, catalogtest.IDs(), 0, models.RegisterInput{
		Username: "peter", Email: "peter@marvel.com", Password: "secret123",
	})
	require.NoError(t, err)

	_, err = BuyPacket(ctx, conn, peter.ID, Packet{Cost: 1, Size: 5, CardIDs: catalogtest.IDs()})
	requireStatus(t, err, http.StatusConflict)

	quantity, _ := ownedTotals(t, conn, peter.ID)
	assert.Zero(t, quantity)

	_, err = BuyPacket(ctx, conn, 999, Packet{Cost: 1, Size: 5, CardIDs: catalogtest.IDs()})
	requireStatus(t, err, http.StatusNotFound)

	_, err = BuyPacket(ctx, conn, peter.ID, Packet{Cost: 1, Size: 5})
	requireStatus(t, err, http.StatusServiceUnavailable)
}

func TestBuyPacketCreatesMissingAlbumRow(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")

	packet := Packet{Cost: 2, Size: 1, CardIDs: []int{1011334}, Draw: func(int) int { return 0 }}
	result, err := BuyPacket(context.Background(), conn, peter.ID, packet)
	require.NoError(t, err)
	assert.Equal(t, 8, result.Credits)

	e := entry(t, conn, peter.ID, 1011334)
	assert.Equal(t, 1, e.Quantity)
	assert.Equal(t, 1, e.AvailableQuantity)
}
