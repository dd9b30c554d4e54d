package services

import (
	"context"
	"math"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marvelalbum/models"
)

func TestProposeTradeLocksCards(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	give(t, conn, peter.ID, hulk, 3)
	ctx := context.Background()

	trade, err := ProposeTrade(ctx, conn, peter.ID, []models.CardQuantity{
		{CardID: hulk, Quantity: 1},
		{CardID: hulk, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TradeOpen, trade.Status)
	require.Len(t, trade.ProposedCards, 1, "duplicate lines are merged")
	assert.Equal(t, 2, trade.ProposedCards[0].Quantity)

	e := entry(t, conn, peter.ID, hulk)
	assert.Equal(t, 3, e.Quantity)
	assert.Equal(t, 1, e.AvailableQuantity)

	details, err := TradeDetails(ctx, conn, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, peter.ID, details.ProposerID)
}

func TestProposeTradeInsufficientLeavesAlbumUnchanged(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	give(t, conn, peter.ID, hulk, 2)
	give(t, conn, peter.ID, spiderMan, 1)
	ctx := context.Background()

	_, err := ProposeTrade(ctx, conn, peter.ID, []models.CardQuantity{
		{CardID: hulk, Quantity: 2},
		{CardID: spiderMan, Quantity: 2},
	})
	requireStatus(t, err, http.StatusConflict)

	assert.Equal(t, 2, entry(t, conn, peter.ID, hulk).AvailableQuantity)
	assert.Equal(t, 1, entry(t, conn, peter.ID, spiderMan).AvailableQuantity)

	trades, err := UserProposals(ctx, conn, peter.ID)
	require.NoError(t, err)
	assert.Empty(t, trades)

	_, err = ProposeTrade(ctx, conn, peter.ID, nil)
	requireStatus(t, err, http.StatusBadRequest)
}

// A proposes 1 x A-Bomb, B offers 2 x Spider-Girl, A accepts.
func TestAcceptOfferExchangesCards(t *testing.T) {
	conn := newTestDB(t)
	a := register(t, conn, "anya")
	b := register(t, conn, "bruce")
	give(t, conn, a.ID, aBomb, 1)
	give(t, conn, b.ID, spiderGirl, 2)
	ctx := context.Background()

	trade, err := ProposeTrade(ctx, conn, a.ID, []models.CardQuantity{{CardID: aBomb, Quantity: 1}})
	require.NoError(t, err)
	offer, err := MakeOffer(ctx, conn, b.ID, trade.ID, []models.CardQuantity{{CardID: spiderGirl, Quantity: 2}})
	require.NoError(t, err)
	assert.Zero(t, entry(t, conn, b.ID, spiderGirl).AvailableQuantity)

	accepted, err := AcceptOffer(ctx, conn, a.ID, trade.ID, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeClosed, accepted.Status)
	assert.Equal(t, models.OfferAccepted, accepted.Offers[0].Status)

	assert.Equal(t, models.AlbumEntry{CardID: aBomb}, strip(entry(t, conn, a.ID, aBomb)))
	assert.Equal(t, models.AlbumEntry{CardID: spiderGirl, Quantity: 2, AvailableQuantity: 2}, strip(entry(t, conn, a.ID, spiderGirl)))
	assert.Equal(t, models.AlbumEntry{CardID: aBomb, Quantity: 1, AvailableQuantity: 1}, strip(entry(t, conn, b.ID, aBomb)))
	assert.Equal(t, models.AlbumEntry{CardID: spiderGirl}, strip(entry(t, conn, b.ID, spiderGirl)))

	_, err = TradeDetails(ctx, conn, trade.ID)
	requireStatus(t, err, http.StatusNotFound)

	var offers, lines int64
	require.NoError(t, conn.Model(&models.Offer{}).Where("trade_id = ?", trade.ID).Count(&offers).Error)
	require.NoError(t, conn.Model(&models.OfferedCard{}).Where("offer_id = ?", offer.ID).Count(&lines).Error)
	assert.Zero(t, offers)
	assert.Zero(t, lines)
}

func TestAcceptOfferReleasesOtherOffers(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	miles := register(t, conn, "miles")
	gwen := register(t, conn, "gwen")
	give(t, conn, peter.ID, aBomb, 1)
	give(t, conn, miles.ID, spiderGirl, 1)
	give(t, conn, gwen.ID, hulk, 2)
	ctx := context.Background()

	trade, err := ProposeTrade(ctx, conn, peter.ID, []models.CardQuantity{{CardID: aBomb, Quantity: 1}})
	require.NoError(t, err)
	winning, err := MakeOffer(ctx, conn, miles.ID, trade.ID, []models.CardQuantity{{CardID: spiderGirl, Quantity: 1}})
	require.NoError(t, err)
	_, err = MakeOffer(ctx, conn, gwen.ID, trade.ID, []models.CardQuantity{{CardID: hulk, Quantity: 2}})
	require.NoError(t, err)
	assert.Zero(t, entry(t, conn, gwen.ID, hulk).AvailableQuantity)

	_, err = AcceptOffer(ctx, conn, miles.ID, trade.ID, winning.ID)
	requireStatus(t, err, http.StatusForbidden)

	_, err = AcceptOffer(ctx, conn, peter.ID, trade.ID, "missing")
	requireStatus(t, err, http.StatusNotFound)

	_, err = AcceptOffer(ctx, conn, peter.ID, trade.ID, winning.ID)
	require.NoError(t, err)

	e := entry(t, conn, gwen.ID, hulk)
	assert.Equal(t, 2, e.Quantity)
	assert.Equal(t, 2, e.AvailableQuantity)

	offers, err := UserOffers(ctx, conn, gwen.ID)
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestAcceptOfferOnlyOnce(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	miles := register(t, conn, "miles")
	give(t, conn, peter.ID, aBomb, 1)
	give(t, conn, miles.ID, spiderGirl, 1)
	ctx := context.Background()

	trade, err := ProposeTrade(ctx, conn, peter.ID, []models.CardQuantity{{CardID: aBomb, Quantity: 1}})
	require.NoError(t, err)
	offer, err := MakeOffer(ctx, conn, miles.ID, trade.ID, []models.CardQuantity{{CardID: spiderGirl, Quantity: 1}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = AcceptOffer(ctx, conn, peter.ID, trade.ID, offer.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, entry(t, conn, miles.ID, aBomb).Quantity)
	assert.Equal(t, 1, entry(t, conn, peter.ID, spiderGirl).Quantity)
}

func TestMakeOfferRules(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	miles := register(t, conn, "miles")
	give(t, conn, peter.ID, aBomb, 1)
	give(t, conn, miles.ID, spiderGirl, 3)
	ctx := context.Background()

	trade, err := ProposeTrade(ctx, conn, peter.ID, []models.CardQuantity{{CardID: aBomb, Quantity: 1}})
	require.NoError(t, err)
	cards := []models.CardQuantity{{CardID: spiderGirl, Quantity: 1}}

	_, err = MakeOffer(ctx, conn, miles.ID, "no-such-trade", cards)
	requireStatus(t, err, http.StatusNotFound)

	_, err = MakeOffer(ctx, conn, peter.ID, trade.ID, cards)
	requireStatus(t, err, http.StatusForbidden)

	_, err = MakeOffer(ctx, conn, miles.ID, trade.ID, []models.CardQuantity{{CardID: spiderGirl, Quantity: 4}})
	requireStatus(t, err, http.StatusConflict)
	assert.Equal(t, 3, entry(t, conn, miles.ID, spiderGirl).AvailableQuantity)

	_, err = MakeOffer(ctx, conn, miles.ID, trade.ID, cards)
	require.NoError(t, err)
	_, err = MakeOffer(ctx, conn, miles.ID, trade.ID, cards)
	requireStatus(t, err, http.StatusConflict)
	assert.Equal(t, 2, entry(t, conn, miles.ID, spiderGirl).AvailableQuantity)

	offers, err := UserOffers(ctx, conn, miles.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, peter.ID, offers[0].ProposerID)
	assert.Equal(t, aBomb, offers[0].ProposedCards[0].CardID)
}

func TestDeleteTradeRestoresLocks(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	miles := register(t, conn, "miles")
	give(t, conn, peter.ID, aBomb, 2)
	give(t, conn, miles.ID, spiderGirl, 1)
	ctx := context.Background()

	trade, err := ProposeTrade(ctx, conn, peter.ID, []models.CardQuantity{{CardID: aBomb, Quantity: 2}})
	require.NoError(t, err)
	_, err = MakeOffer(ctx, conn, miles.ID, trade.ID, []models.CardQuantity{{CardID: spiderGirl, Quantity: 1}})
	require.NoError(t, err)

	requireStatus(t, DeleteTrade(ctx, conn, miles.ID, trade.ID), http.StatusForbidden)
	require.NoError(t, DeleteTrade(ctx, conn, peter.ID, trade.ID))

	assert.Equal(t, 2, entry(t, conn, peter.ID, aBomb).AvailableQuantity)
	assert.Equal(t, 1, entry(t, conn, miles.ID, spiderGirl).AvailableQuantity)

	requireStatus(t, DeleteTrade(ctx, conn, peter.ID, trade.ID), http.StatusNotFound)
}

func TestWithdrawOffer(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	miles := register(t, conn, "miles")
	give(t, conn, peter.ID, aBomb, 1)
	give(t, conn, miles.ID, spiderGirl, 2)
	ctx := context.Background()

	trade, err := ProposeTrade(ctx, conn, peter.ID, []models.CardQuantity{{CardID: aBomb, Quantity: 1}})
	require.NoError(t, err)
	offer, err := MakeOffer(ctx, conn, miles.ID, trade.ID, []models.CardQuantity{{CardID: spiderGirl, Quantity: 2}})
	require.NoError(t, err)

	requireStatus(t, WithdrawOffer(ctx, conn, peter.ID, offer.ID), http.StatusForbidden)
	require.NoError(t, WithdrawOffer(ctx, conn, miles.ID, offer.ID))
	assert.Equal(t, 2, entry(t, conn, miles.ID, spiderGirl).AvailableQuantity)

	requireStatus(t, WithdrawOffer(ctx, conn, miles.ID, offer.ID), http.StatusNotFound)

	details, err := TradeDetails(ctx, conn, trade.ID)
	require.NoError(t, err)
	assert.Empty(t, details.Offers)
}

func TestListOpenTrades(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	give(t, conn, peter.ID, hulk, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ProposeTrade(ctx, conn, peter.ID, []models.CardQuantity{{CardID: hulk, Quantity: 1}})
		require.NoError(t, err)
	}

	trades, err := ListOpenTrades(ctx, conn, 2, 0)
	require.NoError(t, err)
	assert.Len(t, trades, 2)

	trades, err = ListOpenTrades(ctx, conn, 0, 2)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestCommunityStats(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	miles := register(t, conn, "miles")
	give(t, conn, peter.ID, hulk, 3)
	give(t, conn, miles.ID, hulk, 1)
	give(t, conn, miles.ID, spiderMan, 2)
	ctx := context.Background()

	_, err := ProposeTrade(ctx, conn, peter.ID, []models.CardQuantity{{CardID: hulk, Quantity: 1}})
	require.NoError(t, err)

	stats, err := CommunityStats(ctx, conn)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalUsers)
	assert.EqualValues(t, 1, stats.OpenTrades)
	assert.EqualValues(t, 6, stats.CardsInCirculation)
	require.Len(t, stats.TopCards, 2)
	assert.Equal(t, models.CardCount{CardID: hulk, TotalQuantity: 4}, stats.TopCards[0])
}

func strip(e models.AlbumEntry) models.AlbumEntry {
	e.ID = 0
	e.UserID = 0
	return e
}

func TestTradeLinesAreBounded(t *testing.T) {
	conn := newTestDB(t)
	peter := register(t, conn, "peter")
	miles := register(t, conn, "miles")
	give(t, conn, peter.ID, hulk, 1)
	give(t, conn, miles.ID, spiderMan, 1)
	ctx := context.Background()

	wrapping := []models.CardQuantity{
		{CardID: hulk, Quantity: math.MaxInt},
		{CardID: hulk, Quantity: math.MaxInt},
	}
	_, err := ProposeTrade(ctx, conn, peter.ID, wrapping)
	requireStatus(t, err, http.StatusBadRequest)

	_, err = ProposeTrade(ctx, conn, peter.ID, []models.CardQuantity{
		{CardID: hulk, Quantity: MaxLineQuantity},
		{CardID: hulk, Quantity: 1},
	})
	requireStatus(t, err, http.StatusBadRequest)

	e := entry(t, conn, peter.ID, hulk)
	assert.Equal(t, 1, e.Quantity)
	assert.Equal(t, 1, e.AvailableQuantity)

	trade, err := ProposeTrade(ctx, conn, miles.ID, []models.CardQuantity{{CardID: spiderMan, Quantity: 1}})
	require.NoError(t, err)

	_, err = MakeOffer(ctx, conn, peter.ID, trade.ID, wrapping)
	requireStatus(t, err, http.StatusBadRequest)

	e = entry(t, conn, peter.ID, hulk)
	assert.Equal(t, 1, e.Quantity)
	assert.Equal(t, 1, e.AvailableQuantity)

	details, err := TradeDetails(ctx, conn, trade.ID)
	require.NoError(t, err)
	assert.Empty(t, details.Offers)
	assert.Equal(t, models.TradeOpen, details.Status)
}
