// Package client is a typed Go client for the album API. A Session holds
// what a logged-in caller needs between requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"marvelalbum/models"
)

// FallbackMessage is reported when the server gives no usable error message.
const FallbackMessage = "Something went wrong, please try again"

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Session is the state of one logged-in user: the bearer token and the
// catalog metadata of cards already fetched. Ownership is never kept in the
// snapshot; sales, packets and trades change it on the server.
type Session struct {
	Token  string
	UserID uint

	mu    sync.RWMutex
	cards map[int]models.Card
}

func (s *Session) remember(cards []models.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cards == nil {
		s.cards = make(map[int]models.Card, len(cards))
	}
	for _, c := range cards {
		c.Quantity, c.AvailableQuantity = 0, 0
		s.cards[c.ID] = c
	}
}

// Card returns the catalog metadata of a previously seen card. Quantities
// are always zero.
func (s *Session) Card(id int) (models.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[id]
	return c, ok
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// WithSession returns a client acting as the session's user.
func (c *Client) WithSession(s *Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil && c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := gjson.GetBytes(raw, "error").String()
		if msg == "" {
			msg = FallbackMessage
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*Session, error) {
	var auth models.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, body, &auth); err != nil {
		return nil, err
	}
	return &Session{Token: auth.Token, UserID: auth.UserID}, nil
}

func (c *Client) Register(ctx context.Context, in models.RegisterInput) (*Session, error) {
	return c.authenticate(ctx, "/api/users/register", in)
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	return c.authenticate(ctx, "/api/users/login", models.LoginInput{Email: email, Password: password})
}

func (c *Client) UserInfo(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/info", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateUser(ctx context.Context, in models.UpdateUserInput) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPut, "/api/users/update", in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) DeleteUser(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/users/delete", nil, nil)
}

type creditsResponse struct {
	Credits int `json:"credits"`
}

func (c *Client) Credits(ctx context.Context) (int, error) {
	var out creditsResponse
	err := c.do(ctx, http.MethodGet, "/api/users/credits", nil, &out)
	return out.Credits, err
}

func (c *Client) BuyCredits(ctx context.Context, amount int) (int, error) {
	var out creditsResponse
	err := c.do(ctx, http.MethodPost, "/api/users/buy-credits", models.BuyCreditsInput{Amount: amount}, &out)
	return out.Credits, err
}

func (c *Client) BuyPacket(ctx context.Context) (*models.PacketResult, error) {
	var out models.PacketResult
	if err := c.do(ctx, http.MethodPost, "/api/users/buy-packet", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Purchases(ctx context.Context) ([]models.Purchase, error) {
	var out []models.Purchase
	err := c.do(ctx, http.MethodGet, "/api/users/purchases", nil, &out)
	return out, err
}

func (c *Client) rememberCards(cards []models.Card) {
	if c.session != nil {
		c.session.remember(cards)
	}
}

func (c *Client) AlbumPage(ctx context.Context, page int) (*models.AlbumPage, error) {
	var out models.AlbumPage
	if err := c.do(ctx, http.MethodGet, "/api/album/cards?page_number="+strconv.Itoa(page), nil, &out); err != nil {
		return nil, err
	}
	c.rememberCards(out.Cards)
	return &out, nil
}

func (c *Client) SearchAlbum(ctx context.Context, prefix string) ([]models.Card, error) {
	var out []models.Card
	if err := c.do(ctx, http.MethodGet, "/api/album/search?name_starts_with="+url.QueryEscape(prefix), nil, &out); err != nil {
		return nil, err
	}
	c.rememberCards(out)
	return out, nil
}

func (c *Client) Character(ctx context.Context, id int) (*models.Card, error) {
	var out models.Card
	if err := c.do(ctx, http.MethodGet, "/api/album/characters/"+strconv.Itoa(id), nil, &out); err != nil {
		return nil, err
	}
	c.rememberCards([]models.Card{out})
	return &out, nil
}

// CardsByIDs returns the cards with the user's current ownership.
func (c *Client) CardsByIDs(ctx context.Context, ids []int) ([]models.Card, error) {
	var out []models.Card
	if err := c.do(ctx, http.MethodPost, "/api/album/cardsByIds", models.CardsByIDsInput{CardIDs: ids}, &out); err != nil {
		return nil, err
	}
	c.rememberCards(out)
	return out, nil
}

// Characters returns catalog metadata for ids, asking the server only for
// ids missing from the session snapshot. Quantities are zero.
func (c *Client) Characters(ctx context.Context, ids []int) ([]models.Card, error) {
	if c.session == nil {
		cards, err := c.CardsByIDs(ctx, ids)
		for i := range cards {
			cards[i].Quantity, cards[i].AvailableQuantity = 0, 0
		}
		return cards, err
	}

	var missing []int
	for _, id := range ids {
		if _, ok := c.session.Card(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		if _, err := c.CardsByIDs(ctx, missing); err != nil {
			return nil, err
		}
	}

	cards := make([]models.Card, 0, len(ids))
	for _, id := range ids {
		if card, ok := c.session.Card(id); ok {
			cards = append(cards, card)
		}
	}
	return cards, nil
}

func (c *Client) Possessed(ctx context.Context, limit, offset int) (*models.PossessedPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var out models.PossessedPage
	if err := c.do(ctx, http.MethodGet, "/api/album/possessed?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	c.rememberCards(out.Cards)
	return &out, nil
}

func (c *Client) SellCard(ctx context.Context, cardID int) error {
	return c.do(ctx, http.MethodPut, "/api/album/sell/"+strconv.Itoa(cardID), nil, nil)
}

func (c *Client) Trades(ctx context.Context, limit, offset int) ([]models.Trade, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var out []models.Trade
	err := c.do(ctx, http.MethodGet, "/api/trade?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) TradeDetails(ctx context.Context, tradeID string) (*models.Trade, error) {
	var out models.Trade
	if err := c.do(ctx, http.MethodGet, "/api/trade/"+url.PathEscape(tradeID)+"/details", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ProposeTrade(ctx context.Context, cards []models.CardQuantity) (*models.Trade, error) {
	var out models.Trade
	if err := c.do(ctx, http.MethodPost, "/api/trade", models.ProposeTradeInput{ProposedCards: cards}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyProposals(ctx context.Context) ([]models.Trade, error) {
	var out []models.Trade
	err := c.do(ctx, http.MethodGet, "/api/trade/user/proposals", nil, &out)
	return out, err
}

func (c *Client) MyOffers(ctx context.Context) ([]models.UserOffer, error) {
	var out []models.UserOffer
	err := c.do(ctx, http.MethodGet, "/api/trade/user/offers", nil, &out)
	return out, err
}

func (c *Client) DeleteTrade(ctx context.Context, tradeID string) error {
	return c.do(ctx, http.MethodDelete, "/api/trade/"+url.PathEscape(tradeID), nil, nil)
}

func (c *Client) WithdrawOffer(ctx context.Context, offerID string) error {
	return c.do(ctx, http.MethodDelete, "/api/trade/offers/"+url.PathEscape(offerID), nil, nil)
}

func (c *Client) MakeOffer(ctx context.Context, tradeID string, cards []models.CardQuantity) (*models.Offer, error) {
	var out models.Offer
	path := "/api/trade/" + url.PathEscape(tradeID) + "/offers"
	if err := c.do(ctx, http.MethodPost, path, models.MakeOfferInput{OfferedCards: cards}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcceptOffer(ctx context.Context, tradeID, offerID string) error {
	path := "/api/trade/" + url.PathEscape(tradeID) + "/offers/" + url.PathEscape(offerID) + "/accept"
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

func (c *Client) Stats(ctx context.Context) (*models.CommunityStats, error) {
	var out models.CommunityStats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
