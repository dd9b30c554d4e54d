// Package catalog talks to the Marvel character API.
package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"marvelalbum/cache"
	"marvelalbum/concurrent"
	"marvelalbum/monitoring"
	"marvelalbum/utils"
)

var ErrNotFound = errors.New("character not found")

const (
	characterTTL = 24 * time.Hour
	searchTTL    = time.Hour
	pageLimit    = 100
	maxBody      = 4 << 20
)

type Character struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Thumbnail   string   `json:"thumbnail"`
	Comics      []string `json:"comics"`
	Series      []string `json:"series"`
	Stories     []string `json:"stories"`
	Events      []string `json:"events"`
}

// Cache is the subset of cache.Redis the client needs.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Config struct {
	BaseURL    string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
	Workers    int
	RPS        int
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      Cache
	limiter    *rate.Limiter
	now        func() time.Time
}

func New(cfg Config, c Cache) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      c,
		limiter:    rate.NewLimiter(limit, cfg.Workers),
		now:        time.Now,
	}
}

// authParams returns the ts/apikey/hash triple the API expects, where
// hash = md5(ts + privateKey + publicKey).
func (c *Client) authParams() url.Values {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	sum := md5.Sum([]byte(ts + c.cfg.PrivateKey + c.cfg.PublicKey))

	params := url.Values{}
	params.Set("ts", ts)
	params.Set("apikey", c.cfg.PublicKey)
	params.Set("hash", hex.EncodeToString(sum[:]))
	return params
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}

	params := c.authParams()
	for k, vs := range query {
		for _, v := range vs {
			params.Add(k, v)
		}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return gjson.Result{}, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return gjson.Result{}, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, gjson.GetBytes(body, "status").String())
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("catalog returned invalid JSON")
	}
	return gjson.ParseBytes(body), nil
}

func names(r gjson.Result, path string) []string {
	items := r.Get(path).Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.String())
	}
	return out
}

func parseCharacter(r gjson.Result) Character {
	thumb := r.Get("thumbnail")
	thumbnail := ""
	if thumb.Exists() {
		thumbnail = thumb.Get("path").String() + "." + thumb.Get("extension").String()
	}

	return Character{
		ID:          int(r.Get("id").Int()),
		Name:        r.Get("name").String(),
		Description: r.Get("description").String(),
		Thumbnail:   thumbnail,
		Comics:      names(r, "comics.items.#.name"),
		Series:      names(r, "series.items.#.name"),
		Stories:     names(r, "stories.items.#.name"),
		Events:      names(r, "events.items.#.name"),
	}
}

func (c *Client) cached(ctx context.Context, key string, dest interface{}) bool {
	if c.cache == nil {
		return false
	}
	return c.cache.Get(ctx, key, dest) == nil
}

func (c *Client) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, value, ttl); err != nil && !errors.Is(err, cache.ErrUnavailable) {
		utils.Log.WithError(err).WithField("key", key).Warn("catalog cache write failed")
	}
}

// GetCharacter returns one character, served from the cache when possible.
func (c *Client) GetCharacter(ctx context.Context, id int) (*Character, error) {
	key := cache.CharacterKey(id)

	var character Character
	if c.cached(ctx, key, &character) {
		return &character, nil
	}

	doc, err := c.get(ctx, "/characters/"+strconv.Itoa(id), nil)
	if err != nil {
		return nil, err
	}

	first := doc.Get("data.results.0")
	if !first.Exists() {
		return nil, ErrNotFound
	}
	character = parseCharacter(first)

	c.store(ctx, key, character, characterTTL)
	return &character, nil
}

// GetCharacters fetches ids in parallel batches. Characters that could not
// be fetched are left out of the result.
func (c *Client) GetCharacters(ctx context.Context, ids []int) []Character {
	characters, failures := concurrent.FetchAll(ctx, ids, c.cfg.Workers, func(ctx context.Context, id int) (Character, error) {
		ch, err := c.GetCharacter(ctx, id)
		if err != nil {
			return Character{}, err
		}
		return *ch, nil
	})

	for _, f := range failures {
		monitoring.CatalogFailures.WithLabelValues("character").Inc()
		utils.Log.WithFields(logrus.Fields{
			"card_id": f.ID,
			"error":   f.Err.Error(),
		}).Warn("catalog lookup failed")
	}
	return characters
}

// SearchByNamePrefix lists characters whose name starts with prefix.
func (c *Client) SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]Character, error) {
	if limit <= 0 || limit > pageLimit {
		limit = pageLimit
	}
	key := cache.SearchKey(strings.ToLower(prefix) + ":" + strconv.Itoa(limit))

	var characters []Character
	if c.cached(ctx, key, &characters) {
		return characters, nil
	}

	query := url.Values{}
	query.Set("nameStartsWith", prefix)
	query.Set("orderBy", "name")
	query.Set("limit", strconv.Itoa(limit))

	doc, err := c.get(ctx, "/characters", query)
	if err != nil {
		monitoring.CatalogFailures.WithLabelValues("search").Inc()
		return nil, err
	}

	results := doc.Get("data.results").Array()
	characters = make([]Character, 0, len(results))
	for _, r := range results {
		characters = append(characters, parseCharacter(r))
	}

	c.store(ctx, key, characters, searchTTL)
	return characters, nil
}

// ListIDs pages through the whole catalog and returns every character id.
func (c *Client) ListIDs(ctx context.Context) ([]int, error) {
	var ids []int
	offset := 0
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(pageLimit))
		query.Set("offset", strconv.Itoa(offset))

		doc, err := c.get(ctx, "/characters", query)
		if err != nil {
			monitoring.CatalogFailures.WithLabelValues("list").Inc()
			return nil, fmt.Errorf("list characters at offset %d: %w", offset, err)
		}

		for _, id := range doc.Get("data.results.#.id").Array() {
			ids = append(ids, int(id.Int()))
		}

		count := int(doc.Get("data.count").Int())
		total := int(doc.Get("data.total").Int())
		offset += count
		if count == 0 || offset >= total {
			return ids, nil
		}
	}
}
