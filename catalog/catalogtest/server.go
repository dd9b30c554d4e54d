// Package catalogtest serves a small in-memory Marvel character API for tests.
package catalogtest

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marvelalbum/catalog"
)

const (
	PublicKey  = "test-public"
	PrivateKey = "test-private"
)

type Hero struct {
	ID          int
	Name        string
	Description string
	Comics      []string
}

// Heroes is a default roster; ids match the real catalog.
var Heroes = []Hero{
	{ID: 1009144, Name: "A.I.M.", Description: "Advanced Idea Mechanics"},
	{ID: 1009146, Name: "Abomination (Emil Blonsky)"},
	{ID: 1009165, Name: "Avengers", Comics: []string{"Avengers (1963) #1"}},
	{ID: 1009187, Name: "Black Panther"},
	{ID: 1009220, Name: "Captain America", Comics: []string{"Captain America (1968) #100"}},
	{ID: 1009351, Name: "Hulk"},
	{ID: 1009368, Name: "Iron Man"},
	{ID: 1009610, Name: "Spider-Man (Peter Parker)", Comics: []string{"Amazing Fantasy (1962) #15"}},
	{ID: 1009009, Name: "Spider-Girl (Anya Corazon)"},
	{ID: 1009664, Name: "Thor"},
	{ID: 1009718, Name: "Wolverine"},
	{ID: 1017100, Name: "A-Bomb (HAS)"},
}

// IDs returns the ids of Heroes in ascending order.
func IDs() []int {
	ids := make([]int, 0, len(Heroes))
	for _, h := range Heroes {
		ids = append(ids, h.ID)
	}
	sort.Ints(ids)
	return ids
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	heroes   map[int]Hero
	failing  map[int]bool
	requests int64
}

// NewServer starts a fake catalog serving heroes. It is closed with the test.
func NewServer(t testing.TB, heroes []Hero) *Server {
	s := &Server{heroes: make(map[int]Hero), failing: make(map[int]bool)}
	for _, h := range heroes {
		s.heroes[h.ID] = h
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/characters", s.handleList)
	mux.HandleFunc("/characters/", s.handleOne)
	s.Server = httptest.NewServer(s.authorize(mux))
	t.Cleanup(s.Close)
	return s
}

// Client returns a catalog client pointed at the server without a cache.
func (s *Server) Client() *catalog.Client {
	return catalog.New(catalog.Config{
		BaseURL:    s.URL,
		PublicKey:  PublicKey,
		PrivateKey: PrivateKey,
		Timeout:    5 * time.Second,
		Workers:    4,
	}, nil)
}

// Fail makes lookups of id answer 500.
func (s *Server) Fail(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[id] = true
}

func (s *Server) Requests() int64 {
	return atomic.LoadInt64(&s.requests)
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.requests, 1)

		q := r.URL.Query()
		sum := md5.Sum([]byte(q.Get("ts") + PrivateKey + PublicKey))
		if q.Get("apikey") != PublicKey || q.Get("hash") != hex.EncodeToString(sum[:]) {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"code": "InvalidCredentials", "status": "That hash is invalid"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleOne(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/characters/"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"code": 404, "status": "We couldn't find that character"})
		return
	}

	s.mu.Lock()
	hero, ok := s.heroes[id]
	failing := s.failing[id]
	s.mu.Unlock()

	if failing {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"code": 500, "status": "Internal Server Error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"code": 404, "status": "We couldn't find that character"})
		return
	}
	writeJSON(w, http.StatusOK, envelope([]Hero{hero}, 0, 1, 1))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := strings.ToLower(q.Get("nameStartsWith"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	var matched []Hero
	for _, h := range s.heroes {
		if prefix == "" || strings.HasPrefix(strings.ToLower(h.Name), prefix) {
			matched = append(matched, h)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, envelope(matched[offset:end], offset, limit, total))
}

func envelope(heroes []Hero, offset, limit, total int) map[string]interface{} {
	results := make([]map[string]interface{}, 0, len(heroes))
	for _, h := range heroes {
		comics := make([]map[string]string, 0, len(h.Comics))
		for _, c := range h.Comics {
			comics = append(comics, map[string]string{"name": c})
		}
		results = append(results, map[string]interface{}{
			"id":          h.ID,
			"name":        h.Name,
			"description": h.Description,
			"thumbnail": map[string]string{
				"path":      "http://i.annihil.us/u/prod/marvel/i/mg/" + strconv.Itoa(h.ID),
				"extension": "jpg",
			},
			"comics":  map[string]interface{}{"available": len(comics), "items": comics},
			"series":  map[string]interface{}{"available": 0, "items": []interface{}{}},
			"stories": map[string]interface{}{"available": 0, "items": []interface{}{}},
			"events":  map[string]interface{}{"available": 0, "items": []interface{}{}},
		})
	}

	return map[string]interface{}{
		"code":   200,
		"status": "Ok",
		"data": map[string]interface{}{
			"offset":  offset,
			"limit":   limit,
			"total":   total,
			"count":   len(results),
			"results": results,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
