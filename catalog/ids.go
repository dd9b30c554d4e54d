package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"marvelalbum/cache"
)

const idsTTL = 24 * time.Hour

// LoadIDs returns every catalog card id, sorted and without duplicates. The
// list comes from path when set (a YAML or JSON sequence of integers),
// otherwise from the cache, otherwise from the API.
func (c *Client) LoadIDs(ctx context.Context, path string) ([]int, error) {
	if path != "" {
		return ReadIDsFile(path)
	}

	var ids []int
	if c.cached(ctx, cache.CatalogIDsKey, &ids) && len(ids) > 0 {
		return ids, nil
	}

	ids, err := c.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("catalog returned no characters")
	}

	c.store(ctx, cache.CatalogIDsKey, ids, idsTTL)
	return ids, nil
}

func ReadIDsFile(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog ids: %w", err)
	}

	var ids []int
	if err := yaml.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse catalog ids %s: %w", path, err)
	}

	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("catalog ids file %s is empty", path)
	}
	return ids, nil
}

func normalizeIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
