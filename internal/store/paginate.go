package store

import (
	"hash/fnv"
	"math/rand"
)

// Page is one window over a user's shuffled item listing.
type Page struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	TotalCount int    `json:"total_count"`
	IsLastPage bool   `json:"is_last_page"`
}

// Shuffle orders items deterministically for a given user: the
// permutation is seeded from the user id, so the same set of items pages
// identically across calls, while different users see different orders.
// Input order must be stable (callers pass id-sorted listings).
func Shuffle(userID string, items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)

	h := fnv.New64a()
	h.Write([]byte(userID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Paginate slices a stable shuffle of items into the requested page.
// Pages are 1-based; out-of-range requests clamp to the nearest valid
// page, and an empty set yields a single empty last page.
func Paginate(userID string, items []Item, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = 5
	}

	shuffled := Shuffle(userID, items)
	total := len(shuffled)

	lastPage := (total + pageSize - 1) / pageSize
	if lastPage < 1 {
		lastPage = 1
	}
	if page < 1 {
		page = 1
	}
	if page > lastPage {
		page = lastPage
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Items:      shuffled[start:end],
		Page:       page,
		TotalCount: total,
		IsLastPage: page == lastPage,
	}
}

// Sample draws up to n items uniformly at random. Unlike Paginate the
// draw is not stable between calls.
func Sample(items []Item, n int) []Item {
	if n <= 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}
	perm := rand.Perm(len(items))
	out := make([]Item, n)
	for i := 0; i < n; i++ {
		out[i] = items[perm[i]]
	}
	return out
}
