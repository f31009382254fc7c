package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{ID: fmt.Sprintf("item-%03d", i), Modality: ModalityText}
	}
	return items
}

func TestShuffleIsStablePerUser(t *testing.T) {
	items := makeItems(20)

	first := Shuffle("alice", items)
	second := Shuffle("alice", items)
	assert.Equal(t, first, second, "same user must get the same order every time")

	other := Shuffle("bob", items)
	assert.NotEqual(t, first, other, "different users should get different orders")

	// Shuffling never loses or duplicates items.
	seen := make(map[string]bool, len(first))
	for _, it := range first {
		seen[it.ID] = true
	}
	assert.Len(t, seen, len(items))
}

func TestPaginateWindows(t *testing.T) {
	items := makeItems(25)

	var collected []string
	for page := 1; ; page++ {
		p := Paginate("alice", items, page, 10)
		assert.Equal(t, 25, p.TotalCount)
		for _, it := range p.Items {
			collected = append(collected, it.ID)
		}
		if p.IsLastPage {
			assert.Equal(t, 3, p.Page)
			assert.Len(t, p.Items, 5)
			break
		}
		assert.Len(t, p.Items, 10)
	}

	// Pages partition the set: every item exactly once.
	require.Len(t, collected, 25)
	seen := make(map[string]bool, 25)
	for _, id := range collected {
		assert.False(t, seen[id], "item %s served twice", id)
		seen[id] = true
	}

	// Identical request, identical window.
	again := Paginate("alice", items, 2, 10)
	assert.Equal(t, Paginate("alice", items, 2, 10), again)
}

func TestPaginateClampsOutOfRange(t *testing.T) {
	items := makeItems(12)

	p := Paginate("alice", items, 0, 5)
	assert.Equal(t, 1, p.Page)

	p = Paginate("alice", items, 99, 5)
	assert.Equal(t, 3, p.Page)
	assert.True(t, p.IsLastPage)
	assert.Len(t, p.Items, 2)
}

func TestPaginateEmpty(t *testing.T) {
	p := Paginate("alice", nil, 1, 10)
	assert.Empty(t, p.Items)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 0, p.TotalCount)
	assert.True(t, p.IsLastPage)
}

func TestPaginateDefaultPageSize(t *testing.T) {
	items := makeItems(12)

	p := Paginate("alice", items, 1, 0)
	assert.Len(t, p.Items, 5)
	assert.Equal(t, 12, p.TotalCount)
	assert.False(t, p.IsLastPage)

	p = Paginate("alice", items, 3, 0)
	assert.Len(t, p.Items, 2)
	assert.True(t, p.IsLastPage)
}

func TestSample(t *testing.T) {
	items := makeItems(10)

	sample := Sample(items, 3)
	assert.Len(t, sample, 3)

	all := Sample(items, 50)
	assert.Len(t, all, 10)

	assert.Nil(t, Sample(items, 0))
}
