// Package paginate slices ordered result sets into fixed-size pages.
package paginate

import (
	"context"
	"strconv"
)

// PerPage is the page size used by every feed.
const PerPage = 10

// Page is one page of an ordered result set.
type Page[T any] struct {
	Items    []T
	Number   int
	NumPages int
	Count    int
	PerPage  int
}

func (p Page[T]) HasPrevious() bool { return p.Number > 1 }
func (p Page[T]) HasNext() bool     { return p.Number < p.NumPages }
func (p Page[T]) PreviousNumber() int {
	return p.Number - 1
}
func (p Page[T]) NextNumber() int {
	return p.Number + 1
}

// Pages lists page numbers 1..NumPages for navigation.
func (p Page[T]) Pages() []int {
	out := make([]int, p.NumPages)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// NumPages returns how many pages count items occupy. An empty set still has one page.
func NumPages(count, perPage int) int {
	if count <= 0 || perPage <= 0 {
		return 1
	}
	return (count + perPage - 1) / perPage
}

// Number resolves a raw "page" query value. A missing or non-numeric value
// is page 1; anything outside 1..numPages is the last page.
func Number(raw string, numPages int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	if n < 1 || n > numPages {
		return numPages
	}
	return n
}

// CountFunc returns the total size of the result set.
type CountFunc func(ctx context.Context) (int, error)

// ListFunc returns at most limit items starting at offset.
type ListFunc[T any] func(ctx context.Context, limit, offset int) ([]T, error)

// Load paginates a result set held by the store: it counts first, resolves
// the page number, then fetches only that page.
func Load[T any](ctx context.Context, raw string, perPage int, count CountFunc, list ListFunc[T]) (Page[T], error) {
	total, err := count(ctx)
	if err != nil {
		return Page[T]{}, err
	}
	numPages := NumPages(total, perPage)
	number := Number(raw, numPages)

	items, err := list(ctx, perPage, (number-1)*perPage)
	if err != nil {
		return Page[T]{}, err
	}
	return Page[T]{
		Items:    items,
		Number:   number,
		NumPages: numPages,
		Count:    total,
		PerPage:  perPage,
	}, nil
}
