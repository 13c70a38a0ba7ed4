package docstore

import (
	"context"
	"errors"
)

// Page is one page of a listing or query.
type Page[T any] struct {
	Items []T
	// RequestCharge is the store-reported cost of the page, if any.
	RequestCharge float64
	// Metrics is the store's opaque per-page execution report, if any.
	Metrics string
}

// Pager yields successive pages. A Pager is finite and cannot be restarted;
// page N+1 must not be requested before page N has been consumed.
type Pager[T any] interface {
	More() bool
	NextPage(ctx context.Context) (Page[T], error)
}

// ErrPagerExhausted is returned by NextPage after the last page.
var ErrPagerExhausted = errors.New("pager exhausted")

// Drain consumes every page of p in order, calling fn for each. It checks
// ctx before requesting each page so an unbounded listing can be abandoned.
func Drain[T any](ctx context.Context, op string, p Pager[T], fn func(Page[T]) error) error {
	for p.More() {
		if err := ctx.Err(); err != nil {
			return &Error{Kind: KindCancelled, Op: op, Err: err}
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			return Wrap(op, err)
		}
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

// Collect drains p and returns every item.
func Collect[T any](ctx context.Context, op string, p Pager[T]) ([]T, error) {
	out := []T{}
	err := Drain(ctx, op, p, func(page Page[T]) error {
		out = append(out, page.Items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SlicePager pages over a precomputed slice. It is useful for backends
// that materialize results up front.
type SlicePager[T any] struct {
	items    []T
	pageSize int
	pos      int
	done     bool
	// Metrics is attached to every page.
	Metrics string
}

// NewSlicePager returns a pager over items in pages of pageSize (all at
// once when pageSize <= 0). An empty slice still yields one empty page.
func NewSlicePager[T any](items []T, pageSize int) *SlicePager[T] {
	if pageSize <= 0 {
		pageSize = len(items)
	}
	return &SlicePager[T]{items: items, pageSize: pageSize}
}

// More reports whether another page is available.
func (p *SlicePager[T]) More() bool {
	return !p.done
}

// NextPage returns the next page.
func (p *SlicePager[T]) NextPage(ctx context.Context) (Page[T], error) {
	if p.done {
		return Page[T]{}, ErrPagerExhausted
	}
	if err := ctx.Err(); err != nil {
		return Page[T]{}, err
	}
	end := p.pos + p.pageSize
	if end > len(p.items) || p.pageSize == 0 {
		end = len(p.items)
	}
	page := Page[T]{Items: p.items[p.pos:end], Metrics: p.Metrics}
	p.pos = end
	if p.pos >= len(p.items) {
		p.done = true
	}
	return page, nil
}

// ErrPager is a pager whose first page fails with err.
type ErrPager[T any] struct {
	Err  error
	done bool
}

func (p *ErrPager[T]) More() bool { return !p.done }

func (p *ErrPager[T]) NextPage(context.Context) (Page[T], error) {
	p.done = true
	return Page[T]{}, p.Err
}
