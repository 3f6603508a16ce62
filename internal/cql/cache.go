package cql

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes parse results keyed by raw filter text. Parsed expressions
// are immutable so sharing them between requests is safe. Parse failures are
// cached too; repeated bad filters are common with misbehaving clients.
type Cache struct {
	lru *lru.Cache[string, cached]
}

type cached struct {
	expr Expr
	err  error
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 256
	}
	l, err := lru.New[string, cached](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

func (c *Cache) Parse(text string) (Expr, error) {
	if v, ok := c.lru.Get(text); ok {
		return v.expr, v.err
	}
	expr, err := Parse(text)
	c.lru.Add(text, cached{expr: expr, err: err})
	return expr, err
}
