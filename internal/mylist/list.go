// Package mylist keeps the viewer's ordered set of saved movie ids, either
// in a browser cookie or in the user_movies table.
package mylist

import (
	"context"
	"slices"
)

// Storage loads and saves a whole list
type Storage interface {
	Load(ctx context.Context) ([]int64, error)
	Save(ctx context.Context, ids []int64) error
}

// List is an ordered set of movie ids; insertion order is kept
type List struct {
	storage Storage
}

// NewList creates a List over storage
func NewList(storage Storage) *List {
	return &List{storage: storage}
}

// IDs returns the saved ids in insertion order
func (l *List) IDs(ctx context.Context) ([]int64, error) {
	ids, err := l.storage.Load(ctx)
	if err != nil {
		return nil, err
	}
	return dedupe(ids), nil
}

// Contains reports whether id is saved
func (l *List) Contains(ctx context.Context, id int64) (bool, error) {
	ids, err := l.IDs(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, id), nil
}

// Add appends id; it reports false when id was already saved
func (l *List) Add(ctx context.Context, id int64) (bool, error) {
	ids, err := l.IDs(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, id) {
		return false, nil
	}
	if err := l.storage.Save(ctx, append(ids, id)); err != nil {
		return false, err
	}
	return true, nil
}

// Remove drops id; it reports false when id was not saved
func (l *List) Remove(ctx context.Context, id int64) (bool, error) {
	ids, err := l.IDs(ctx)
	if err != nil {
		return false, err
	}
	i := slices.Index(ids, id)
	if i < 0 {
		return false, nil
	}
	if err := l.storage.Save(ctx, slices.Delete(ids, i, i+1)); err != nil {
		return false, err
	}
	return true, nil
}

// dedupe keeps the first occurrence of every positive id
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
