package store

import (
	"context"
	"sort"
	"sync"

	"weatherfav/internal/favorites"
	"weatherfav/internal/weather"
)

// Memory is a concurrency-safe in-process repository.
type Memory struct {
	mu   sync.RWMutex
	recs map[string]favorites.Record
}

func NewMemory() *Memory {
	return &Memory{recs: make(map[string]favorites.Record)}
}

func (m *Memory) Create(_ context.Context, rec favorites.Record) (favorites.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.recs[rec.ID]; ok {
		return favorites.Record{}, favorites.ErrDuplicate
	}

	next := 0
	for _, r := range m.recs {
		if r.SortOrder != nil && *r.SortOrder >= next {
			next = *r.SortOrder + 1
		}
	}
	out := rec.Clone()
	out.SortOrder = &next
	m.recs[out.ID] = out
	return out.Clone(), nil
}

func (m *Memory) FetchOrdered(_ context.Context) ([]favorites.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]favorites.Record, 0, len(m.recs))
	for _, r := range m.recs {
		result = append(result, r.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].SortOrder, result[j].SortOrder
		switch {
		case a == nil && b == nil:
			return result[i].ID < result[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a < *b
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) DeleteByIdentifier(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	return nil
}

// RewriteSortOrder holds the lock for the whole rewrite so readers never see
// a partial order.
func (m *Memory) RewriteSortOrder(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, id := range ids {
		r, ok := m.recs[id]
		if !ok {
			continue
		}
		pos := i
		r.SortOrder = &pos
		m.recs[id] = r
	}
	return nil
}

func (m *Memory) UpdateWeather(_ context.Context, id string, report weather.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.recs[id]
	if !ok {
		return favorites.ErrNotFound
	}
	r.Weather = &report
	m.recs[id] = r.Clone()
	return nil
}
