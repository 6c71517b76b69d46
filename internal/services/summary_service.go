package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parcelas/internal/cache"
	"parcelas/internal/core"
)

// MonthReader is the storage view the summary needs.
type MonthReader interface {
	QueryExpensesByMonth(ctx context.Context, monthKey string) ([]core.MonthlyExpense, error)
}

// SummaryService computes month summaries and keeps the recent ones cached.
type SummaryService struct {
	store MonthReader
	cache *cache.LRUCache[core.MonthSummary]
}

func NewSummaryService(store MonthReader, cacheSize int, ttl time.Duration) *SummaryService {
	return &SummaryService{
		store: store,
		cache: cache.NewLRUCache[core.MonthSummary](cacheSize, ttl),
	}
}

// Cache exposes the summary cache so it can be registered for cleanup.
func (s *SummaryService) Cache() *cache.LRUCache[core.MonthSummary] {
	return s.cache
}

// MonthSummary returns the summary of monthKey, from cache when the cached
// copy is still current.
func (s *SummaryService) MonthSummary(ctx context.Context, monthKey string) (core.MonthSummary, error) {
	if _, _, err := core.ParseMonthKey(monthKey); err != nil {
		return core.MonthSummary{}, err
	}
	if cached, ok := s.cache.Get(monthKey); ok {
		slog.DebugContext(ctx, "Month summary served from cache", "month", monthKey)
		return cached, nil
	}

	// A write that commits while the query runs purges the cache; the
	// generation check keeps this result from being stored after that purge.
	gen := s.cache.Generation()
	items, err := s.store.QueryExpensesByMonth(ctx, monthKey)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("query month %s: %w", monthKey, err)
	}
	summary := Summarize(monthKey, items)
	if !s.cache.SetIfCurrent(monthKey, summary, gen) {
		slog.DebugContext(ctx, "Month summary not cached, data changed during query", "month", monthKey)
	}
	return summary, nil
}

// Invalidate drops every cached summary.
func (s *SummaryService) Invalidate() {
	s.cache.Purge()
}
