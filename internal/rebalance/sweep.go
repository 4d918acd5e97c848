// Package rebalance pulls schedules that drifted past the maximum horizon back to it.
package rebalance

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// Horizon is the furthest a review may be scheduled ahead of now.
const Horizon = domain.MaxIntervalHours * time.Hour

// Store loads and replaces the cards of a set.
type Store interface {
	Load(set string) ([]domain.Card, error)
	ReplaceAll(set string, cards []domain.Card) error
}

// Sweeper clamps schedules across sets.
type Sweeper struct {
	store  Store
	logger *slog.Logger
}

// NewSweeper returns a sweeper over the store.
func NewSweeper(store Store, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, logger: logger}
}

// Sweep clamps every scheduled row due later than now plus the horizon to exactly
// that time with the maximum interval. Only sets with changed rows are rewritten and
// the result maps each of them to its number of changed rows. Running it again
// changes nothing. A failing set is reported in the error and the others proceed.
func (s *Sweeper) Sweep(sets []string, now time.Time) (map[string]int, error) {
	limit := now.Add(Horizon).Truncate(time.Second)
	changed := make(map[string]int)
	var errs []error

	for _, set := range sets {
		cards, err := s.store.Load(set)
		if err != nil {
			s.logger.Warn("Skipping set during sweep", "set", set, "error", err)
			errs = append(errs, fmt.Errorf("set %q: %w", set, err))
			continue
		}

		n := clamp(cards, limit)
		if n == 0 {
			continue
		}
		if err := s.store.ReplaceAll(set, cards); err != nil {
			s.logger.Warn("Failed to write swept set", "set", set, "error", err)
			errs = append(errs, fmt.Errorf("set %q: %w", set, err))
			continue
		}
		s.logger.Info("Clamped schedules", "set", set, "rows", n)
		changed[set] = n
	}

	return changed, errors.Join(errs...)
}

func clamp(cards []domain.Card, limit time.Time) int {
	n := 0
	for i := range cards {
		s := cards[i].Schedule
		if s == nil || !s.NextReviewAt.After(limit) {
			continue
		}
		s.NextReviewAt = limit
		s.IntervalHours = domain.MaxIntervalHours
		n++
	}
	return n
}
