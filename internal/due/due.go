// Package due finds the cards whose scheduled review time has come.
package due

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// Loader loads the cards of a set.
type Loader interface {
	Load(set string) ([]domain.Card, error)
}

// Candidates are the cards of one set a caller is considering for review.
type Candidates struct {
	Set   string
	Cards []domain.Card
}

// Resolver checks candidates against the schedules stored on disk.
type Resolver struct {
	loader Loader
	logger *slog.Logger
}

// NewResolver returns a resolver reading sets through loader.
func NewResolver(loader Loader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{loader: loader, logger: logger}
}

// Resolve returns a record for every candidate that is due at now, in the order of
// the sets and then of their candidates. Candidates only name the question and
// answer to look for; due-ness always comes from the set as stored. A card is due
// when any stored row with the same question and answer has a schedule due at now.
// Sets that fail to load are skipped and reported in the returned error alongside
// the records found in the others.
func (r *Resolver) Resolve(candidates []Candidates, now time.Time) ([]domain.DueRecord, error) {
	var (
		records []domain.DueRecord
		errs    []error
	)

	for _, c := range candidates {
		stored, err := r.loader.Load(c.Set)
		if err != nil {
			r.logger.Warn("Skipping set while resolving due cards", "set", c.Set, "error", err)
			errs = append(errs, fmt.Errorf("set %q: %w", c.Set, err))
			continue
		}

		for i, card := range c.Cards {
			state, ok := dueState(stored, card.Question, card.Answer, now)
			if !ok {
				continue
			}
			records = append(records, domain.DueRecord{
				Set:      c.Set,
				Row:      i,
				Card:     card,
				Schedule: state,
			})
		}
	}

	return records, errors.Join(errs...)
}

// All loads each set and resolves every one of its cards.
func (r *Resolver) All(sets []string, now time.Time) ([]domain.DueRecord, error) {
	var (
		candidates []Candidates
		errs       []error
	)
	for _, set := range sets {
		cards, err := r.loader.Load(set)
		if err != nil {
			r.logger.Warn("Skipping set while resolving due cards", "set", set, "error", err)
			errs = append(errs, fmt.Errorf("set %q: %w", set, err))
			continue
		}
		candidates = append(candidates, Candidates{Set: set, Cards: cards})
	}

	records, err := r.Resolve(candidates, now)
	return records, errors.Join(append(errs, err)...)
}

// dueState finds a stored, scheduled row matching question and answer exactly that
// is due at now. Unreadable review times were decoded as the epoch, so they are due.
func dueState(stored []domain.Card, question, answer string, now time.Time) (domain.ScheduleState, bool) {
	for _, s := range stored {
		if s.Schedule == nil || s.Question != question || s.Answer != answer {
			continue
		}
		if s.Schedule.IsDue(now) {
			return *s.Schedule, true
		}
	}
	return domain.ScheduleState{}, false
}
