// Package review applies answers to cards and persists the result.
package review

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/flashdeck/internal/cardkey"
	"github.com/conorfennell/flashdeck/internal/category"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/srs"
)

// ErrCardNotFound is returned when no row matches the answered card.
var ErrCardNotFound = errors.New("card not found")

// Store loads and replaces the cards of a set.
type Store interface {
	Load(set string) ([]domain.Card, error)
	ReplaceAll(set string, cards []domain.Card) error
}

// Journal records answered reviews.
type Journal interface {
	InsertReview(r domain.ReviewLog) (int64, error)
}

// Service answers cards in single sets and in category views. Answers are
// serialized, so concurrent callers never overwrite each other's rows.
type Service struct {
	mu         sync.Mutex
	store      Store
	journal    Journal
	aggregator *category.Aggregator
	params     *srs.Params
	logger     *slog.Logger
}

// NewService returns a service writing through store. The journal may be nil.
func NewService(store Store, journal Journal, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		journal:    journal,
		aggregator: category.NewAggregator(store, logger),
		params:     srs.DefaultParams(),
		logger:     logger,
	}
}

// Answer records an answer on the first row of set matching question, and answer
// too when it is not empty. The whole set is written back.
func (s *Service) Answer(set, question, answer string, correct bool, now time.Time) (domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.store.Load(set)
	if err != nil {
		return domain.Card{}, err
	}

	row := -1
	for i, c := range cards {
		if c.Question == question && (answer == "" || c.Answer == answer) {
			row = i
			break
		}
	}
	if row < 0 {
		return domain.Card{}, fmt.Errorf("%w: %q in set %q", ErrCardNotFound, question, set)
	}

	updated := s.params.Review(cards[row], correct, now)
	cards[row] = updated
	if err := s.store.ReplaceAll(set, cards); err != nil {
		return domain.Card{}, err
	}

	s.logger.Debug("Answered card", "set", set, "row", row, "correct", correct, "interval_hours", updated.Schedule.IntervalHours)
	s.record(set, updated, correct, now)
	return updated, nil
}

// AnswerCombined records an answer on card index of a category view and writes it
// to every row the card came from. Only that card's rows are written; the other
// combined cards stay as they are on disk. The view is updated in place.
func (s *Service) AnswerCombined(view *category.View, index int, correct bool, now time.Time) (domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answerCombined(view, index, correct, now)
}

// AnswerCategory builds the view of c and answers its card index. Building and
// writing happen under one lock, so the counters written back are never stale.
func (s *Service) AnswerCategory(c category.Category, index int, correct bool, now time.Time) (domain.Card, *category.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.aggregator.Build(c)
	card, err := s.answerCombined(view, index, correct, now)
	return card, view, err
}

func (s *Service) answerCombined(view *category.View, index int, correct bool, now time.Time) (domain.Card, error) {
	if index < 0 || index >= len(view.Cards) {
		return domain.Card{}, fmt.Errorf("%w: combined index %d of %d", ErrCardNotFound, index, len(view.Cards))
	}

	answered := s.params.Review(view.Cards[index], correct, now)
	single := &category.View{
		Cards:      []domain.Card{answered},
		Provenance: [][]category.Source{view.Provenance[index]},
	}
	err := s.aggregator.WriteBack(single, single.Cards)
	view.Cards[index] = answered
	if err != nil {
		return answered, err
	}

	set := view.Provenance[index][0].Set
	s.record(set, answered, correct, now)
	return answered, nil
}

// record journals the review. A journal failure is logged; the set write stands.
func (s *Service) record(set string, card domain.Card, correct bool, now time.Time) {
	if s.journal == nil {
		return
	}
	entry := domain.ReviewLog{
		CardHash:   cardkey.Hash(card.Question, card.Answer),
		Set:        set,
		Question:   card.Question,
		Correct:    correct,
		Schedule:   *card.Schedule,
		ReviewedAt: now,
	}
	if _, err := s.journal.InsertReview(entry); err != nil {
		s.logger.Warn("Failed to journal review", "set", set, "error", err)
	}
}
