// Package category merges the card sets of a category into one deduplicated view
// and writes answered cards back to every row they came from.
package category

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/conorfennell/flashdeck/internal/domain"
)

var (
	// ErrLengthMismatch is returned when the updated cards do not line up with the view.
	ErrLengthMismatch = errors.New("updated cards do not match the view")
	// ErrStaleView is returned when a set no longer has a row the view points at.
	ErrStaleView = errors.New("view is stale")
)

// Loader loads the cards of a set.
type Loader interface {
	Load(set string) ([]domain.Card, error)
}

// Store loads and replaces the cards of a set.
type Store interface {
	Loader
	ReplaceAll(set string, cards []domain.Card) error
}

// Category is a named group of sets practiced together.
type Category struct {
	Name string
	Sets []string
}

// Members returns the sets whose identity starts with one of the prefixes, sorted.
func Members(prefixes, sets []string) []string {
	var out []string
	for _, set := range sets {
		for _, prefix := range prefixes {
			if strings.HasPrefix(set, prefix) {
				out = append(out, set)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Source is one physical row a combined card was built from.
type Source struct {
	Set string
	Row int
}

// SkippedSet is a member set left out of a view because it could not be loaded.
type SkippedSet struct {
	Set string
	Err error
}

// View is a transient, deduplicated projection of a category's sets.
type View struct {
	Cards []domain.Card
	// Provenance lists, per combined card, the rows it came from. The first
	// entry is the primary row, the rest are duplicates.
	Provenance [][]Source
	Skipped    []SkippedSet
}

// Aggregator builds and writes back combined views.
type Aggregator struct {
	store  Store
	logger *slog.Logger
}

// NewAggregator returns an aggregator over the store.
func NewAggregator(store Store, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: store, logger: logger}
}

// Build merges the category's sets in lexicographic order of their identities.
// Cards are keyed by question text only; repeated questions add their counters onto
// the first occurrence. Rows without statistics are skipped, and so are sets that
// fail to load.
func (a *Aggregator) Build(c Category) *View {
	sets := append([]string(nil), c.Sets...)
	sort.Strings(sets)

	view := &View{}
	seen := make(map[string]int)

	for _, set := range sets {
		cards, err := a.store.Load(set)
		if err != nil {
			a.logger.Warn("Skipping set in category", "category", c.Name, "set", set, "error", err)
			view.Skipped = append(view.Skipped, SkippedSet{Set: set, Err: err})
			continue
		}

		for row, card := range cards {
			if !card.HasStats {
				continue
			}
			src := Source{Set: set, Row: row}

			if i, ok := seen[card.Question]; ok {
				primary := &view.Cards[i]
				primary.CorrectCount += card.CorrectCount
				primary.IncorrectCount += card.IncorrectCount
				primary.ReviewedCount += card.ReviewedCount
				view.Provenance[i] = append(view.Provenance[i], src)
				continue
			}

			seen[card.Question] = len(view.Cards)
			view.Cards = append(view.Cards, card.Clone())
			view.Provenance = append(view.Provenance, []Source{src})
		}
	}

	a.logger.Debug("Built category view", "category", c.Name, "sets", len(sets), "cards", len(view.Cards))
	return view
}

// WriteBackError lists the sets whose write-back failed. Sets not listed were written.
type WriteBackError struct {
	Failed map[string]error
}

func (e *WriteBackError) Error() string {
	sets := make([]string, 0, len(e.Failed))
	for set := range e.Failed {
		sets = append(sets, set)
	}
	sort.Strings(sets)

	parts := make([]string, len(sets))
	for i, set := range sets {
		parts[i] = fmt.Sprintf("%s: %v", set, e.Failed[set])
	}
	return "failed to write back sets: " + strings.Join(parts, "; ")
}

func (e *WriteBackError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// WriteBack writes updated[i] unchanged into every row listed in the view's
// provenance for combined card i. Each affected set is reloaded, overlaid at the
// listed rows only, and replaced once. A failing set does not stop the others and
// sets already written stay written.
func (a *Aggregator) WriteBack(view *View, updated []domain.Card) error {
	if len(updated) != len(view.Cards) {
		return fmt.Errorf("%w: %d updated cards for %d combined cards", ErrLengthMismatch, len(updated), len(view.Cards))
	}

	overlays := make(map[string]map[int]domain.Card)
	var order []string
	for i, sources := range view.Provenance {
		for _, src := range sources {
			rows, ok := overlays[src.Set]
			if !ok {
				rows = make(map[int]domain.Card)
				overlays[src.Set] = rows
				order = append(order, src.Set)
			}
			rows[src.Row] = updated[i]
		}
	}
	sort.Strings(order)

	failed := make(map[string]error)
	for _, set := range order {
		if err := a.overlay(set, overlays[set]); err != nil {
			a.logger.Warn("Failed to write back set", "set", set, "error", err)
			failed[set] = err
			continue
		}
		a.logger.Debug("Wrote back set", "set", set, "rows", len(overlays[set]))
	}

	if len(failed) > 0 {
		return &WriteBackError{Failed: failed}
	}
	return nil
}

func (a *Aggregator) overlay(set string, rows map[int]domain.Card) error {
	cards, err := a.store.Load(set)
	if err != nil {
		return err
	}
	for row, card := range rows {
		if row < 0 || row >= len(cards) {
			return fmt.Errorf("%w: set %q has %d rows, row %d requested", ErrStaleView, set, len(cards), row)
		}
		cards[row] = card.Clone()
	}
	return a.store.ReplaceAll(set, cards)
}
