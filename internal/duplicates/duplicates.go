// Package duplicates reports questions and answers that appear more than once
// across card sets.
package duplicates

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/conorfennell/flashdeck/internal/cardkey"
	"github.com/conorfennell/flashdeck/internal/domain"
)

// Loader loads the cards of a set.
type Loader interface {
	Load(set string) ([]domain.Card, error)
}

// Occurrence is one row holding a duplicated question or answer.
type Occurrence struct {
	Set string
	// Line is the 1-based row number in the set file.
	Line     int
	Question string
	Answer   string
}

// Group collects the occurrences sharing a key.
type Group struct {
	Key         string
	Occurrences []Occurrence
}

// AcrossSets reports whether the group spans more than one set.
func (g Group) AcrossSets() bool {
	for _, o := range g.Occurrences[1:] {
		if o.Set != g.Occurrences[0].Set {
			return true
		}
	}
	return false
}

// Sets returns the distinct sets of the group, sorted.
func (g Group) Sets() []string {
	seen := make(map[string]bool)
	var sets []string
	for _, o := range g.Occurrences {
		if !seen[o.Set] {
			seen[o.Set] = true
			sets = append(sets, o.Set)
		}
	}
	sort.Strings(sets)
	return sets
}

// Report holds duplicate groups keyed by question and by answer alternative.
type Report struct {
	ByQuestion   []Group
	ByAnswerPart []Group
	Skipped      []string
}

// Scan reads every set and groups rows by trimmed question text and by each
// normalized answer alternative. A row joins an answer group at most once.
// Sets that cannot be read are skipped.
func Scan(loader Loader, sets []string, logger *slog.Logger) Report {
	if logger == nil {
		logger = slog.Default()
	}

	byQuestion := make(map[string][]Occurrence)
	byAnswer := make(map[string][]Occurrence)
	var skipped []string

	for _, set := range sets {
		cards, err := loader.Load(set)
		if err != nil {
			logger.Warn("Skipping unreadable set", "set", set, "error", err)
			skipped = append(skipped, set)
			continue
		}
		for i, c := range cards {
			q := strings.TrimSpace(c.Question)
			a := strings.TrimSpace(c.Answer)
			if q == "" && a == "" {
				continue
			}
			occ := Occurrence{Set: set, Line: i + 1, Question: q, Answer: a}
			if q != "" {
				byQuestion[q] = append(byQuestion[q], occ)
			}
			seen := make(map[string]bool)
			for _, part := range cardkey.AnswerParts(a) {
				if seen[part] {
					continue
				}
				seen[part] = true
				byAnswer[part] = append(byAnswer[part], occ)
			}
		}
	}

	return Report{
		ByQuestion:   groups(byQuestion),
		ByAnswerPart: groups(byAnswer),
		Skipped:      skipped,
	}
}

// groups keeps keys seen more than once, most frequent first, then by key.
func groups(m map[string][]Occurrence) []Group {
	var out []Group
	for key, occs := range m {
		if len(occs) > 1 {
			out = append(out, Group{Key: key, Occurrences: occs})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Occurrences) != len(out[j].Occurrences) {
			return len(out[i].Occurrences) > len(out[j].Occurrences)
		}
		return out[i].Key < out[j].Key
	})
	return out
}
