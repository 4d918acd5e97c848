package due

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/conorfennell/flashdeck/internal/cardset"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/record"
)

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)

func row(q, a string, next string) string {
	return q + "," + a + ",1,0,1,2.6,1,1," + next + "\n"
}

func newStore(t *testing.T, files map[string]string) *cardset.Store {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fsys, "/data/"+name+cardset.FileSuffix, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return cardset.New(fsys, "/data")
}

func TestResolveBoundary(t *testing.T) {
	testCases := []struct {
		name     string
		next     string
		expected bool
	}{
		{name: "One second ago", next: record.FormatTime(now.Add(-time.Second)), expected: true},
		{name: "Exactly now", next: record.FormatTime(now), expected: true},
		{name: "One second ahead", next: record.FormatTime(now.Add(time.Second)), expected: false},
		{name: "Legacy date today", next: now.Format(record.DateLayout), expected: true},
		{name: "Legacy date tomorrow", next: now.AddDate(0, 0, 1).Format(record.DateLayout), expected: false},
		{name: "Unparsable date", next: "someday", expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t, map[string]string{"s": row("q", "a", tc.next)})
			resolver := NewResolver(store, nil)

			records, err := resolver.Resolve([]Candidates{{Set: "s", Cards: []domain.Card{{Question: "q", Answer: "a"}}}}, now)
			if err != nil {
				t.Fatalf("Resolve() returned an unexpected error: %v", err)
			}
			if got := len(records) == 1; got != tc.expected {
				t.Errorf("Expected due=%v, but got %d records", tc.expected, len(records))
			}
		})
	}
}

func TestResolveUsesStoredSchedule(t *testing.T) {
	store := newStore(t, map[string]string{
		"s": "q,a,0,0,0\n" + row("r", "b", "2000-01-01 00:00:00"),
	})
	resolver := NewResolver(store, nil)

	// The caller's copy claims "r" is far in the future; the stored row wins.
	stale := domain.ScheduleState{Easiness: 2.5, NextReviewAt: now.AddDate(1, 0, 0)}
	candidates := []Candidates{{Set: "s", Cards: []domain.Card{
		{Question: "q", Answer: "a"},
		{Question: "r", Answer: "b", Schedule: &stale},
		{Question: "r", Answer: "different"},
	}}}

	records, err := resolver.Resolve(candidates, now)
	if err != nil {
		t.Fatalf("Resolve() returned an unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 due record, but got %d", len(records))
	}
	rec := records[0]
	if rec.Set != "s" || rec.Row != 1 || rec.Card.Question != "r" {
		t.Errorf("Expected record for row 1 of s, but got %+v", rec)
	}
	if rec.Schedule.NextReviewAt.Year() != 2000 {
		t.Errorf("Expected the stored schedule, but got %+v", rec.Schedule)
	}
}

func TestResolveOrder(t *testing.T) {
	store := newStore(t, map[string]string{
		"a": row("x", "1", "2024-04-30 00:00:00") + row("y", "2", "2020-01-01 00:00:00"),
		"b": row("z", "3", "2024-01-01 00:00:00"),
	})
	resolver := NewResolver(store, nil)

	records, err := resolver.All([]string{"b", "a"}, now)
	if err != nil {
		t.Fatalf("All() returned an unexpected error: %v", err)
	}

	var got []string
	for _, r := range records {
		got = append(got, r.Card.Question)
	}
	expected := []string{"z", "x", "y"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %v, but got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected %v in set then row order, but got %v", expected, got)
			break
		}
	}
}

type brokenLoader struct {
	Loader
	broken string
}

func (b brokenLoader) Load(set string) ([]domain.Card, error) {
	if set == b.broken {
		return nil, errors.New("unreadable")
	}
	return b.Loader.Load(set)
}

func TestResolveSkipsBrokenSet(t *testing.T) {
	store := newStore(t, map[string]string{"ok": row("q", "a", "2020-01-01 00:00:00")})
	resolver := NewResolver(brokenLoader{Loader: store, broken: "bad"}, nil)

	records, err := resolver.Resolve([]Candidates{
		{Set: "bad", Cards: []domain.Card{{Question: "q", Answer: "a"}}},
		{Set: "ok", Cards: []domain.Card{{Question: "q", Answer: "a"}}},
	}, now)

	if err == nil {
		t.Error("Expected an error naming the broken set")
	}
	if len(records) != 1 || records[0].Set != "ok" {
		t.Errorf("Expected the record from 'ok', but got %+v", records)
	}
}
