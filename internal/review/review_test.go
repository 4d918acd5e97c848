package review

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/conorfennell/flashdeck/internal/cardkey"
	"github.com/conorfennell/flashdeck/internal/cardset"
	"github.com/conorfennell/flashdeck/internal/category"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/storage"
)

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)

func setup(t *testing.T, files map[string]string) (*cardset.Store, *storage.DB) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fsys, "/data/"+name+cardset.FileSuffix, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	db, err := storage.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return cardset.New(fsys, "/data"), db
}

func TestAnswer(t *testing.T) {
	store, db := setup(t, map[string]string{"hsk": "一,one\n七,seven,3,1,4\n"})
	svc := NewService(store, db, nil)

	card, err := svc.Answer("hsk", "七", "", true, now)
	if err != nil {
		t.Fatalf("Answer() returned an unexpected error: %v", err)
	}
	if card.CorrectCount != 4 || card.ReviewedCount != 5 {
		t.Errorf("Expected counts 4/5, but got %d/%d", card.CorrectCount, card.ReviewedCount)
	}
	if card.Schedule == nil || card.Schedule.IntervalHours != 1 {
		t.Errorf("Expected first ladder step, but got %+v", card.Schedule)
	}

	cards, _ := store.Load("hsk")
	if cards[1].Schedule == nil || cards[1].CorrectCount != 4 {
		t.Errorf("Expected answer persisted, but got %+v", cards[1])
	}
	if cards[0].HasStats {
		t.Errorf("Expected other rows untouched, but got %+v", cards[0])
	}

	reviews, err := db.ReviewsBySet("hsk", 0)
	if err != nil {
		t.Fatalf("ReviewsBySet() returned an unexpected error: %v", err)
	}
	if len(reviews) != 1 || reviews[0].CardHash != cardkey.Hash("七", "seven") || !reviews[0].Correct {
		t.Errorf("Expected one journaled review, but got %+v", reviews)
	}
}

func TestAnswerNotFound(t *testing.T) {
	store, _ := setup(t, map[string]string{"hsk": "七,seven,3,1,4\n"})
	svc := NewService(store, nil, nil)

	if _, err := svc.Answer("hsk", "七", "7", true, now); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("Expected ErrCardNotFound for a different answer, but got %v", err)
	}
	if _, err := svc.Answer("hsk", "八", "", true, now); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("Expected ErrCardNotFound for a missing question, but got %v", err)
	}
}

func TestAnswerCombined(t *testing.T) {
	store, db := setup(t, map[string]string{
		"A": "七,seven,3,1,4\n",
		"B": "八,eight,0,0,0\n七,seven,2,0,2\n",
	})
	svc := NewService(store, db, nil)
	view := category.NewAggregator(store, nil).Build(category.Category{Name: "hsk", Sets: []string{"A", "B"}})

	card, err := svc.AnswerCombined(view, 0, false, now)
	if err != nil {
		t.Fatalf("AnswerCombined() returned an unexpected error: %v", err)
	}
	if card.IncorrectCount != 2 || card.ReviewedCount != 7 {
		t.Errorf("Expected combined counts 2/7, but got %d/%d", card.IncorrectCount, card.ReviewedCount)
	}
	if view.Cards[0].ReviewedCount != 7 {
		t.Errorf("Expected the view to hold the updated card, but got %+v", view.Cards[0])
	}

	a, _ := store.Load("A")
	b, _ := store.Load("B")
	for _, c := range []domain.Card{a[0], b[1]} {
		if c.IncorrectCount != 2 || c.Schedule == nil || c.Schedule.Repetitions != 0 {
			t.Errorf("Expected every copy of '七' updated, but got %+v", c)
		}
	}
	if b[0].ReviewedCount != 0 {
		t.Errorf("Expected '八' untouched, but got %+v", b[0])
	}

	summary, _ := db.SummaryBySet("A")
	if summary.Total != 1 {
		t.Errorf("Expected the review journaled against the primary set, but got %+v", summary)
	}

	if _, err := svc.AnswerCombined(view, 5, true, now); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("Expected ErrCardNotFound for an out of range index, but got %v", err)
	}
}

func TestAnswerCombinedWritesOnlyAnsweredCard(t *testing.T) {
	store, db := setup(t, map[string]string{
		"A": "七,seven,3,1,4\n八,eight,1,0,1\n",
		"B": "七,seven,2,0,2\n",
	})
	svc := NewService(store, db, nil)
	c := category.Category{Name: "hsk", Sets: []string{"A", "B"}}

	for i := 0; i < 2; i++ {
		view := category.NewAggregator(store, nil).Build(c)
		index := -1
		for j, card := range view.Cards {
			if card.Question == "八" {
				index = j
			}
		}
		if index < 0 {
			t.Fatalf("Expected '八' in the combined view, but got %+v", view.Cards)
		}
		if _, err := svc.AnswerCombined(view, index, true, now); err != nil {
			t.Fatalf("AnswerCombined() returned an unexpected error: %v", err)
		}
	}

	a, _ := store.Load("A")
	b, _ := store.Load("B")
	testCases := []struct {
		name     string
		card     domain.Card
		correct  int
		reviewed int
	}{
		{name: "A 七", card: a[0], correct: 3, reviewed: 4},
		{name: "B 七", card: b[0], correct: 2, reviewed: 2},
		{name: "A 八", card: a[1], correct: 3, reviewed: 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.card.CorrectCount != tc.correct || tc.card.ReviewedCount != tc.reviewed {
				t.Errorf("Expected counts %d/%d, but got %d/%d", tc.correct, tc.reviewed, tc.card.CorrectCount, tc.card.ReviewedCount)
			}
		})
	}
	if a[0].Schedule != nil || b[0].Schedule != nil {
		t.Errorf("Expected '七' left unscheduled, but got %+v and %+v", a[0].Schedule, b[0].Schedule)
	}
}

func TestAnswerConcurrent(t *testing.T) {
	store, db := setup(t, map[string]string{"hsk": "七,seven,3,1,4\n八,eight,0,0,0\n"})
	svc := NewService(store, db, nil)

	const answers = 20
	var wg sync.WaitGroup
	for i := 0; i < answers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			question := "七"
			if i%2 == 1 {
				question = "八"
			}
			if _, err := svc.Answer("hsk", question, "", true, now); err != nil {
				t.Errorf("Answer() returned an unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	cards, err := store.Load("hsk")
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cards[0].ReviewedCount != 4+answers/2 || cards[1].ReviewedCount != answers/2 {
		t.Errorf("Expected every answer persisted, but got %d and %d reviews", cards[0].ReviewedCount, cards[1].ReviewedCount)
	}

	summary, _ := db.SummaryBySet("hsk")
	if summary.Total != answers {
		t.Errorf("Expected %d journaled reviews, but got %d", answers, summary.Total)
	}
}

func TestAnswerCategory(t *testing.T) {
	store, db := setup(t, map[string]string{
		"A": "七,seven,3,1,4\n",
		"B": "七,seven,2,0,2\n",
	})
	svc := NewService(store, db, nil)

	card, view, err := svc.AnswerCategory(category.Category{Name: "hsk", Sets: []string{"A", "B"}}, 0, true, now)
	if err != nil {
		t.Fatalf("AnswerCategory() returned an unexpected error: %v", err)
	}
	if card.ReviewedCount != 7 || len(view.Provenance[0]) != 2 {
		t.Errorf("Expected the combined card answered across both sets, but got %+v from %v", card, view.Provenance[0])
	}
	if _, _, err := svc.AnswerCategory(category.Category{Name: "empty"}, 0, true, now); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("Expected ErrCardNotFound for an empty category, but got %v", err)
	}
}
