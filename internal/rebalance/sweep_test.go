package rebalance

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

func newStore(t *testing.T, files map[string]string) (*cardset.Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fsys, "/data/"+name+cardset.FileSuffix, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return cardset.New(fsys, "/data"), fsys
}

func TestSweep(t *testing.T) {
	far := record.FormatTime(now.AddDate(0, 1, 0))
	near := record.FormatTime(now.Add(48 * time.Hour))
	store, fsys := newStore(t, map[string]string{
		"drifted": "a,1,1,0,1,3.0,720,8," + far + "\n" +
			"b,2,1,0,1,2.5,48,4," + near + "\n" +
			"c,3,0,0,0\n" +
			"d,4,1,0,1,2.5,1,1,2099-01-01\n",
		"fine":    "e,5,1,0,1,2.5,48,4," + near + "\n",
		"garbage": "f,6,1,0,1,2.5,4,2,not a date\n",
	})
	before, _ := afero.ReadFile(fsys, "/data/fine"+cardset.FileSuffix)

	sweeper := NewSweeper(store, nil)
	changed, err := sweeper.Sweep([]string{"drifted", "fine", "garbage"}, now)
	if err != nil {
		t.Fatalf("Sweep() returned an unexpected error: %v", err)
	}
	if len(changed) != 1 || changed["drifted"] != 2 {
		t.Errorf("Expected 2 changed rows in 'drifted' only, but got %v", changed)
	}

	cards, _ := store.Load("drifted")
	limit := now.Add(Horizon)
	for _, i := range []int{0, 3} {
		s := cards[i].Schedule
		if !s.NextReviewAt.Equal(limit) || s.IntervalHours != domain.MaxIntervalHours {
			t.Errorf("Row %d: expected clamp to %v at 168h, but got %v at %dh", i, limit, s.NextReviewAt, s.IntervalHours)
		}
	}
	if cards[1].Schedule.IntervalHours != 48 {
		t.Errorf("Expected row within the horizon untouched, but got %+v", cards[1].Schedule)
	}
	if cards[0].Schedule.Easiness != 3.0 || cards[0].Schedule.Repetitions != 8 {
		t.Errorf("Expected only time and interval to change, but got %+v", cards[0].Schedule)
	}

	after, _ := afero.ReadFile(fsys, "/data/fine"+cardset.FileSuffix)
	if string(before) != string(after) {
		t.Error("Expected unchanged set not to be rewritten")
	}
}

func TestSweepIdempotent(t *testing.T) {
	far := record.FormatTime(now.AddDate(1, 0, 0))
	store, _ := newStore(t, map[string]string{"s": "a,1,1,0,1,2.5,168,9," + far + "\n"})
	sweeper := NewSweeper(store, nil)

	first, err := sweeper.Sweep([]string{"s"}, now)
	if err != nil || first["s"] != 1 {
		t.Fatalf("Expected first sweep to change 1 row, but got %v, %v", first, err)
	}

	for _, later := range []time.Time{now, now.Add(500 * time.Millisecond), now.Add(time.Minute)} {
		second, err := sweeper.Sweep([]string{"s"}, later)
		if err != nil {
			t.Fatalf("Sweep() returned an unexpected error: %v", err)
		}
		if len(second) != 0 {
			t.Errorf("Expected no changes on a repeated sweep, but got %v", second)
		}
	}
}

type readOnly struct {
	Store
}

func (readOnly) ReplaceAll(string, []domain.Card) error { return errors.New("read-only") }

func TestSweepReportsWriteFailure(t *testing.T) {
	far := record.FormatTime(now.AddDate(1, 0, 0))
	store, _ := newStore(t, map[string]string{"s": "a,1,1,0,1,2.5,168,9," + far + "\n"})

	changed, err := NewSweeper(readOnly{store}, nil).Sweep([]string{"s"}, now)
	if err == nil {
		t.Error("Expected the write failure to be reported")
	}
	if len(changed) != 0 {
		t.Errorf("Expected no sets reported as changed, but got %v", changed)
	}
}
