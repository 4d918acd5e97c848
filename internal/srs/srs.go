package srs

import (
	"math"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// Quality scores for a binary answer.
const (
	Forgotten = 0
	Recalled  = 5
)

// Params holds the parameters of the scheduler.
type Params struct {
	// Ladder gives the interval in hours for each of the first correct repetitions.
	Ladder           []int
	MinEasiness      float64
	MaxIntervalHours int
}

// DefaultParams returns the schedule every existing session history was built with:
// 1h, 4h, 12h, 1d, 3d, 7d, then growth by easiness capped at a week.
func DefaultParams() *Params {
	return &Params{
		Ladder:           []int{1, 4, 12, 24, 72, 168},
		MinEasiness:      domain.MinEasiness,
		MaxIntervalHours: domain.MaxIntervalHours,
	}
}

var defaultParams = DefaultParams()

// Advance computes the schedule after answering a card with the default parameters.
func Advance(state domain.ScheduleState, correct bool, now time.Time) domain.ScheduleState {
	return defaultParams.Advance(state, correct, now)
}

// Advance computes the schedule after answering a card. It accepts any state and
// always returns one within the easiness and interval bounds.
func (p *Params) Advance(state domain.ScheduleState, correct bool, now time.Time) domain.ScheduleState {
	q := Forgotten
	if correct {
		q = Recalled
	}

	next := domain.ScheduleState{
		Easiness: p.nextEasiness(state.Easiness, q),
	}

	if correct {
		if state.Repetitions >= 0 && state.Repetitions < len(p.Ladder) {
			next.IntervalHours = p.Ladder[state.Repetitions]
		} else {
			next.IntervalHours = int(math.Round(float64(state.IntervalHours) * next.Easiness))
		}
		next.Repetitions = max(state.Repetitions, 0) + 1
	} else {
		next.IntervalHours = 1
		next.Repetitions = 0
	}

	next.IntervalHours = min(max(next.IntervalHours, 0), p.MaxIntervalHours)
	next.NextReviewAt = now.Add(time.Duration(next.IntervalHours) * time.Hour).Truncate(time.Second)
	return next
}

// nextEasiness applies the two-factor easiness update for quality q, rounded to
// two decimals as it is stored.
func (p *Params) nextEasiness(easiness float64, q int) float64 {
	if math.IsNaN(easiness) || math.IsInf(easiness, 0) {
		easiness = domain.DefaultEasiness
	}
	miss := float64(5 - q)
	e := easiness + 0.1 - miss*(0.08+miss*0.02)
	e = math.Round(e*100) / 100
	return math.Max(p.MinEasiness, e)
}

// Review records an answer on the card: it bumps the answer counters and advances
// the schedule. The returned card is a copy.
func (p *Params) Review(card domain.Card, correct bool, now time.Time) domain.Card {
	out := card.Clone()
	out.HasStats = true
	if correct {
		out.CorrectCount++
	} else {
		out.IncorrectCount++
	}
	out.ReviewedCount++
	state := p.Advance(card.StateOrDefault(), correct, now)
	out.Schedule = &state
	return out
}

// Review records an answer on the card with the default parameters.
func Review(card domain.Card, correct bool, now time.Time) domain.Card {
	return defaultParams.Review(card, correct, now)
}
