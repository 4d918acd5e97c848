package domain

import "time"

// Card is one question/answer row of a card set together with its review statistics.
type Card struct {
	Question string
	Answer   string

	// HasStats reports whether the row carries the statistics columns.
	// Rows without them are legacy two-column rows and are left out of category views.
	HasStats       bool
	CorrectCount   int
	IncorrectCount int
	ReviewedCount  int

	// Schedule is nil for cards that were never reviewed.
	Schedule *ScheduleState

	// Extra holds columns beyond the ones understood for this row, written back unchanged.
	Extra []string
}

// ScheduleState holds the spaced-repetition fields of a card.
type ScheduleState struct {
	Easiness      float64
	IntervalHours int
	Repetitions   int
	NextReviewAt  time.Time
}

const (
	DefaultEasiness  = 2.5
	MinEasiness      = 1.3
	MaxIntervalHours = 168
)

// NewScheduleState returns the state of a card that has never been scheduled.
// A review time at the epoch means the card is always due.
func NewScheduleState() ScheduleState {
	return ScheduleState{
		Easiness:     DefaultEasiness,
		NextReviewAt: time.Unix(0, 0),
	}
}

// IsDue reports whether the scheduled review time has arrived at now.
func (s ScheduleState) IsDue(now time.Time) bool {
	return !s.NextReviewAt.After(now)
}

// StateOrDefault returns the card's schedule, or a fresh one when it has none.
func (c Card) StateOrDefault() ScheduleState {
	if c.Schedule == nil {
		return NewScheduleState()
	}
	return *c.Schedule
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	out := c
	if c.Schedule != nil {
		s := *c.Schedule
		out.Schedule = &s
	}
	if c.Extra != nil {
		out.Extra = append([]string(nil), c.Extra...)
	}
	return out
}

// DueRecord identifies a card that is due for review and where it lives.
type DueRecord struct {
	Set      string
	Row      int
	Card     Card
	Schedule ScheduleState
}

// ReviewLog records a single answered review of a card.
type ReviewLog struct {
	ID         int64
	CardHash   string
	Set        string
	Question   string
	Correct    bool
	Schedule   ScheduleState
	ReviewedAt time.Time
}
