// Package record converts card set rows to and from domain cards.
//
// A row is an ordered list of text fields:
//
//	question, answer, correct, incorrect, reviewed, easiness, interval_hours, repetitions, next_review_at
//
// Legacy rows may stop after the answer or after the reviewed count.
package record

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"

	statsWidth    = 5
	scheduleWidth = 9
)

// Decode builds a card from a row. It never fails: malformed numbers fall back to
// their defaults and an unreadable review time becomes the epoch.
func Decode(fields []string) domain.Card {
	var card domain.Card
	if len(fields) > 0 {
		card.Question = fields[0]
	}
	if len(fields) > 1 {
		card.Answer = fields[1]
	}

	switch {
	case len(fields) >= scheduleWidth:
		card.HasStats = true
		decodeStats(&card, fields)
		state := domain.ScheduleState{
			Easiness:      parseEasiness(fields[5]),
			IntervalHours: parseCount(fields[6]),
			Repetitions:   parseCount(fields[7]),
			NextReviewAt:  ParseTime(fields[8]),
		}
		card.Schedule = &state
		card.Extra = tail(fields, scheduleWidth)
	case len(fields) >= statsWidth:
		card.HasStats = true
		decodeStats(&card, fields)
		card.Extra = tail(fields, statsWidth)
	default:
		card.Extra = tail(fields, 2)
	}
	return card
}

// Encode renders a card as a row. Scheduled cards always get all nine columns;
// unscheduled cards keep their legacy width so untouched rows read back the same.
func Encode(card domain.Card) []string {
	fields := []string{card.Question, card.Answer}
	if card.Schedule != nil || card.HasStats {
		fields = append(fields,
			strconv.Itoa(card.CorrectCount),
			strconv.Itoa(card.IncorrectCount),
			strconv.Itoa(card.ReviewedCount),
		)
	}
	if s := card.Schedule; s != nil {
		fields = append(fields,
			strconv.FormatFloat(s.Easiness, 'f', -1, 64),
			strconv.Itoa(s.IntervalHours),
			strconv.Itoa(s.Repetitions),
			FormatTime(s.NextReviewAt),
		)
	}
	return append(fields, card.Extra...)
}

// ParseTime reads a review time written either as a full timestamp or as a
// legacy date. Anything else is the epoch, which is always due.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	layout := DateLayout
	if strings.Contains(s, " ") {
		layout = TimestampLayout
	}
	t, err := time.ParseInLocation(layout, s, time.Local)
	if err != nil {
		return time.Unix(0, 0)
	}
	return t
}

// FormatTime writes a review time in the full timestamp layout.
func FormatTime(t time.Time) string {
	return t.In(time.Local).Format(TimestampLayout)
}

func decodeStats(card *domain.Card, fields []string) {
	card.CorrectCount = parseCount(fields[2])
	card.IncorrectCount = parseCount(fields[3])
	card.ReviewedCount = parseCount(fields[4])
}

func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseEasiness(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.DefaultEasiness
	}
	return math.Max(f, domain.MinEasiness)
}

func tail(fields []string, from int) []string {
	if len(fields) <= from {
		return nil
	}
	return append([]string(nil), fields[from:]...)
}
