// Package parser reads question/answer decks written in markdown.
//
//	Q: 七
//	A: seven
//	---
//	Q: What are the primary colors?
//	A: Red
//	Blue
//	Yellow
//
// Lines after a prefix continue the current field until the next prefix or a "---"
// separator. Any other prefixed line, such as "C:", ends the answer and is ignored.
package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/conorfennell/flashdeck/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	separator      = "---"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	skipping
)

// ParseFile reads a deck file and extracts its cards.
func ParseFile(fsys afero.Fs, path string) ([]domain.Card, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse extracts the cards of a deck. Cards without a question are dropped.
// New cards carry zeroed statistics and no schedule.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var (
		cards    []domain.Card
		question []string
		answer   []string
		current  = seeking
	)

	finish := func() {
		q := strings.TrimSpace(strings.Join(question, "\n"))
		if q != "" {
			cards = append(cards, domain.Card{
				Question: q,
				Answer:   strings.TrimSpace(strings.Join(answer, "\n")),
				HasStats: true,
			})
		}
		question, answer = nil, nil
		current = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == separator:
			finish()
		case strings.HasPrefix(line, questionPrefix):
			if current != seeking {
				finish()
			}
			current = readingQuestion
			question = append(question, field(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			current = readingAnswer
			answer = append(answer, field(line, answerPrefix))
		case strings.HasPrefix(line, contextPrefix):
			current = skipping
		case current == readingQuestion:
			question = append(question, line)
		case current == readingAnswer:
			answer = append(answer, line)
		}
	}
	finish()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func field(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}

// Merge appends the cards whose question and answer pair is not already in
// existing. It returns the merged cards and how many were added.
func Merge(existing, incoming []domain.Card) ([]domain.Card, int) {
	type pair struct{ q, a string }
	seen := make(map[pair]bool, len(existing))
	for _, c := range existing {
		seen[pair{c.Question, c.Answer}] = true
	}

	merged := append([]domain.Card(nil), existing...)
	added := 0
	for _, c := range incoming {
		key := pair{c.Question, c.Answer}
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, c)
		added++
	}
	return merged, added
}
