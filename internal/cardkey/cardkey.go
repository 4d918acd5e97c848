package cardkey

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var answerSplit = regexp.MustCompile(`;|\s+or\s+`)

// Normalize prepares text for comparison: line endings become LF, the text is put
// in Unicode NFC form, case folded and trimmed.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.TrimSpace(s)
}

// Hash returns the SHA-256 hex digest of the normalized question and answer.
func Hash(question, answer string) string {
	// Joined with a newline so "ab"+"c" and "a"+"bc" differ.
	joined := Normalize(question) + "\n" + Normalize(answer)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(joined)))
}

// AnswerParts splits an answer into its normalized alternatives.
// "to be; to exist or be there" gives "to be", "to exist" and "be there".
func AnswerParts(answer string) []string {
	var parts []string
	for _, p := range answerSplit.Split(answer, -1) {
		if p = Normalize(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
