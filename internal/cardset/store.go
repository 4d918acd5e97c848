// Package cardset persists card sets as one record file per set.
//
// A set is named by a slash-separated identity such as "HSK/Level1/Set03", stored at
// <root>/HSK/Level1/Set03_flashcards.csv. Every write replaces the whole file.
package cardset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/record"
)

// FileSuffix is appended to a set identity to form its file name.
const FileSuffix = "_flashcards.csv"

// ErrInvalidSet is returned for identities that cannot name a file under the root.
var ErrInvalidSet = errors.New("invalid set identity")

// StorageError reports a failed read or write of a set file.
type StorageError struct {
	Set string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s set %q: %v", e.Op, e.Set, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store reads and writes card sets below a root directory.
type Store struct {
	fs   afero.Fs
	root string
}

// New returns a store rooted at root on the given filesystem.
func New(fsys afero.Fs, root string) *Store {
	return &Store{fs: fsys, root: root}
}

// Path returns the file backing the set.
func (s *Store) Path(set string) (string, error) {
	if set == "" || path.IsAbs(set) || filepath.IsAbs(set) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSet, set)
	}
	for _, part := range strings.Split(set, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidSet, set)
		}
	}
	return filepath.Join(s.root, filepath.FromSlash(set)+FileSuffix), nil
}

// Load returns every card of the set in file order. A set without a file is empty.
func (s *Store) Load(set string) ([]domain.Card, error) {
	p, err := s.Path(set)
	if err != nil {
		return nil, err
	}

	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Set: set, Op: "open", Err: err}
	}
	defer f.Close()

	cards, err := readCards(f)
	if err != nil {
		return nil, &StorageError{Set: set, Op: "read", Err: err}
	}
	return cards, nil
}

// ReplaceAll overwrites the set with the given cards. The rows are written to a
// temporary file that is renamed over the old one, so readers never see a partial set.
// A failed write is not retried.
func (s *Store) ReplaceAll(set string, cards []domain.Card) error {
	p, err := s.Path(set)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, card := range cards {
		if err := w.Write(record.Encode(card)); err != nil {
			return &StorageError{Set: set, Op: "encode", Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &StorageError{Set: set, Op: "encode", Err: err}
	}

	dir := filepath.Dir(p)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Set: set, Op: "create directory for", Err: err}
	}

	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(p)+".tmp-*")
	if err != nil {
		return &StorageError{Set: set, Op: "create temporary file for", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return &StorageError{Set: set, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return &StorageError{Set: set, Op: "write", Err: err}
	}
	if err := s.fs.Chmod(tmpName, 0o644); err != nil {
		s.fs.Remove(tmpName)
		return &StorageError{Set: set, Op: "write", Err: err}
	}
	if err := s.fs.Rename(tmpName, p); err != nil {
		s.fs.Remove(tmpName)
		return &StorageError{Set: set, Op: "replace", Err: err}
	}
	return nil
}

// Count returns the number of rows in the set, zero when it has no file.
func (s *Store) Count(set string) (int, error) {
	cards, err := s.Load(set)
	if err != nil {
		return 0, err
	}
	return len(cards), nil
}

// Exists reports whether the set has a backing file.
func (s *Store) Exists(set string) (bool, error) {
	p, err := s.Path(set)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

// List returns the identities of every set under the root, sorted.
func (s *Store) List() ([]string, error) {
	ok, err := afero.DirExists(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", s.root, err)
	}
	if !ok {
		return nil, nil
	}

	var sets []string
	err = afero.Walk(s.fs, s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), FileSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		sets = append(sets, strings.TrimSuffix(filepath.ToSlash(rel), FileSuffix))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sets under %s: %w", s.root, err)
	}
	sort.Strings(sets)
	return sets, nil
}

// Stats summarizes the answer counters of a set.
type Stats struct {
	Cards     int
	Correct   int
	Incorrect int
	Reviewed  int
	// Accuracy is the percentage of correct answers, rounded to one decimal.
	Accuracy float64
}

// Stats totals the counters of every row that carries statistics.
func (s *Store) Stats(set string) (Stats, error) {
	cards, err := s.Load(set)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Cards: len(cards)}
	for _, c := range cards {
		if !c.HasStats {
			continue
		}
		st.Correct += c.CorrectCount
		st.Incorrect += c.IncorrectCount
		st.Reviewed += c.ReviewedCount
	}
	if answered := st.Correct + st.Incorrect; answered > 0 {
		st.Accuracy = math.Round(float64(st.Correct)/float64(answered)*1000) / 10
	}
	return st, nil
}

func readCards(r io.Reader) ([]domain.Card, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var cards []domain.Card
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			return cards, nil
		}
		if err != nil {
			return nil, err
		}
		cards = append(cards, record.Decode(fields))
	}
}
