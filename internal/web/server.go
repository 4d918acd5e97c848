package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/conorfennell/flashdeck/internal/cardset"
	"github.com/conorfennell/flashdeck/internal/category"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/due"
	"github.com/conorfennell/flashdeck/internal/record"
	"github.com/conorfennell/flashdeck/internal/review"
	"github.com/conorfennell/flashdeck/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	store      *cardset.Store
	journal    *storage.DB
	categories map[string][]string
	reviews    *review.Service
	aggregator *category.Aggregator
	resolver   *due.Resolver
	router     *http.ServeMux
	handler    http.Handler
	logger     *slog.Logger
	now        func() time.Time
}

// NewServer creates and configures a new server over an open journal.
func NewServer(store *cardset.Store, journal *storage.DB, categories map[string][]string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:      store,
		journal:    journal,
		categories: categories,
		reviews:    review.NewService(store, journal, logger),
		aggregator: category.NewAggregator(store, logger),
		resolver:   due.NewResolver(store, logger),
		router:     http.NewServeMux(),
		logger:     logger,
		now:        time.Now,
	}
	s.routes()
	s.handler = logRequests(logger, s.router)
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /health", s.handleHealth())
	s.router.HandleFunc("GET /sets", s.handleGetSets())
	s.router.HandleFunc("GET /categories", s.handleGetCategories())
	s.router.HandleFunc("GET /stats/set", s.handleGetSetStats())

	s.router.HandleFunc("GET /srs/set", s.handleGetDueSet())
	s.router.HandleFunc("GET /srs/category", s.handleGetDueCategory())
	s.router.HandleFunc("GET /category", s.handleGetCategory())

	s.router.HandleFunc("POST /answer", s.handlePostAnswer())
	s.router.HandleFunc("POST /category/answer", s.handlePostCategoryAnswer())
}

type cardJSON struct {
	Question      string       `json:"question"`
	Answer        string       `json:"answer"`
	Correct       int          `json:"correct_count"`
	Incorrect     int          `json:"incorrect_count"`
	Reviewed      int          `json:"reviewed_count"`
	Easiness      *float64     `json:"easiness,omitempty"`
	IntervalHours *int         `json:"interval_hours,omitempty"`
	Repetitions   *int         `json:"repetitions,omitempty"`
	NextReviewAt  string       `json:"next_review_at,omitempty"`
	Sources       []sourceJSON `json:"sources,omitempty"`
}

type sourceJSON struct {
	Set string `json:"set_name"`
	Row int    `json:"row"`
}

type dueJSON struct {
	Set  string   `json:"set_name"`
	Row  int      `json:"row"`
	Card cardJSON `json:"card"`
}

func toCardJSON(c domain.Card) cardJSON {
	out := cardJSON{
		Question:  c.Question,
		Answer:    c.Answer,
		Correct:   c.CorrectCount,
		Incorrect: c.IncorrectCount,
		Reviewed:  c.ReviewedCount,
	}
	if s := c.Schedule; s != nil {
		out.Easiness = &s.Easiness
		out.IntervalHours = &s.IntervalHours
		out.Repetitions = &s.Repetitions
		out.NextReviewAt = record.FormatTime(s.NextReviewAt)
	}
	return out
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleGetSets lists every set with its statistics.
func (s *Server) handleGetSets() http.HandlerFunc {
	type setJSON struct {
		Name     string  `json:"name"`
		Cards    int     `json:"cards"`
		Accuracy float64 `json:"accuracy"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sets, err := s.store.List()
		if err != nil {
			s.serverError(w, "Error listing sets", err)
			return
		}
		out := make([]setJSON, 0, len(sets))
		for _, set := range sets {
			st, err := s.store.Stats(set)
			if err != nil {
				s.logger.Warn("Skipping unreadable set", "set", set, "error", err)
				continue
			}
			out = append(out, setJSON{Name: set, Cards: st.Cards, Accuracy: st.Accuracy})
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"sets": out})
	}
}

// handleGetCategories lists the configured categories and their member sets.
func (s *Server) handleGetCategories() http.HandlerFunc {
	type categoryJSON struct {
		Name string   `json:"name"`
		Sets []string `json:"sets"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sets, err := s.store.List()
		if err != nil {
			s.serverError(w, "Error listing sets", err)
			return
		}
		names := make([]string, 0, len(s.categories))
		for name := range s.categories {
			names = append(names, name)
		}
		sort.Strings(names)

		out := make([]categoryJSON, 0, len(names))
		for _, name := range names {
			members := category.Members(s.categories[name], sets)
			if members == nil {
				members = []string{}
			}
			out = append(out, categoryJSON{Name: name, Sets: members})
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"categories": out})
	}
}

// handleGetSetStats returns the counters of a set and its journaled review totals.
func (s *Server) handleGetSetStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set := r.URL.Query().Get("set_name")
		if !s.knownSet(w, set) {
			return
		}
		st, err := s.store.Stats(set)
		if err != nil {
			s.serverError(w, "Error reading set stats", err)
			return
		}
		summary, err := s.journal.SummaryBySet(set)
		if err != nil {
			s.serverError(w, "Error reading review journal", err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"set_name":          set,
			"cards":             st.Cards,
			"correct":           st.Correct,
			"incorrect":         st.Incorrect,
			"reviewed":          st.Reviewed,
			"accuracy":          st.Accuracy,
			"journaled":         summary.Total,
			"journaled_correct": summary.Correct,
		})
	}
}

// handleGetDueSet returns the due cards of one set.
func (s *Server) handleGetDueSet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set := r.URL.Query().Get("set_name")
		if !s.knownSet(w, set) {
			return
		}
		records, err := s.resolver.All([]string{set}, s.now())
		if err != nil {
			s.serverError(w, "Error resolving due cards", err)
			return
		}
		s.writeDue(w, records)
	}
}

// handleGetDueCategory returns the due cards of every member set of a category.
func (s *Server) handleGetDueCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.category(w, r.URL.Query().Get("category"))
		if !ok {
			return
		}
		records, err := s.resolver.All(c.Sets, s.now())
		if err != nil {
			s.logger.Warn("Some sets were skipped while resolving due cards", "category", c.Name, "error", err)
		}
		s.writeDue(w, records)
	}
}

// handleGetCategory returns the combined view of a category.
func (s *Server) handleGetCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.category(w, r.URL.Query().Get("category"))
		if !ok {
			return
		}
		view := s.aggregator.Build(c)

		cards := make([]cardJSON, len(view.Cards))
		for i, card := range view.Cards {
			cards[i] = toCardJSON(card)
			for _, src := range view.Provenance[i] {
				cards[i].Sources = append(cards[i].Sources, sourceJSON{Set: src.Set, Row: src.Row})
			}
		}
		skipped := make([]string, len(view.Skipped))
		for i, sk := range view.Skipped {
			skipped[i] = sk.Set
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"category": c.Name, "cards": cards, "skipped": skipped})
	}
}

// handlePostAnswer records an answer for a card of a set.
func (s *Server) handlePostAnswer() http.HandlerFunc {
	type request struct {
		Set      string `json:"set_name"`
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Correct  bool   `json:"correct"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Set == "" || req.Question == "" {
			http.Error(w, "Invalid answer", http.StatusBadRequest)
			return
		}
		card, err := s.reviews.Answer(req.Set, req.Question, req.Answer, req.Correct, s.now())
		if err != nil {
			s.answerError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toCardJSON(card))
	}
}

// handlePostCategoryAnswer records an answer for a combined card and writes it to
// every row it came from.
func (s *Server) handlePostCategoryAnswer() http.HandlerFunc {
	type request struct {
		Category string `json:"category"`
		Index    int    `json:"index"`
		Correct  bool   `json:"correct"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid answer", http.StatusBadRequest)
			return
		}
		c, ok := s.category(w, req.Category)
		if !ok {
			return
		}
		card, _, err := s.reviews.AnswerCategory(c, req.Index, req.Correct, s.now())
		if err != nil {
			s.answerError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toCardJSON(card))
	}
}

func (s *Server) knownSet(w http.ResponseWriter, set string) bool {
	ok, err := s.store.Exists(set)
	if errors.Is(err, cardset.ErrInvalidSet) {
		http.Error(w, "Invalid set name", http.StatusBadRequest)
		return false
	}
	if err != nil {
		s.serverError(w, "Error checking set", err)
		return false
	}
	if !ok {
		http.Error(w, "Unknown set", http.StatusNotFound)
		return false
	}
	return true
}

func (s *Server) category(w http.ResponseWriter, name string) (category.Category, bool) {
	prefixes, ok := s.categories[name]
	if !ok {
		http.Error(w, "Unknown category", http.StatusNotFound)
		return category.Category{}, false
	}
	sets, err := s.store.List()
	if err != nil {
		s.serverError(w, "Error listing sets", err)
		return category.Category{}, false
	}
	return category.Category{Name: name, Sets: category.Members(prefixes, sets)}, true
}

func (s *Server) writeDue(w http.ResponseWriter, records []domain.DueRecord) {
	out := make([]dueJSON, len(records))
	for i, rec := range records {
		card := rec.Card
		sched := rec.Schedule
		card.Schedule = &sched
		out[i] = dueJSON{Set: rec.Set, Row: rec.Row, Card: toCardJSON(card)}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"due": out, "count": len(out)})
}

func (s *Server) answerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrCardNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, cardset.ErrInvalidSet):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.serverError(w, "Error recording answer", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error writing response", "error", err)
	}
}
