package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/conorfennell/flashdeck/internal/category"
	"github.com/conorfennell/flashdeck/internal/due"
	"github.com/conorfennell/flashdeck/internal/duplicates"
	"github.com/conorfennell/flashdeck/internal/gitsource"
	"github.com/conorfennell/flashdeck/internal/parser"
	"github.com/conorfennell/flashdeck/internal/rebalance"
	"github.com/conorfennell/flashdeck/internal/record"
	"github.com/conorfennell/flashdeck/internal/review"
)

func runSets(a *app, _ *pflag.FlagSet) error {
	sets, err := a.store.List()
	if err != nil {
		return err
	}
	db, err := a.openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SET\tCARDS\tCORRECT\tINCORRECT\tREVIEWED\tACCURACY\tJOURNALED")
	for _, set := range sets {
		st, err := a.store.Stats(set)
		if err != nil {
			a.logger.Warn("Skipping unreadable set", "set", set, "error", err)
			continue
		}
		summary, err := db.SummaryBySet(set)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.1f%%\t%d\n",
			set, st.Cards, st.Correct, st.Incorrect, st.Reviewed, st.Accuracy, summary.Total)
	}
	return w.Flush()
}

func defineDue(flags *pflag.FlagSet) {
	flags.StringSlice("set", nil, "Sets to check (default: every set)")
}

func runDue(a *app, flags *pflag.FlagSet) error {
	given, _ := flags.GetStringSlice("set")
	sets, err := a.sets(given)
	if err != nil {
		return err
	}

	records, err := due.NewResolver(a.store, a.logger).All(sets, a.now())
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SET\tROW\tQUESTION\tNEXT REVIEW")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Set, r.Row+1, r.Card.Question, record.FormatTime(r.Schedule.NextReviewAt))
	}
	if flushErr := w.Flush(); flushErr != nil {
		return flushErr
	}
	return err
}

func defineAnswer(flags *pflag.FlagSet) {
	flags.String("set", "", "Set holding the card")
	flags.String("question", "", "Question of the card")
	flags.String("answer", "", "Answer of the card, when the question is not unique")
	defineVerdict(flags)
}

func runAnswer(a *app, flags *pflag.FlagSet) error {
	set, _ := flags.GetString("set")
	question, _ := flags.GetString("question")
	answer, _ := flags.GetString("answer")
	if set == "" || question == "" {
		return errors.New("--set and --question are required")
	}
	correct, err := verdict(flags)
	if err != nil {
		return err
	}

	db, err := a.openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	card, err := review.NewService(a.store, db, a.logger).Answer(set, question, answer, correct, a.now())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s -> %s\n", card.Question, card.Answer)
	fmt.Fprintf(a.out, "Next review in %dh at %s (easiness %.2f)\n",
		card.Schedule.IntervalHours, record.FormatTime(card.Schedule.NextReviewAt), card.Schedule.Easiness)
	return nil
}

func defineCategory(flags *pflag.FlagSet) {
	flags.String("name", "", "Category to show")
	flags.Int("index", 0, "1-based combined card to answer; 0 only shows the category")
	defineVerdict(flags)
}

func runCategory(a *app, flags *pflag.FlagSet) error {
	name, _ := flags.GetString("name")
	prefixes, ok := a.cfg.Categories[name]
	if !ok {
		known := make([]string, 0, len(a.cfg.Categories))
		for k := range a.cfg.Categories {
			known = append(known, k)
		}
		sort.Strings(known)
		return fmt.Errorf("unknown category %q (configured: %s)", name, strings.Join(known, ", "))
	}

	all, err := a.store.List()
	if err != nil {
		return err
	}
	c := category.Category{Name: name, Sets: category.Members(prefixes, all)}
	view := category.NewAggregator(a.store, a.logger).Build(c)
	for _, s := range view.Skipped {
		fmt.Fprintf(a.out, "Skipped %s: %v\n", s.Set, s.Err)
	}

	index, _ := flags.GetInt("index")
	if index == 0 {
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tQUESTION\tANSWER\tCORRECT\tINCORRECT\tREVIEWED\tSOURCES")
		for i, card := range view.Cards {
			sources := make([]string, len(view.Provenance[i]))
			for j, src := range view.Provenance[i] {
				sources[j] = fmt.Sprintf("%s:%d", src.Set, src.Row+1)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n", i+1, card.Question, card.Answer,
				card.CorrectCount, card.IncorrectCount, card.ReviewedCount, strings.Join(sources, " "))
		}
		return w.Flush()
	}

	correct, err := verdict(flags)
	if err != nil {
		return err
	}
	db, err := a.openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	card, answered, err := review.NewService(a.store, db, a.logger).AnswerCategory(c, index-1, correct, a.now())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s -> %s: updated %d rows, next review in %dh\n",
		card.Question, card.Answer, len(answered.Provenance[index-1]), card.Schedule.IntervalHours)
	return nil
}

func defineSweep(flags *pflag.FlagSet) {
	flags.StringSlice("set", nil, "Sets to sweep (default: every set)")
}

func runSweep(a *app, flags *pflag.FlagSet) error {
	given, _ := flags.GetStringSlice("set")
	sets, err := a.sets(given)
	if err != nil {
		return err
	}

	changed, err := rebalance.NewSweeper(a.store, a.logger).Sweep(sets, a.now())
	total := 0
	for _, set := range sets {
		if n, ok := changed[set]; ok {
			fmt.Fprintf(a.out, "%s: clamped %d rows\n", set, n)
			total += n
		}
	}
	fmt.Fprintf(a.out, "Clamped %d rows in %d sets\n", total, len(changed))
	return err
}

func defineDuplicates(flags *pflag.FlagSet) {
	flags.StringSlice("prefix", nil, "Only scan sets starting with these prefixes")
}

func runDuplicates(a *app, flags *pflag.FlagSet) error {
	sets, err := a.store.List()
	if err != nil {
		return err
	}
	if prefixes, _ := flags.GetStringSlice("prefix"); len(prefixes) > 0 {
		sets = category.Members(prefixes, sets)
	}

	report := duplicates.Scan(a.store, sets, a.logger)
	printGroups := func(title string, groups []duplicates.Group) {
		fmt.Fprintf(a.out, "%s (%d)\n", title, len(groups))
		for _, g := range groups {
			scope := "within one set"
			if g.AcrossSets() {
				scope = "across " + strings.Join(g.Sets(), ", ")
			}
			fmt.Fprintf(a.out, "  %q x%d, %s\n", g.Key, len(g.Occurrences), scope)
			for _, o := range g.Occurrences {
				fmt.Fprintf(a.out, "    %s:%d  %s -> %s\n", o.Set, o.Line, o.Question, o.Answer)
			}
		}
	}
	printGroups("Duplicate questions", report.ByQuestion)
	printGroups("Duplicate answers", report.ByAnswerPart)
	for _, set := range report.Skipped {
		fmt.Fprintf(a.out, "Skipped unreadable set %s\n", set)
	}
	return nil
}

func defineImport(flags *pflag.FlagSet) {
	flags.String("set", "", "Set to add the cards to")
	flags.String("file", "", "Markdown deck to read")
}

func runImport(a *app, flags *pflag.FlagSet) error {
	set, _ := flags.GetString("set")
	file, _ := flags.GetString("file")
	if set == "" || file == "" {
		return errors.New("--set and --file are required")
	}

	added, err := importDeck(a, set, file)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %d cards to %s\n", added, set)
	return nil
}

// importDeck merges the cards of a markdown deck into set.
func importDeck(a *app, set, file string) (int, error) {
	incoming, err := parser.ParseFile(a.fs, file)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s: %w", file, err)
	}
	existing, err := a.store.Load(set)
	if err != nil {
		return 0, err
	}

	merged, added := parser.Merge(existing, incoming)
	if added == 0 {
		return 0, nil
	}
	if err := a.store.ReplaceAll(set, merged); err != nil {
		return 0, err
	}
	a.logger.Info("Imported deck", "set", set, "file", file, "added", added)
	return added, nil
}

func runSync(a *app, _ *pflag.FlagSet) error {
	if len(a.cfg.Sources) == 0 {
		fmt.Fprintln(a.out, "No sources configured. Add git URLs under 'sources' in the config file.")
		return nil
	}

	syncer := gitsource.NewSyncer(a.logger, nil)
	var errs []error
	for _, url := range a.cfg.Sources {
		localPath, err := gitsource.LocalPath(a.cfg.DataDir, url)
		if err != nil {
			a.logger.Error("Error determining local path for git repo", "url", url, "error", err)
			errs = append(errs, err)
			continue
		}
		if err := syncer.Sync(url, localPath); err != nil {
			a.logger.Error("Error syncing git repo", "url", url, "error", err)
			errs = append(errs, err)
			continue
		}

		added, err := importMarkdown(a, localPath)
		if err != nil {
			errs = append(errs, err)
		}
		fmt.Fprintf(a.out, "%s: synced to %s, %d new cards from markdown decks\n", url, localPath, added)
	}
	return errors.Join(errs...)
}

// importMarkdown merges every .md deck under dir into the set named after its path.
func importMarkdown(a *app, dir string) (int, error) {
	total := 0
	var errs []error
	err := afero.Walk(a.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(info.Name()), ".md") {
			return nil
		}

		rel, err := filepath.Rel(a.cfg.DataDir, path)
		if err != nil {
			return err
		}
		set := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
		added, err := importDeck(a, set, path)
		if err != nil {
			a.logger.Warn("Failed to import deck", "file", path, "error", err)
			errs = append(errs, err)
			return nil
		}
		total += added
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("error walking directory %s: %w", dir, err))
	}
	return total, errors.Join(errs...)
}

func defineHistory(flags *pflag.FlagSet) {
	flags.String("set", "", "Set to show reviews for")
	flags.Int("limit", 20, "Maximum number of reviews; 0 shows all")
}

func runHistory(a *app, flags *pflag.FlagSet) error {
	set, _ := flags.GetString("set")
	limit, _ := flags.GetInt("limit")
	if set == "" {
		return errors.New("--set is required")
	}

	db, err := a.openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	reviews, err := db.ReviewsBySet(set, limit)
	if err != nil {
		return err
	}
	summary, err := db.SummaryBySet(set)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REVIEWED\tQUESTION\tRESULT\tINTERVAL\tNEXT REVIEW")
	for _, r := range reviews {
		result := "correct"
		if !r.Correct {
			result = "incorrect"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%dh\t%s\n", record.FormatTime(r.ReviewedAt), r.Question, result,
			r.Schedule.IntervalHours, record.FormatTime(r.Schedule.NextReviewAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d of %d journaled reviews correct\n", summary.Correct, summary.Total)
	return nil
}

func defineVerdict(flags *pflag.FlagSet) {
	flags.Bool("correct", false, "The answer was correct")
	flags.Bool("incorrect", false, "The answer was incorrect")
}

func verdict(flags *pflag.FlagSet) (bool, error) {
	correct, _ := flags.GetBool("correct")
	incorrect, _ := flags.GetBool("incorrect")
	if correct == incorrect {
		return false, errors.New("exactly one of --correct or --incorrect is required")
	}
	return correct, nil
}
