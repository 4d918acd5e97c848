package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/conorfennell/flashdeck/internal/cardset"
	"github.com/conorfennell/flashdeck/internal/config"
	"github.com/conorfennell/flashdeck/internal/logging"
	"github.com/conorfennell/flashdeck/internal/storage"
)

var errUsage = errors.New("usage")

// command is one subcommand. define adds its flags next to the global ones.
type command struct {
	summary string
	define  func(flags *pflag.FlagSet)
	run     func(a *app, flags *pflag.FlagSet) error
}

var commands = map[string]command{
	"sets":       {"List card sets with their statistics", nil, runSets},
	"due":        {"List cards due for review", defineDue, runDue},
	"answer":     {"Record an answer for a card of a set", defineAnswer, runAnswer},
	"category":   {"Show or answer the combined cards of a category", defineCategory, runCategory},
	"sweep":      {"Clamp schedules beyond the maximum interval", defineSweep, runSweep},
	"duplicates": {"Report repeated questions and answers", defineDuplicates, runDuplicates},
	"import":     {"Add the cards of a markdown deck to a set", defineImport, runImport},
	"sync":       {"Clone or pull the configured git sources", nil, runSync},
	"history":    {"Show journaled reviews of a set", defineHistory, runHistory},
	"serve":      {"Serve the JSON API over HTTP", defineServe, runServe},
}

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	fs     afero.Fs
	store  *cardset.Store
	out    io.Writer
	now    func() time.Time
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command %q\n\n", args[0])
		usage(stderr)
		return errUsage
	}

	flags := pflag.NewFlagSet("flashdeck "+args[0], pflag.ContinueOnError)
	flags.SetOutput(stderr)
	config.RegisterFlags(flags)
	if cmd.define != nil {
		cmd.define(flags)
	}
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	fsys := afero.NewOsFs()
	a := &app{
		cfg:    cfg,
		logger: logger,
		fs:     fsys,
		store:  cardset.New(fsys, cfg.DataDir),
		out:    stdout,
		now:    time.Now,
	}
	return cmd.run(a, flags)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: flashdeck <command> [flags]")
	fmt.Fprintln(w, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-11s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nRun 'flashdeck <command> --help' for the flags of a command.")
}

// openJournal opens the review journal. The caller closes it.
func (a *app) openJournal() (*storage.DB, error) {
	db, err := storage.Open(a.cfg.DB)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Journal opened", "path", a.cfg.DB)
	return db, nil
}

// sets returns the given sets, or every set under the data directory when none are given.
func (a *app) sets(given []string) ([]string, error) {
	if len(given) > 0 {
		return given, nil
	}
	return a.store.List()
}
