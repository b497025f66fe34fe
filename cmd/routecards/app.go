package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/core"
	"github.com/joseph-ayodele/routecards/internal/export"
	"github.com/joseph-ayodele/routecards/internal/layout"
	"github.com/joseph-ayodele/routecards/internal/qr"
	"github.com/joseph-ayodele/routecards/internal/repository"
	"github.com/joseph-ayodele/routecards/internal/services/issue"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usage = `usage: routecards <command> [flags]

commands:
  issue     issue one route card, or a batch with --count
  export    write the ledger to an XLSX workbook
  migrate   create or upgrade the ledger

run "routecards <command> --help" for command flags
`

// globalFlags are accepted by every command and override the config file and environment.
type globalFlags struct {
	config   string
	dsn      string
	template string
	outDir   string
	logLevel string
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.config, "config", "", "config file (JSONC); defaults to "+common.ConfigFileName+" when present")
	fs.StringVar(&g.dsn, "dsn", "", "ledger DSN: SQLite path or postgres:// URL")
	fs.StringVar(&g.template, "template", "", "presentation template (.pptx)")
	fs.StringVar(&g.outDir, "out-dir", "", "directory for generated documents")
	fs.StringVar(&g.logLevel, "log-level", "info", "debug, info, warn or error")
}

func (g *globalFlags) load() (*common.Config, error) {
	cfg, err := common.LoadConfig(g.config)
	if err != nil {
		return nil, err
	}
	if g.dsn != "" {
		cfg.Ledger.DSN = g.dsn
	}
	if g.template != "" {
		cfg.Template.Path = g.template
	}
	if g.outDir != "" {
		cfg.Output.Dir = g.outDir
	}
	return cfg, nil
}

func (g *globalFlags) logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	switch args[0] {
	case "issue":
		return cmdIssue(ctx, args[1:], stdout, stderr)
	case "export":
		return cmdExport(ctx, args[1:], stdout, stderr)
	case "migrate":
		return cmdMigrate(ctx, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "error: unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}
}

// parse returns a non-negative exit code when the command should stop right away.
func parse(fs *flag.FlagSet, args []string, stdout, stderr io.Writer) int {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stdout, "usage: routecards %s [flags]\n\n%s", fs.Name(), fs.FlagUsages())
			return exitOK
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "error: unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return exitUsage
	}
	return -1
}

// openLedger opens and migrates the ledger; every command runs this before touching it.
func openLedger(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Ledger), logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db, logger); err != nil {
		repository.Close(db, logger)
		return nil, err
	}
	return db, nil
}

func usageOrFailure(err error) int {
	if errors.Is(err, common.ErrInvalidInput) {
		return exitUsage
	}
	return exitFailure
}

func cmdIssue(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var g globalFlags
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	g.register(fs)
	number := fs.StringP("number", "n", "", "form number to issue (digits, padded to the configured width)")
	count := fs.IntP("count", "c", 1, "issue a batch of this many consecutive numbers")
	if code := parse(fs, args, stdout, stderr); code >= 0 {
		return code
	}
	if *number == "" {
		fmt.Fprintln(stderr, "error: --number is required")
		return exitUsage
	}

	cfg, err := g.load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	logger := g.logger(stderr)

	db, err := openLedger(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer repository.Close(db, logger)

	ledger := repository.NewRouteCardRepository(db, logger)
	gen := core.NewGenerator(logger, ledger, qr.NewEncoder(), layout.NewResolver(core.LayoutOptionsFrom(cfg.Layout)))
	batcher := core.NewBatcher(logger, ledger, gen, core.BatchConfigFrom(cfg))
	svc := issue.NewService(gen, batcher, cfg, logger)

	req := issue.Request{Mode: issue.ModeSingle, FormNumber: *number}
	if fs.Changed("count") {
		req.Mode, req.Count = issue.ModeBatch, *count
	}

	res, err := svc.Issue(ctx, req)
	if res != nil {
		fmt.Fprintln(stdout, res.Summary())
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if errors.Is(err, common.ErrLedgerInconsistent) {
			fmt.Fprintln(stderr, "the document above was saved but is missing from the ledger; record it manually before issuing more numbers")
		}
	}
	return issue.ExitCode(res, err)
}

func cmdExport(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var g globalFlags
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	g.register(fs)
	out := fs.StringP("out", "o", "", "output XLSX path")
	fromStr := fs.String("from", "", "first creation day, YYYY-MM-DD")
	toStr := fs.String("to", "", "last creation day, YYYY-MM-DD")
	if code := parse(fs, args, stdout, stderr); code >= 0 {
		return code
	}
	if *out == "" {
		fmt.Fprintln(stderr, "error: --out is required")
		return exitUsage
	}
	from, err := parseDay("from", *fromStr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	to, err := parseDay("to", *toStr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	cfg, err := g.load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	logger := g.logger(stderr)

	db, err := openLedger(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer repository.Close(db, logger)

	svc := export.NewService(repository.NewRouteCardRepository(db, logger), logger)
	if err := svc.WriteFile(ctx, *out, from, to); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return usageOrFailure(err)
	}
	fmt.Fprintf(stdout, "ledger exported to %s\n", *out)
	return exitOK
}

func cmdMigrate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var g globalFlags
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	g.register(fs)
	if code := parse(fs, args, stdout, stderr); code >= 0 {
		return code
	}

	cfg, err := g.load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	logger := g.logger(stderr)

	db, err := openLedger(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer repository.Close(db, logger)

	n, err := repository.NewRouteCardRepository(db, logger).Count(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "ledger ready: %d route cards recorded\n", n)
	return exitOK
}

func parseDay(name, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, common.InvalidInputErrorf("invalid --%s date %q, use YYYY-MM-DD", name, s)
	}
	return &t, nil
}
