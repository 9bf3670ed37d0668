package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/olekukonko/tablewriter"

	"github.com/joseph-ayodele/pdf-filer/constants"
	"github.com/joseph-ayodele/pdf-filer/internal/app"
	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/core"
	"github.com/joseph-ayodele/pdf-filer/internal/entity"
	"github.com/joseph-ayodele/pdf-filer/internal/ingest"
	"github.com/joseph-ayodele/pdf-filer/internal/mover"
)

const usage = `usage: pdf-filer [run] [-config path] [-dry-run] [-limit n] [-verbose]
       pdf-filer undo -run <run-id> [-config path] [-verbose]
       pdf-filer lookup [-config path] <file.pdf>
`

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type globalFlags struct {
	config  *string
	verbose *bool
}

func newFlagSet(name string) (*flag.FlagSet, globalFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() { printError("%s", usage) }
	return fs, globalFlags{
		config:  fs.String("config", "config.yaml", "path to the YAML config"),
		verbose: fs.Bool("verbose", false, "debug logging"),
	}
}

func main() {
	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 {
		switch args[0] {
		case "run", "undo", "lookup":
			cmd, args = args[0], args[1:]
		case "-h", "-help", "--help", "help":
			printError("%s", usage)
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "run":
		err = runCmd(ctx, args)
	case "undo":
		err = undoCmd(ctx, args)
	case "lookup":
		err = lookupCmd(ctx, args)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger. Logs go to stderr so stdout keeps the tables.
func setup(g globalFlags) (*common.Config, *slog.Logger, io.Closer, error) {
	cfg, err := common.LoadConfig(*g.config)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closer, err := common.NewLogger(common.LogConfig{
		Dir:     cfg.Paths.LogsDir,
		Verbose: *g.verbose,
		Stdout:  os.Stderr,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}

func runCmd(ctx context.Context, args []string) error {
	fs, g := newFlagSet("run")
	dryRun := fs.Bool("dry-run", false, "plan targets without moving files")
	limit := fs.Int("limit", 0, "process at most n files (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, closer, err := setup(g)
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := app.NewPipeline(cfg, store, logger)
	if err != nil {
		return err
	}

	run, runErr := p.Processor.Run(ctx, core.RunOptions{DryRun: *dryRun, Limit: *limit})
	if run == nil {
		return runErr
	}
	docs, err := store.Documents.ListByRun(context.WithoutCancel(ctx), run.ID)
	if err != nil {
		return errors.Join(runErr, err)
	}
	printRun(os.Stdout, run, docs)
	return runErr
}

func printRun(w io.Writer, run *entity.Run, docs []*entity.Document) {
	title := "pdf-filer run " + run.ID
	if run.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(w, title)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Sender", "Conf", "Dest", "Status", "Error"})
	table.SetAutoWrapText(false)
	for _, d := range docs {
		errMsg := ""
		if d.Error != nil {
			errMsg = truncate(*d.Error, 80)
		}
		dest := ""
		if d.FinalTargetPath != "" {
			dest = filepath.Base(filepath.Dir(d.FinalTargetPath))
		}
		table.Append([]string{
			d.OriginalFilename,
			d.FinalSender,
			fmt.Sprintf("%.2f", d.FinalConfidence),
			dest,
			status(d),
			errMsg,
		})
	}
	table.SetCaption(true, fmt.Sprintf("total=%d success=%d fallback=%d failed=%d",
		run.Total, run.Success, run.Fallback, run.Failed))
	table.Render()
}

func status(d *entity.Document) string {
	switch core.Outcome(d) {
	case constants.OutcomeFailed:
		return "FAILED"
	case constants.OutcomeFallback:
		return "FALLBACK"
	default:
		return "OK"
	}
}

func undoCmd(ctx context.Context, args []string) error {
	fs, g := newFlagSet("undo")
	runID := fs.String("run", "", "run id to undo (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		fs.Usage()
		return fmt.Errorf("%w: -run is required", common.ErrInvalidInput)
	}

	cfg, logger, closer, err := setup(g)
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.Runs.Get(ctx, *runID); err != nil {
		return err
	}
	docs, err := store.Documents.ListByRun(ctx, *runID)
	if err != nil {
		return err
	}
	results, undoErr := mover.New(logger).UndoRun(ctx, docs)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "From", "To", "Status", "Error"})
	table.SetAutoWrapText(false)
	restored := 0
	for _, r := range results {
		errMsg := ""
		if r.Err != nil {
			errMsg = truncate(r.Err.Error(), 80)
		}
		if r.Status == mover.UndoRestored {
			restored++
		}
		table.Append([]string{fmt.Sprint(r.DocumentID), r.From, r.To, string(r.Status), errMsg})
	}
	table.SetCaption(true, fmt.Sprintf("restored %d of %d moved files", restored, len(results)))
	table.Render()
	return undoErr
}

func lookupCmd(ctx context.Context, args []string) error {
	fs, g := newFlagSet("lookup")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("%w: lookup takes exactly one file", common.ErrInvalidInput)
	}

	cfg, logger, closer, err := setup(g)
	if err != nil {
		return err
	}
	defer closer.Close()

	info, err := ingest.Fingerprint(fs.Arg(0))
	if err != nil {
		return err
	}
	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := store.Documents.LatestByFingerprint(ctx, info.Fingerprint)
	if err != nil {
		return err
	}
	fmt.Printf("fingerprint %s (%d bytes)\n", info.Fingerprint, info.SizeBytes)
	if d == nil {
		fmt.Println("no earlier record")
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.AppendBulk([][]string{
		{"run", d.RunID},
		{"processed at", d.ProcessedAt.Format("2006-01-02 15:04:05")},
		{"original file", d.OriginalFilename},
		{"sender", d.FinalSender},
		{"confidence", fmt.Sprintf("%.2f (stage %d)", d.FinalConfidence, d.StageUsed)},
		{"document type", d.DocumentType},
		{"label", d.FilenameLabel},
		{"target", d.FinalTargetPath},
		{"status", status(d)},
	})
	table.Render()
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
