package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/qbank"
	"github.com/brunobiangulo/qbank/export"
	"github.com/brunobiangulo/qbank/parser"
	"github.com/brunobiangulo/qbank/report"
)

// NewExtractCmd creates the extract command.
func NewExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <paper|dir>...",
		Short: "Extract questions from exam papers",
		Long: `Extract reads every paper (directories are searched for PDF, DOCX and
text files), stores the accepted questions and prints a per-subject
breakdown of accepted and rejected blocks.

The subject is taken from the file name (bio, chem, phy) unless --subject
is given. Papers whose content has not changed since the last run are
skipped unless --force is set.

Examples:
  # Extract a folder of papers and export the questions
  qbank extract papers/ --out questions.csv

  # Keep questions without a recognizable answer
  qbank extract neet_phy_2024.pdf --answer-policy allow

  # Dump the raw text of every rejected block and write a summary
  qbank extract papers/ --failures rejected.txt --summary summary.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExtractCmd,
	}

	cmd.Flags().StringP("subject", "s", "", "Subject for every paper (default: from file name)")
	cmd.Flags().String("source", "", "Source label written to each question (default: file name)")
	cmd.Flags().BoolP("force", "f", false, "Re-extract papers even if unchanged")
	cmd.Flags().StringP("out", "o", "", "Export accepted questions to a .csv or .xlsx file")
	cmd.Flags().Int64("start-id", 0, "Exported ids start after this value when no store assigns them")
	cmd.Flags().String("failures", "", "Write the raw text of rejected blocks to this file")
	cmd.Flags().String("summary", "", "Write a Markdown summary to this file")
	cmd.Flags().Bool("no-store", false, "Do not use the database")
	cmd.Flags().String("answer-policy", "", "Unknown answers: reject or allow")
	cmd.Flags().Int("columns", 0, "Page columns: 0 detects, 1 or 2 forces")
	cmd.Flags().String("reading-order", "", "Column reading order: ltr or rtl")
	cmd.Flags().Bool("no-ocr", false, "Never fall back to OCR for sparse PDFs")

	return cmd
}

// extractOutputs are the optional files written after a run.
type extractOutputs struct {
	out      string
	startID  int64
	failures string
	summary  string
}

func runExtractCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyExtractFlags(cmd, &cfg); err != nil {
		return err
	}

	paths, err := expandPaths(args, qbank.SupportedFormats())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no papers found (supported: pdf, docx, txt)")
	}

	var outs extractOutputs
	outs.out, _ = cmd.Flags().GetString("out")
	outs.startID, _ = cmd.Flags().GetInt64("start-id")
	outs.failures, _ = cmd.Flags().GetString("failures")
	outs.summary, _ = cmd.Flags().GetString("summary")

	var engineOpts []qbank.Option
	if noStore, _ := cmd.Flags().GetBool("no-store"); noStore {
		engineOpts = append(engineOpts, qbank.WithoutStore())
	}
	engine, err := qbank.New(cfg, engineOpts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	reporter := report.New(nil)
	var sink *report.FileSink
	if outs.failures != "" {
		if sink, err = report.NewFileSink(outs.failures); err != nil {
			return err
		}
		defer sink.Close()
		reporter = report.New(sink)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := extractOptions(cmd, reporter)
	start := time.Now()
	slog.Info("extract: starting", "papers", len(paths), "workers", cfg.DocumentConcurrency)
	results := engine.ExtractAll(ctx, paths, opts...)

	w := cmd.OutOrStdout()
	failed := printResults(w, results)
	if err := printBreakdown(w, reporter); err != nil {
		return err
	}

	questions := qbank.Collect(results)
	fmt.Fprintf(w, "\n%s questions from %d papers in %s\n",
		humanize.Comma(int64(len(questions))), len(paths)-failed, time.Since(start).Round(time.Millisecond))

	if err := writeOutputs(w, outs, questions, reporter); err != nil {
		return err
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			return err
		}
		if err := reporter.Err(); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d papers failed", failed, len(paths))
	}
	return ctx.Err()
}

// applyExtractFlags overrides configuration values with explicitly set
// flags.
func applyExtractFlags(cmd *cobra.Command, cfg *qbank.Config) error {
	f := cmd.Flags()
	if f.Changed("answer-policy") {
		cfg.AnswerPolicy, _ = f.GetString("answer-policy")
	}
	if f.Changed("columns") {
		cfg.Columns, _ = f.GetInt("columns")
	}
	if f.Changed("reading-order") {
		cfg.ReadingOrder, _ = f.GetString("reading-order")
	}
	if noOCR, _ := f.GetBool("no-ocr"); noOCR {
		cfg.OCR.Enabled = false
	}
	return cfg.Validate()
}

func extractOptions(cmd *cobra.Command, reporter *report.Reporter) []qbank.ExtractOption {
	opts := []qbank.ExtractOption{qbank.WithReporter(reporter)}
	if force, _ := cmd.Flags().GetBool("force"); force {
		opts = append(opts, qbank.WithForce())
	}
	if subject, _ := cmd.Flags().GetString("subject"); subject != "" {
		opts = append(opts, qbank.WithSubject(subject))
	}
	if source, _ := cmd.Flags().GetString("source"); source != "" {
		opts = append(opts, qbank.WithSource(source))
	}
	return opts
}

// expandPaths replaces each directory argument with the files below it
// whose format is in formats. File arguments are kept as given.
func expandPaths(args, formats []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && slices.Contains(formats, parser.Format(path)) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

// printResults writes one line per paper and returns the number that failed.
func printResults(w io.Writer, results []qbank.BatchResult) int {
	failed := 0
	for _, r := range results {
		name := filepath.Base(r.Path)
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", color.RedString("FAIL"), name, r.Err)
		case r.Result.Skipped:
			fmt.Fprintf(w, "%s %s: unchanged, %d of %d blocks accepted\n",
				color.YellowString("SKIP"), name, len(r.Result.Questions), r.Result.Blocks)
		default:
			fmt.Fprintf(w, "%s %s: %d of %d blocks accepted (%s, %s)\n",
				color.GreenString("OK"), name, len(r.Result.Questions), r.Result.Blocks, r.Result.Subject, r.Result.Method)
		}
	}
	return failed
}

// printBreakdown renders the per-subject tallies as a table.
func printBreakdown(w io.Writer, reporter *report.Reporter) error {
	tallies := reporter.Tallies()
	if len(tallies) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.Header("Subject", "Accepted", "Rejected", "Total")
	for _, t := range append(tallies, reporter.Total()) {
		row := []string{t.Subject, strconv.Itoa(t.Accepted), strconv.Itoa(t.Rejected), strconv.Itoa(t.Total())}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// writeOutputs writes the export file and the Markdown summary, when
// requested.
func writeOutputs(w io.Writer, outs extractOutputs, questions []qbank.Question, reporter *report.Reporter) error {
	if outs.out != "" {
		rows := qbank.Rows(questions, export.NewSequence(outs.startID))
		if err := export.WriteFile(outs.out, rows); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %d questions to %s\n", len(rows), outs.out)
	}
	if outs.summary != "" {
		if err := writeSummary(outs.summary, "qbank extraction summary", reporter); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote summary to %s\n", outs.summary)
	}
	if outs.failures != "" {
		fmt.Fprintf(w, "wrote %d rejected blocks to %s\n", len(reporter.Failures()), outs.failures)
	}
	return nil
}

func writeSummary(path, title string, reporter *report.Reporter) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary: %w", err)
	}
	if err := report.WriteMarkdown(f, title, reporter); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
