package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/qbank"
	"github.com/brunobiangulo/qbank/export"
	"github.com/brunobiangulo/qbank/report"
)

// maxListedRows caps the unparsed rows printed per question bank.
const maxListedRows = 10

// NewImportCmd creates the import command.
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <bank.csv|bank.xlsx>...",
		Short: "Import questions from a CSV or XLSX question bank",
		Long: `Import reads question banks whose "eng" column holds a stem followed by
four labelled options (A. B) C: D) and whose "Subject" column names the
subject. Imported questions carry no answer. Rows that cannot be split
into a stem and four options are listed by line number.

Examples:
  qbank import kaggle_neet.csv
  qbank import bank.xlsx --subject Physics --out physics.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportCmd,
	}

	cmd.Flags().StringP("subject", "s", "", "Subject for every row (default: the Subject column)")
	cmd.Flags().String("source", "", "Source label written to each question (default: file name)")
	cmd.Flags().StringP("out", "o", "", "Export imported questions to a .csv or .xlsx file")
	cmd.Flags().Int64("start-id", 0, "Exported ids start after this value when no store assigns them")
	cmd.Flags().Bool("no-store", false, "Do not use the database")

	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	var engineOpts []qbank.Option
	if noStore, _ := cmd.Flags().GetBool("no-store"); noStore {
		engineOpts = append(engineOpts, qbank.WithoutStore())
	}
	engine, err := openEngine(cmd, engineOpts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	reporter := report.New(nil)
	opts := []qbank.ExtractOption{qbank.WithReporter(reporter)}
	if subject, _ := cmd.Flags().GetString("subject"); subject != "" {
		opts = append(opts, qbank.WithSubject(subject))
	}
	if source, _ := cmd.Flags().GetString("source"); source != "" {
		opts = append(opts, qbank.WithSource(source))
	}

	w := cmd.OutOrStdout()
	var questions []qbank.Question
	failed := 0
	for _, path := range args {
		res, err := engine.Import(cmd.Context(), path, opts...)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", color.RedString("FAIL"), filepath.Base(path), err)
			continue
		}
		fmt.Fprintf(w, "%s %s: %d of %d rows imported\n",
			color.GreenString("OK"), filepath.Base(path), len(res.Questions), res.Total)
		for i, fl := range res.Failures {
			if i == maxListedRows {
				fmt.Fprintf(w, "  ... %d more\n", len(res.Failures)-maxListedRows)
				break
			}
			fmt.Fprintf(w, "  line %d: %s\n", fl.Line, fl.Preview)
		}
		questions = append(questions, res.Questions...)
	}

	if err := printBreakdown(w, reporter); err != nil {
		return err
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		startID, _ := cmd.Flags().GetInt64("start-id")
		qbank.SortQuestions(questions)
		rows := qbank.Rows(questions, export.NewSequence(startID))
		if err := export.WriteFile(out, rows); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %d questions to %s\n", len(rows), out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d question banks failed", failed, len(args))
	}
	return nil
}
