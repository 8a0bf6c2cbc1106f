package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/qbank"
	"github.com/brunobiangulo/qbank/export"
)

// stemPreview bounds stems printed in tables.
const stemPreview = 70

// NewDocumentsCmd creates the documents command.
func NewDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List stored papers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			docs, err := engine.Documents(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), docs)
			}
			stats, err := engine.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printDocuments(cmd.OutOrStdout(), docs, stats, time.Now())
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Print JSON")
	return cmd
}

// NewQuestionsCmd creates the questions command.
func NewQuestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions <document-id>",
		Short: "List or export the stored questions of one paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			engine, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			qs, err := engine.Questions(cmd.Context(), id)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out, _ := cmd.Flags().GetString("out"); out != "" {
				if err := export.WriteFile(out, qbank.Rows(qs, nil)); err != nil {
					return err
				}
				fmt.Fprintf(w, "wrote %d questions to %s\n", len(qs), out)
				return nil
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(w, qs)
			}
			return printQuestions(w, qs)
		},
	}
	cmd.Flags().StringP("out", "o", "", "Export to a .csv or .xlsx file instead of printing")
	cmd.Flags().BoolP("json", "j", false, "Print JSON")
	return cmd
}

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <words>...",
		Short: "Full-text search over stored stems and options",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return runLookup(cmd, func(e qbank.Engine) ([]qbank.Hit, error) {
				return e.Search(cmd.Context(), strings.Join(args, " "), limit)
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "Maximum number of results")
	return cmd
}

// NewSimilarCmd creates the similar command.
func NewSimilarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <stem>...",
		Short: "Find stored questions whose stems resemble the given one",
		Long: `Similar compares a stem against the stored stem vectors and lists the
nearest questions. Use it to spot the same question reused across papers.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, _ := cmd.Flags().GetInt("k")
			return runLookup(cmd, func(e qbank.Engine) ([]qbank.Hit, error) {
				return e.Similar(cmd.Context(), strings.Join(args, " "), k)
			})
		},
	}
	cmd.Flags().IntP("k", "k", 5, "Number of neighbours")
	return cmd
}

// NewDeleteCmd creates the delete command.
func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a stored paper and its questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			engine, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted document %d\n", id)
			return nil
		},
	}
}

func runLookup(cmd *cobra.Command, lookup func(qbank.Engine) ([]qbank.Hit, error)) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	hits, err := lookup(engine)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matches")
		return nil
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%.3f  %s Q%d  [%s / %s]\n", h.Score, h.Filename, h.QuestionNumber, h.Subject, h.Chapter)
		fmt.Fprintf(w, "       %s\n", h.Stem)
		if h.Snippet != "" {
			fmt.Fprintf(w, "       > %s\n", h.Snippet)
		}
	}
	return nil
}

func printDocuments(w io.Writer, docs []qbank.Document, stats *qbank.Stats, now time.Time) error {
	if len(docs) == 0 {
		fmt.Fprintln(w, "no documents")
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header("ID", "File", "Subject", "Status", "Method", "Accepted", "Rejected", "Updated")
	for _, d := range docs {
		row := []string{
			strconv.FormatInt(d.ID, 10), d.Filename, d.Subject, d.Status, d.ParseMethod,
			strconv.Itoa(d.Accepted), strconv.Itoa(d.Rejected), since(d.UpdatedAt, now),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	if stats != nil {
		fmt.Fprintf(w, "%s documents, %s questions, %s stem vectors, %s rejected blocks\n",
			humanize.Comma(int64(stats.Documents)), humanize.Comma(int64(stats.Questions)),
			humanize.Comma(int64(stats.Vectors)), humanize.Comma(int64(stats.Rejects)))
	}
	return nil
}

func printQuestions(w io.Writer, qs []qbank.Question) error {
	if len(qs) == 0 {
		fmt.Fprintln(w, "no questions")
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header("Q", "Chapter", "Stem", "Answer")
	for _, q := range qs {
		answer := "?"
		if q.HasAnswer() {
			answer = string(rune('A' + q.CorrectIndex))
		}
		row := []string{strconv.Itoa(q.QuestionNumber), q.Chapter, truncate(q.Stem, stemPreview), answer}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// since renders a stored timestamp relative to now. Unparseable values are
// printed as stored.
func since(stamp string, now time.Time) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, stamp); err == nil {
			return humanize.RelTime(t, now, "ago", "from now")
		}
	}
	return stamp
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", s)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
