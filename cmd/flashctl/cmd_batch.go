package main

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/flash/internal/camp"
	"github.com/ZanzyTHEbar/flash/internal/dataset"
	"github.com/ZanzyTHEbar/flash/internal/ensemble"
)

// resultColumns are appended to the input columns in the output workbook.
var resultColumns = []string{
	"success_probability",
	"confidence_score",
	"verdict",
	"verdict_strength",
	"risk_level",
	"model_agreement",
	"camp_capital",
	"camp_advantage",
	"camp_market",
	"camp_people",
	"camp_overall",
	"degraded",
	"error",
}

type batchOptions struct {
	input    string
	output   string
	sheet    string
	campOnly bool
	workers  int
}

func (c *cli) newBatchCmd() *cobra.Command {
	opts := batchOptions{}
	cmd := &cobra.Command{
		Use:     "batch",
		Short:   "Score every row of a spreadsheet",
		Long:    `Reads startups from an .xlsx or .csv file whose header row names the features, scores each row and writes an .xlsx with the result columns appended.`,
		Example: `  flashctl batch -i pipeline.xlsx -s Startups -o scored.xlsx`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runBatch(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input .xlsx or .csv file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output .xlsx file")
	cmd.Flags().StringVarP(&opts.sheet, "sheet", "s", dataset.DefaultSheet, "sheet to read and write")
	cmd.Flags().BoolVar(&opts.campOnly, "camp", false, "score from the CAMP pillars alone")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", runtime.GOMAXPROCS(0), "rows scored concurrently")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

type scoredRow struct {
	result ensemble.Result
	err    error
}

func (c *cli) runBatch(cmd *cobra.Command, opts batchOptions) error {
	table, err := dataset.Read(opts.input, opts.sheet)
	if err != nil {
		return err
	}

	eng, _, err := c.loadEngine()
	if err != nil {
		return err
	}

	predict := eng.Orchestrator.Predict
	if opts.campOnly {
		predict = eng.Orchestrator.PredictCAMP
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	records := table.Records()
	scored := make([]scoredRow, len(records))

	g, gctx := errgroup.WithContext(ctx)
	if opts.workers > 0 {
		g.SetLimit(opts.workers)
	}
	for i, record := range records {
		g.Go(func() error {
			res, err := predict(gctx, record)
			scored[i] = scoredRow{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	headers := append(append([]string(nil), table.Headers...), resultColumns...)
	rows := make([][]any, len(records))
	verdicts := map[string]int{}
	failed := 0
	for i, row := range table.Rows {
		out := make([]any, 0, len(headers))
		for j := range table.Headers {
			if j < len(row) {
				out = append(out, row[j])
			} else {
				out = append(out, "")
			}
		}
		out = append(out, resultCells(scored[i])...)
		rows[i] = out

		if scored[i].err != nil {
			failed++
		} else {
			verdicts[string(scored[i].result.Verdict)]++
		}
	}

	if err := dataset.WriteXLSX(opts.output, opts.sheet, headers, rows); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "scored %d rows into %s (%d failed)\n", len(records), opts.output, failed)
	names := make([]string, 0, len(verdicts))
	for name := range verdicts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %d\n", name, verdicts[name])
	}
	return nil
}

func resultCells(s scoredRow) []any {
	if s.err != nil {
		cells := make([]any, len(resultColumns))
		for i := range cells {
			cells[i] = ""
		}
		cells[len(cells)-1] = s.err.Error()
		return cells
	}

	r := s.result
	return []any{
		r.SuccessProbability,
		r.Confidence,
		string(r.Verdict),
		string(r.VerdictStrength),
		string(r.RiskLevel),
		r.ModelAgreement,
		r.CAMP.Pillar(camp.Capital),
		r.CAMP.Pillar(camp.Advantage),
		r.CAMP.Pillar(camp.Market),
		r.CAMP.Pillar(camp.People),
		r.CAMP.Overall,
		r.Degraded,
		"",
	}
}
