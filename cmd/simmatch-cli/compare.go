package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"yashubustudio/simmatch/simmatch"
)

type compareOptions struct {
	leftPath       string
	rightPath      string
	leftName       string
	rightName      string
	leftColumn     string
	rightColumn    string
	leftIDColumns  []string
	rightIDColumns []string
	threshold      *float32
	outputPath     string
	outputDir      string
	sheet          string
	sortBy         string
	best           bool
	stdout         bool
}

func newCompareCmd(root *rootOptions) *cobra.Command {
	opts := &compareOptions{}
	var threshold float32
	cmd := &cobra.Command{
		Use:   "compare --left FILE --right FILE",
		Short: "Score every row of the left file against every row of the right file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.leftPath = strings.TrimSpace(opts.leftPath)
			opts.rightPath = strings.TrimSpace(opts.rightPath)
			if opts.leftPath == "" || opts.rightPath == "" {
				return errors.New("both --left and --right are required")
			}
			if opts.sortBy != "" && opts.sortBy != "row" && opts.sortBy != "score" {
				return fmt.Errorf("unknown --sort %q (row or score)", opts.sortBy)
			}
			if cmd.Flags().Changed("threshold") {
				if !(threshold >= -1 && threshold <= 1) {
					return fmt.Errorf("--threshold %v: %w", threshold, simmatch.ErrInvalidThreshold)
				}
				opts.threshold = &threshold
			}
			return runCompare(cmd, root, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.leftPath, "left", "", "First spreadsheet (.xlsx, .csv or .tsv)")
	f.StringVar(&opts.rightPath, "right", "", "Second spreadsheet (.xlsx, .csv or .tsv)")
	f.StringVar(&opts.leftName, "left-name", "", "Name used for the first file in the report (default: file name)")
	f.StringVar(&opts.rightName, "right-name", "", "Name used for the second file in the report (default: file name)")
	f.StringVar(&opts.leftColumn, "left-column", "", "Column name or #index holding the text of the first file")
	f.StringVar(&opts.rightColumn, "right-column", "", "Column name or #index holding the text of the second file")
	f.StringSliceVar(&opts.leftIDColumns, "left-id-columns", nil, "Columns of the first file copied into the export")
	f.StringSliceVar(&opts.rightIDColumns, "right-id-columns", nil, "Columns of the second file copied into the export")
	f.Float32Var(&threshold, "threshold", 0, "Minimum similarity, within [-1, 1] (default from config, 0.7)")
	f.StringVar(&opts.outputPath, "output", "", "Result file, .xlsx or .csv (default uses --output-dir/matches_*.xlsx)")
	f.StringVar(&opts.outputDir, "output-dir", "", "Directory where results are written when --output is omitted")
	f.StringVar(&opts.sheet, "sheet", "", "Worksheet name of the export")
	f.StringVar(&opts.sortBy, "sort", "row", "Order of matches: row or score")
	f.BoolVar(&opts.best, "best", false, "Add a sheet with the best match of every left row")
	f.BoolVar(&opts.stdout, "stdout", false, "Print the report lines to STDOUT")
	return cmd
}

func runCompare(cmd *cobra.Command, root *rootOptions, opts *compareOptions) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)
	embedder, err := simmatch.NewEmbedder(cmd.Context(), cfg.Embedder, logger)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	service, err := simmatch.NewService(embedder, cfg, logger)
	if err != nil {
		_ = embedder.Close()
		return fmt.Errorf("init service: %w", err)
	}
	defer service.Close()

	res, err := service.CompareFiles(cmd.Context(), opts.leftPath, opts.rightPath, simmatch.CompareOptions{
		Threshold: opts.threshold,
		Left: simmatch.TableSpec{
			Name:       opts.leftName,
			TextColumn: opts.leftColumn,
			IDColumns:  opts.leftIDColumns,
		},
		Right: simmatch.TableSpec{
			Name:       opts.rightName,
			TextColumn: opts.rightColumn,
			IDColumns:  opts.rightIDColumns,
		},
		SortByScore: opts.sortBy == "score",
	})
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	dir := opts.outputDir
	if dir == "" {
		dir = cfg.Output.Dir
	}
	outputPath, err := resolveOutputPath(opts.outputPath, dir, time.Now())
	if err != nil {
		return err
	}
	sheet := opts.sheet
	if sheet == "" {
		sheet = cfg.Output.SheetName
	}
	if err := simmatch.SaveMatches(outputPath, res, simmatch.ExportOptions{SheetName: sheet, IncludeBest: opts.best}); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.stdout {
		printReport(out, res)
	}
	fmt.Fprintln(out, color.CyanString("%s", simmatch.Summary(res)))
	fmt.Fprintf(out, "照合結果を %s に保存しました\n", outputPath)
	return nil
}

func loadConfig(root *rootOptions) (simmatch.Config, error) {
	if root.envFile != "" {
		simmatch.LoadDotEnv(root.envFile)
	} else {
		simmatch.LoadDotEnv()
	}
	cfg, err := simmatch.LoadConfig(root.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	simmatch.ApplyEnv(&cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

func resolveOutputPath(path, dir string, now time.Time) (string, error) {
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve output path: %w", err)
		}
		return absPath, nil
	}
	if dir == "" {
		dir = "output"
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	filename := fmt.Sprintf("matches_%s.xlsx", now.Format("20060102150405"))
	return filepath.Join(absDir, filename), nil
}

func printReport(w io.Writer, res simmatch.Result) {
	if len(res.Matches) == 0 {
		fmt.Fprintln(w, color.YellowString("No pair reached %.2f", res.Threshold))
		return
	}
	for _, m := range res.Matches {
		line := simmatch.FormatMatch(m, res.Left.Name, res.Right.Name)
		if m.Score >= 0.9 {
			fmt.Fprintln(w, color.GreenString("%s", line))
		} else {
			fmt.Fprintln(w, line)
		}
	}
	counts := simmatch.CountByRight(res.Matches)
	rows := make([]int, 0, len(counts))
	for row, n := range counts {
		if n > 1 {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return
	}
	sort.Ints(rows)
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.New(color.Bold).Sprintf("Rows of %s matched more than once:", res.Right.Name))
	for _, row := range rows {
		fmt.Fprintf(w, "  sentence %d: %d matches\n", row, counts[row])
	}
}
