package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"supportlog/internal"
	"supportlog/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Check that support logs have the expected structure",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Parse a support log and print or export its records without saving them",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE...",
	Short: "Parse support logs and save each one as an analysis",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

var (
	parseOut        string
	parseFormat     string
	parseTechnician []string
	parseCategory   []string
	parseSearch     string
	analyzeOutDir   string
)

func init() {
	parseCmd.Flags().StringVarP(&parseOut, "out", "o", "", "Write records to this file (.xlsx, .csv or .json)")
	parseCmd.Flags().StringVar(&parseFormat, "format", "table", "Stdout format when --out is not set: table, csv or json")
	parseCmd.Flags().StringSliceVar(&parseTechnician, "technician", nil, "Keep only these technicians")
	parseCmd.Flags().StringSliceVar(&parseCategory, "category", nil, "Keep only these categories")
	parseCmd.Flags().StringVar(&parseSearch, "search", "", "Keep records containing this text in any field")

	analyzeCmd.Flags().StringVar(&analyzeOutDir, "export-dir", "", "Also export each analysis as xlsx into this directory")

	rootCmd.AddCommand(validateCmd, parseCmd, analyzeCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		doc, err := pipeline.LoadDocument(path)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
			failed++
			continue
		}
		ok, msg := pipeline.Validate(doc.Text)
		status := "ok"
		if !ok {
			status = "invalid"
			failed++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", path, status, msg)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(args))
	}
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	categories, err := toCategories(parseCategory)
	if err != nil {
		return err
	}
	parser, err := offlineParser()
	if err != nil {
		return err
	}
	doc, err := pipeline.LoadDocument(args[0])
	if err != nil {
		return err
	}
	if err := pipeline.ValidateErr(doc.Text); err != nil {
		return err
	}

	records := pipeline.FilterRecords(parser.Parse(doc.Text), pipeline.Filter{
		Technicians: parseTechnician,
		Categories:  categories,
		Search:      parseSearch,
	})

	if parseOut != "" {
		if err := pipeline.ExportFile(parseOut, records); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", len(records), parseOut)
		return nil
	}
	if parseFormat == "table" {
		printRecords(cmd, records)
		return nil
	}
	return pipeline.Export(parseFormat, records, cmd.OutOrStdout())
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.processor.ProcessFiles(cmd.Context(), args)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			var verr *pipeline.ValidationError
			if errors.As(r.Err, &verr) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: rejected (%s)\n", r.Path, verr.Reason)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", r.Path, r.Err)
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: analysis %d, %d records, %d technicians\n",
			r.Path, r.AnalysisID, len(r.Records), r.Analysis.DistinctTechnicians)
		if analyzeOutDir != "" {
			out := filepath.Join(analyzeOutDir, fmt.Sprintf("%d_%s.xlsx", r.AnalysisID, strings.TrimSuffix(filepath.Base(r.Path), filepath.Ext(r.Path))))
			if err := pipeline.ExportFile(out, r.Records); err != nil {
				return err
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) not analyzed", failed, len(results))
	}
	return nil
}

func toCategories(values []string) ([]internal.Category, error) {
	out := make([]internal.Category, 0, len(values))
	for _, v := range values {
		c, ok := categoryByName(v)
		if !ok {
			names := make([]string, 0, len(internal.Categories()))
			for _, c := range internal.Categories() {
				names = append(names, string(c))
			}
			return nil, fmt.Errorf("unknown category %q (want one of %s)", v, strings.Join(names, ", "))
		}
		out = append(out, c)
	}
	return out, nil
}

func categoryByName(name string) (internal.Category, bool) {
	for _, c := range internal.Categories() {
		if strings.EqualFold(strings.TrimSpace(name), string(c)) {
			return c, true
		}
	}
	return "", false
}

func printRecords(cmd *cobra.Command, records []internal.AttendanceRecord) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tOS\tCLIENT\tTECHNICIAN\tCATEGORY\tVERSION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Date, r.ServiceOrderID, r.Client, r.Technician, r.Category, r.Version)
	}
	_ = w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "%d records\n", len(records))
}

