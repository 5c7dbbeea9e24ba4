package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"supportlog/internal/pipeline"
)

var exportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Export the records of a saved analysis to xlsx, csv or json",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import FILE.xlsx",
	Short: "Save an edited spreadsheet as a new analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var (
	exportOut        string
	exportTechnician []string
	exportCategory   []string
	exportClient     []string
	exportSearch     string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file; the extension picks the format (default OUTPUT_DIR/analysis_<id>.xlsx)")
	exportCmd.Flags().StringSliceVar(&exportTechnician, "technician", nil, "Keep only these technicians")
	exportCmd.Flags().StringSliceVar(&exportCategory, "category", nil, "Keep only these categories")
	exportCmd.Flags().StringSliceVar(&exportClient, "client", nil, "Keep only these clients")
	exportCmd.Flags().StringVar(&exportSearch, "search", "", "Keep records containing this text in any field")

	rootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	categories, err := toCategories(exportCategory)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.store.GetAnalysis(cmd.Context(), id); err != nil {
		return fmt.Errorf("analysis %d: %w", id, err)
	}
	records, err := a.store.RecordsByAnalysis(cmd.Context(), id)
	if err != nil {
		return err
	}
	records = pipeline.FilterRecords(records, pipeline.Filter{
		Technicians: exportTechnician,
		Categories:  categories,
		Clients:     exportClient,
		Search:      exportSearch,
	})

	out := exportOut
	if out == "" {
		out = filepath.Join(a.cfg.OutputDir, fmt.Sprintf("analysis_%d.xlsx", id))
	}
	if err := pipeline.ExportFile(out, records); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", len(records), out)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := pipeline.ImportXLSX(f)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	res, err := a.processor.SaveRecords(cmd.Context(), name, records)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d records as analysis %d\n", len(res.Records), res.AnalysisID)
	return nil
}
