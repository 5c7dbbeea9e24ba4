package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"supportlog/internal"
	"supportlog/internal/pipeline"
	"supportlog/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved analyses, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one analysis and its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print totals across all analyses, or per technician for one analysis",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Query saved records by technician or client",
	Args:  cobra.NoArgs,
	RunE:  runRecords,
}

var notesCmd = &cobra.Command{
	Use:   "notes ID TEXT",
	Short: "Attach notes to an analysis",
	Args:  cobra.ExactArgs(2),
	RunE:  runNotes,
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an analysis and its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete analyses older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runPurge,
}

var (
	historyLimit      int
	showJSON          bool
	statsAnalysisID   int64
	recordsTechnician string
	recordsClient     string
	recordsLimit      int
	purgeDays         int
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum analyses to list")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the analysis and records as JSON")
	statsCmd.Flags().Int64Var(&statsAnalysisID, "id", 0, "Summarize this analysis per technician")
	recordsCmd.Flags().StringVar(&recordsTechnician, "technician", "", "Technician name")
	recordsCmd.Flags().StringVar(&recordsClient, "client", "", "Client name")
	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 100, "Maximum records to return")
	recordsCmd.MarkFlagsMutuallyExclusive("technician", "client")
	recordsCmd.MarkFlagsOneRequired("technician", "client")
	purgeCmd.Flags().IntVar(&purgeDays, "days", 0, "Retention in days (default RETENTION_DAYS)")

	rootCmd.AddCommand(historyCmd, showCmd, statsCmd, recordsCmd, notesCmd, deleteCmd, purgeCmd)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid analysis id: %q", arg)
	}
	return id, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	analyses, err := a.store.ListAnalyses(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSOURCE\tRECORDS\tTECHNICIANS\tCLIENTS\tUSER")
	for _, an := range analyses {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
			an.ID, an.CreatedAt.Local().Format("2006-01-02 15:04"), an.SourceName,
			an.TotalRecords, an.DistinctTechnicians, an.DistinctClients, an.User)
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	analysis, err := a.store.GetAnalysis(cmd.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("analysis %d not found", id)
	}
	if err != nil {
		return err
	}
	records, err := a.store.RecordsByAnalysis(cmd.Context(), id)
	if err != nil {
		return err
	}

	if showJSON {
		blob, err := pipeline.ExportAnalysisJSON(analysis, records)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(blob))
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "analysis %d: %s\n", analysis.ID, analysis.SourceName)
	fmt.Fprintf(out, "created %s by %s\n", analysis.CreatedAt.Local().Format("2006-01-02 15:04:05"), analysis.User)
	fmt.Fprintf(out, "records %d, technicians %d, clients %d, orders %d\n",
		analysis.TotalRecords, analysis.DistinctTechnicians, analysis.DistinctClients, analysis.DistinctOrders)
	for _, c := range internal.Categories() {
		fmt.Fprintf(out, "  %-13s %d\n", c, analysis.Categories[c])
	}
	if analysis.Notes != nil {
		fmt.Fprintf(out, "notes: %s\n", *analysis.Notes)
	}
	printRecords(cmd, records)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if statsAnalysisID > 0 {
		records, err := a.store.RecordsByAnalysis(cmd.Context(), statsAnalysisID)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TECHNICIAN\tORDERS\tCLIENTS\tERRORS")
		for _, s := range pipeline.SummarizeByTechnician(records) {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", s.Technician, s.DistinctOrders, s.Clients, s.Errors)
		}
		return w.Flush()
	}

	stats, err := a.store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "analyses %d\nrecords %d\ntechnicians %d\nclients %d\n",
		stats.TotalAnalyses, stats.TotalRecords, stats.DistinctTechnicians, stats.DistinctClients)
	return nil
}

func runRecords(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var records []internal.AttendanceRecord
	if recordsTechnician != "" {
		records, err = a.store.RecordsByTechnician(cmd.Context(), recordsTechnician, recordsLimit)
	} else {
		records, err = a.store.RecordsByClient(cmd.Context(), recordsClient, recordsLimit)
	}
	if err != nil {
		return err
	}
	printRecords(cmd, records)
	return nil
}

func runNotes(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.UpdateNotes(cmd.Context(), id, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "notes saved on analysis %d\n", id)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteAnalysis(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "analysis %d deleted\n", id)
	return nil
}

func runPurge(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	days := purgeDays
	if days <= 0 {
		days = a.cfg.RetentionDays
	}
	n, err := a.store.PurgeOlderThan(cmd.Context(), days)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d analyses older than %d days\n", n, days)
	return nil
}
