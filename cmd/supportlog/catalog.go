package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"supportlog/internal/catalog"
)

var catalogSyncCmd = &cobra.Command{
	Use:   "catalog:sync",
	Short: "Download the technician catalog from CATALOG_URL and store it locally",
	Args:  cobra.NoArgs,
	RunE:  runCatalogSync,
}

var catalogShowCmd = &cobra.Command{
	Use:   "catalog:show",
	Short: "Print the technician catalog in effect as YAML",
	Args:  cobra.NoArgs,
	RunE:  runCatalogShow,
}

func init() {
	rootCmd.AddCommand(catalogSyncCmd, catalogShowCmd)
}

func runCatalogSync(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.Require("CATALOG_URL", a.cfg.CatalogURL); err != nil {
		return err
	}
	n, err := catalog.NewSyncService(a.db, a.cfg, a.log).Sync(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "catalog synced: %d rules\n", n)
	return nil
}

func runCatalogShow(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	cat, source, err := catalog.Resolve(cmd.Context(), a.cfg, a.db)
	if err != nil {
		return err
	}
	blob, err := catalog.Marshal(cat)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n%s", source, blob)
	return nil
}
