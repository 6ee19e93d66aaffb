package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rigforge/rigforge/internal/catalog"
	"github.com/rigforge/rigforge/internal/importer"
)

var (
	importXLSXPath     string
	importManifestPath string
	importYAMLPath     string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a supplier price list (xlsx) or a YAML catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importXLSXPath == "" && importYAMLPath == "" {
			return eris.New("either --xlsx (with --manifest) or --yaml is required")
		}
		if importXLSXPath != "" && importManifestPath == "" {
			return eris.New("--manifest is required with --xlsx")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		imp := importer.New(st, catalog.New(st), importer.Options{
			MaxConcurrentSheets: cfg.Import.MaxConcurrentSheets,
			BatchSize:           cfg.Import.BatchSize,
		})

		var report *importer.Report
		if importYAMLPath != "" {
			report, err = imp.ImportCatalogFile(ctx, importYAMLPath)
		} else {
			var manifest *importer.Manifest
			manifest, err = importer.LoadManifest(importManifestPath)
			if err != nil {
				return err
			}
			report, err = imp.ImportFile(ctx, importXLSXPath, manifest)
		}
		if err != nil {
			return err
		}

		for _, rowErr := range report.Errors {
			zap.L().Warn("row rejected",
				zap.String("sheet", rowErr.Sheet),
				zap.Int("row", rowErr.Row),
				zap.String("error", rowErr.Err),
			)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "path to xlsx price list")
	importCmd.Flags().StringVar(&importManifestPath, "manifest", "", "path to sheet-mapping manifest")
	importCmd.Flags().StringVar(&importYAMLPath, "yaml", "", "path to YAML catalog")
	rootCmd.AddCommand(importCmd)
}
