package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/segyhp/loan-importer/internal/extractor"
	"github.com/segyhp/loan-importer/internal/importer"
	"github.com/segyhp/loan-importer/internal/repository"
	apperrors "github.com/segyhp/loan-importer/pkg/errors"
)

var seedLeadsCmd = &cobra.Command{
	Use:   "seed-leads ROUTE=WORKBOOK [ROUTE=WORKBOOK...]",
	Short: "Create employees for the leads of a workbook that have none",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sources, err := parseSources(args)
		if err != nil {
			return err
		}

		db, err := initDB(cfg)
		if err != nil {
			return apperrors.WrapPersistenceUnavailable(err)
		}
		defer db.Close()

		engine := importer.NewEngine(repository.NewPostgresStore(db), log, importer.OptionsFromConfig(cfg))
		layout := extractor.DefaultLayout()

		for _, s := range sources {
			wb, err := extractor.OpenWorkbook(s.Workbook, cfg.Import.Use1904Dates)
			if err != nil {
				return apperrors.WrapSourceUnreadable(s.Workbook, err)
			}
			leads, rejected, err := extractor.New(wb, wb.DecodeDate, layout).LeadRows()
			_ = wb.Close()
			if err != nil {
				return err
			}
			for _, r := range rejected {
				log.Warn("Lead row rejected", map[string]interface{}{"row": r.Row, "error": r.Err.Error()})
			}

			created, err := engine.SeedLeads(ctx, s.Route, leads)
			if err != nil {
				return fmt.Errorf("seed leads for %s: %w", s.Route, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d leads created, %d already present\n", s.Route, created, len(leads)-created)
		}
		return nil
	},
}
