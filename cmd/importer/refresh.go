package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/segyhp/loan-importer/internal/importer"
	"github.com/segyhp/loan-importer/internal/lifecycle"
	"github.com/segyhp/loan-importer/internal/repository"
	apperrors "github.com/segyhp/loan-importer/pkg/errors"
)

var refreshAll bool

var refreshCmd = &cobra.Command{
	Use:   "refresh [ROUTE...]",
	Short: "Recompute loan balances, terminal states and account balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := initDB(cfg)
		if err != nil {
			return apperrors.WrapPersistenceUnavailable(err)
		}
		defer db.Close()

		engine := importer.NewEngine(repository.NewPostgresStore(db), log, importer.OptionsFromConfig(cfg))

		var results []*lifecycle.Result
		if refreshAll || len(args) == 0 {
			results, err = engine.RefreshAll(ctx)
			if err != nil {
				return err
			}
		} else {
			for _, route := range args {
				res, err := engine.Refresh(ctx, route)
				if err != nil {
					return err
				}
				results = append(results, res)
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "refresh every route")
}
