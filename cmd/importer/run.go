package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/extractor"
	"github.com/segyhp/loan-importer/internal/importer"
	"github.com/segyhp/loan-importer/internal/metrics"
	"github.com/segyhp/loan-importer/internal/repository"
	"github.com/segyhp/loan-importer/internal/repository/memory"
	"github.com/segyhp/loan-importer/internal/status"
	apperrors "github.com/segyhp/loan-importer/pkg/errors"
)

var (
	dryRun      bool
	strict      bool
	metricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run ROUTE=WORKBOOK [ROUTE=WORKBOOK...]",
	Short: "Import one or more route workbooks",
	Example: `  importer run RUTA1=./data/ruta1.xlsx RUTA2=./data/ruta2.xlsx
  importer run --dry-run RUTA1=./data/ruta1.xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "import into memory and print the summary without touching Postgres")
	runCmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when a route is not reconciled or a batch failed")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while importing")
}

type routeSource struct {
	Route    string
	Workbook string
}

// parseSources reads ROUTE=WORKBOOK arguments. A route may appear once.
func parseSources(args []string) ([]routeSource, error) {
	seen := make(map[string]bool, len(args))
	out := make([]routeSource, 0, len(args))
	for _, arg := range args {
		route, path, ok := strings.Cut(arg, "=")
		route = strings.TrimSpace(route)
		path = strings.TrimSpace(path)
		if !ok || route == "" || path == "" {
			return nil, fmt.Errorf("invalid source %q, expected ROUTE=WORKBOOK", arg)
		}
		if seen[route] {
			return nil, fmt.Errorf("route %s given more than once", route)
		}
		seen[route] = true
		out = append(out, routeSource{Route: route, Workbook: path})
	}
	return out, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sources, err := parseSources(args)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Metrics server stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
		defer srv.Close()
	}

	// Every workbook is read before the first write so an unreadable source
	// aborts the command with nothing imported.
	layout := extractor.DefaultLayout()
	loaded, err := loadSources(sources, layout, cfg.Import.Use1904Dates)
	if err != nil {
		return err
	}

	var (
		store     repository.Store
		recorders = []importer.Recorder{metrics.Recorder{}}
	)
	if dryRun {
		store = memory.NewStore()
		log.Info("Dry run: importing into memory", nil)
	} else {
		db, err := initDB(cfg)
		if err != nil {
			return apperrors.WrapPersistenceUnavailable(err)
		}
		defer db.Close()
		store = repository.NewPostgresStore(db)

		redisClient := initRedis(cfg)
		defer redisClient.Close()
		recorders = append(recorders, status.NewStore(redisClient, cfg.Redis.SummaryTTL))
	}

	engine := importer.NewEngine(store, log, importer.OptionsFromConfig(cfg), recorders...)

	var (
		summaries []*domain.RunSummary
		importErr error
	)
	for i, s := range sources {
		src := loaded[i]
		if dryRun {
			if _, err := engine.SeedLeads(ctx, s.Route, src.Leads); err != nil {
				importErr = err
				break
			}
		}

		summary, err := engine.ImportRoute(ctx, s.Route, src)
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil {
			importErr = fmt.Errorf("import route %s: %w", s.Route, err)
			break
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summaries); err != nil {
		return err
	}
	if importErr != nil {
		return importErr
	}

	if strict {
		for _, s := range summaries {
			if !s.Reconciled() || s.FailedBatches > 0 {
				return fmt.Errorf("route %s: %d of %d rows accounted for, %d failed batches",
					s.Route, s.Processed(), s.SourceRows, s.FailedBatches)
			}
		}
	}
	return nil
}

// loadSources reads and extracts every workbook, in argument order.
func loadSources(sources []routeSource, layout extractor.Layout, use1904 bool) ([]importer.Source, error) {
	out := make([]importer.Source, 0, len(sources))
	for _, s := range sources {
		src, err := loadWorkbook(s.Workbook, layout, use1904)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", s.Route, err)
		}
		out = append(out, src)
	}
	return out, nil
}

func loadWorkbook(path string, layout extractor.Layout, use1904 bool) (importer.Source, error) {
	wb, err := extractor.OpenWorkbook(path, use1904)
	if err != nil {
		return importer.Source{}, apperrors.WrapSourceUnreadable(path, err)
	}
	defer wb.Close()

	ex := extractor.New(wb, wb.DecodeDate, layout)
	return importer.LoadSource(ex, layout, wb.SheetNames(), log.WithFields(map[string]interface{}{"workbook": path}))
}
