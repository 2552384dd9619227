package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"locksmith-coverage/internal/api"
	"locksmith-coverage/internal/coverage"
	"locksmith-coverage/internal/heatmap"
	"locksmith-coverage/internal/models"
	"locksmith-coverage/internal/parser"
	"locksmith-coverage/internal/readiness"
	"locksmith-coverage/internal/sample"
	"locksmith-coverage/internal/tiers"
)

// serverCmd starts the REST API server
func serverCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			profiles, err := a.openProfiles()
			if err != nil {
				return err
			}
			defer profiles.Close()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			server := api.NewServer(database, profiles, api.Options{
				Logger:   a.logger,
				Registry: registry,
				Workers:  a.cfg.Fleet.Workers,
			})
			addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("api server listening",
					zap.String("addr", addr),
					zap.String("db", a.cfg.DB.Path),
					zap.String("profiles", a.cfg.Profiles.Path),
				)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			}
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "Server port")
	cmd.Flags().Int("workers", 4, "Worker count for fleet readiness requests")
	_ = a.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = a.v.BindPFlag("fleet.workers", cmd.Flags().Lookup("workers"))
	return cmd
}

// ingestCmd loads baseline files into the coverage database
func ingestCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest coverage baselines from CSV, JSON, NDJSON or YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			out := cmd.OutOrStdout()
			p := parser.NewParser(format, a.logger)
			totalRecords := 0
			totalErrors := 0

			for _, file := range args {
				fmt.Fprintf(out, "Processing %s...\n", file)
				start := time.Now()

				records, err := p.ParseFile(file)
				if err != nil {
					fmt.Fprintf(out, "  Error: %v\n", err)
					totalErrors++
					continue
				}
				for _, w := range p.Warnings() {
					fmt.Fprintf(out, "  Skipped %s\n", w)
				}
				totalErrors += len(p.Warnings())
				if len(records) == 0 {
					continue
				}

				count, err := database.InsertBaselineBatch(records)
				if err != nil {
					fmt.Fprintf(out, "  Database error: %v\n", err)
					totalErrors++
					continue
				}

				fmt.Fprintf(out, "  Inserted %d baselines in %v\n", count, time.Since(start).Round(time.Millisecond))
				totalRecords += int(count)
			}

			fmt.Fprintf(out, "\nTotal: %d baselines ingested", totalRecords)
			if totalErrors > 0 {
				fmt.Fprintf(out, ", %d errors", totalErrors)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "File format (csv, json, ndjson, yaml); default from extension")
	return cmd
}

// readinessCmd answers "can I service this vehicle with what I own?"
func readinessCmd(a *app) *cobra.Command {
	var (
		mk, model    string
		year         int
		tools        []string
		cables       []string
		profileID    string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Classify readiness for one vehicle against owned tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mk == "" || model == "" || year <= 0 {
				return errors.New("--make, --model and --year are required")
			}
			owned, err := a.ownedTools(profileID, models.OwnedToolSet{ToolIDs: tools, Cables: cables})
			if err != nil {
				return err
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			vehicle, baselines, err := database.Target(mk, model, year)
			if err != nil {
				return fmt.Errorf("query error: %w", err)
			}
			if len(baselines) == 0 {
				a.logger.Warn("no baselines for vehicle", zap.String("vehicle", vehicle.Label()))
			}

			result := readiness.NewAssessor(nil).Assess(vehicle, baselines, owned)
			if outputFormat == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			renderReadiness(cmd.OutOrStdout(), newTheme(), result, owned)
			return nil
		},
	}

	cmd.Flags().StringVar(&mk, "make", "", "Vehicle make")
	cmd.Flags().StringVar(&model, "model", "", "Vehicle model")
	cmd.Flags().IntVar(&year, "year", 0, "Vehicle model year")
	cmd.Flags().StringSliceVarP(&tools, "tool", "t", nil, "Owned tool id (repeatable)")
	cmd.Flags().StringSliceVar(&cables, "cable", nil, "Owned cable or adapter (repeatable)")
	cmd.Flags().StringVar(&profileID, "profile", "", "Owned-tool profile id to load")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// heatmapCmd projects the coverage heatmap
func heatmapCmd(a *app) *cobra.Command {
	var mk, model, sortBy, outputFormat string

	cmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Show coverage heatmap per vehicle group",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			baselines, err := database.ListBaselines(models.VehicleQuery{Make: mk, Model: model})
			if err != nil {
				return fmt.Errorf("query error: %w", err)
			}

			result := heatmap.Project(baselines)
			switch sortBy {
			case "vehicle":
			case "severity":
				result = heatmap.WorstFirst(result)
			default:
				return fmt.Errorf("unknown sort %q (use vehicle or severity)", sortBy)
			}
			if outputFormat == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			renderHeatmap(cmd.OutOrStdout(), newTheme(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&mk, "make", "", "Filter by make")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model")
	cmd.Flags().StringVar(&sortBy, "sort", "vehicle", "Group order (vehicle, severity)")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// inferCmd evaluates one tool against an ad-hoc baseline
func inferCmd(a *app) *cobra.Command {
	var (
		toolID, status, platform string
		limitations              []string
		yearEnd                  int
	)

	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Infer effective coverage of one tool for a baseline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if toolID == "" {
				return errors.New("--tool is required")
			}
			limits := make([]models.Limitation, 0, len(limitations))
			for _, l := range limitations {
				limits = append(limits, models.Limitation{Category: models.NormalizeLimitation(l)})
			}

			verdict, rule := coverage.NewEngine(nil).Trace(toolID, models.ParseCoverageStatus(status), platform, limits, yearEnd)
			return writeJSON(cmd.OutOrStdout(), map[string]any{"verdict": verdict, "rule": rule})
		},
	}

	cmd.Flags().StringVarP(&toolID, "tool", "t", "", "Tool id")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Baseline status (Yes, Partial, Check, No)")
	cmd.Flags().StringVar(&platform, "platform", "", "Vehicle platform tag")
	cmd.Flags().StringSliceVarP(&limitations, "limitation", "l", nil, "Limitation category (repeatable)")
	cmd.Flags().IntVar(&yearEnd, "year-end", 0, "Last model year of the baseline range")
	return cmd
}

// tiersCmd lists the built-in tool tier catalog
func tiersCmd(a *app) *cobra.Command {
	var (
		outputFormat string
		all          bool
	)

	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "List known tool tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return listTools(cmd.OutOrStdout(), outputFormat)
			}
			list := tiers.Default().Tiers()
			if outputFormat == "json" {
				return writeJSON(cmd.OutOrStdout(), list)
			}

			out := cmd.OutOrStdout()
			t := newTheme()
			fmt.Fprintf(out, "%-22s %-9s %5s  %s\n", "Tool", "Family", "Cov%", "Excludes")
			fmt.Fprintln(out, t.Muted.Render(strings.Repeat("-", 72)))
			for _, tier := range list {
				excludes := append([]string{}, tier.ExcludedPlatforms...)
				for _, c := range []models.LimitationCategory{
					models.LimitBenchRequired, models.LimitServerRequired, models.LimitAKLBlocked,
					models.LimitTokenRequired, models.LimitDealerOnly, models.LimitPINRequired,
					models.LimitAdapterRequired, models.LimitHighRisk,
				} {
					if tier.ExcludedLimitations[c] {
						excludes = append(excludes, string(c))
					}
				}
				fmt.Fprintf(out, "%-22s %-9s %5d  %s\n", tier.ID, tier.Family, tier.CoveragePercent, strings.Join(excludes, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "List every recognized tool id, including tools without a tier")
	return cmd
}

// listTools prints every recognized tool id with its family and tier, if any
func listTools(out io.Writer, outputFormat string) error {
	tools := tiers.Default().Tools()
	if outputFormat == "json" {
		return writeJSON(out, tools)
	}

	fmt.Fprintf(out, "%-22s %-9s %s\n", "Tool", "Family", "Tier")
	fmt.Fprintln(out, newTheme().Muted.Render(strings.Repeat("-", 60)))
	for _, tool := range tools {
		tier := "none (vendor baseline applies as reported)"
		if tool.Tier != nil {
			tier = fmt.Sprintf("%s, %d%%", tool.Tier.Name, tool.Tier.CoveragePercent)
		}
		fmt.Fprintf(out, "%-22s %-9s %s\n", tool.ID, tool.Family, tier)
	}
	return nil
}

// baselinesCmd queries stored baselines
func baselinesCmd(a *app) *cobra.Command {
	var (
		mk, model, family string
		year              int
		limit, offset     int
		outputFormat      string
	)

	cmd := &cobra.Command{
		Use:     "baselines",
		Aliases: []string{"query"},
		Short:   "Query stored coverage baselines",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := models.VehicleQuery{Make: mk, Model: model, Year: year, Limit: limit, Offset: offset}
			if family != "" {
				f, err := models.ParseToolFamily(family)
				if err != nil {
					return err
				}
				q.ToolFamily = f
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			start := time.Now()
			results, err := database.ListBaselines(q)
			if err != nil {
				return fmt.Errorf("query error: %w", err)
			}
			elapsed := time.Since(start)

			out := cmd.OutOrStdout()
			if outputFormat == "json" {
				if results == nil {
					results = []models.CoverageBaseline{}
				}
				return writeJSON(out, results)
			}

			fmt.Fprintf(out, "Found %d baselines (query time: %v)\n\n", len(results), elapsed.Round(time.Microsecond))
			for _, b := range results {
				fmt.Fprintf(out, "[%d] %-32s %-9s %-8s %-6s",
					b.ID, models.GroupLabel(b.Make, b.Model, b.YearStart, b.YearEnd),
					b.ToolFamily, displayStatus(b.Status), b.Confidence)
				if b.Platform != "" {
					fmt.Fprintf(out, " platform=%s", b.Platform)
				}
				fmt.Fprintln(out)
				for _, l := range b.Limitations {
					line := "     limitation: " + string(l.Category)
					if len(l.Cables) > 0 {
						line += " (" + strings.Join(l.Cables, ", ") + ")"
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mk, "make", "", "Filter by make")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model")
	cmd.Flags().IntVar(&year, "year", 0, "Filter by model year inside the range")
	cmd.Flags().StringVar(&family, "family", "", "Filter by tool family")
	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum records to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Records to skip")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func displayStatus(s models.CoverageStatus) string {
	if s == models.StatusUnknown {
		return "-"
	}
	return s.String()
}

// generateCmd fills the database with synthetic baselines
func generateCmd(a *app) *cobra.Command {
	var (
		vehicleCount int
		seed         uint64
		batchSize    int
		output       string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample coverage baselines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if vehicleCount < 1 {
				return errors.New("--vehicles must be at least 1")
			}
			if batchSize < 1 {
				batchSize = 500
			}
			if !cmd.Flags().Changed("seed") {
				seed = uint64(time.Now().UnixNano())
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			out := cmd.OutOrStdout()
			records := sample.NewGenerator(seed).Baselines(vehicleCount)

			start := time.Now()
			var inserted int64
			for i := 0; i < len(records); i += batchSize {
				end := min(i+batchSize, len(records))
				count, err := database.InsertBaselineBatch(records[i:end])
				if err != nil {
					return fmt.Errorf("database error: %w", err)
				}
				inserted += count
			}
			elapsed := time.Since(start)
			a.logger.Debug("generated baselines",
				zap.Uint64("seed", seed),
				zap.Int64("inserted", inserted),
				zap.Duration("elapsed", elapsed),
			)
			fmt.Fprintf(out, "Generated %d baselines for %d vehicle ranges in %v (seed %d)\n",
				inserted, vehicleCount, elapsed.Round(time.Millisecond), seed)

			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("error creating output file: %w", err)
				}
				defer file.Close()

				if err := writeJSON(file, records); err != nil {
					return fmt.Errorf("error writing output file: %w", err)
				}
				fmt.Fprintf(out, "Data exported to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&vehicleCount, "vehicles", "n", 50, "Number of vehicle ranges to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (default: time based)")
	cmd.Flags().IntVar(&batchSize, "batch", 500, "Records per insert transaction")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Export generated baselines to a JSON file")
	return cmd
}

// statsCmd shows database statistics
func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			stats, err := database.GetStats()
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, newTheme().Title.Render("Coverage Database Statistics"))
			fmt.Fprintf(out, "  Vehicles:     %d\n", stats.TotalVehicles)
			fmt.Fprintf(out, "  Baselines:    %d\n", stats.TotalBaselines)
			fmt.Fprintf(out, "  Limitations:  %d\n", stats.TotalLimitations)
			for _, f := range models.Families {
				fmt.Fprintf(out, "    %-10s %d\n", f, stats.ByFamily[f])
			}
			fmt.Fprintf(out, "  Database:     %s\n", a.cfg.DB.Path)
			return nil
		},
	}
}

// vehicleCmd manages vehicles
func vehicleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Vehicle commands",
	}

	var mk string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered vehicle ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			vehicles, err := database.ListVehicles(models.VehicleQuery{Make: mk})
			if err != nil {
				return fmt.Errorf("error listing vehicles: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(vehicles) == 0 {
				fmt.Fprintln(out, "No vehicles found. Use 'keycov ingest' to load baselines.")
				return nil
			}

			fmt.Fprintf(out, "%-6s %-32s %-20s\n", "ID", "Vehicle", "Platform")
			for _, v := range vehicles {
				fmt.Fprintf(out, "%-6d %-32s %-20s\n", v.ID, v.Label(), v.PlatformTag)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&mk, "make", "", "Filter by make")

	var add models.Vehicle
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a vehicle range with its platform details",
		RunE: func(cmd *cobra.Command, args []string) error {
			if errs := parser.ValidateVehicle(&add); len(errs) > 0 {
				return errors.New(strings.Join(errs, "; "))
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			v := add
			if v.YearEnd == 0 {
				v.YearEnd = v.YearStart
			}
			if err := database.InsertVehicle(&v); err != nil {
				return fmt.Errorf("error saving vehicle: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved vehicle %d: %s\n", v.ID, v.Label())
			return nil
		},
	}
	addCmd.Flags().StringVar(&add.Make, "make", "", "Vehicle make")
	addCmd.Flags().StringVar(&add.Model, "model", "", "Vehicle model")
	addCmd.Flags().IntVar(&add.YearStart, "year-start", 0, "First model year")
	addCmd.Flags().IntVar(&add.YearEnd, "year-end", 0, "Last model year (default: year-start)")
	addCmd.Flags().StringVar(&add.PlatformTag, "platform", "", "Platform tag, e.g. CAN FD")
	addCmd.Flags().StringSliceVar(&add.Chips, "chip", nil, "Transponder chip (repeatable)")

	var outputFormat string
	summaryCmd := &cobra.Command{
		Use:   "summary [vehicle_id]",
		Short: "Show the coverage summary of one vehicle range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid vehicle id %q", args[0])
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			v, baselines, err := database.VehicleBaselines(id)
			if err != nil {
				return fmt.Errorf("error getting summary: %w", err)
			}

			group := heatmap.ProjectGroup(baselines)
			if outputFormat == "json" {
				return writeJSON(cmd.OutOrStdout(), vehicleSummary{Vehicle: *v, Coverage: group, Baselines: baselines})
			}
			renderSummary(cmd.OutOrStdout(), newTheme(), *v, group, baselines)
			return nil
		},
	}
	summaryCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")

	cmd.AddCommand(listCmd, addCmd, summaryCmd)
	return cmd
}

type vehicleSummary struct {
	Vehicle   models.Vehicle            `json:"vehicle"`
	Coverage  models.CoverageGroup      `json:"coverage"`
	Baselines []models.CoverageBaseline `json:"baselines"`
}

// ownedTools merges a stored profile (when named) with tools given inline
func (a *app) ownedTools(profileID string, inline models.OwnedToolSet) (models.OwnedToolSet, error) {
	if profileID == "" {
		return inline, nil
	}
	store, err := a.openProfiles()
	if err != nil {
		return models.OwnedToolSet{}, err
	}
	defer store.Close()

	p, err := store.Get(profileID)
	if err != nil {
		return models.OwnedToolSet{}, err
	}
	return models.OwnedToolSet{
		ToolIDs: append(p.Tools.ToolIDs, inline.ToolIDs...),
		Cables:  append(p.Tools.Cables, inline.Cables...),
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
