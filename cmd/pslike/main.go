package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pslike/adapters/likelihood"
	"pslike/adapters/measurement"
	"pslike/adapters/report"
	"pslike/app"
	"pslike/domain/core"
	"pslike/domain/params"
	"pslike/domain/spectrum"
	"pslike/internal/config"
	interrs "pslike/internal/errors"
	"pslike/internal/testkit"
)

func main() {
	// Optional .env for PSLIKE_* settings; absence is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "pslike",
		Short: "Diagnostic CLI for the power-spectrum likelihood",
		Long: `Evaluate the 21-cm power-spectrum likelihood against a measurement file.

The built-in theory model is the power law P(k) = amp * (k/k0)^index; real
analyses supply their own models through the library API.`,
	}

	rootCmd.AddCommand(
		newInspectCmd(),
		newEvaluateCmd(),
		newSweepCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [measurement.json]",
		Short: "Summarize the spectral windows of a measurement file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := measurement.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("units=%s little_h=%v windows=%d\n", m.Units, m.LittleH, len(m.Windows))
			for i := range m.Windows {
				obs, err := measurement.Extract(m, i)
				if err != nil {
					fmt.Printf("  window %d: unusable: %v\n", i, err)
					continue
				}
				windowKind := "explicit"
				if obs.IdentityWindowFallback() {
					windowKind = "identity fallback"
				}
				fmt.Printf("  window %d: z=%.3f bins=%d grid=%s(%d pts) window=%s\n",
					i, obs.Redshift(), obs.NBins(), obs.Grid().Coords(), obs.Grid().Len(), windowKind)
			}
			return nil
		},
	}
}

func newEvaluateCmd() *cobra.Command {
	var spw int
	var k0 float64
	var paramFlags []string

	cmd := &cobra.Command{
		Use:   "evaluate [measurement.json]",
		Short: "Evaluate the likelihood at one parameter point",
		Long: `Evaluate the power-law likelihood at one parameter point.

Example: pslike evaluate m.json --spw 0 --param amp=1.2 --param index=2.0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			service, err := buildService(cfg, args[0], spw, k0)
			if err != nil {
				return err
			}
			p, err := parseParams(paramFlags)
			if err != nil {
				return err
			}
			result := service.Evaluate(p)
			return printJSON(result)
		},
	}
	cmd.Flags().IntVar(&spw, "spw", 0, "spectral window index")
	cmd.Flags().Float64Var(&k0, "k0", 0.1, "power-law pivot scale (h/Mpc)")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "parameter as name=value (repeatable)")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var spw int
	var k0 float64
	var gridPath, outPath, sweepID string

	cmd := &cobra.Command{
		Use:   "sweep [measurement.json]",
		Short: "Evaluate a batch of parameter points and export an xlsx report",
		Long: `Evaluate every parameter point in a JSON grid file (an array of
name->value objects) and write the results to an xlsx workbook.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			service, err := buildService(cfg, args[0], spw, k0)
			if err != nil {
				return err
			}
			points, err := readGrid(gridPath)
			if err != nil {
				return err
			}
			var id core.SweepID
			if sweepID != "" {
				if id, err = core.ParseSweepID(sweepID); err != nil {
					return interrs.InvalidInput(err.Error())
				}
			}

			sweeper := app.NewSweepService(service)
			result, err := sweeper.Run(cmd.Context(), app.SweepRequest{
				Points:      points,
				Parallelism: cfg.Sweep.Parallelism,
				SweepID:     id,
			})
			if err != nil {
				return err
			}

			out := outPath
			if out == "" {
				out = cfg.Report.OutputPath
			}
			if err := report.WriteSweepXLSX(out, result, points); err != nil {
				return err
			}
			fmt.Printf("sweep %s: %d points, %d finite, best log-posterior %.4f (point %d) -> %s\n",
				result.SweepID, result.Summary.Evaluated, result.Summary.Finite,
				result.Summary.BestLogPost, result.Summary.BestIndex, out)
			return nil
		},
	}
	cmd.Flags().IntVar(&spw, "spw", 0, "spectral window index")
	cmd.Flags().Float64Var(&k0, "k0", 0.1, "power-law pivot scale (h/Mpc)")
	cmd.Flags().StringVar(&gridPath, "grid", "", "JSON file with parameter points (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "output xlsx path (default from config)")
	cmd.Flags().StringVar(&sweepID, "sweep-id", "", "sweep identifier (generated if empty)")
	_ = cmd.MarkFlagRequired("grid")
	return cmd
}

func buildService(cfg *config.Config, measurementPath string, spw int, k0 float64) (*app.LikelihoodService, error) {
	m, err := measurement.ReadFile(measurementPath)
	if err != nil {
		return nil, err
	}
	obs, err := measurement.Extract(m, spw)
	if err != nil {
		return nil, err
	}
	return app.NewLikelihoodService(obs, testkit.PowerLawTheory(k0), nil, nil, app.ServiceConfig{
		FormName:    cfg.Likelihood.Form,
		StudentNu:   cfg.Likelihood.StudentNu,
		ComplexMode: spectrum.ComplexMode(cfg.Likelihood.ComplexMode),
		Strict:      cfg.Likelihood.Strict,
		BinMethod:   likelihood.BinMethod(cfg.Likelihood.BinMethod),
		QuadNodes:   cfg.Likelihood.QuadNodes,
	})
}

func parseParams(flags []string) (params.Vector, error) {
	var list []params.Parameter
	for _, f := range flags {
		rawName, value, found := strings.Cut(f, "=")
		if !found {
			return params.Vector{}, interrs.InvalidInput(fmt.Sprintf("invalid --param %q, want name=value", f))
		}
		name, err := core.ParseParamName(rawName)
		if err != nil {
			return params.Vector{}, interrs.Wrapf(err, "invalid name in --param %q", f)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return params.Vector{}, interrs.Wrapf(err, "invalid value in --param %q", f)
		}
		list = append(list, params.Parameter{Name: name, Value: v})
	}
	return params.NewVector(list...)
}

func readGrid(path string) ([]params.Vector, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, interrs.IOError("failed to read grid file", err)
	}
	var raw []map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, interrs.Wrap(err, "grid file must be a JSON array of name->value objects")
	}
	points := make([]params.Vector, 0, len(raw))
	for _, entry := range raw {
		names := make([]string, 0, len(entry))
		for name := range entry {
			names = append(names, name)
		}
		sort.Strings(names)
		list := make([]params.Parameter, 0, len(names))
		for _, name := range names {
			pn, err := core.ParseParamName(name)
			if err != nil {
				return nil, interrs.Wrapf(err, "bad parameter name in grid file")
			}
			list = append(list, params.Parameter{Name: pn, Value: entry[name]})
		}
		p, err := params.NewVector(list...)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
