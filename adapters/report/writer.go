// Package report exports sweep results as xlsx workbooks for offline
// inspection.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"pslike/app"
	"pslike/domain/params"
)

// WriteSweepXLSX writes one row per evaluated point to Sheet1 and the sweep
// summary to a second sheet. points must be the request points in the same
// order as result.Results.
func WriteSweepXLSX(path string, result *app.SweepResult, points []params.Vector) error {
	if len(points) != len(result.Results) {
		return fmt.Errorf("points/results length mismatch: %d vs %d", len(points), len(result.Results))
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	header := []interface{}{"index"}
	var names []string
	if len(points) > 0 {
		for _, name := range points[0].Names() {
			names = append(names, name.String())
			header = append(header, name.String())
		}
	}
	header = append(header,
		"log_posterior", "log_likelihood", "log_prior",
		"chi_square", "p_value", "dof",
		"prior_rejected", "degraded", "out_of_domain",
	)
	if err := writeRow(f, sheet, 1, header); err != nil {
		return err
	}

	for i, r := range result.Results {
		row := []interface{}{i}
		for _, v := range points[i].Values() {
			row = append(row, v)
		}
		row = append(row,
			r.LogPosterior, r.LogLikelihood, r.LogPrior,
			r.ChiSquare, r.PValue, r.DOF,
			r.PriorRejected, r.DegradedCovariance, r.OutOfDomain,
		)
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	summarySheet := "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	s := result.Summary
	rows := [][]interface{}{
		{"sweep_id", result.SweepID.String()},
		{"evaluated", s.Evaluated},
		{"finite", s.Finite},
		{"prior_rejected", s.PriorRejected},
		{"degraded", s.Degraded},
		{"best_index", s.BestIndex},
		{"best_log_posterior", s.BestLogPost},
		{"mean_log_posterior", s.MeanLogPost},
		{"median_log_posterior", s.MedianLogPost},
		{"p5_log_posterior", s.P5LogPost},
		{"p95_log_posterior", s.P95LogPost},
		{"runtime_ms", result.RuntimeMs},
	}
	for i, row := range rows {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
