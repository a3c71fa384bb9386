package measurement

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"

	"pslike/domain/core"
	"pslike/domain/spectrum"
)

// Extract converts one spectral window of a measurement into a
// CanonicalObservation. Construction failures are hard errors: they indicate
// a malformed measurement, not a bad parameter proposal.
//
// Fallbacks, in line with the measurement contract:
//   - window function absent: identity window, recorded on the observation;
//   - averaged covariance absent but per-sample covariances present: mean of
//     the unflagged per-sample matrices divided by the sample count, i.e. the
//     covariance of the sample mean;
//   - both covariance fields absent but per-sample bandpowers present: the
//     empirical sample covariance of the mean.
//
// Bandpowers and k-bin centers have no fallback and fail with MissingField.
func Extract(m *Measurement, spw int) (*spectrum.CanonicalObservation, error) {
	if m == nil {
		return nil, core.NewMissingFieldError("measurement")
	}
	if spw < 0 || spw >= len(m.Windows) {
		return nil, core.NewSpectralWindowError(spw, len(m.Windows))
	}
	w := &m.Windows[spw]

	if len(w.KBinCenters) == 0 {
		return nil, core.NewMissingFieldError("k_bin_centers")
	}
	n := len(w.KBinCenters)

	keep, err := sampleMask(w)
	if err != nil {
		return nil, err
	}

	bandpowers, err := extractBandpowers(w, n, keep)
	if err != nil {
		return nil, err
	}

	cov, err := extractCovariance(w, n, keep)
	if err != nil {
		return nil, err
	}

	conversion := spectrum.UnitConversion{To: spectrum.UnitsMK2}
	units, err := spectrum.ParsePSUnits(firstNonEmpty(m.Units, string(spectrum.UnitsMK2)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidObservation, err)
	}
	conversion.From = units
	if units == spectrum.UnitsDeltaSq {
		convertDeltaSq(bandpowers, cov, w.KBinCenters)
	}

	spec := spectrum.ObservationSpec{
		Bandpowers: bandpowers,
		Covariance: cov,
		KCenters:   w.KBinCenters,
		KEdges:     w.KBinEdges,
		Redshift:   w.Redshift,
		LittleH:    m.LittleH,
		Conversion: conversion,
	}

	if len(w.WindowFunction) > 0 {
		window, grid, err := extractWindow(w, n)
		if err != nil {
			return nil, err
		}
		spec.Window = window
		spec.Grid = grid
	} else {
		log.Printf("[measurement] window %d: no window function, falling back to identity", spw)
	}

	return spectrum.NewCanonicalObservation(spec)
}

// sampleMask returns which per-sample rows survive flagging, or nil when the
// window carries no per-sample data.
func sampleMask(w *SpectralWindow) ([]bool, error) {
	if len(w.SampleBandpowers) == 0 && len(w.SampleCovariances) == 0 {
		return nil, nil
	}
	samples := len(w.SampleBandpowers)
	if samples == 0 {
		samples = len(w.SampleCovariances)
	} else if len(w.SampleCovariances) > 0 && len(w.SampleCovariances) != samples {
		return nil, core.NewShapeMismatchError("sample covariances", len(w.SampleCovariances), samples)
	}
	keep := make([]bool, samples)
	if w.Flags == nil {
		for i := range keep {
			keep[i] = true
		}
		return keep, nil
	}
	if len(w.Flags) != samples {
		return nil, core.NewShapeMismatchError("flag mask", len(w.Flags), samples)
	}
	any := false
	for i, flagged := range w.Flags {
		keep[i] = !flagged
		any = any || keep[i]
	}
	if !any {
		return nil, fmt.Errorf("%w: every sample is flagged", core.ErrInvalidObservation)
	}
	return keep, nil
}

func extractBandpowers(w *SpectralWindow, n int, keep []bool) ([]complex128, error) {
	if len(w.Bandpowers) > 0 {
		if len(w.Bandpowers) != n {
			return nil, core.NewShapeMismatchError("bandpowers", len(w.Bandpowers), n)
		}
		return append([]complex128(nil), w.Bandpowers...), nil
	}
	if len(w.SampleBandpowers) == 0 {
		return nil, core.NewMissingFieldError("bandpowers")
	}
	out := make([]complex128, n)
	count := 0
	for i, row := range w.SampleBandpowers {
		if len(row) != n {
			return nil, core.NewShapeMismatchError(fmt.Sprintf("sample bandpower row %d", i), len(row), n)
		}
		if keep != nil && !keep[i] {
			continue
		}
		for j, v := range row {
			out[j] += v
		}
		count++
	}
	inv := complex(1/float64(count), 0)
	for j := range out {
		out[j] *= inv
	}
	return out, nil
}

func extractCovariance(w *SpectralWindow, n int, keep []bool) (*mat.SymDense, error) {
	if len(w.Covariance) > 0 {
		return symFromRows(w.Covariance, "covariance")
	}
	if len(w.SampleCovariances) > 0 {
		return averageSampleCovariances(w.SampleCovariances, n, keep)
	}
	if len(w.SampleBandpowers) > 0 {
		return empiricalCovariance(w.SampleBandpowers, n, keep)
	}
	return nil, core.NewMissingFieldError("covariance")
}

func symFromRows(rows [][]float64, what string) (*mat.SymDense, error) {
	d := len(rows)
	s := mat.NewSymDense(d, nil)
	for i, row := range rows {
		if len(row) != d {
			return nil, core.NewShapeMismatchError(what+" row", len(row), d)
		}
		for j := i; j < d; j++ {
			// Symmetrize: averaged estimator output can carry tiny asymmetry.
			s.SetSym(i, j, 0.5*(rows[i][j]+rows[j][i]))
		}
	}
	return s, nil
}

// averageSampleCovariances produces the covariance of the sample mean:
// mean of the M unflagged per-sample matrices, scaled by 1/M.
func averageSampleCovariances(covs [][][]float64, n int, keep []bool) (*mat.SymDense, error) {
	sum := mat.NewSymDense(n, nil)
	count := 0
	for s, rows := range covs {
		if keep != nil && !keep[s] {
			continue
		}
		if len(rows) != n {
			return nil, core.NewShapeMismatchError(fmt.Sprintf("sample covariance %d", s), len(rows), n)
		}
		for i, row := range rows {
			if len(row) != n {
				return nil, core.NewShapeMismatchError(fmt.Sprintf("sample covariance %d row", s), len(row), n)
			}
			for j := i; j < n; j++ {
				sum.SetSym(i, j, sum.At(i, j)+0.5*(rows[i][j]+rows[j][i]))
			}
		}
		count++
	}
	if count == 0 {
		return nil, core.NewMissingFieldError("covariance")
	}
	scale := 1 / (float64(count) * float64(count))
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sum.SetSym(i, j, sum.At(i, j)*scale)
		}
	}
	return sum, nil
}

// empiricalCovariance estimates the covariance of the mean from the real
// parts of the unflagged sample bandpowers.
func empiricalCovariance(samples [][]complex128, n int, keep []bool) (*mat.SymDense, error) {
	mean := make([]float64, n)
	count := 0
	for s, row := range samples {
		if keep != nil && !keep[s] {
			continue
		}
		if len(row) != n {
			return nil, core.NewShapeMismatchError(fmt.Sprintf("sample bandpower row %d", s), len(row), n)
		}
		for j, v := range row {
			mean[j] += real(v)
		}
		count++
	}
	if count < 2 {
		return nil, fmt.Errorf("%w: need at least 2 unflagged samples to estimate covariance", core.ErrInvalidObservation)
	}
	for j := range mean {
		mean[j] /= float64(count)
	}
	cov := mat.NewSymDense(n, nil)
	for s, row := range samples {
		if keep != nil && !keep[s] {
			continue
		}
		for i := 0; i < n; i++ {
			di := real(row[i]) - mean[i]
			for j := i; j < n; j++ {
				dj := real(row[j]) - mean[j]
				cov.SetSym(i, j, cov.At(i, j)+di*dj)
			}
		}
	}
	// Unbiased sample covariance, then 1/M for the covariance of the mean.
	scale := 1 / (float64(count-1) * float64(count))
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, cov.At(i, j)*scale)
		}
	}
	return cov, nil
}

func extractWindow(w *SpectralWindow, n int) (*mat.Dense, spectrum.KGrid, error) {
	rows := len(w.WindowFunction)
	if rows != n {
		return nil, spectrum.KGrid{}, core.NewShapeMismatchError("window function rows", rows, n)
	}
	cols := len(w.WindowFunction[0])
	if cols == 0 {
		return nil, spectrum.KGrid{}, core.NewShapeMismatchError("window function columns", 0, 1)
	}
	flat := make([]float64, 0, rows*cols)
	for i, row := range w.WindowFunction {
		if len(row) != cols {
			return nil, spectrum.KGrid{}, core.NewShapeMismatchError(fmt.Sprintf("window function row %d", i), len(row), cols)
		}
		flat = append(flat, row...)
	}
	window := mat.NewDense(rows, cols, flat)

	var grid spectrum.KGrid
	var err error
	switch {
	case len(w.KPerp) > 0 || len(w.KPar) > 0:
		grid, err = spectrum.NewCylindricalGrid(w.KPerp, w.KPar)
	case len(w.TheoryK) > 0:
		grid, err = spectrum.NewSphericalGrid(w.TheoryK)
	default:
		err = core.NewGridMismatchError("window function present but theory grid (theory_k or k_perp/k_par) missing")
	}
	if err != nil {
		return nil, spectrum.KGrid{}, err
	}
	if grid.Len() != cols {
		return nil, spectrum.KGrid{}, core.NewGridMismatchError(
			fmt.Sprintf("theory grid has %d points but window has %d columns", grid.Len(), cols))
	}
	return window, grid, nil
}

func convertDeltaSq(bp []complex128, cov *mat.SymDense, centers []float64) {
	n := len(centers)
	factors := make([]float64, n)
	for i, k := range centers {
		factors[i] = spectrum.DeltaSqToPowerFactor(k)
	}
	for i := range bp {
		bp[i] *= complex(factors[i], 0)
	}
	d := cov.SymmetricDim()
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			// A 2N covariance (stacked complex) repeats the factor pattern.
			cov.SetSym(i, j, cov.At(i, j)*factors[i%n]*factors[j%n])
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
