package likelihood

import (
	"fmt"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"

	"pslike/domain/core"
	"pslike/domain/params"
	"pslike/domain/spectrum"
	"pslike/ports"
)

// BinMethod selects how theory power is discretized onto k-bins when the
// observation carries no window function (identity fallback).
type BinMethod string

const (
	// BinCenter evaluates the theory at the bin centers.
	BinCenter BinMethod = "bin_center"
	// BinTwoPoint averages the theory at the two bin edges.
	BinTwoPoint BinMethod = "two_point"
	// BinIntegrate trapezoid-averages the theory across each bin.
	BinIntegrate BinMethod = "integrate"
)

const defaultQuadNodes = 16

// Mapper turns a theory model plus bias model into theory bandpowers in the
// observation's basis: coordinate reconciliation, multiplicative bias, then
// window convolution.
type Mapper struct {
	method    BinMethod
	quadNodes int
}

// NewMapper builds a mapper. method applies only on the identity-window
// path; windowed observations are always evaluated pointwise on the window's
// own grid.
func NewMapper(method BinMethod, quadNodes int) (*Mapper, error) {
	switch method {
	case "", BinCenter:
		method = BinCenter
	case BinTwoPoint, BinIntegrate:
	default:
		return nil, fmt.Errorf("unknown bin method %q", method)
	}
	if quadNodes < 2 {
		quadNodes = defaultQuadNodes
	}
	return &Mapper{method: method, quadNodes: quadNodes}, nil
}

// CheckCompatible verifies that the theory model's coordinate convention can
// be reconciled with the observation's grid. A spherical theory evaluates on
// any grid (cylindrical points convert via k = sqrt(k_perp^2 + k_par^2));
// a cylindrical theory cannot be evaluated from a spherical-only grid
// without an assumed angular distribution, so that direction fails.
func CheckCompatible(theory ports.TheoryModel, obs *spectrum.CanonicalObservation) error {
	if theory.Coordinates() == spectrum.CoordCylindrical && obs.Grid().Coords() == spectrum.CoordSpherical {
		return core.NewGridMismatchError("cylindrical theory model cannot be evaluated on a spherical grid")
	}
	return nil
}

// MapTheory produces theory bandpowers with the same length and ordering as
// obs.Bandpowers(). Theory or bias evaluation failures are reported as
// ParameterOutOfDomain; the caller converts them to a -Inf likelihood.
func (m *Mapper) MapTheory(theory ports.TheoryModel, bias ports.BiasModel, p params.Vector, obs *spectrum.CanonicalObservation) ([]float64, error) {
	if err := CheckCompatible(theory, obs); err != nil {
		return nil, err
	}
	if bias == nil {
		bias = ports.UnitBias()
	}

	if w := obs.Window(); w != nil {
		return m.mapWindowed(theory, bias, p, obs, w)
	}
	return m.mapIdentity(theory, bias, p, obs)
}

// mapWindowed evaluates biased theory power on the window's grid and applies
// the linear operator: out_i = sum_j W[i][j] * t[j]. Grid ordering is the
// ordering the window columns were built against.
func (m *Mapper) mapWindowed(theory ports.TheoryModel, bias ports.BiasModel, p params.Vector, obs *spectrum.CanonicalObservation, w *mat.Dense) ([]float64, error) {
	grid := obs.Grid()
	_, cols := w.Dims()
	if grid.Len() != cols {
		return nil, core.NewGridMismatchError(
			fmt.Sprintf("window has %d columns, grid has %d points", cols, grid.Len()))
	}

	z := obs.Redshift()
	littleH := obs.LittleH()
	t := mat.NewVecDense(cols, nil)
	for j := 0; j < cols; j++ {
		pt := grid.Point(j)
		power, err := m.biasedPower(theory, bias, pt, z, littleH, p)
		if err != nil {
			return nil, err
		}
		t.SetVec(j, power)
	}

	out := mat.NewVecDense(obs.NBins(), nil)
	out.MulVec(w, t)
	return append([]float64(nil), out.RawVector().Data...), nil
}

// mapIdentity discretizes the theory directly onto the observed k-bins.
func (m *Mapper) mapIdentity(theory ports.TheoryModel, bias ports.BiasModel, p params.Vector, obs *spectrum.CanonicalObservation) ([]float64, error) {
	centers := obs.KCenters()
	edges := obs.KEdges()
	z := obs.Redshift()
	littleH := obs.LittleH()

	out := make([]float64, len(centers))
	for i, k := range centers {
		var (
			power float64
			err   error
		)
		switch m.method {
		case BinCenter:
			power, err = m.biasedPower(theory, bias, spectrum.KPoint{K: k}, z, littleH, p)
		case BinTwoPoint:
			var lo, hi float64
			lo, err = m.biasedPower(theory, bias, spectrum.KPoint{K: edges[i]}, z, littleH, p)
			if err == nil {
				hi, err = m.biasedPower(theory, bias, spectrum.KPoint{K: edges[i+1]}, z, littleH, p)
			}
			power = 0.5 * (lo + hi)
		case BinIntegrate:
			power, err = m.binAverage(theory, bias, edges[i], edges[i+1], z, littleH, p)
		}
		if err != nil {
			return nil, err
		}
		out[i] = power
	}
	return out, nil
}

// binAverage trapezoid-integrates the biased theory over [lo, hi] and
// divides by the bin width.
func (m *Mapper) binAverage(theory ports.TheoryModel, bias ports.BiasModel, lo, hi, z float64, littleH bool, p params.Vector) (float64, error) {
	xs := make([]float64, m.quadNodes)
	ys := make([]float64, m.quadNodes)
	step := (hi - lo) / float64(m.quadNodes-1)
	for i := range xs {
		xs[i] = lo + float64(i)*step
		power, err := m.biasedPower(theory, bias, spectrum.KPoint{K: xs[i]}, z, littleH, p)
		if err != nil {
			return 0, err
		}
		ys[i] = power
	}
	return integrate.Trapezoidal(xs, ys) / (hi - lo), nil
}

func (m *Mapper) biasedPower(theory ports.TheoryModel, bias ports.BiasModel, pt spectrum.KPoint, z float64, littleH bool, p params.Vector) (float64, error) {
	power, err := theory.Evaluate(pt, z, littleH, p)
	if err != nil {
		return 0, core.NewOutOfDomainError("theory model", err)
	}
	factor, err := bias.Evaluate(pt.K, z, littleH, p)
	if err != nil {
		return 0, core.NewOutOfDomainError("bias model", err)
	}
	return power * factor, nil
}
