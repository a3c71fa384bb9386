// Package testkit provides synthetic observations and instrumented model
// stubs for tests and for the CLI's demo mode.
package testkit

import (
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"pslike/domain/params"
	"pslike/domain/spectrum"
	"pslike/ports"
)

// DiagonalObservation builds a spherical, identity-window observation with a
// diagonal covariance sigma2 * I. Bandpowers are real-valued.
func DiagonalObservation(kCenters, bandpowers []float64, sigma2, redshift float64) (*spectrum.CanonicalObservation, error) {
	n := len(kCenters)
	bp := make([]complex128, n)
	for i, v := range bandpowers {
		bp[i] = complex(v, 0)
	}
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, sigma2)
	}
	return spectrum.NewCanonicalObservation(spectrum.ObservationSpec{
		Bandpowers: bp,
		Covariance: cov,
		KCenters:   kCenters,
		Redshift:   redshift,
	})
}

// WindowedObservation builds an observation with an explicit window matrix
// over a spherical theory grid.
func WindowedObservation(kCenters []float64, bandpowers []float64, sigma2 float64, window *mat.Dense, theoryK []float64) (*spectrum.CanonicalObservation, error) {
	grid, err := spectrum.NewSphericalGrid(theoryK)
	if err != nil {
		return nil, err
	}
	n := len(kCenters)
	bp := make([]complex128, n)
	for i, v := range bandpowers {
		bp[i] = complex(v, 0)
	}
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, sigma2)
	}
	return spectrum.NewCanonicalObservation(spectrum.ObservationSpec{
		Bandpowers: bp,
		Covariance: cov,
		Window:     window,
		Grid:       grid,
		KCenters:   kCenters,
	})
}

// PowerLawTheory is the spherical model P(k) = amp * (k / k0)^index with
// parameters "amp" and "index". It fails for non-positive amplitude, which
// exercises the out-of-domain path.
func PowerLawTheory(k0 float64) ports.TheoryModel {
	return ports.SphericalTheoryFunc(func(k, z float64, littleH bool, p params.Vector) (float64, error) {
		amp, ok := p.Get("amp")
		if !ok {
			return 0, fmt.Errorf("missing parameter amp")
		}
		if amp <= 0 {
			return 0, fmt.Errorf("amplitude must be positive, got %g", amp)
		}
		index := p.MustGet("index")
		if math.IsNaN(index) {
			index = 0
		}
		return amp * math.Pow(k/k0, index), nil
	})
}

// CountingTheory wraps a theory model and counts Evaluate calls; used to
// verify that prior rejection short-circuits before theory evaluation.
type CountingTheory struct {
	Inner ports.TheoryModel
	calls atomic.Int64
}

func (c *CountingTheory) Coordinates() spectrum.CoordSystem { return c.Inner.Coordinates() }

func (c *CountingTheory) Evaluate(pt spectrum.KPoint, z float64, littleH bool, p params.Vector) (float64, error) {
	c.calls.Add(1)
	return c.Inner.Evaluate(pt, z, littleH, p)
}

// Calls returns the number of Evaluate invocations so far.
func (c *CountingTheory) Calls() int64 { return c.calls.Load() }

// KSquaredTheory is the spherical model P(k) = k^2 with no parameters.
func KSquaredTheory() ports.TheoryModel {
	return ports.SphericalTheoryFunc(func(k, z float64, littleH bool, p params.Vector) (float64, error) {
		return k * k, nil
	})
}
