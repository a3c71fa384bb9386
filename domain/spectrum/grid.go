package spectrum

import (
	"math"

	"pslike/domain/core"
)

// CoordSystem identifies the Fourier-mode coordinate convention of a grid or
// theory model.
type CoordSystem string

const (
	// CoordSpherical parameterizes modes by the angle-averaged magnitude k.
	CoordSpherical CoordSystem = "spherical"
	// CoordCylindrical retains the perpendicular/parallel split (k_perp, k_par)
	// relative to the line of sight.
	CoordCylindrical CoordSystem = "cylindrical"
)

// KPoint is a single theory-grid point. K is always the spherical magnitude;
// KPerp/KPar are populated only on cylindrical grids.
type KPoint struct {
	K     float64
	KPerp float64
	KPar  float64
}

// KGrid is the ordered theory grid the window-function columns were built
// against. Ordering is load-bearing: the i-th grid point corresponds to the
// i-th window column.
type KGrid struct {
	coords CoordSystem
	k      []float64
	kPerp  []float64
	kPar   []float64
}

// NewSphericalGrid builds a grid of angle-averaged k magnitudes.
func NewSphericalGrid(k []float64) (KGrid, error) {
	if len(k) == 0 {
		return KGrid{}, core.NewGridMismatchError("spherical grid is empty")
	}
	for _, v := range k {
		if v <= 0 || math.IsNaN(v) {
			return KGrid{}, core.NewGridMismatchError("spherical grid contains non-positive k")
		}
	}
	return KGrid{coords: CoordSpherical, k: append([]float64(nil), k...)}, nil
}

// NewCylindricalGrid builds a (k_perp, k_par) grid. The two slices are
// parallel: point i is (kPerp[i], kPar[i]).
func NewCylindricalGrid(kPerp, kPar []float64) (KGrid, error) {
	if len(kPerp) == 0 || len(kPerp) != len(kPar) {
		return KGrid{}, core.NewGridMismatchError("cylindrical grid axes are empty or unequal length")
	}
	g := KGrid{
		coords: CoordCylindrical,
		kPerp:  append([]float64(nil), kPerp...),
		kPar:   append([]float64(nil), kPar...),
		k:      make([]float64, len(kPerp)),
	}
	for i := range kPerp {
		g.k[i] = math.Hypot(kPerp[i], kPar[i])
	}
	return g, nil
}

// Coords returns the grid's coordinate convention.
func (g KGrid) Coords() CoordSystem { return g.coords }

// Len returns the number of grid points.
func (g KGrid) Len() int { return len(g.k) }

// Point returns grid point i. For cylindrical grids K holds the converted
// spherical magnitude sqrt(k_perp^2 + k_par^2).
func (g KGrid) Point(i int) KPoint {
	p := KPoint{K: g.k[i]}
	if g.coords == CoordCylindrical {
		p.KPerp = g.kPerp[i]
		p.KPar = g.kPar[i]
	}
	return p
}

// Magnitudes returns a copy of the spherical k magnitude of every point.
func (g KGrid) Magnitudes() []float64 {
	return append([]float64(nil), g.k...)
}
