package spectrum

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"pslike/domain/core"
)

// ComplexMode selects the real-valued representation used for complex
// bandpowers during likelihood evaluation.
type ComplexMode string

const (
	// ComplexModeReal discards imaginary parts (which must be negligible) and
	// evaluates against an N x N real covariance. This is the default.
	ComplexModeReal ComplexMode = "real"
	// ComplexModeStacked stacks real parts then imaginary parts into a 2N
	// vector and requires a 2N x 2N covariance.
	ComplexModeStacked ComplexMode = "stacked"
)

// CanonicalObservation is an immutable snapshot of one spectral window of a
// power-spectrum measurement: bandpowers, their covariance, the
// window-function operator and the k-grid it was built against. It is
// constructed once by the measurement extractor and never mutated, so
// concurrent likelihood evaluations can share it without locks.
type CanonicalObservation struct {
	id         core.ObservationID
	bandpowers []complex128
	covariance *mat.SymDense
	window     *mat.Dense // nil means identity fallback
	grid       KGrid
	kCenters   []float64
	kEdges     []float64
	redshift   float64
	littleH    bool
	units      PSUnits
	conversion UnitConversion
	fallback   bool
}

// ObservationSpec carries the validated inputs for NewCanonicalObservation.
type ObservationSpec struct {
	Bandpowers []complex128
	Covariance *mat.SymDense
	Window     *mat.Dense // nil requests the identity fallback
	Grid       KGrid
	KCenters   []float64
	KEdges     []float64 // optional; derived from centers when nil
	Redshift   float64
	LittleH    bool
	Conversion UnitConversion
}

// NewCanonicalObservation validates the input's shape invariants and freezes
// the snapshot. Inputs are copied; the caller's slices and matrices stay
// under the caller's ownership.
func NewCanonicalObservation(spec ObservationSpec) (*CanonicalObservation, error) {
	n := len(spec.Bandpowers)
	if n == 0 {
		return nil, core.NewMissingFieldError("bandpowers")
	}
	if len(spec.KCenters) != n {
		return nil, core.NewShapeMismatchError("k-bin centers", len(spec.KCenters), n)
	}
	for i := 1; i < len(spec.KCenters); i++ {
		if spec.KCenters[i] <= spec.KCenters[i-1] {
			return nil, core.NewGridMismatchError("k-bin centers are not strictly increasing")
		}
	}
	if spec.Covariance == nil {
		return nil, core.NewMissingFieldError("covariance")
	}
	// Covariance is N x N in real mode or 2N x 2N for stacked complex data.
	if d := spec.Covariance.SymmetricDim(); d != n && d != 2*n {
		return nil, core.NewShapeMismatchError("covariance", d, n)
	}

	obs := &CanonicalObservation{
		id:         core.ObservationID(core.NewID()),
		bandpowers: append([]complex128(nil), spec.Bandpowers...),
		redshift:   spec.Redshift,
		littleH:    spec.LittleH,
		units:      UnitsMK2,
		conversion: spec.Conversion,
		kCenters:   append([]float64(nil), spec.KCenters...),
	}

	cov := mat.NewSymDense(spec.Covariance.SymmetricDim(), nil)
	cov.CopySym(spec.Covariance)
	obs.covariance = cov

	if spec.KEdges != nil {
		if len(spec.KEdges) != n+1 {
			return nil, core.NewShapeMismatchError("k-bin edges", len(spec.KEdges), n+1)
		}
		obs.kEdges = append([]float64(nil), spec.KEdges...)
	} else {
		obs.kEdges = deriveEdges(obs.kCenters)
	}
	for i := 1; i < len(obs.kEdges); i++ {
		if obs.kEdges[i] <= obs.kEdges[i-1] {
			return nil, core.NewGridMismatchError("k-bin edges are not strictly increasing")
		}
	}

	if spec.Window != nil {
		rows, cols := spec.Window.Dims()
		if rows != n {
			return nil, core.NewShapeMismatchError("window function rows", rows, n)
		}
		if cols != spec.Grid.Len() {
			return nil, core.NewGridMismatchError("window columns do not match theory grid size")
		}
		w := mat.NewDense(rows, cols, nil)
		w.Copy(spec.Window)
		obs.window = w
		obs.grid = spec.Grid
	} else {
		// Identity fallback: each observed bin maps 1:1 to a theory bin at the
		// same k. Recorded so callers can warn downstream.
		g, err := NewSphericalGrid(obs.kCenters)
		if err != nil {
			return nil, err
		}
		obs.grid = g
		obs.fallback = true
	}

	return obs, nil
}

func deriveEdges(centers []float64) []float64 {
	edges := make([]float64, len(centers)+1)
	if len(centers) == 1 {
		// No neighbor to midpoint against; take a symmetric bin of width c.
		edges[0] = centers[0] / 2
		edges[1] = 1.5 * centers[0]
		return edges
	}
	for i := 1; i < len(centers); i++ {
		edges[i] = 0.5 * (centers[i-1] + centers[i])
	}
	edges[0] = math.Max(centers[0]-(edges[1]-centers[0]), centers[0]/2)
	last := len(centers) - 1
	edges[len(edges)-1] = centers[last] + (centers[last] - edges[last])
	return edges
}

// ID returns the observation's identifier.
func (o *CanonicalObservation) ID() core.ObservationID { return o.id }

// NBins returns the number of observed bandpower bins.
func (o *CanonicalObservation) NBins() int { return len(o.bandpowers) }

// Bandpowers returns a copy of the observed bandpowers.
func (o *CanonicalObservation) Bandpowers() []complex128 {
	return append([]complex128(nil), o.bandpowers...)
}

// Covariance returns the covariance matrix. The returned matrix is shared
// with the snapshot and must be treated as read-only.
func (o *CanonicalObservation) Covariance() *mat.SymDense { return o.covariance }

// Window returns the window-function operator, or nil when the identity
// fallback is in effect. Read-only.
func (o *CanonicalObservation) Window() *mat.Dense { return o.window }

// Grid returns the theory grid the window columns correspond to. Under the
// identity fallback this is a spherical grid at the k-bin centers.
func (o *CanonicalObservation) Grid() KGrid { return o.grid }

// KCenters returns a copy of the k-bin centers.
func (o *CanonicalObservation) KCenters() []float64 {
	return append([]float64(nil), o.kCenters...)
}

// KEdges returns a copy of the k-bin edges (length NBins+1).
func (o *CanonicalObservation) KEdges() []float64 {
	return append([]float64(nil), o.kEdges...)
}

// Redshift returns the spectral window's redshift.
func (o *CanonicalObservation) Redshift() float64 { return o.redshift }

// LittleH reports whether k values are in h/Mpc units.
func (o *CanonicalObservation) LittleH() bool { return o.littleH }

// Units returns the internal unit convention (always mK^2 after extraction).
func (o *CanonicalObservation) Units() PSUnits { return o.units }

// Conversion reports the unit conversion applied during extraction, if any.
func (o *CanonicalObservation) Conversion() UnitConversion { return o.conversion }

// IdentityWindowFallback reports whether the window function was absent from
// the source measurement and the identity operator was substituted.
func (o *CanonicalObservation) IdentityWindowFallback() bool { return o.fallback }

// RealVector returns the real representation of the bandpowers for the given
// complex mode, checking that the covariance dimension matches: N for real
// mode, 2N for stacked mode.
func (o *CanonicalObservation) RealVector(mode ComplexMode) (*mat.VecDense, error) {
	n := len(o.bandpowers)
	d := o.covariance.SymmetricDim()
	switch mode {
	case ComplexModeReal:
		if d != n {
			return nil, core.NewShapeMismatchError("covariance for real mode", d, n)
		}
		v := mat.NewVecDense(n, nil)
		for i, b := range o.bandpowers {
			v.SetVec(i, real(b))
		}
		return v, nil
	case ComplexModeStacked:
		if d != 2*n {
			return nil, core.NewShapeMismatchError("covariance for stacked mode", d, 2*n)
		}
		v := mat.NewVecDense(2*n, nil)
		for i, b := range o.bandpowers {
			v.SetVec(i, real(b))
			v.SetVec(n+i, imag(b))
		}
		return v, nil
	default:
		return nil, core.NewGridMismatchError("unknown complex mode " + string(mode))
	}
}

// MaxImagFraction returns the largest |Im(b)| / |b| over the bandpowers,
// used to verify that real mode is a faithful representation.
func (o *CanonicalObservation) MaxImagFraction() float64 {
	worst := 0.0
	for _, b := range o.bandpowers {
		m := cmplx.Abs(b)
		if m == 0 {
			continue
		}
		if f := math.Abs(imag(b)) / m; f > worst {
			worst = f
		}
	}
	return worst
}
