package likelihood

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"pslike/domain/core"
	"pslike/domain/params"
	"pslike/domain/spectrum"
	"pslike/ports"
)

func kSquared() ports.TheoryModel {
	return ports.SphericalTheoryFunc(func(k, z float64, littleH bool, p params.Vector) (float64, error) {
		return k * k, nil
	})
}

func identityObs(t *testing.T, centers []float64) *spectrum.CanonicalObservation {
	t.Helper()
	n := len(centers)
	bp := make([]complex128, n)
	cov := mat.NewSymDense(n, nil)
	for i := range centers {
		bp[i] = complex(centers[i]*centers[i], 0)
		cov.SetSym(i, i, 0.01)
	}
	obs, err := spectrum.NewCanonicalObservation(spectrum.ObservationSpec{
		Bandpowers: bp,
		Covariance: cov,
		KCenters:   centers,
	})
	if err != nil {
		t.Fatal(err)
	}
	return obs
}

func TestMapTheory_IdentityWindowReproducesTheory(t *testing.T) {
	centers := []float64{0.1, 0.3, 0.5}
	obs := identityObs(t, centers)
	m, _ := NewMapper(BinCenter, 0)

	out, err := m.MapTheory(kSquared(), nil, params.Vector{}, obs)
	if err != nil {
		t.Fatal(err)
	}
	for i, k := range centers {
		if math.Abs(out[i]-k*k) > 1e-14 {
			t.Errorf("bin %d: got %g, want %g", i, out[i], k*k)
		}
	}
}

func TestMapTheory_WindowRoundTrip(t *testing.T) {
	// Known window W applied to theory vector t must give exactly W*t.
	theoryK := []float64{0.1, 0.2, 0.3, 0.4}
	w := mat.NewDense(2, 4, []float64{
		0.25, 0.25, 0.25, 0.25,
		0, 0, 0.5, 0.5,
	})
	grid, err := spectrum.NewSphericalGrid(theoryK)
	if err != nil {
		t.Fatal(err)
	}
	obs, err := spectrum.NewCanonicalObservation(spectrum.ObservationSpec{
		Bandpowers: []complex128{0, 0},
		Covariance: mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		KCenters:   []float64{0.15, 0.35},
		Window:     w,
		Grid:       grid,
	})
	if err != nil {
		t.Fatal(err)
	}

	m, _ := NewMapper(BinCenter, 0)
	out, err := m.MapTheory(kSquared(), nil, params.Vector{}, obs)
	if err != nil {
		t.Fatal(err)
	}

	tv := mat.NewVecDense(4, nil)
	for j, k := range theoryK {
		tv.SetVec(j, k*k)
	}
	want := mat.NewVecDense(2, nil)
	want.MulVec(w, tv)
	for i := 0; i < 2; i++ {
		if math.Abs(out[i]-want.AtVec(i)) > 1e-14 {
			t.Errorf("bin %d: got %g, want %g", i, out[i], want.AtVec(i))
		}
	}
}

func TestMapTheory_CylindricalReconciliation(t *testing.T) {
	// Spherical theory on a cylindrical grid: evaluated at sqrt(kp^2+kz^2).
	kPerp := []float64{0.3, 0.0}
	kPar := []float64{0.4, 0.5}
	grid, err := spectrum.NewCylindricalGrid(kPerp, kPar)
	if err != nil {
		t.Fatal(err)
	}
	w := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	obs, err := spectrum.NewCanonicalObservation(spectrum.ObservationSpec{
		Bandpowers: []complex128{0, 0},
		Covariance: mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		KCenters:   []float64{0.5, 0.6},
		Window:     w,
		Grid:       grid,
	})
	if err != nil {
		t.Fatal(err)
	}

	m, _ := NewMapper(BinCenter, 0)
	out, err := m.MapTheory(kSquared(), nil, params.Vector{}, obs)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(out[0]-0.25) > 1e-12 { // 0.5^2
		t.Errorf("point 0: got %g, want 0.25", out[0])
	}
	if math.Abs(out[1]-0.25) > 1e-12 { // 0.5^2
		t.Errorf("point 1: got %g, want 0.25", out[1])
	}
}

func TestMapTheory_CylindricalTheoryOnSphericalGridFails(t *testing.T) {
	obs := identityObs(t, []float64{0.1, 0.3, 0.5})
	cyl := ports.CylindricalTheoryFunc(func(kPerp, kPar, z float64, littleH bool, p params.Vector) (float64, error) {
		return kPerp + kPar, nil
	})

	m, _ := NewMapper(BinCenter, 0)
	_, err := m.MapTheory(cyl, nil, params.Vector{}, obs)
	if !errors.Is(err, core.ErrGridMismatch) {
		t.Errorf("expected GridMismatch, got %v", err)
	}
}

func TestMapTheory_BiasApplied(t *testing.T) {
	centers := []float64{0.1, 0.3, 0.5}
	obs := identityObs(t, centers)
	bias := ports.BiasFunc(func(k, z float64, littleH bool, p params.Vector) (float64, error) {
		return 2, nil
	})

	m, _ := NewMapper(BinCenter, 0)
	out, err := m.MapTheory(kSquared(), bias, params.Vector{}, obs)
	if err != nil {
		t.Fatal(err)
	}
	for i, k := range centers {
		if math.Abs(out[i]-2*k*k) > 1e-14 {
			t.Errorf("bin %d: got %g, want %g", i, out[i], 2*k*k)
		}
	}
}

func TestMapTheory_ModelErrorBecomesOutOfDomain(t *testing.T) {
	obs := identityObs(t, []float64{0.1, 0.3, 0.5})
	failing := ports.SphericalTheoryFunc(func(k, z float64, littleH bool, p params.Vector) (float64, error) {
		return 0, fmt.Errorf("negative power")
	})

	m, _ := NewMapper(BinCenter, 0)
	_, err := m.MapTheory(failing, nil, params.Vector{}, obs)
	if !errors.Is(err, core.ErrParameterOutOfDomain) {
		t.Errorf("expected ParameterOutOfDomain, got %v", err)
	}
}

func TestMapTheory_LinearModelExactForAllBinMethods(t *testing.T) {
	// For a linear P(k) every bin method agrees: the trapezoid average and
	// the edge mean both equal the value at the bin center.
	linear := ports.SphericalTheoryFunc(func(k, z float64, littleH bool, p params.Vector) (float64, error) {
		return 3*k + 1, nil
	})
	centers := []float64{0.2, 0.4, 0.6}
	obs := identityObs(t, centers)

	for _, method := range []BinMethod{BinCenter, BinTwoPoint, BinIntegrate} {
		m, err := NewMapper(method, 8)
		if err != nil {
			t.Fatal(err)
		}
		out, err := m.MapTheory(linear, nil, params.Vector{}, obs)
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		for i, k := range centers {
			want := 3*k + 1
			if math.Abs(out[i]-want) > 1e-10 {
				t.Errorf("%s bin %d: got %g, want %g", method, i, out[i], want)
			}
		}
	}
}

func TestMapTheory_SingleBinAllMethods(t *testing.T) {
	// A one-bin observation derives symmetric edges around its center; every
	// bin method must evaluate cleanly on it.
	obs := identityObs(t, []float64{0.2})

	cases := []struct {
		method BinMethod
		want   float64
		tol    float64
	}{
		{BinCenter, 0.04, 1e-14},                  // k^2 at the center
		{BinTwoPoint, 0.5 * (0.01 + 0.09), 1e-14}, // mean of k^2 at edges 0.1, 0.3
		{BinIntegrate, 13.0 / 300.0, 1e-3},        // bin average of k^2 over [0.1, 0.3]
	}
	for _, tc := range cases {
		m, err := NewMapper(tc.method, 8)
		if err != nil {
			t.Fatal(err)
		}
		out, err := m.MapTheory(kSquared(), nil, params.Vector{}, obs)
		if err != nil {
			t.Fatalf("%s: %v", tc.method, err)
		}
		if len(out) != 1 {
			t.Fatalf("%s: expected 1 bandpower, got %d", tc.method, len(out))
		}
		if math.Abs(out[0]-tc.want) > tc.tol {
			t.Errorf("%s: got %g, want %g", tc.method, out[0], tc.want)
		}
	}
}

func TestNewMapper_UnknownMethod(t *testing.T) {
	if _, err := NewMapper("simpson", 0); err == nil {
		t.Error("unknown bin method should fail")
	}
}
