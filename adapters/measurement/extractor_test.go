package measurement

import (
	"errors"
	"math"
	"testing"

	"pslike/domain/core"
	"pslike/domain/spectrum"
)

func baseWindow() SpectralWindow {
	return SpectralWindow{
		Bandpowers:  []complex128{1, 2, 3},
		Covariance:  [][]float64{{0.01, 0, 0}, {0, 0.01, 0}, {0, 0, 0.01}},
		KBinCenters: []float64{0.1, 0.3, 0.5},
		Redshift:    8.0,
	}
}

func TestExtract_InvalidSpectralWindow(t *testing.T) {
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{baseWindow()}}

	for _, spw := range []int{-1, 1, 7} {
		if _, err := Extract(m, spw); !errors.Is(err, core.ErrInvalidSpectralWindow) {
			t.Errorf("spw %d: expected InvalidSpectralWindow, got %v", spw, err)
		}
	}
}

func TestExtract_MissingFields(t *testing.T) {
	t.Run("no bandpowers", func(t *testing.T) {
		w := baseWindow()
		w.Bandpowers = nil
		m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}
		if _, err := Extract(m, 0); !errors.Is(err, core.ErrMissingField) {
			t.Errorf("expected MissingField, got %v", err)
		}
	})

	t.Run("no k bins", func(t *testing.T) {
		w := baseWindow()
		w.KBinCenters = nil
		m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}
		if _, err := Extract(m, 0); !errors.Is(err, core.ErrMissingField) {
			t.Errorf("expected MissingField, got %v", err)
		}
	})

	t.Run("no covariance at all", func(t *testing.T) {
		w := baseWindow()
		w.Covariance = nil
		m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}
		if _, err := Extract(m, 0); !errors.Is(err, core.ErrMissingField) {
			t.Errorf("expected MissingField, got %v", err)
		}
	})
}

func TestExtract_FlaggedSamples(t *testing.T) {
	w := baseWindow()
	w.Bandpowers = nil
	w.SampleBandpowers = [][]complex128{
		{1, 2, 3},
		{3, 4, 5},
		{1000, 1000, 1000}, // flagged, must be discarded
	}
	w.Flags = []bool{false, false, true}
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}

	obs, err := Extract(m, 0)
	if err != nil {
		t.Fatal(err)
	}
	bp := obs.Bandpowers()
	want := []complex128{2, 3, 4}
	for i := range want {
		if bp[i] != want[i] {
			t.Errorf("bandpower[%d] = %v, want %v", i, bp[i], want[i])
		}
	}
}

func TestExtract_AllSamplesFlagged(t *testing.T) {
	w := baseWindow()
	w.Bandpowers = nil
	w.SampleBandpowers = [][]complex128{{1, 2, 3}}
	w.Flags = []bool{true}
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}

	if _, err := Extract(m, 0); !errors.Is(err, core.ErrInvalidObservation) {
		t.Errorf("expected InvalidObservation, got %v", err)
	}
}

func TestExtract_FlagMaskShapeMismatch(t *testing.T) {
	w := baseWindow()
	w.Bandpowers = nil
	w.SampleBandpowers = [][]complex128{{1, 2, 3}, {2, 3, 4}}
	w.Flags = []bool{false}
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}

	if _, err := Extract(m, 0); !errors.Is(err, core.ErrShapeMismatch) {
		t.Errorf("expected ShapeMismatch, got %v", err)
	}
}

func TestExtract_SampleCovarianceAveraging(t *testing.T) {
	// Two unflagged samples with per-sample variance 0.04 each: the
	// covariance of the mean is (0.04+0.04)/2 / 2 = 0.02.
	w := baseWindow()
	w.Covariance = nil
	w.SampleBandpowers = [][]complex128{{1, 2, 3}, {1, 2, 3}}
	w.SampleCovariances = [][][]float64{
		{{0.04, 0, 0}, {0, 0.04, 0}, {0, 0, 0.04}},
		{{0.04, 0, 0}, {0, 0.04, 0}, {0, 0, 0.04}},
	}
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}

	obs, err := Extract(m, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := obs.Covariance().At(0, 0); math.Abs(got-0.02) > 1e-12 {
		t.Errorf("averaged covariance = %g, want 0.02", got)
	}
}

func TestExtract_SampleCovarianceShapeMismatch(t *testing.T) {
	w := baseWindow()
	w.Covariance = nil
	w.SampleCovariances = [][][]float64{{{0.04, 0}, {0, 0.04}}}
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}

	if _, err := Extract(m, 0); !errors.Is(err, core.ErrShapeMismatch) {
		t.Errorf("expected ShapeMismatch, got %v", err)
	}
}

func TestExtract_EmpiricalCovarianceFallback(t *testing.T) {
	w := baseWindow()
	w.Bandpowers = nil
	w.Covariance = nil
	w.SampleBandpowers = [][]complex128{{1, 2, 3}, {3, 4, 5}}
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}

	obs, err := Extract(m, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Sample variance of {1,3} is 2; covariance of the mean is 2/2 = 1.
	if got := obs.Covariance().At(0, 0); math.Abs(got-1) > 1e-12 {
		t.Errorf("empirical covariance = %g, want 1", got)
	}
}

func TestExtract_IdentityWindowFallback(t *testing.T) {
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{baseWindow()}}
	obs, err := Extract(m, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !obs.IdentityWindowFallback() {
		t.Error("fallback flag should be set when window function is absent")
	}
	if obs.Window() != nil {
		t.Error("window should be nil under identity fallback")
	}
}

func TestExtract_ExplicitWindowAndGrid(t *testing.T) {
	w := baseWindow()
	w.WindowFunction = [][]float64{
		{0.5, 0.5, 0, 0},
		{0, 0.5, 0.5, 0},
		{0, 0, 0.5, 0.5},
	}
	w.TheoryK = []float64{0.05, 0.15, 0.35, 0.55}
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}

	obs, err := Extract(m, 0)
	if err != nil {
		t.Fatal(err)
	}
	if obs.IdentityWindowFallback() {
		t.Error("fallback flag should not be set")
	}
	if obs.Grid().Len() != 4 {
		t.Errorf("grid size = %d, want 4", obs.Grid().Len())
	}
}

func TestExtract_WindowWithoutGrid(t *testing.T) {
	w := baseWindow()
	w.WindowFunction = [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}

	if _, err := Extract(m, 0); !errors.Is(err, core.ErrGridMismatch) {
		t.Errorf("expected GridMismatch, got %v", err)
	}
}

func TestExtract_EmptyWindowRows(t *testing.T) {
	w := baseWindow()
	w.Bandpowers = w.Bandpowers[:1]
	w.Covariance = [][]float64{{0.01}}
	w.KBinCenters = w.KBinCenters[:1]
	w.WindowFunction = [][]float64{{}}
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{w}}

	if _, err := Extract(m, 0); !errors.Is(err, core.ErrShapeMismatch) {
		t.Errorf("expected ShapeMismatch for zero-width window rows, got %v", err)
	}
}

func TestExtract_UnknownUnits(t *testing.T) {
	m := &Measurement{Units: "jansky", Windows: []SpectralWindow{baseWindow()}}

	_, err := Extract(m, 0)
	if !errors.Is(err, core.ErrInvalidObservation) {
		t.Errorf("expected InvalidObservation for unknown units tag, got %v", err)
	}
	if errors.Is(err, core.ErrMissingField) {
		t.Errorf("present-but-unparseable units must not read as missing: %v", err)
	}
}

func TestExtract_DeltaSqConversion(t *testing.T) {
	w := baseWindow()
	m := &Measurement{Units: "Delta2", Windows: []SpectralWindow{w}}

	obs, err := Extract(m, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !obs.Conversion().Applied() {
		t.Fatal("conversion should be recorded")
	}

	f0 := spectrum.DeltaSqToPowerFactor(0.1)
	if got, want := real(obs.Bandpowers()[0]), 1*f0; math.Abs(got-want) > 1e-9 {
		t.Errorf("converted bandpower = %g, want %g", got, want)
	}
	if got, want := obs.Covariance().At(0, 0), 0.01*f0*f0; math.Abs(got-want)/want > 1e-12 {
		t.Errorf("converted variance = %g, want %g", got, want)
	}
}

func TestExtract_MK2NoConversion(t *testing.T) {
	m := &Measurement{Units: "mK2", Windows: []SpectralWindow{baseWindow()}}
	obs, err := Extract(m, 0)
	if err != nil {
		t.Fatal(err)
	}
	if obs.Conversion().Applied() {
		t.Error("no conversion should be recorded for mK2 input")
	}
	if got := real(obs.Bandpowers()[0]); got != 1 {
		t.Errorf("bandpower changed without conversion: %g", got)
	}
}
