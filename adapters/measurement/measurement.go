// Package measurement adapts the external power-spectrum estimation
// pipeline's output into canonical observations. The estimator itself
// (quadratic estimation, calibration, averaging) is out of scope; this
// package consumes its exported data contract and copies the needed fields
// out, never holding a reference into the pipeline's mutable state.
package measurement

// SpectralWindow is one contiguous frequency range of the measurement,
// treated as an independent redshift slice.
//
// Bandpowers may arrive already time/baseline averaged (Bandpowers) or as
// per-sample rows (SampleBandpowers) with a parallel flag mask. Covariance
// follows the same split: one averaged matrix, or per-sample matrices that
// the extractor averages down to the covariance of the sample mean.
type SpectralWindow struct {
	Bandpowers       []complex128   `json:"bandpowers,omitempty"`
	SampleBandpowers [][]complex128 `json:"sample_bandpowers,omitempty"`
	// Flags marks per-sample rows to discard (true = flagged bad). The
	// flagging convention is the source pipeline's own and is propagated,
	// not reinterpreted.
	Flags []bool `json:"flags,omitempty"`

	Covariance        [][]float64   `json:"covariance,omitempty"`
	SampleCovariances [][][]float64 `json:"sample_covariances,omitempty"`

	// WindowFunction has one row per observed bin and one column per theory
	// grid point. Absent means the extractor substitutes the identity.
	WindowFunction [][]float64 `json:"window_function,omitempty"`

	KBinCenters []float64 `json:"k_bin_centers"`
	KBinEdges   []float64 `json:"k_bin_edges,omitempty"`

	// Theory grid the window columns were built against. Either TheoryK
	// (spherical) or the KPerp/KPar pair (cylindrical). Ignored when the
	// window function is absent.
	TheoryK []float64 `json:"theory_k,omitempty"`
	KPerp   []float64 `json:"k_perp,omitempty"`
	KPar    []float64 `json:"k_par,omitempty"`

	Redshift float64 `json:"redshift"`
}

// Measurement is the full data contract consumed from the estimation
// pipeline: a list of statistically independent spectral windows plus the
// conventions they share.
type Measurement struct {
	Windows []SpectralWindow `json:"spectral_windows"`
	// Units is the source unit tag: "mK2" or "Delta2"/"delta_sq".
	Units   string `json:"units"`
	LittleH bool   `json:"little_h"`
	History string `json:"history,omitempty"`
}
