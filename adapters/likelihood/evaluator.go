package likelihood

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"pslike/domain/core"
	"pslike/domain/spectrum"
)

// imagWarnFraction triggers a construction-time warning when real mode is
// asked to discard imaginary bandpower components this large.
const imagWarnFraction = 0.01

// Diagnostics accompanies a log-likelihood value. All fields are advisory;
// the scalar is always usable on its own.
type Diagnostics struct {
	ChiSquare float64   `json:"chi_square"`
	PValue    float64   `json:"p_value"`
	DOF       int       `json:"dof"`
	Residuals []float64 `json:"residuals,omitempty"`
	// Degraded is set when the covariance was not positive definite and a
	// pseudo-inverse was used.
	Degraded bool `json:"degraded"`
	// OutOfDomain is set when the theory vector contained NaN/Inf and the
	// likelihood was forced to -Inf.
	OutOfDomain bool `json:"out_of_domain"`
}

// Evaluator computes log-likelihoods for one observation. The covariance
// factorization and the observed real vector are computed once at
// construction and shared by all evaluations; the evaluator is therefore
// safe for concurrent use from a sampler's workers.
type Evaluator struct {
	obs      *spectrum.CanonicalObservation
	form     Form
	mode     spectrum.ComplexMode
	dec      *covDecomposition
	observed *mat.VecDense
}

// EvaluatorConfig selects the likelihood form and the complex-data handling.
type EvaluatorConfig struct {
	Form Form
	// Mode defaults to ComplexModeReal.
	Mode spectrum.ComplexMode
	// Strict makes a non-positive-definite covariance a construction error
	// instead of a degraded pseudo-inverse evaluation.
	Strict bool
}

// NewEvaluator validates the observation against the config and precomputes
// the covariance factorization.
func NewEvaluator(obs *spectrum.CanonicalObservation, cfg EvaluatorConfig) (*Evaluator, error) {
	if cfg.Form == nil {
		cfg.Form = gaussianForm{}
	}
	if cfg.Mode == "" {
		cfg.Mode = spectrum.ComplexModeReal
	}

	observed, err := obs.RealVector(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if cfg.Mode == spectrum.ComplexModeReal {
		if f := obs.MaxImagFraction(); f > imagWarnFraction {
			log.Printf("[likelihood] real mode discarding imaginary bandpower components up to %.1f%% of magnitude", 100*f)
		}
	}

	dec, err := decompose(obs.Covariance(), cfg.Strict)
	if err != nil {
		return nil, err
	}

	return &Evaluator{
		obs:      obs,
		form:     cfg.Form,
		mode:     cfg.Mode,
		dec:      dec,
		observed: observed,
	}, nil
}

// Form returns the configured likelihood form.
func (e *Evaluator) Form() Form { return e.form }

// Mode returns the configured complex-data mode.
func (e *Evaluator) Mode() spectrum.ComplexMode { return e.mode }

// Degraded reports whether the evaluator runs on a pseudo-inverse.
func (e *Evaluator) Degraded() bool { return e.dec.degraded }

// LogLikelihood evaluates the configured form on the residual between the
// observation and the mapped theory bandpowers. A shape mismatch is an
// error (never truncated or broadcast); numerical problems in the theory
// vector produce -Inf with the OutOfDomain diagnostic set, so the method is
// safe to call from a sampler's inner loop.
func (e *Evaluator) LogLikelihood(theory []float64) (float64, Diagnostics, error) {
	diag := Diagnostics{Degraded: e.dec.degraded, DOF: e.dec.rank}

	n := e.obs.NBins()
	if len(theory) != n {
		return 0, diag, core.NewShapeMismatchError("theory bandpowers", len(theory), n)
	}

	r := mat.NewVecDense(e.dec.dim, nil)
	outOfDomain := false
	for i := 0; i < e.dec.dim; i++ {
		var t float64
		if i < n {
			t = theory[i]
		}
		// Stacked mode: imaginary components of the theory are zero, the
		// residual there is the observed imaginary part itself.
		v := e.observed.AtVec(i) - t
		if math.IsNaN(v) || math.IsInf(v, 0) {
			outOfDomain = true
		}
		r.SetVec(i, v)
	}
	if outOfDomain {
		diag.OutOfDomain = true
		return math.Inf(-1), diag, nil
	}

	q := e.dec.mahalanobis(r)
	if math.IsNaN(q) || math.IsInf(q, 0) {
		diag.OutOfDomain = true
		return math.Inf(-1), diag, nil
	}

	diag.ChiSquare = q
	diag.Residuals = append([]float64(nil), r.RawVector().Data...)
	if e.dec.rank > 0 {
		chi2 := distuv.ChiSquared{K: float64(e.dec.rank)}
		diag.PValue = chi2.Survival(q)
	}

	return e.form.logLikelihood(q, e.dec.logDet, e.dec.rank), diag, nil
}
