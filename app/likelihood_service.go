// Package app wires the measurement, mapper and evaluator into the
// likelihood surface samplers call.
package app

import (
	"errors"
	"math"

	"pslike/adapters/likelihood"
	"pslike/domain/core"
	"pslike/domain/params"
	"pslike/domain/spectrum"
	"pslike/ports"
)

// LikelihoodResult is the output of one likelihood evaluation. LogPosterior
// is the scalar a sampler consumes; everything else is diagnostic.
type LikelihoodResult struct {
	EvaluationID  core.EvaluationID `json:"evaluation_id"`
	LogLikelihood float64           `json:"log_likelihood"`
	LogPrior      float64           `json:"log_prior"`
	LogPosterior  float64           `json:"log_posterior"`

	ChiSquare float64   `json:"chi_square"`
	PValue    float64   `json:"p_value"`
	DOF       int       `json:"dof"`
	Residuals []float64 `json:"residuals,omitempty"`

	PriorRejected      bool `json:"prior_rejected"`
	DegradedCovariance bool `json:"degraded_covariance"`
	OutOfDomain        bool `json:"out_of_domain"`

	EvaluatedAt core.Timestamp `json:"evaluated_at"`
}

// ServiceConfig selects the mapper and evaluator behavior for a
// LikelihoodService.
type ServiceConfig struct {
	FormName    string
	StudentNu   float64
	ComplexMode spectrum.ComplexMode
	Strict      bool
	BinMethod   likelihood.BinMethod
	QuadNodes   int
}

// LikelihoodService evaluates the posterior of one spectral window against
// one theory/bias/prior triple. It is stateless per call: Evaluate may be
// invoked concurrently and returns identical results for identical inputs.
type LikelihoodService struct {
	obs       *spectrum.CanonicalObservation
	theory    ports.TheoryModel
	bias      ports.BiasModel
	prior     ports.PriorModel
	mapper    *likelihood.Mapper
	evaluator *likelihood.Evaluator
}

// NewLikelihoodService validates the configuration up front: coordinate
// compatibility between theory and grid, covariance factorization, and form
// selection. Per-call failures after this point are parameter problems and
// surface as -Inf results, never as errors.
func NewLikelihoodService(obs *spectrum.CanonicalObservation, theory ports.TheoryModel, bias ports.BiasModel, prior ports.PriorModel, cfg ServiceConfig) (*LikelihoodService, error) {
	if obs == nil {
		return nil, core.NewMissingFieldError("observation")
	}
	if theory == nil {
		return nil, core.NewMissingFieldError("theory model")
	}
	if bias == nil {
		bias = ports.UnitBias()
	}
	if prior == nil {
		prior = ports.BoundsPrior()
	}

	if err := likelihood.CheckCompatible(theory, obs); err != nil {
		return nil, err
	}

	mapper, err := likelihood.NewMapper(cfg.BinMethod, cfg.QuadNodes)
	if err != nil {
		return nil, err
	}

	form, err := likelihood.NewForm(cfg.FormName, cfg.StudentNu)
	if err != nil {
		return nil, err
	}
	evaluator, err := likelihood.NewEvaluator(obs, likelihood.EvaluatorConfig{
		Form:   form,
		Mode:   cfg.ComplexMode,
		Strict: cfg.Strict,
	})
	if err != nil {
		return nil, err
	}

	return &LikelihoodService{
		obs:       obs,
		theory:    theory,
		bias:      bias,
		prior:     prior,
		mapper:    mapper,
		evaluator: evaluator,
	}, nil
}

// Observation returns the service's canonical observation.
func (s *LikelihoodService) Observation() *spectrum.CanonicalObservation { return s.obs }

// Evaluate computes the log-posterior for one parameter vector. The prior is
// consulted first; on rejection the theory model is never evaluated.
func (s *LikelihoodService) Evaluate(p params.Vector) LikelihoodResult {
	result := LikelihoodResult{
		EvaluationID:       core.EvaluationID(core.NewID()),
		DegradedCovariance: s.evaluator.Degraded(),
		EvaluatedAt:        core.Now(),
	}

	logPrior, err := s.prior.LogPrior(p)
	if err != nil || math.IsInf(logPrior, -1) || math.IsNaN(logPrior) {
		result.PriorRejected = true
		result.LogPrior = math.Inf(-1)
		result.LogLikelihood = math.Inf(-1)
		result.LogPosterior = math.Inf(-1)
		return result
	}
	result.LogPrior = logPrior

	theory, err := s.mapper.MapTheory(s.theory, s.bias, p, s.obs)
	if err != nil {
		// ParameterOutOfDomain and kin become a -Inf sample, not a failure.
		result.OutOfDomain = errors.Is(err, core.ErrParameterOutOfDomain)
		result.LogLikelihood = math.Inf(-1)
		result.LogPosterior = math.Inf(-1)
		return result
	}

	ll, diag, err := s.evaluator.LogLikelihood(theory)
	if err != nil {
		result.LogLikelihood = math.Inf(-1)
		result.LogPosterior = math.Inf(-1)
		return result
	}

	result.LogLikelihood = ll
	result.LogPosterior = ll + logPrior
	result.ChiSquare = diag.ChiSquare
	result.PValue = diag.PValue
	result.DOF = diag.DOF
	result.Residuals = diag.Residuals
	result.DegradedCovariance = diag.Degraded
	result.OutOfDomain = result.OutOfDomain || diag.OutOfDomain
	return result
}
