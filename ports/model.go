// Package ports defines the capability interfaces external collaborators
// plug into the likelihood: theory models, nuisance bias models and priors.
// All implementations must be stateless and safe for concurrent use.
package ports

import (
	"math"

	"pslike/domain/params"
	"pslike/domain/spectrum"
)

// TheoryModel maps a Fourier mode to a power-spectrum value in mK^2.
// Coordinates declares which convention the model natively evaluates in;
// the mapper uses it to reconcile the model with the observation's grid
// before evaluation.
type TheoryModel interface {
	Coordinates() spectrum.CoordSystem
	// Evaluate returns P at the given point. For spherical models only pt.K
	// is meaningful; cylindrical models read pt.KPerp and pt.KPar. An error
	// signals the parameters are outside the model's domain.
	Evaluate(pt spectrum.KPoint, z float64, littleH bool, p params.Vector) (float64, error)
}

// BiasModel is a multiplicative nuisance factor applied to the raw theory
// power at each grid point before window convolution.
type BiasModel interface {
	Evaluate(k, z float64, littleH bool, p params.Vector) (float64, error)
}

// PriorModel maps a parameter vector to a log-prior. Parameters outside the
// prior's support return -Inf or core.ErrInvalidParameter; both are treated
// as rejection by the caller.
type PriorModel interface {
	LogPrior(p params.Vector) (float64, error)
}

// SphericalTheoryFunc adapts a plain function into a spherical TheoryModel.
type SphericalTheoryFunc func(k, z float64, littleH bool, p params.Vector) (float64, error)

func (SphericalTheoryFunc) Coordinates() spectrum.CoordSystem { return spectrum.CoordSpherical }

func (f SphericalTheoryFunc) Evaluate(pt spectrum.KPoint, z float64, littleH bool, p params.Vector) (float64, error) {
	return f(pt.K, z, littleH, p)
}

// CylindricalTheoryFunc adapts a plain function into a cylindrical
// TheoryModel.
type CylindricalTheoryFunc func(kPerp, kPar, z float64, littleH bool, p params.Vector) (float64, error)

func (CylindricalTheoryFunc) Coordinates() spectrum.CoordSystem { return spectrum.CoordCylindrical }

func (f CylindricalTheoryFunc) Evaluate(pt spectrum.KPoint, z float64, littleH bool, p params.Vector) (float64, error) {
	return f(pt.KPerp, pt.KPar, z, littleH, p)
}

// BiasFunc adapts a plain function into a BiasModel.
type BiasFunc func(k, z float64, littleH bool, p params.Vector) (float64, error)

func (f BiasFunc) Evaluate(k, z float64, littleH bool, p params.Vector) (float64, error) {
	return f(k, z, littleH, p)
}

// UnitBias is the no-op bias model (factor 1 everywhere).
func UnitBias() BiasModel {
	return BiasFunc(func(float64, float64, bool, params.Vector) (float64, error) {
		return 1, nil
	})
}

// PriorFunc adapts a plain function into a PriorModel.
type PriorFunc func(p params.Vector) (float64, error)

func (f PriorFunc) LogPrior(p params.Vector) (float64, error) {
	return f(p)
}

// BoundsPrior is the flat prior implied by each parameter's declared bounds:
// log-prior 0 inside, -Inf outside.
func BoundsPrior() PriorModel {
	return PriorFunc(func(p params.Vector) (float64, error) {
		if !p.InBounds() {
			return math.Inf(-1), nil
		}
		return 0, nil
	})
}
