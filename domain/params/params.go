// Package params defines the ordered parameter vector shared between the
// sampler, the theory/bias models and the prior.
package params

import (
	"fmt"
	"math"

	"pslike/domain/core"
)

// Kind tags a parameter as belonging to the theory model or to the nuisance
// (bias/systematics) model.
type Kind string

const (
	KindTheory   Kind = "theory"
	KindNuisance Kind = "nuisance"
)

// Bounds is the closed interval a parameter is allowed to take values in.
type Bounds struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Unbounded covers the whole real line.
func Unbounded() Bounds {
	return Bounds{Lo: math.Inf(-1), Hi: math.Inf(1)}
}

// Contains reports whether v lies within the bounds.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lo && v <= b.Hi && !math.IsNaN(v)
}

// Parameter is a single named entry of a Vector.
type Parameter struct {
	Name   core.ParamName `json:"name"`
	Value  float64        `json:"value"`
	Bounds Bounds         `json:"bounds"`
	Kind   Kind           `json:"kind"`
}

// Vector is an ordered, immutable set of named parameters. The sampler owns
// it and builds a fresh one (or uses WithValues) per likelihood call; the
// likelihood machinery never mutates it.
type Vector struct {
	order  []core.ParamName
	byName map[core.ParamName]Parameter
}

// NewVector builds a Vector, enforcing unique names and sane bounds.
func NewVector(parameters ...Parameter) (Vector, error) {
	v := Vector{
		order:  make([]core.ParamName, 0, len(parameters)),
		byName: make(map[core.ParamName]Parameter, len(parameters)),
	}
	for _, p := range parameters {
		if p.Name == "" {
			return Vector{}, fmt.Errorf("parameter name cannot be empty")
		}
		if _, exists := v.byName[p.Name]; exists {
			return Vector{}, fmt.Errorf("%w: %s", core.ErrDuplicateParameter, p.Name)
		}
		if p.Bounds == (Bounds{}) {
			p.Bounds = Unbounded()
		}
		if p.Bounds.Lo > p.Bounds.Hi {
			return Vector{}, fmt.Errorf("parameter %s has inverted bounds [%g, %g]", p.Name, p.Bounds.Lo, p.Bounds.Hi)
		}
		if p.Kind == "" {
			p.Kind = KindTheory
		}
		v.order = append(v.order, p.Name)
		v.byName[p.Name] = p
	}
	return v, nil
}

// Len returns the number of parameters.
func (v Vector) Len() int { return len(v.order) }

// Names returns the parameter names in declaration order.
func (v Vector) Names() []core.ParamName {
	return append([]core.ParamName(nil), v.order...)
}

// Get returns the value of the named parameter.
func (v Vector) Get(name core.ParamName) (float64, bool) {
	p, ok := v.byName[name]
	return p.Value, ok
}

// MustGet returns the value of the named parameter, or NaN if absent. Models
// that require a parameter should use Get and fail explicitly.
func (v Vector) MustGet(name core.ParamName) float64 {
	if p, ok := v.byName[name]; ok {
		return p.Value
	}
	return math.NaN()
}

// Param returns the full parameter entry.
func (v Vector) Param(name core.ParamName) (Parameter, bool) {
	p, ok := v.byName[name]
	return p, ok
}

// Values returns the parameter values in declaration order.
func (v Vector) Values() []float64 {
	vals := make([]float64, len(v.order))
	for i, name := range v.order {
		vals[i] = v.byName[name].Value
	}
	return vals
}

// Subset returns a new Vector holding only parameters of the given kind, in
// the original declaration order.
func (v Vector) Subset(kind Kind) Vector {
	sub := Vector{byName: make(map[core.ParamName]Parameter)}
	for _, name := range v.order {
		p := v.byName[name]
		if p.Kind == kind {
			sub.order = append(sub.order, name)
			sub.byName[name] = p
		}
	}
	return sub
}

// WithValues returns a copy of v with new values substituted in declaration
// order. Lengths must match.
func (v Vector) WithValues(values []float64) (Vector, error) {
	if len(values) != len(v.order) {
		return Vector{}, core.NewShapeMismatchError("parameter values", len(values), len(v.order))
	}
	out := Vector{
		order:  append([]core.ParamName(nil), v.order...),
		byName: make(map[core.ParamName]Parameter, len(v.order)),
	}
	for i, name := range v.order {
		p := v.byName[name]
		p.Value = values[i]
		out.byName[name] = p
	}
	return out, nil
}

// InBounds reports whether every parameter lies within its bounds.
func (v Vector) InBounds() bool {
	for _, name := range v.order {
		p := v.byName[name]
		if !p.Bounds.Contains(p.Value) {
			return false
		}
	}
	return true
}
