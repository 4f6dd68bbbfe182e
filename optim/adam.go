// Package optim implements the Adam optimizer over named flat parameter
// slices, with a serializable state so a training run can be resumed from a
// checkpoint mid-schedule.
package optim

import (
	"fmt"
	"math"
	"sort"
)

// Config holds the Adam hyperparameters.
type Config struct {
	LR    float64 // learning rate
	Beta1 float64 // first-moment decay
	Beta2 float64 // second-moment decay
	Eps   float64 // denominator fuzz
	Clip  float64 // per-element gradient clip, 0 disables
	L2    float64 // weight decay coefficient, 0 disables
}

func (cfg *Config) fillDefaults() {
	if cfg.LR == 0 {
		cfg.LR = 1e-3
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-8
	}
}

// State is the serializable optimizer state carried inside checkpoints.
type State struct {
	M map[string][]float32
	V map[string][]float32
	T int
}

// Adam keeps per-parameter first and second moment estimates keyed by the
// parameter name, lazily sized on the first Step.
type Adam struct {
	cfg Config
	m   map[string][]float32
	v   map[string][]float32
	t   int
}

// New returns an Adam optimizer. Zero-valued hyperparameters fall back to the
// usual defaults (lr 1e-3, betas 0.9/0.999, eps 1e-8).
func New(cfg Config) *Adam {
	cfg.fillDefaults()
	return &Adam{
		cfg: cfg,
		m:   make(map[string][]float32),
		v:   make(map[string][]float32),
	}
}

// Step applies one bias-corrected Adam update to every parameter in params
// using the matching gradient slice. Parameters are updated in place.
func (a *Adam) Step(params, grads map[string][]float32) error {
	a.t++
	corr1 := 1 - math.Pow(a.cfg.Beta1, float64(a.t))
	corr2 := 1 - math.Pow(a.cfg.Beta2, float64(a.t))

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := params[name]
		g, ok := grads[name]
		if !ok {
			return fmt.Errorf("optim: no gradient for parameter %q", name)
		}
		if len(g) != len(p) {
			return fmt.Errorf("optim: parameter %q has %d values but gradient has %d", name, len(p), len(g))
		}

		m, v := a.m[name], a.v[name]
		if m == nil {
			m = make([]float32, len(p))
			v = make([]float32, len(p))
			a.m[name] = m
			a.v[name] = v
		} else if len(m) != len(p) {
			return fmt.Errorf("optim: stale state for parameter %q: %d values vs %d", name, len(m), len(p))
		}

		for i := range p {
			grad := float64(g[i])
			if a.cfg.L2 > 0 {
				grad += a.cfg.L2 * float64(p[i])
			}
			if a.cfg.Clip > 0 {
				if grad > a.cfg.Clip {
					grad = a.cfg.Clip
				} else if grad < -a.cfg.Clip {
					grad = -a.cfg.Clip
				}
			}

			mi := a.cfg.Beta1*float64(m[i]) + (1-a.cfg.Beta1)*grad
			vi := a.cfg.Beta2*float64(v[i]) + (1-a.cfg.Beta2)*grad*grad
			m[i] = float32(mi)
			v[i] = float32(vi)

			mHat := mi / corr1
			vHat := vi / corr2
			p[i] -= float32(a.cfg.LR * mHat / (math.Sqrt(vHat) + a.cfg.Eps))
		}
	}
	return nil
}

// StepCount reports how many updates have been applied.
func (a *Adam) StepCount() int { return a.t }

// State returns a deep copy of the moment estimates for checkpointing.
func (a *Adam) State() State {
	st := State{
		M: make(map[string][]float32, len(a.m)),
		V: make(map[string][]float32, len(a.v)),
		T: a.t,
	}
	for name, m := range a.m {
		st.M[name] = append([]float32(nil), m...)
		st.V[name] = append([]float32(nil), a.v[name]...)
	}
	return st
}

// Restore replaces the optimizer state with a previously captured one.
func (a *Adam) Restore(st State) error {
	if len(st.M) != len(st.V) {
		return fmt.Errorf("optim: state has %d first moments but %d second moments", len(st.M), len(st.V))
	}
	m := make(map[string][]float32, len(st.M))
	v := make(map[string][]float32, len(st.V))
	for name, mv := range st.M {
		vv, ok := st.V[name]
		if !ok {
			return fmt.Errorf("optim: state is missing second moment for %q", name)
		}
		if len(mv) != len(vv) {
			return fmt.Errorf("optim: moment size mismatch for %q: %d vs %d", name, len(mv), len(vv))
		}
		m[name] = append([]float32(nil), mv...)
		v[name] = append([]float32(nil), vv...)
	}
	a.m = m
	a.v = v
	a.t = st.T
	return nil
}
